package transfer

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/metrics"
	"github.com/picmigrate/picmigrate/internal/models"
)

// Downloader streams located images into per-SKU directories under the
// storage root. A file that already exists locally counts as present without
// a network fetch, which makes re-runs idempotent.
type Downloader struct {
	client  *DownloadClient
	root    string
	journal *logging.Journal
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewDownloader creates a downloader writing under root/<sku>/.
func NewDownloader(client *DownloadClient, root string, journal *logging.Journal, logger *logging.Logger, m *metrics.Metrics) *Downloader {
	return &Downloader{
		client:  client,
		root:    root,
		journal: journal,
		logger:  logger,
		metrics: m,
	}
}

// Dir returns the local directory for a SKU's images.
func (d *Downloader) Dir(sku string) string {
	return filepath.Join(d.root, sku)
}

// DownloadAll fetches every image into the SKU's directory and returns the
// local paths in the same order as the input. The first failed download
// aborts the SKU: a partial image set must not be silently uploaded.
func (d *Downloader) DownloadAll(ctx context.Context, sku string, images []models.ImageRecord) ([]string, error) {
	dir := d.Dir(sku)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
	}

	paths := make([]string, 0, len(images))
	claimed := make(map[string]string, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Distinct URLs can share a final path segment; the later one gets
		// a hash prefix instead of silently reusing the earlier file. The
		// input is ordered, so the assignment is stable across runs.
		name := img.FileName()
		if owner, taken := claimed[name]; taken && owner != img.Key() {
			name = fmt.Sprintf("%08x_%s", crc32.ChecksumIEEE([]byte(img.Key())), img.FileName())
		}
		claimed[name] = img.Key()

		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			if d.metrics != nil {
				d.metrics.DownloadCacheHits.Inc()
			}
			d.journalf("Image %s for SKU %s already present, skipping download", name, sku)
			paths = append(paths, dest)
			continue
		}

		if err := d.fetch(ctx, img.URL, dest); err != nil {
			return nil, &errors.ErrTransfer{Stage: errors.StageDownload, SKU: sku, URL: img.URL, Err: err}
		}
		if d.metrics != nil {
			d.metrics.ImagesDownloaded.Inc()
		}
		d.journalf("Image %s for SKU %s downloaded to %s", name, sku, dest)
		paths = append(paths, dest)
	}

	return paths, nil
}

// fetch streams one URL to dest via a temp file so a failed download never
// leaves a truncated file that a later run would treat as a cache hit.
func (d *Downloader) fetch(ctx context.Context, url, dest string) error {
	resp, err := d.client.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download_*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (d *Downloader) journalf(format string, args ...interface{}) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Append(format, args...); err != nil {
		d.logger.Warn("journal append failed", "error", err.Error())
	}
}
