package transfer

import (
	"context"
	"path/filepath"

	"github.com/picmigrate/picmigrate/internal/bling"
	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/metrics"
	"github.com/picmigrate/picmigrate/internal/models"
)

// Uploader attaches downloaded image files to the matching product in the
// destination account.
type Uploader struct {
	client  *bling.Client
	journal *logging.Journal
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewUploader creates an uploader using the given destination API client.
func NewUploader(client *bling.Client, journal *logging.Journal, logger *logging.Logger, m *metrics.Metrics) *Uploader {
	return &Uploader{
		client:  client,
		journal: journal,
		logger:  logger,
		metrics: m,
	}
}

// ResolveProduct finds the destination product by exact SKU lookup. Returns
// ErrProductNotFound when the SKU does not exist there; the caller keeps the
// downloaded files on disk for inspection.
func (u *Uploader) ResolveProduct(ctx context.Context, token, account, sku string) (*models.ProductRef, error) {
	return u.client.SearchBySKUFilter(ctx, token, account, sku)
}

// UploadAll posts each local file to the destination product, one request per
// image. The first failure aborts the remaining uploads for this SKU.
func (u *Uploader) UploadAll(ctx context.Context, token, sku string, productID int64, localPaths []string) error {
	for _, path := range localPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.client.AttachImage(ctx, token, productID, path); err != nil {
			return &errors.ErrTransfer{Stage: errors.StageUpload, SKU: sku, URL: path, Err: err}
		}
		if u.metrics != nil {
			u.metrics.ImagesUploaded.Inc()
		}
		u.journalf("Image %s for SKU %s uploaded to destination product %d", filepath.Base(path), sku, productID)
	}
	return nil
}

func (u *Uploader) journalf(format string, args ...interface{}) {
	if u.journal == nil {
		return
	}
	if err := u.journal.Append(format, args...); err != nil {
		u.logger.Warn("journal append failed", "error", err.Error())
	}
}
