package migrate

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picmigrate/picmigrate/internal/bling"
	"github.com/picmigrate/picmigrate/internal/history"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/models"
	"github.com/picmigrate/picmigrate/internal/transfer"
)

// fakeWorld fakes both Bling accounts and the image CDN behind one server.
// Origin lookups use ?codigo=, destination lookups use ?filters=, so a single
// handler can tell them apart.
type fakeWorld struct {
	server  *httptest.Server
	uploads atomic.Int64

	originSKUs map[string]int64 // sku -> product id in origin
	destSKUs   map[string]int64 // sku -> product id in destination
	images     map[int64][]string
}

func newFakeWorld(t *testing.T) *fakeWorld {
	f := &fakeWorld{
		originSKUs: map[string]int64{},
		destSKUs:   map[string]int64{},
		images:     map[int64][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/produtos", func(w http.ResponseWriter, r *http.Request) {
		var sku string
		var table map[string]int64
		if codigo := r.URL.Query().Get("codigo"); codigo != "" {
			sku, table = codigo, f.originSKUs
		} else {
			filters := r.URL.Query().Get("filters")
			sku = strings.TrimSuffix(strings.TrimPrefix(filters, "sku['"), "']")
			table = f.destSKUs
		}
		if id, ok := table[sku]; ok {
			fmt.Fprintf(w, `{"data":[{"id":%d,"codigo":"%s"}]}`, id, sku)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	})
	mux.HandleFunc("/produtos/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/produtos/")
		switch {
		case strings.HasSuffix(rest, "/anexar-imagem"):
			f.uploads.Add(1)
			w.WriteHeader(http.StatusCreated)
		case strings.HasSuffix(rest, "/imagens"):
			fmt.Fprint(w, `{"data":[]}`)
		default:
			var id int64
			fmt.Sscanf(rest, "%d", &id)
			fmt.Fprintf(w, `{"data":{"id":%d,"midia":{"imagens":{"internas":[`, id)
			for i, link := range f.images[id] {
				if i > 0 {
					fmt.Fprint(w, ",")
				}
				fmt.Fprintf(w, `{"link":"%s"}`, link)
			}
			fmt.Fprint(w, `],"externas":[]}},"variacoes":[]}}`)
		}
	})
	mux.HandleFunc("/cdn/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("imagebytes"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeWorld) cdn(name string) string {
	return f.server.URL + "/cdn/" + name
}

func newTestOrchestrator(t *testing.T, f *fakeWorld, hist *history.Store) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	journal, err := logging.NewJournal(root)
	require.NoError(t, err)
	logger := logging.NewLogger(logging.WithOutput(&bytes.Buffer{}))

	client := bling.NewClient(f.server.URL, time.Second, logger)
	locator := bling.NewLocator(client, journal, logger, 10*time.Millisecond, nil)
	downloader := transfer.NewDownloader(transfer.NewDownloadClient(), filepath.Join(root, "images"), journal, logger, nil)
	uploader := transfer.NewUploader(client, journal, logger, nil)

	orch := New(locator, downloader, uploader, "loja_a", "loja_b", journal, logger, nil, hist, nil)
	return orch, root
}

func TestRunBatch_FullMigration(t *testing.T) {
	f := newFakeWorld(t)
	f.originSKUs["SKU-OK"] = 42
	f.destSKUs["SKU-OK"] = 90
	f.images[42] = []string{f.cdn("a.jpg"), f.cdn("b.jpg")}

	orch, _ := newTestOrchestrator(t, f, nil)

	batch, err := orch.RunBatch(context.Background(), []string{"SKU-OK"}, "tok-a", "tok-b", nil)
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	result := batch.Results[0]
	assert.Equal(t, models.OutcomeSucceeded, result.Outcome)
	assert.Len(t, result.LocalPaths, 2)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, int64(2), f.uploads.Load())

	for _, p := range result.LocalPaths {
		_, err := os.Stat(p)
		assert.NoError(t, err, "downloaded file must remain on disk")
	}
}

func TestRunBatch_MixedOutcomes(t *testing.T) {
	f := newFakeWorld(t)
	// SKU-OK migrates; SKU-EMPTY has no images; SKU-GHOST is absent in the
	// origin; SKU-NODEST has no destination product; SKU-DLFAIL's download 404s.
	f.originSKUs["SKU-OK"] = 42
	f.destSKUs["SKU-OK"] = 90
	f.images[42] = []string{f.cdn("a.jpg")}

	f.originSKUs["SKU-EMPTY"] = 50

	f.originSKUs["SKU-NODEST"] = 60
	f.images[60] = []string{f.cdn("c.jpg")}

	f.originSKUs["SKU-DLFAIL"] = 70
	f.destSKUs["SKU-DLFAIL"] = 91
	f.images[70] = []string{f.cdn("missing.jpg")}

	orch, _ := newTestOrchestrator(t, f, nil)

	skus := []string{"SKU-OK", "SKU-EMPTY", "SKU-GHOST", "SKU-NODEST", "SKU-DLFAIL"}
	batch, err := orch.RunBatch(context.Background(), skus, "tok-a", "tok-b", nil)
	require.NoError(t, err)

	require.Len(t, batch.Results, 5)
	assert.Equal(t, models.OutcomeSucceeded, batch.Results[0].Outcome)
	assert.Equal(t, models.OutcomeNoSourceImages, batch.Results[1].Outcome)
	assert.Equal(t, models.OutcomeNoSourceImages, batch.Results[2].Outcome, "unknown origin SKU means nothing to migrate")
	assert.Equal(t, models.OutcomeNotFoundInDest, batch.Results[3].Outcome)
	assert.Equal(t, models.OutcomeTransferError, batch.Results[4].Outcome)
	assert.NotEmpty(t, batch.Results[4].Error)

	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 5, batch.Total)
}

func TestRunBatch_FailureDoesNotAbortBatch(t *testing.T) {
	f := newFakeWorld(t)
	f.originSKUs["SKU-DLFAIL"] = 70
	f.images[70] = []string{f.cdn("missing.jpg")}

	f.originSKUs["SKU-OK"] = 42
	f.destSKUs["SKU-OK"] = 90
	f.images[42] = []string{f.cdn("a.jpg")}

	orch, _ := newTestOrchestrator(t, f, nil)

	batch, err := orch.RunBatch(context.Background(), []string{"SKU-DLFAIL", "SKU-OK"}, "tok-a", "tok-b", nil)
	require.NoError(t, err)

	require.Len(t, batch.Results, 2)
	assert.Equal(t, models.OutcomeTransferError, batch.Results[0].Outcome)
	assert.Equal(t, models.OutcomeSucceeded, batch.Results[1].Outcome, "later SKUs must still run")
}

func TestRunBatch_NotFoundInDestKeepsLocalFiles(t *testing.T) {
	f := newFakeWorld(t)
	f.originSKUs["SKU-NODEST"] = 60
	f.images[60] = []string{f.cdn("c.jpg")}

	orch, _ := newTestOrchestrator(t, f, nil)

	batch, err := orch.RunBatch(context.Background(), []string{"SKU-NODEST"}, "tok-a", "tok-b", nil)
	require.NoError(t, err)

	result := batch.Results[0]
	assert.Equal(t, models.OutcomeNotFoundInDest, result.Outcome)
	require.Len(t, result.LocalPaths, 1)
	_, err = os.Stat(result.LocalPaths[0])
	assert.NoError(t, err, "downloaded files are kept for inspection")
	assert.Equal(t, int64(0), f.uploads.Load())
}

func TestRunBatch_CancellationStopsBetweenSKUs(t *testing.T) {
	f := newFakeWorld(t)
	orch, _ := newTestOrchestrator(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := orch.RunBatch(ctx, []string{"SKU-1", "SKU-2"}, "tok-a", "tok-b", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, batch.Results)
	assert.NotZero(t, batch.FinishedAt, "a cancelled batch is still finalized")
}

func TestRunBatch_PersistsHistory(t *testing.T) {
	f := newFakeWorld(t)
	f.originSKUs["SKU-OK"] = 42
	f.destSKUs["SKU-OK"] = 90
	f.images[42] = []string{f.cdn("a.jpg")}

	hist, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer hist.Close()

	orch, _ := newTestOrchestrator(t, f, hist)

	batch, err := orch.RunBatch(context.Background(), []string{"SKU-OK"}, "tok-a", "tok-b", nil)
	require.NoError(t, err)

	stored, err := hist.GetBatch(batch.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.Succeeded)
}

func TestRunBatch_ProgressCallback(t *testing.T) {
	f := newFakeWorld(t)
	f.originSKUs["SKU-OK"] = 42
	f.destSKUs["SKU-OK"] = 90
	f.images[42] = []string{f.cdn("a.jpg")}

	orch, _ := newTestOrchestrator(t, f, nil)

	var calls []string
	progress := func(index, total int, result models.SKUResult) {
		calls = append(calls, fmt.Sprintf("%d/%d:%s:%s", index+1, total, result.SKU, result.Outcome))
	}

	_, err := orch.RunBatch(context.Background(), []string{"SKU-OK", "SKU-GHOST"}, "tok-a", "tok-b", progress)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"1/2:SKU-OK:succeeded",
		"2/2:SKU-GHOST:no_source_images",
	}, calls)
}

func TestRunBatch_WritesJournal(t *testing.T) {
	f := newFakeWorld(t)
	f.originSKUs["SKU-OK"] = 42
	f.destSKUs["SKU-OK"] = 90
	f.images[42] = []string{f.cdn("a.jpg")}

	orch, root := newTestOrchestrator(t, f, nil)

	_, err := orch.RunBatch(context.Background(), []string{"SKU-OK"}, "tok-a", "tok-b", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, logging.JournalFileName))
	require.NoError(t, err)
	journal := string(data)
	assert.Contains(t, journal, "Starting migration for SKU SKU-OK")
	assert.Contains(t, journal, "completed successfully")
	assert.Contains(t, journal, "finished: 1/1")
}
