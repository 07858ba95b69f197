package migrate

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/picmigrate/picmigrate/internal/bling"
	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/history"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/metrics"
	"github.com/picmigrate/picmigrate/internal/models"
	"github.com/picmigrate/picmigrate/internal/notify"
	"github.com/picmigrate/picmigrate/internal/transfer"
)

// Progress is invoked after each SKU completes.
type Progress func(index, total int, result models.SKUResult)

// Orchestrator runs migration batches: for each SKU, locate images in the
// origin account, download them locally, and upload them to the matching
// destination product. SKUs are processed strictly in input order, one at a
// time; a SKU's failure never aborts the batch.
type Orchestrator struct {
	locator    *bling.Locator
	downloader *transfer.Downloader
	uploader   *transfer.Uploader
	journal    *logging.Journal
	logger     *logging.Logger
	metrics    *metrics.Metrics
	history    *history.Store
	notifier   *notify.Notifier

	originName string
	destName   string
}

// New creates an orchestrator. history and notifier may be nil.
func New(
	locator *bling.Locator,
	downloader *transfer.Downloader,
	uploader *transfer.Uploader,
	originName, destName string,
	journal *logging.Journal,
	logger *logging.Logger,
	m *metrics.Metrics,
	hist *history.Store,
	notifier *notify.Notifier,
) *Orchestrator {
	return &Orchestrator{
		locator:    locator,
		downloader: downloader,
		uploader:   uploader,
		journal:    journal,
		logger:     logger,
		metrics:    m,
		history:    hist,
		notifier:   notifier,
		originName: originName,
		destName:   destName,
	}
}

// OriginName returns the configured origin account name.
func (o *Orchestrator) OriginName() string { return o.originName }

// DestinationName returns the configured destination account name.
func (o *Orchestrator) DestinationName() string { return o.destName }

// RunBatch migrates the given SKUs in order. Cancellation is honored between
// SKUs: the batch is finalized with the results gathered so far and ctx's
// error is returned alongside them.
func (o *Orchestrator) RunBatch(ctx context.Context, skus []string, originToken, destToken string, progress Progress) (*models.BatchResult, error) {
	batch := &models.BatchResult{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
	o.journalf("Batch %s started with %d SKUs", batch.ID, len(skus))

	var runErr error
	for i, sku := range skus {
		if err := ctx.Err(); err != nil {
			o.journalf("Batch %s cancelled after %d of %d SKUs", batch.ID, i, len(skus))
			runErr = err
			break
		}

		result := o.migrateSKU(ctx, sku, originToken, destToken)
		batch.Append(result)
		if o.metrics != nil {
			o.metrics.RecordSKUOutcome(string(result.Outcome))
		}
		if progress != nil {
			progress(i, len(skus), result)
		}
	}

	batch.FinishedAt = time.Now()
	o.journalf("Batch %s finished: %d/%d SKUs migrated", batch.ID, batch.Succeeded, batch.Total)

	if o.history != nil {
		if err := o.history.SaveBatch(batch); err != nil {
			o.logger.Error("failed to persist batch history", "batch_id", batch.ID, "error", err.Error())
		}
	}
	o.notifier.BatchFinished(batch)

	return batch, runErr
}

func (o *Orchestrator) migrateSKU(ctx context.Context, sku, originToken, destToken string) models.SKUResult {
	result := models.SKUResult{SKU: sku, StartedAt: time.Now()}
	defer func() {
		result.FinishedAt = time.Now()
	}()
	o.journalf("Starting migration for SKU %s", sku)

	images, err := o.locator.Locate(ctx, originToken, o.originName, sku)
	if err != nil {
		return o.fail(result, models.OutcomeTransferError, err)
	}
	if len(images) == 0 {
		o.journalf("No images found for SKU %s in origin, skipping", sku)
		result.Outcome = models.OutcomeNoSourceImages
		return result
	}

	paths, err := o.downloader.DownloadAll(ctx, sku, images)
	if err != nil {
		return o.fail(result, models.OutcomeTransferError, err)
	}
	result.LocalPaths = paths

	ref, err := o.uploader.ResolveProduct(ctx, destToken, o.destName, sku)
	if err != nil {
		var notFound *errors.ErrProductNotFound
		if goerrors.As(err, &notFound) {
			o.journalf("SKU %s not found in destination; images kept in %s", sku, o.downloader.Dir(sku))
			result.Outcome = models.OutcomeNotFoundInDest
			return result
		}
		return o.fail(result, models.OutcomeTransferError, err)
	}

	if err := o.uploader.UploadAll(ctx, destToken, sku, ref.ID, paths); err != nil {
		return o.fail(result, models.OutcomeTransferError, err)
	}

	o.journalf("Migration for SKU %s completed successfully", sku)
	result.Outcome = models.OutcomeSucceeded
	return result
}

func (o *Orchestrator) fail(result models.SKUResult, outcome models.Outcome, err error) models.SKUResult {
	result.Outcome = outcome
	result.Error = err.Error()
	o.logger.Error("SKU migration failed", "sku", result.SKU, "error", err.Error())
	o.journalf("Migration for SKU %s failed: %v", result.SKU, err)
	return result
}

func (o *Orchestrator) journalf(format string, args ...interface{}) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Append(format, args...); err != nil {
		o.logger.Warn("journal append failed", "error", err.Error())
	}
}
