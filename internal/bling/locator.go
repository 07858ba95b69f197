package bling

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/metrics"
	"github.com/picmigrate/picmigrate/internal/models"
)

// Locator discovers the complete, de-duplicated set of image URLs attached to
// a product: the parent's media plus an independent detail fetch per variant.
type Locator struct {
	client  *Client
	journal *logging.Journal
	logger  *logging.Logger
	metrics *metrics.Metrics
	backoff time.Duration

	// sleep is swappable for tests.
	sleep func(context.Context, time.Duration)
}

// NewLocator creates a locator. backoff is the pause before the single retry
// of a rate-limited variant fetch.
func NewLocator(client *Client, journal *logging.Journal, logger *logging.Logger, backoff time.Duration, m *metrics.Metrics) *Locator {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Locator{
		client:  client,
		journal: journal,
		logger:  logger,
		metrics: m,
		backoff: backoff,
		sleep:   sleepCtx,
	}
}

// Locate returns every distinct image attached to the product with the given
// SKU, parent and variants together, ordered lexicographically by URL with
// query strings stripped. An unresolvable SKU yields an empty set and no
// error: there is simply nothing to migrate. A failed primary lookup or
// detail fetch is fatal for the SKU. Variant fetch failures are logged and
// skipped, with one backoff-and-retry on a rate-limit response.
func (l *Locator) Locate(ctx context.Context, token, account, sku string) ([]models.ImageRecord, error) {
	l.journalf("Locating images for SKU %s in account %s", sku, account)

	ref, err := l.client.SearchBySKU(ctx, token, account, sku)
	if err != nil {
		var notFound *errors.ErrProductNotFound
		if goerrors.As(err, &notFound) {
			l.journalf("No product with SKU %s in account %s, nothing to migrate", sku, account)
			return nil, nil
		}
		return nil, err
	}

	detail, err := l.client.GetProduct(ctx, token, ref.ID)
	if err != nil {
		return nil, err
	}

	set := models.NewImageSet()
	parentOwner := models.ImageOwner{Parent: true}
	added := l.collect(set, detail, parentOwner)

	// Older catalog entries expose images only through the flat legacy
	// endpoint; fall back to it when the media object came back empty.
	if added == 0 {
		if legacy, err := l.client.LegacyImages(ctx, token, ref.ID); err == nil {
			for _, entry := range legacy {
				set.Add(models.ImageRecord{URL: entry.Link, Origin: models.OriginInternal, Owner: parentOwner})
			}
		}
	}

	for _, variant := range detail.Variacoes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vDetail, err := l.fetchVariant(ctx, token, variant.ID)
		if err != nil {
			if l.metrics != nil {
				l.metrics.VariantFetchSkips.Inc()
			}
			l.logger.Warn("variant fetch failed, skipping",
				"sku", sku, "variant_id", variant.ID, "error", err.Error())
			l.journalf("Variant %d of SKU %s skipped: %v", variant.ID, sku, &errors.ErrVariantFetch{VariantID: variant.ID, Err: err})
			continue
		}
		l.collect(set, vDetail, models.ImageOwner{VariantID: variant.ID})
	}

	records := set.Records()
	l.journalf("SKU %s: %d distinct images located", sku, len(records))
	return records, nil
}

// fetchVariant fetches one variant detail, retrying once after a backoff when
// the API answers with a rate-limit signal.
func (l *Locator) fetchVariant(ctx context.Context, token string, id int64) (*ProductDetail, error) {
	detail, err := l.client.GetProduct(ctx, token, id)
	if err == nil {
		return detail, nil
	}

	var rate *RateLimitError
	if !goerrors.As(err, &rate) {
		return nil, err
	}

	wait := rate.RetryAfter
	if wait <= 0 || wait > l.backoff {
		wait = l.backoff
	}
	l.logger.Warn("variant fetch rate limited, backing off",
		"variant_id", id, "wait", wait.String())
	l.sleep(ctx, wait)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return l.client.GetProduct(ctx, token, id)
}

// collect adds a detail's internal and external images to the set, skipping
// entries without a URL. Returns the number of records actually added.
func (l *Locator) collect(set *models.ImageSet, detail *ProductDetail, owner models.ImageOwner) int {
	added := 0
	for _, entry := range detail.Midia.Imagens.Internas {
		if set.Add(models.ImageRecord{URL: entry.Link, Origin: models.OriginInternal, Owner: owner}) {
			added++
		}
	}
	for _, entry := range detail.Midia.Imagens.Externas {
		if set.Add(models.ImageRecord{URL: entry.Link, Origin: models.OriginExternal, Owner: owner}) {
			added++
		}
	}
	return added
}

func (l *Locator) journalf(format string, args ...interface{}) {
	if l.journal == nil {
		return
	}
	if err := l.journal.Append(format, args...); err != nil {
		l.logger.Warn("journal append failed", "error", err.Error())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
