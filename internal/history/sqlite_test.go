package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picmigrate/picmigrate/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleBatch(id string, started time.Time) *models.BatchResult {
	b := &models.BatchResult{
		ID:        id,
		StartedAt: started,
	}
	b.Append(models.SKUResult{
		SKU:        "SKU-001",
		Outcome:    models.OutcomeSucceeded,
		LocalPaths: []string{"/data/images/SKU-001/a.jpg"},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	})
	b.Append(models.SKUResult{
		SKU:        "SKU-002",
		Outcome:    models.OutcomeTransferError,
		Error:      "download failed",
		StartedAt:  started.Add(time.Second),
		FinishedAt: started.Add(2 * time.Second),
	})
	b.FinishedAt = started.Add(2 * time.Second)
	return b
}

func TestStore_SaveAndGetBatch(t *testing.T) {
	store := newTestStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveBatch(sampleBatch("batch-1", started)))

	got, err := store.GetBatch("batch-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "batch-1", got.ID)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 2, got.Total)
	require.Len(t, got.Results, 2)

	assert.Equal(t, "SKU-001", got.Results[0].SKU)
	assert.Equal(t, models.OutcomeSucceeded, got.Results[0].Outcome)
	assert.Equal(t, []string{"/data/images/SKU-001/a.jpg"}, got.Results[0].LocalPaths)

	assert.Equal(t, models.OutcomeTransferError, got.Results[1].Outcome)
	assert.Equal(t, "download failed", got.Results[1].Error)
	assert.Empty(t, got.Results[1].LocalPaths)
}

func TestStore_GetBatchMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetBatch("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListBatchesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveBatch(sampleBatch("old", base)))
	require.NoError(t, store.SaveBatch(sampleBatch("new", base.Add(time.Hour))))

	summaries, err := store.ListBatches(0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "new", summaries[0].ID)
	assert.Equal(t, "old", summaries[1].ID)
	assert.Equal(t, 2, summaries[0].Total)
}

func TestStore_LatestBatch(t *testing.T) {
	store := newTestStore(t)

	got, err := store.LatestBatch()
	require.NoError(t, err)
	assert.Nil(t, got, "empty history has no latest batch")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveBatch(sampleBatch("old", base)))
	require.NoError(t, store.SaveBatch(sampleBatch("new", base.Add(time.Hour))))

	got, err = store.LatestBatch()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ID)
	assert.Len(t, got.Results, 2)
}
