package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/picmigrate/picmigrate/internal/models"
)

func TestNotifier_Enabled(t *testing.T) {
	assert.False(t, (*Notifier)(nil).Enabled())
	assert.False(t, NewNotifier("", 123).Enabled())
	assert.False(t, NewNotifier("token", 0).Enabled())
	assert.True(t, NewNotifier("token", 123).Enabled())
}

func TestNotifier_NilSafe(t *testing.T) {
	var n *Notifier
	// Must not panic.
	n.BatchFinished(&models.BatchResult{})
	n.AccountDisconnected("loja_a")
}

func TestFormatBatch(t *testing.T) {
	b := &models.BatchResult{}
	b.Append(models.SKUResult{SKU: "A", Outcome: models.OutcomeSucceeded})
	b.Append(models.SKUResult{SKU: "B", Outcome: models.OutcomeNotFoundInDest})
	b.Append(models.SKUResult{SKU: "C", Outcome: models.OutcomeTransferError})

	text := formatBatch(b)
	assert.Contains(t, text, "1/3")
	assert.Contains(t, text, "B: not_found_in_destination")
	assert.Contains(t, text, "C: transfer_error")
	assert.NotContains(t, text, "A:")
}

func TestFormatBatch_AllSucceeded(t *testing.T) {
	b := &models.BatchResult{}
	b.Append(models.SKUResult{SKU: "A", Outcome: models.OutcomeSucceeded})

	text := formatBatch(b)
	assert.Contains(t, text, "all 1 SKUs migrated")
}
