package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchResult_Append(t *testing.T) {
	var b BatchResult

	b.Append(SKUResult{SKU: "A", Outcome: OutcomeSucceeded})
	b.Append(SKUResult{SKU: "B", Outcome: OutcomeNoSourceImages})
	b.Append(SKUResult{SKU: "C", Outcome: OutcomeTransferError})
	b.Append(SKUResult{SKU: "D", Outcome: OutcomeSucceeded})

	assert.Equal(t, 4, b.Total)
	assert.Equal(t, 2, b.Succeeded)
	assert.Len(t, b.Results, 4)
}

func TestOutcome_Success(t *testing.T) {
	assert.True(t, OutcomeSucceeded.Success())
	assert.False(t, OutcomeNoSourceImages.Success())
	assert.False(t, OutcomeNotFoundInDest.Success())
	assert.False(t, OutcomeTransferError.Success())
}
