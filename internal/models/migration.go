package models

import "time"

// Outcome classifies the result of migrating one SKU.
type Outcome string

const (
	OutcomeSucceeded      Outcome = "succeeded"
	OutcomeNoSourceImages Outcome = "no_source_images"
	OutcomeNotFoundInDest Outcome = "not_found_in_destination"
	OutcomeTransferError  Outcome = "transfer_error"
)

// Success reports whether the outcome counts toward the batch tally.
func (o Outcome) Success() bool {
	return o == OutcomeSucceeded
}

// SKUResult records what happened to a single SKU in a batch.
type SKUResult struct {
	SKU        string    `json:"sku"`
	Outcome    Outcome   `json:"outcome"`
	LocalPaths []string  `json:"local_paths,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// BatchResult is the summary of one migration run.
type BatchResult struct {
	ID         string      `json:"id"`
	Results    []SKUResult `json:"results"`
	Succeeded  int         `json:"succeeded"`
	Total      int         `json:"total"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Append records one SKU result and updates the tally.
func (b *BatchResult) Append(r SKUResult) {
	b.Results = append(b.Results, r)
	b.Total++
	if r.Outcome.Success() {
		b.Succeeded++
	}
}
