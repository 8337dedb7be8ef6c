package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of a bulk upload batch.
// The values are wire literals consumed by downstream systems; do not rename.
type BatchStatus string

const (
	StatusProcessing          BatchStatus = "Processing"
	StatusFailedCsvValidation BatchStatus = "FailedCsvValidation"
	StatusFailedValidation    BatchStatus = "FailedValidation"
	StatusPassedValidation    BatchStatus = "PassedValidation"
	StatusSubmitting          BatchStatus = "Submitting"
	StatusSubmitted           BatchStatus = "Submitted"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case StatusProcessing, StatusFailedCsvValidation, StatusFailedValidation,
		StatusPassedValidation, StatusSubmitting, StatusSubmitted:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal step.
// Validation outcomes may return to Processing, which models a fresh content
// append triggering re-validation. Submitting either completes to Submitted
// or falls back to PassedValidation when submission creation fails, so the
// batch stays finalizable; Submitted never goes back.
func (s BatchStatus) CanTransition(next BatchStatus) bool {
	switch s {
	case StatusProcessing:
		return next == StatusFailedCsvValidation ||
			next == StatusFailedValidation ||
			next == StatusPassedValidation
	case StatusFailedCsvValidation, StatusFailedValidation:
		return next == StatusProcessing
	case StatusPassedValidation:
		return next == StatusProcessing || next == StatusSubmitting
	case StatusSubmitting:
		return next == StatusSubmitted || next == StatusPassedValidation
	case StatusSubmitted:
		return false
	}
	return false
}

// BatchKind selects the CSV schema and rule set a batch is validated against.
type BatchKind string

const (
	KindAnnexVII         BatchKind = "AnnexVII"
	KindUkWasteMovements BatchKind = "UkWasteMovements"
)

func (k BatchKind) String() string { return string(k) }

func (k BatchKind) IsValid() bool {
	switch k {
	case KindAnnexVII, KindUkWasteMovements:
		return true
	}
	return false
}

func ParseBatchKindFromString(s string) (BatchKind, error) {
	k := BatchKind(strings.TrimSpace(s))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid batch kind %q", ErrValidation, s)
	}
	return k, nil
}

// BatchState is the tagged state of a batch. Status is the discriminator;
// the remaining fields are only meaningful for the statuses noted on each.
type BatchState struct {
	Status    BatchStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`

	// FailedCsvValidation
	Error string `json:"error,omitempty"`

	// FailedValidation
	RowErrors    []RowError    `json:"rowErrors,omitempty"`
	ColumnErrors []ColumnError `json:"columnErrors,omitempty"`

	// PassedValidation and Submitting
	HasEstimates bool          `json:"hasEstimates,omitempty"`
	Records      []WasteRecord `json:"records,omitempty"`

	// Submitted
	TransactionID string          `json:"transactionId,omitempty"`
	Submissions   []SubmissionRef `json:"submissions,omitempty"`
}

// Batch is one logical multi-row CSV upload tracked as a single unit.
type Batch struct {
	ID        string
	AccountID string
	Kind      BatchKind
	Content   []byte
	State     BatchState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubmissionRef correlates one validated row with the submission created for it.
type SubmissionRef struct {
	ID        string `json:"id"`
	RowNumber int    `json:"rowNumber"`
	Reference string `json:"reference"`
}

const transactionIDPrefixLen = 8

// TransactionID builds the identifier assigned when a batch is submitted.
// Format is YYMM_XXXXXXXX: two-digit year and month of the finalize timestamp,
// then the first 8 characters of the batch id upper-cased. Downstream systems
// parse this format.
func TransactionID(batchID string, at time.Time) string {
	prefix := batchID
	if len(prefix) > transactionIDPrefixLen {
		prefix = prefix[:transactionIDPrefixLen]
	}
	return fmt.Sprintf("%s_%s", at.UTC().Format("0601"), strings.ToUpper(prefix))
}
