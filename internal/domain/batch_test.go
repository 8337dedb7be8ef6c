package domain

import (
	"testing"
	"time"
)

func TestBatchStatusIsValid(t *testing.T) {
	t.Parallel()

	valid := []BatchStatus{
		StatusProcessing, StatusFailedCsvValidation, StatusFailedValidation,
		StatusPassedValidation, StatusSubmitting, StatusSubmitted,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("IsValid(%s) = false, want true", s)
		}
	}

	if BatchStatus("Queued").IsValid() {
		t.Error("IsValid(Queued) = true, want false")
	}
	if BatchStatus("").IsValid() {
		t.Error("IsValid(empty) = true, want false")
	}
}

func TestBatchStatusCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct {
		from, to BatchStatus
	}{
		{StatusProcessing, StatusFailedCsvValidation},
		{StatusProcessing, StatusFailedValidation},
		{StatusProcessing, StatusPassedValidation},
		{StatusFailedCsvValidation, StatusProcessing},
		{StatusFailedValidation, StatusProcessing},
		{StatusPassedValidation, StatusProcessing},
		{StatusPassedValidation, StatusSubmitting},
		{StatusSubmitting, StatusSubmitted},
		{StatusSubmitting, StatusPassedValidation},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("CanTransition(%s -> %s) = false, want true", tc.from, tc.to)
		}
	}

	denied := []struct {
		from, to BatchStatus
	}{
		{StatusSubmitted, StatusProcessing},
		{StatusSubmitted, StatusSubmitting},
		{StatusSubmitting, StatusProcessing},
		{StatusSubmitting, StatusFailedValidation},
		{StatusFailedValidation, StatusSubmitted},
		{StatusFailedValidation, StatusSubmitting},
		{StatusProcessing, StatusSubmitted},
	}
	for _, tc := range denied {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("CanTransition(%s -> %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestParseBatchKindFromString(t *testing.T) {
	t.Parallel()

	kind, err := ParseBatchKindFromString(" AnnexVII ")
	if err != nil {
		t.Fatalf("ParseBatchKindFromString() error = %v", err)
	}
	if kind != KindAnnexVII {
		t.Fatalf("kind = %s, want AnnexVII", kind)
	}

	if _, err := ParseBatchKindFromString("Annex7"); err == nil {
		t.Fatal("expected error for unknown kind, got nil")
	}
}

func TestTransactionIDFormat(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	got := TransactionID("ab12cd34-5678-90ab-cdef-1234567890ab", at)
	if got != "2403_AB12CD34" {
		t.Fatalf("TransactionID() = %s, want 2403_AB12CD34", got)
	}
}

func TestTransactionIDShortBatchID(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	got := TransactionID("abc", at)
	if got != "2512_ABC" {
		t.Fatalf("TransactionID() = %s, want 2512_ABC", got)
	}
}

func TestWasteRecordUsesEstimates(t *testing.T) {
	t.Parallel()

	actual := WasteRecord{
		Quantity:       Quantity{Type: QuantityActual},
		CollectionDate: CollectionDate{Type: DateActual},
	}
	if actual.UsesEstimates() {
		t.Error("record with actual quantity and date should not use estimates")
	}

	estimatedQuantity := actual
	estimatedQuantity.Quantity.Type = QuantityEstimate
	if !estimatedQuantity.UsesEstimates() {
		t.Error("record with estimated quantity should use estimates")
	}

	estimatedDate := actual
	estimatedDate.CollectionDate.Type = DateEstimate
	if !estimatedDate.UsesEstimates() {
		t.Error("record with estimated collection date should use estimates")
	}
}
