package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wastetrack/bulk-engine/internal/domain"
)

// BatchModel is the persistence model for the batches table. The variant
// payload of the batch state is kept as one jsonb document so the
// discriminated union round-trips without per-variant columns.
type BatchModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	AccountID      string             `gorm:"type:varchar(64);primaryKey"`
	Kind           domain.BatchKind   `gorm:"type:varchar(32);not null"`
	Content        []byte             `gorm:"type:bytea"`
	Status         domain.BatchStatus `gorm:"type:varchar(32);not null"`
	StateTimestamp time.Time          `gorm:"not null"`
	StatePayload   json.RawMessage    `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// statePayload carries the variant fields of a batch state; the discriminator
// and timestamp live in their own columns.
type statePayload struct {
	Error         string                 `json:"error,omitempty"`
	RowErrors     []domain.RowError      `json:"rowErrors,omitempty"`
	ColumnErrors  []domain.ColumnError   `json:"columnErrors,omitempty"`
	HasEstimates  bool                   `json:"hasEstimates,omitempty"`
	Records       []domain.WasteRecord   `json:"records,omitempty"`
	TransactionID string                 `json:"transactionId,omitempty"`
	Submissions   []domain.SubmissionRef `json:"submissions,omitempty"`
}

func batchModelFromDomain(b *domain.Batch) (*BatchModel, error) {
	if b == nil {
		return nil, nil
	}

	payload, err := json.Marshal(statePayload{
		Error:         b.State.Error,
		RowErrors:     b.State.RowErrors,
		ColumnErrors:  b.State.ColumnErrors,
		HasEstimates:  b.State.HasEstimates,
		Records:       b.State.Records,
		TransactionID: b.State.TransactionID,
		Submissions:   b.State.Submissions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch state payload: %w", err)
	}

	return &BatchModel{
		ID:             b.ID,
		AccountID:      b.AccountID,
		Kind:           b.Kind,
		Content:        b.Content,
		Status:         b.State.Status,
		StateTimestamp: b.State.Timestamp,
		StatePayload:   payload,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}, nil
}

func batchModelToDomain(m *BatchModel) (*domain.Batch, error) {
	if m == nil {
		return nil, nil
	}

	var payload statePayload
	if len(m.StatePayload) > 0 {
		if err := json.Unmarshal(m.StatePayload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal batch state payload: %w", err)
		}
	}

	return &domain.Batch{
		ID:        m.ID,
		AccountID: m.AccountID,
		Kind:      m.Kind,
		Content:   m.Content,
		State: domain.BatchState{
			Status:        m.Status,
			Timestamp:     m.StateTimestamp,
			Error:         payload.Error,
			RowErrors:     payload.RowErrors,
			ColumnErrors:  payload.ColumnErrors,
			HasEstimates:  payload.HasEstimates,
			Records:       payload.Records,
			TransactionID: payload.TransactionID,
			Submissions:   payload.Submissions,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
