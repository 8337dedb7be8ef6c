package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wastetrack/bulk-engine/internal/domain"
	"gorm.io/gorm"
)

// BatchRepository is the batch content store. Entries are keyed by
// (id, accountId); an account can never observe another account's batch.
type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	Get(ctx context.Context, id, accountID string) (*domain.Batch, error)
	Update(ctx context.Context, b *domain.Batch) error
	// Transition moves the batch's state only if its current status equals
	// from and the step is legal per BatchStatus.CanTransition; it returns
	// domain.ErrConflict when either guard fails. This is the optimistic
	// write that keeps finalize safe under concurrent callers.
	Transition(ctx context.Context, id, accountID string, from domain.BatchStatus, state domain.BatchState) error
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model, err := batchModelFromDomain(b)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	b.CreatedAt = model.CreatedAt
	b.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormBatchRepo) Get(ctx context.Context, id, accountID string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).
		First(&model, "id = ? AND account_id = ?", id, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model)
}

func (r *GormBatchRepo) Update(ctx context.Context, b *domain.Batch) error {
	model, err := batchModelFromDomain(b)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND account_id = ?", b.ID, b.AccountID).
		Updates(map[string]any{
			"content":         model.Content,
			"status":          model.Status,
			"state_timestamp": model.StateTimestamp,
			"state_payload":   model.StatePayload,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, b.ID)
	}
	return nil
}

func (r *GormBatchRepo) Transition(ctx context.Context, id, accountID string, from domain.BatchStatus, state domain.BatchState) error {
	if !from.CanTransition(state.Status) {
		return fmt.Errorf("%w: batch %s cannot move from %s to %s",
			domain.ErrConflict, id, from, state.Status)
	}

	model, err := batchModelFromDomain(&domain.Batch{State: state})
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND account_id = ? AND status = ?", id, accountID, from).
		Updates(map[string]any{
			"status":          state.Status,
			"state_timestamp": state.Timestamp,
			"state_payload":   model.StatePayload,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s is no longer %s", domain.ErrConflict, id, from)
	}
	return nil
}
