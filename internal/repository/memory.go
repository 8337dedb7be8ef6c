package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/wastetrack/bulk-engine/internal/domain"
)

// MemoryBatchRepo is an in-process batch store. It exists for tests and local
// runs; production deployments use GormBatchRepo. Instances are constructed
// and injected explicitly so engines never share state by accident.
type MemoryBatchRepo struct {
	mu      sync.RWMutex
	batches map[string]domain.Batch
}

func NewMemoryBatchRepo() *MemoryBatchRepo {
	return &MemoryBatchRepo{batches: make(map[string]domain.Batch)}
}

func memoryKey(id, accountID string) string {
	return id + "\x00" + accountID
}

func (r *MemoryBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(b.ID, b.AccountID)
	if _, exists := r.batches[key]; exists {
		return fmt.Errorf("%w: batch %s already exists", domain.ErrConflict, b.ID)
	}
	r.batches[key] = cloneBatch(*b)
	return nil
}

func (r *MemoryBatchRepo) Get(ctx context.Context, id, accountID string) (*domain.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.batches[memoryKey(id, accountID)]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, id)
	}
	copied := cloneBatch(b)
	return &copied, nil
}

func (r *MemoryBatchRepo) Update(ctx context.Context, b *domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(b.ID, b.AccountID)
	if _, ok := r.batches[key]; !ok {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, b.ID)
	}
	r.batches[key] = cloneBatch(*b)
	return nil
}

func (r *MemoryBatchRepo) Transition(ctx context.Context, id, accountID string, from domain.BatchStatus, state domain.BatchState) error {
	if !from.CanTransition(state.Status) {
		return fmt.Errorf("%w: batch %s cannot move from %s to %s",
			domain.ErrConflict, id, from, state.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(id, accountID)
	b, ok := r.batches[key]
	if !ok {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, id)
	}
	if b.State.Status != from {
		return fmt.Errorf("%w: batch %s is no longer %s", domain.ErrConflict, id, from)
	}
	b.State = state
	r.batches[key] = cloneBatch(b)
	return nil
}

func cloneBatch(b domain.Batch) domain.Batch {
	copied := b
	copied.Content = append([]byte(nil), b.Content...)
	copied.State.RowErrors = append([]domain.RowError(nil), b.State.RowErrors...)
	copied.State.ColumnErrors = append([]domain.ColumnError(nil), b.State.ColumnErrors...)
	copied.State.Records = append([]domain.WasteRecord(nil), b.State.Records...)
	copied.State.Submissions = append([]domain.SubmissionRef(nil), b.State.Submissions...)
	return copied
}
