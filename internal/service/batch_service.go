package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wastetrack/bulk-engine/internal/codec"
	"github.com/wastetrack/bulk-engine/internal/domain"
	"github.com/wastetrack/bulk-engine/internal/observability"
	"github.com/wastetrack/bulk-engine/internal/queue"
	"github.com/wastetrack/bulk-engine/internal/repository"
	"github.com/wastetrack/bulk-engine/internal/submitter"
	"github.com/wastetrack/bulk-engine/internal/validation"
	"go.uber.org/zap"
)

// BatchService assembles chunked CSV uploads into batches, validates them and
// drives each batch through its lifecycle to submission.
type BatchService struct {
	batches   repository.BatchRepository
	submitter submitter.Submitter
	publisher queue.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewBatchService(
	batches repository.BatchRepository,
	sub submitter.Submitter,
	publisher queue.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*BatchService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if sub == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		batches:   batches,
		submitter: sub,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// CreateBatch threads every chunk through AddContent in order, reusing the id
// minted by the first call. It fails fast on the first rejected chunk; the
// batch keeps whatever state the last successful append produced.
func (s *BatchService) CreateBatch(ctx context.Context, accountID string, kind domain.BatchKind, chunks []codec.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: at least one input chunk is required", domain.ErrValidation)
	}

	batchID := ""
	for _, chunk := range chunks {
		id, err := s.AddContent(ctx, accountID, batchID, kind, chunk)
		if err != nil {
			return batchID, err
		}
		batchID = id
	}

	return batchID, nil
}

// AddContent appends one decompressed chunk to a batch and re-validates the
// assembled buffer before returning. An empty batchID mints a new batch; the
// returned id is stable for the life of the batch.
func (s *BatchService) AddContent(ctx context.Context, accountID, batchID string, kind domain.BatchKind, chunk codec.Chunk) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(accountID) == "" {
		return "", fmt.Errorf("%w: account id is required", domain.ErrValidation)
	}

	data, err := codec.Decode(chunk)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(batchID) == "" {
		return s.createBatch(ctx, strings.TrimSpace(accountID), kind, data)
	}
	return s.appendContent(ctx, strings.TrimSpace(accountID), strings.TrimSpace(batchID), data)
}

func (s *BatchService) createBatch(ctx context.Context, accountID string, kind domain.BatchKind, data []byte) (string, error) {
	schema, ok := validation.SchemaFor(kind)
	if !ok {
		return "", fmt.Errorf("%w: invalid batch kind %q", domain.ErrValidation, kind)
	}

	batch := &domain.Batch{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Content:   data,
	}
	batch.State = s.evaluate(batch.Content, schema)

	if err := s.batches.Create(ctx, batch); err != nil {
		return "", err
	}

	s.metrics.IncBatchCreated(kind.String())
	s.recordValidation(kind, batch.State)
	s.logger.Info("batch created",
		zap.String("batchId", batch.ID),
		zap.String("kind", kind.String()),
		zap.String("status", batch.State.Status.String()),
	)

	return batch.ID, nil
}

func (s *BatchService) appendContent(ctx context.Context, accountID, batchID string, data []byte) (string, error) {
	batch, err := s.batches.Get(ctx, batchID, accountID)
	if err != nil {
		return "", err
	}

	switch batch.State.Status {
	case domain.StatusSubmitting, domain.StatusSubmitted:
		return "", fmt.Errorf("%w: batch %s is %s and can no longer receive content",
			domain.ErrConflict, batchID, batch.State.Status)
	}

	schema, ok := validation.SchemaFor(batch.Kind)
	if !ok {
		return "", fmt.Errorf("batch %s has unknown kind %q", batchID, batch.Kind)
	}

	// Chunks are line-aligned, so assembling is plain concatenation of the
	// decompressed payloads in arrival order.
	batch.Content = append(batch.Content, data...)
	batch.State = s.evaluate(batch.Content, schema)

	if err := s.batches.Update(ctx, batch); err != nil {
		return "", err
	}

	s.recordValidation(batch.Kind, batch.State)
	s.logger.Info("batch content appended",
		zap.String("batchId", batch.ID),
		zap.Int("contentBytes", len(batch.Content)),
		zap.String("status", batch.State.Status.String()),
	)

	return batch.ID, nil
}

// evaluate runs the validator over the assembled buffer and maps the outcome
// to the batch state it implies.
func (s *BatchService) evaluate(content []byte, schema validation.Schema) domain.BatchState {
	outcome := validation.Validate(content, schema)
	now := s.now().UTC()

	switch {
	case outcome.StructuralFailure():
		return domain.BatchState{
			Status:    domain.StatusFailedCsvValidation,
			Timestamp: now,
			Error:     outcome.CsvError,
		}
	case !outcome.Passed():
		return domain.BatchState{
			Status:       domain.StatusFailedValidation,
			Timestamp:    now,
			RowErrors:    outcome.RowErrors,
			ColumnErrors: outcome.ColumnErrors,
		}
	default:
		return domain.BatchState{
			Status:       domain.StatusPassedValidation,
			Timestamp:    now,
			HasEstimates: outcome.HasEstimates,
			Records:      outcome.Records,
		}
	}
}

func (s *BatchService) recordValidation(kind domain.BatchKind, state domain.BatchState) {
	s.metrics.IncValidationOutcome(kind.String(), state.Status.String())
	if state.Status == domain.StatusPassedValidation {
		s.metrics.AddRowsValidated(kind.String(), len(state.Records))
	}
}

// GetBatch returns the batch owned by accountID, or domain.ErrNotFound.
func (s *BatchService) GetBatch(ctx context.Context, id, accountID string) (*domain.Batch, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("%w: account id is required", domain.ErrValidation)
	}
	return s.batches.Get(ctx, strings.TrimSpace(id), strings.TrimSpace(accountID))
}

// Finalize converts a PassedValidation batch into individual submissions and
// assigns its transaction id. Calling it again after success returns the same
// transaction id; calling it in any other state returns domain.ErrConflict
// naming the current state.
func (s *BatchService) Finalize(ctx context.Context, id, accountID string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	batch, err := s.GetBatch(ctx, id, accountID)
	if err != nil {
		return "", err
	}

	switch batch.State.Status {
	case domain.StatusSubmitted:
		return batch.State.TransactionID, nil
	case domain.StatusPassedValidation:
	default:
		return "", fmt.Errorf("%w: batch %s cannot be finalized while %s",
			domain.ErrConflict, batch.ID, batch.State.Status)
	}

	start := s.now()
	submittingState := domain.BatchState{
		Status:       domain.StatusSubmitting,
		Timestamp:    start.UTC(),
		HasEstimates: batch.State.HasEstimates,
		Records:      batch.State.Records,
	}

	if err := s.batches.Transition(ctx, batch.ID, batch.AccountID, domain.StatusPassedValidation, submittingState); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.resolveFinalizeRace(ctx, batch.ID, batch.AccountID, err)
		}
		return "", err
	}
	batch.State = submittingState

	refs, err := s.submitter.CreateSubmissions(ctx, batch)
	if err != nil {
		s.logger.Error("submission creation failed",
			zap.String("batchId", batch.ID),
			zap.Bool("transient", submitter.IsTransient(err)),
			zap.Error(err),
		)
		s.revertToPassedValidation(ctx, batch)
		return "", fmt.Errorf("failed to create submissions for batch %s: %w", batch.ID, err)
	}

	submittedAt := s.now().UTC()
	transactionID := domain.TransactionID(batch.ID, submittedAt)
	submittedState := domain.BatchState{
		Status:        domain.StatusSubmitted,
		Timestamp:     submittedAt,
		TransactionID: transactionID,
		Submissions:   refs,
	}

	if err := s.batches.Transition(ctx, batch.ID, batch.AccountID, domain.StatusSubmitting, submittedState); err != nil {
		return "", err
	}

	s.metrics.ObserveFinalizeDuration(batch.Kind.String(), s.now().Sub(start))
	s.metrics.AddSubmissionsCreated(batch.Kind.String(), len(refs))
	s.publishSubmitted(ctx, batch, transactionID, len(refs), submittedAt)

	s.logger.Info("batch submitted",
		zap.String("batchId", batch.ID),
		zap.String("transactionId", transactionID),
		zap.Int("submissions", len(refs)),
	)

	return transactionID, nil
}

// resolveFinalizeRace re-reads a batch after losing the Submitting transition.
// A concurrent finalize that already completed is an idempotent success.
func (s *BatchService) resolveFinalizeRace(ctx context.Context, id, accountID string, transitionErr error) (string, error) {
	current, err := s.batches.Get(ctx, id, accountID)
	if err != nil {
		return "", err
	}
	if current.State.Status == domain.StatusSubmitted {
		return current.State.TransactionID, nil
	}
	return "", fmt.Errorf("%w: batch %s cannot be finalized while %s",
		domain.ErrConflict, id, current.State.Status)
}

// revertToPassedValidation puts a batch back into the finalizable state after
// a failed submission call so the caller can retry. The revert is best effort;
// a batch stuck in Submitting surfaces on the next GetBatch.
func (s *BatchService) revertToPassedValidation(ctx context.Context, batch *domain.Batch) {
	state := domain.BatchState{
		Status:       domain.StatusPassedValidation,
		Timestamp:    s.now().UTC(),
		HasEstimates: batch.State.HasEstimates,
		Records:      batch.State.Records,
	}
	if err := s.batches.Transition(ctx, batch.ID, batch.AccountID, domain.StatusSubmitting, state); err != nil {
		s.logger.Error("failed to revert batch to PassedValidation",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}
}

func (s *BatchService) publishSubmitted(ctx context.Context, batch *domain.Batch, transactionID string, submissionCount int, submittedAt time.Time) {
	if s.publisher == nil {
		return
	}

	msg := queue.BatchSubmittedMessage{
		BatchID:         batch.ID,
		AccountID:       batch.AccountID,
		Kind:            batch.Kind.String(),
		TransactionID:   transactionID,
		SubmissionCount: submissionCount,
		SubmittedAt:     submittedAt,
	}
	if err := s.publisher.PublishBatchSubmitted(ctx, msg); err != nil {
		s.logger.Error("failed to publish batch submitted event",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}
}
