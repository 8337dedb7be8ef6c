package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wastetrack/bulk-engine/internal/codec"
	"github.com/wastetrack/bulk-engine/internal/domain"
	"github.com/wastetrack/bulk-engine/internal/ratelimit"
)

const accountIDHeader = "X-Account-ID"

type BatchService interface {
	CreateBatch(ctx context.Context, accountID string, kind domain.BatchKind, chunks []codec.Chunk) (string, error)
	AddContent(ctx context.Context, accountID, batchID string, kind domain.BatchKind, chunk codec.Chunk) (string, error)
	GetBatch(ctx context.Context, id, accountID string) (*domain.Batch, error)
	Finalize(ctx context.Context, id, accountID string) (string, error)
}

type BatchHandler struct {
	service BatchService
	limiter ratelimit.RateLimiter
}

func NewBatchHandler(service BatchService, limiter ratelimit.RateLimiter) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service, limiter: limiter}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService, limiter ratelimit.RateLimiter) error {
	h, err := NewBatchHandler(service, limiter)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.CreateBatch)
	v1.Post("/batches/:id/content", h.AddContent)
	v1.Get("/batches/:id", h.GetBatch)
	v1.Post("/batches/:id/finalize", h.FinalizeBatch)

	return nil
}

type chunkInput struct {
	Type        string `json:"type"`
	Compression string `json:"compression"`
	Value       string `json:"value"`
}

type createBatchRequest struct {
	AccountID string       `json:"accountId"`
	Kind      string       `json:"kind"`
	Inputs    []chunkInput `json:"inputs"`
}

type createBatchResponse struct {
	ID string `json:"id"`
}

type batchStateResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	Error         string                 `json:"error,omitempty"`
	RowErrors     []domain.RowError      `json:"rowErrors,omitempty"`
	ColumnErrors  []domain.ColumnError   `json:"columnErrors,omitempty"`
	HasEstimates  *bool                  `json:"hasEstimates,omitempty"`
	Records       []domain.WasteRecord   `json:"records,omitempty"`
	TransactionID string                 `json:"transactionId,omitempty"`
	Submissions   []domain.SubmissionRef `json:"submissions,omitempty"`
}

type batchResponse struct {
	ID        string             `json:"id"`
	AccountID string             `json:"accountId"`
	Kind      string             `json:"kind"`
	State     batchStateResponse `json:"state"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	var req createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = strings.TrimSpace(c.Get(accountIDHeader))
	}
	if accountID == "" {
		return toHTTPError(fmt.Errorf("%w: account id is required", domain.ErrValidation))
	}

	if err := h.allow(c, accountID); err != nil {
		return err
	}

	kind, err := domain.ParseBatchKindFromString(req.Kind)
	if err != nil {
		return toHTTPError(err)
	}

	if len(req.Inputs) == 0 {
		return toHTTPError(fmt.Errorf("%w: inputs is required", domain.ErrValidation))
	}

	chunks := make([]codec.Chunk, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		chunk, err := chunkFromInput(input)
		if err != nil {
			return toHTTPError(err)
		}
		chunks = append(chunks, chunk)
	}

	// Allow admitted the first chunk; each extra chunk in the same request
	// consumes an upload slot too, pacing instead of failing mid-batch.
	if h.limiter != nil {
		for i := 1; i < len(chunks); i++ {
			if err := h.limiter.Wait(c.Context(), accountID); err != nil {
				return err
			}
		}
	}

	id, err := h.service.CreateBatch(c.Context(), accountID, kind, chunks)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(createBatchResponse{ID: id})
}

func (h *BatchHandler) AddContent(c *fiber.Ctx) error {
	accountID, err := requestAccountID(c)
	if err != nil {
		return err
	}
	if err := h.allow(c, accountID); err != nil {
		return err
	}

	var req chunkInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	chunk, err := chunkFromInput(req)
	if err != nil {
		return toHTTPError(err)
	}

	batchID := strings.TrimSpace(c.Params("id"))
	id, err := h.service.AddContent(c.Context(), accountID, batchID, "", chunk)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(createBatchResponse{ID: id})
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	accountID, err := requestAccountID(c)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(c.Params("id"))
	batch, err := h.service.GetBatch(c.Context(), id, accountID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) FinalizeBatch(c *fiber.Ctx) error {
	accountID, err := requestAccountID(c)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(c.Params("id"))
	if _, err := h.service.Finalize(c.Context(), id, accountID); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BatchHandler) allow(c *fiber.Ctx, accountID string) error {
	if h.limiter == nil {
		return nil
	}

	allowed, err := h.limiter.Allow(c.Context(), accountID)
	if err != nil {
		return err
	}
	if !allowed {
		return fiber.NewError(fiber.StatusTooManyRequests, "upload rate limit exceeded")
	}
	return nil
}

func requestAccountID(c *fiber.Ctx) (string, error) {
	accountID := strings.TrimSpace(c.Get(accountIDHeader))
	if accountID == "" {
		return "", toHTTPError(fmt.Errorf("%w: %s header is required", domain.ErrValidation, accountIDHeader))
	}
	return accountID, nil
}

func chunkFromInput(input chunkInput) (codec.Chunk, error) {
	value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(input.Value))
	if err != nil {
		return codec.Chunk{}, fmt.Errorf("%w: chunk value is not valid base64", domain.ErrValidation)
	}

	return codec.Chunk{
		Type:        strings.TrimSpace(input.Type),
		Compression: codec.Compression(strings.TrimSpace(input.Compression)),
		Value:       value,
	}, nil
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	state := batchStateResponse{
		Status:    b.State.Status.String(),
		Timestamp: b.State.Timestamp,
	}

	switch b.State.Status {
	case domain.StatusFailedCsvValidation:
		state.Error = b.State.Error
	case domain.StatusFailedValidation:
		state.RowErrors = b.State.RowErrors
		state.ColumnErrors = b.State.ColumnErrors
	case domain.StatusPassedValidation, domain.StatusSubmitting:
		hasEstimates := b.State.HasEstimates
		state.HasEstimates = &hasEstimates
		state.Records = b.State.Records
	case domain.StatusSubmitted:
		state.TransactionID = b.State.TransactionID
		state.Submissions = b.State.Submissions
	}

	return batchResponse{
		ID:        b.ID,
		AccountID: b.AccountID,
		Kind:      b.Kind.String(),
		State:     state,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
