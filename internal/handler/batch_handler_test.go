package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wastetrack/bulk-engine/internal/codec"
	"github.com/wastetrack/bulk-engine/internal/domain"
	"github.com/wastetrack/bulk-engine/internal/ratelimit"
)

type fakeBatchService struct {
	createBatchFunc func(ctx context.Context, accountID string, kind domain.BatchKind, chunks []codec.Chunk) (string, error)
	addContentFunc  func(ctx context.Context, accountID, batchID string, kind domain.BatchKind, chunk codec.Chunk) (string, error)
	getBatchFunc    func(ctx context.Context, id, accountID string) (*domain.Batch, error)
	finalizeFunc    func(ctx context.Context, id, accountID string) (string, error)
}

func (f *fakeBatchService) CreateBatch(ctx context.Context, accountID string, kind domain.BatchKind, chunks []codec.Chunk) (string, error) {
	if f.createBatchFunc != nil {
		return f.createBatchFunc(ctx, accountID, kind, chunks)
	}
	return "batch-1", nil
}

func (f *fakeBatchService) AddContent(ctx context.Context, accountID, batchID string, kind domain.BatchKind, chunk codec.Chunk) (string, error) {
	if f.addContentFunc != nil {
		return f.addContentFunc(ctx, accountID, batchID, kind, chunk)
	}
	return batchID, nil
}

func (f *fakeBatchService) GetBatch(ctx context.Context, id, accountID string) (*domain.Batch, error) {
	if f.getBatchFunc != nil {
		return f.getBatchFunc(ctx, id, accountID)
	}
	return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, id)
}

func (f *fakeBatchService) Finalize(ctx context.Context, id, accountID string) (string, error) {
	if f.finalizeFunc != nil {
		return f.finalizeFunc(ctx, id, accountID)
	}
	return "2606_AB12CD34", nil
}

type fakeRateLimiter struct {
	allowFunc func(ctx context.Context, accountID string) (bool, error)
	waitFunc  func(ctx context.Context, accountID string) error
	waitCalls int
}

func (f *fakeRateLimiter) Allow(ctx context.Context, accountID string) (bool, error) {
	if f.allowFunc != nil {
		return f.allowFunc(ctx, accountID)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, accountID string) error {
	f.waitCalls++
	if f.waitFunc != nil {
		return f.waitFunc(ctx, accountID)
	}
	return nil
}

func newTestApp(t *testing.T, service BatchService, limiter *fakeRateLimiter) *fiber.App {
	t.Helper()

	app := fiber.New()
	var rl ratelimit.RateLimiter
	if limiter != nil {
		rl = limiter
	}
	if err := RegisterBatchRoutes(app, service, rl); err != nil {
		t.Fatalf("RegisterBatchRoutes() error = %v", err)
	}
	return app
}

func jsonRequest(method, target string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func encodedChunk(csv string) chunkInput {
	return chunkInput{
		Type:        codec.ContentTypeCSV,
		Compression: string(codec.CompressionNone),
		Value:       base64.StdEncoding.EncodeToString([]byte(csv)),
	}
}

func TestCreateBatchReturnsCreated(t *testing.T) {
	t.Parallel()

	var gotAccount string
	var gotKind domain.BatchKind
	service := &fakeBatchService{
		createBatchFunc: func(ctx context.Context, accountID string, kind domain.BatchKind, chunks []codec.Chunk) (string, error) {
			gotAccount = accountID
			gotKind = kind
			if len(chunks) != 1 {
				t.Errorf("chunks = %d, want 1", len(chunks))
			}
			return "batch-123", nil
		},
	}
	app := newTestApp(t, service, &fakeRateLimiter{})

	req := jsonRequest(http.MethodPost, "/v1/batches", createBatchRequest{
		AccountID: "account-a",
		Kind:      "AnnexVII",
		Inputs:    []chunkInput{encodedChunk("header\nrow\n")},
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var body createBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != "batch-123" {
		t.Fatalf("id = %s, want batch-123", body.ID)
	}
	if gotAccount != "account-a" || gotKind != domain.KindAnnexVII {
		t.Fatalf("service called with %s/%s, want account-a/AnnexVII", gotAccount, gotKind)
	}
}

func TestCreateBatchAccountFromHeader(t *testing.T) {
	t.Parallel()

	var gotAccount string
	service := &fakeBatchService{
		createBatchFunc: func(ctx context.Context, accountID string, kind domain.BatchKind, chunks []codec.Chunk) (string, error) {
			gotAccount = accountID
			return "batch-1", nil
		},
	}
	app := newTestApp(t, service, nil)

	req := jsonRequest(http.MethodPost, "/v1/batches", createBatchRequest{
		Kind:   "AnnexVII",
		Inputs: []chunkInput{encodedChunk("header\n")},
	})
	req.Header.Set(accountIDHeader, "account-h")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if gotAccount != "account-h" {
		t.Fatalf("account = %s, want account-h", gotAccount)
	}
}

func TestCreateBatchMissingAccountIsBadRequest(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeBatchService{}, nil)

	req := jsonRequest(http.MethodPost, "/v1/batches", createBatchRequest{
		Kind:   "AnnexVII",
		Inputs: []chunkInput{encodedChunk("header\n")},
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateBatchInvalidBase64IsBadRequest(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeBatchService{}, nil)

	req := jsonRequest(http.MethodPost, "/v1/batches", createBatchRequest{
		AccountID: "account-a",
		Kind:      "AnnexVII",
		Inputs: []chunkInput{{
			Type:        codec.ContentTypeCSV,
			Compression: string(codec.CompressionNone),
			Value:       "not base64!!!",
		}},
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateBatchRateLimited(t *testing.T) {
	t.Parallel()

	limiter := &fakeRateLimiter{
		allowFunc: func(ctx context.Context, accountID string) (bool, error) {
			return false, nil
		},
	}
	app := newTestApp(t, &fakeBatchService{}, limiter)

	req := jsonRequest(http.MethodPost, "/v1/batches", createBatchRequest{
		AccountID: "account-a",
		Kind:      "AnnexVII",
		Inputs:    []chunkInput{encodedChunk("header\n")},
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}

func TestCreateBatchPacesExtraChunks(t *testing.T) {
	t.Parallel()

	limiter := &fakeRateLimiter{}
	app := newTestApp(t, &fakeBatchService{}, limiter)

	req := jsonRequest(http.MethodPost, "/v1/batches", createBatchRequest{
		AccountID: "account-a",
		Kind:      "AnnexVII",
		Inputs: []chunkInput{
			encodedChunk("header\n"),
			encodedChunk("row-1\n"),
			encodedChunk("row-2\n"),
		},
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	// The first chunk went through Allow; the other two each wait for a slot.
	if limiter.waitCalls != 2 {
		t.Fatalf("Wait calls = %d, want 2", limiter.waitCalls)
	}
}

func TestAddContentRequiresAccountHeader(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeBatchService{}, nil)

	req := jsonRequest(http.MethodPost, "/v1/batches/batch-1/content", encodedChunk("row\n"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAddContentDecodesChunk(t *testing.T) {
	t.Parallel()

	var gotChunk codec.Chunk
	service := &fakeBatchService{
		addContentFunc: func(ctx context.Context, accountID, batchID string, kind domain.BatchKind, chunk codec.Chunk) (string, error) {
			gotChunk = chunk
			return batchID, nil
		},
	}
	app := newTestApp(t, service, nil)

	req := jsonRequest(http.MethodPost, "/v1/batches/batch-1/content", encodedChunk("REF-1,row\n"))
	req.Header.Set(accountIDHeader, "account-a")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if string(gotChunk.Value) != "REF-1,row\n" {
		t.Fatalf("chunk value = %q, want decoded csv", gotChunk.Value)
	}
	if gotChunk.Compression != codec.CompressionNone {
		t.Fatalf("compression = %s, want None", gotChunk.Compression)
	}
}

func TestAddContentConflictMapsTo409(t *testing.T) {
	t.Parallel()

	service := &fakeBatchService{
		addContentFunc: func(ctx context.Context, accountID, batchID string, kind domain.BatchKind, chunk codec.Chunk) (string, error) {
			return "", fmt.Errorf("%w: batch is Submitted", domain.ErrConflict)
		},
	}
	app := newTestApp(t, service, nil)

	req := jsonRequest(http.MethodPost, "/v1/batches/batch-1/content", encodedChunk("row\n"))
	req.Header.Set(accountIDHeader, "account-a")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestGetBatchNotFoundMapsTo404(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeBatchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/missing", nil)
	req.Header.Set(accountIDHeader, "account-a")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetBatchSubmittedStateShape(t *testing.T) {
	t.Parallel()

	submittedAt := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	service := &fakeBatchService{
		getBatchFunc: func(ctx context.Context, id, accountID string) (*domain.Batch, error) {
			return &domain.Batch{
				ID:        id,
				AccountID: accountID,
				Kind:      domain.KindAnnexVII,
				State: domain.BatchState{
					Status:        domain.StatusSubmitted,
					Timestamp:     submittedAt,
					TransactionID: "2606_AB12CD34",
					Submissions:   []domain.SubmissionRef{{ID: "sub-1", RowNumber: 3, Reference: "REF-1"}},
				},
			}, nil
		},
	}
	app := newTestApp(t, service, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/batch-1", nil)
	req.Header.Set(accountIDHeader, "account-a")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	state, ok := body["state"].(map[string]any)
	if !ok {
		t.Fatalf("response has no state object: %v", body)
	}
	if state["status"] != "Submitted" {
		t.Fatalf("state.status = %v, want Submitted", state["status"])
	}
	if state["transactionId"] != "2606_AB12CD34" {
		t.Fatalf("state.transactionId = %v, want 2606_AB12CD34", state["transactionId"])
	}
	// Variant fields from other states must not leak into a Submitted payload.
	if _, present := state["rowErrors"]; present {
		t.Fatal("submitted state must not carry rowErrors")
	}
	if _, present := state["hasEstimates"]; present {
		t.Fatal("submitted state must not carry hasEstimates")
	}
}

func TestGetBatchPassedValidationIncludesHasEstimatesFalse(t *testing.T) {
	t.Parallel()

	service := &fakeBatchService{
		getBatchFunc: func(ctx context.Context, id, accountID string) (*domain.Batch, error) {
			return &domain.Batch{
				ID:        id,
				AccountID: accountID,
				Kind:      domain.KindAnnexVII,
				State: domain.BatchState{
					Status:       domain.StatusPassedValidation,
					Timestamp:    time.Now().UTC(),
					HasEstimates: false,
					Records:      []domain.WasteRecord{{RowNumber: 3, Reference: "REF-1"}},
				},
			}, nil
		},
	}
	app := newTestApp(t, service, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/batch-1", nil)
	req.Header.Set(accountIDHeader, "account-a")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	state := body["state"].(map[string]any)
	hasEstimates, present := state["hasEstimates"]
	if !present {
		t.Fatal("hasEstimates must be present even when false")
	}
	if hasEstimates != false {
		t.Fatalf("hasEstimates = %v, want false", hasEstimates)
	}
}

func TestFinalizeBatchNoContent(t *testing.T) {
	t.Parallel()

	var gotID string
	service := &fakeBatchService{
		finalizeFunc: func(ctx context.Context, id, accountID string) (string, error) {
			gotID = id
			return "2606_AB12CD34", nil
		},
	}
	app := newTestApp(t, service, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches/batch-1/finalize", nil)
	req.Header.Set(accountIDHeader, "account-a")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if gotID != "batch-1" {
		t.Fatalf("finalized id = %s, want batch-1", gotID)
	}
}

func TestFinalizeConflictMapsTo409(t *testing.T) {
	t.Parallel()

	service := &fakeBatchService{
		finalizeFunc: func(ctx context.Context, id, accountID string) (string, error) {
			return "", fmt.Errorf("%w: batch cannot be finalized while FailedValidation", domain.ErrConflict)
		},
	}
	app := newTestApp(t, service, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches/batch-1/finalize", nil)
	req.Header.Set(accountIDHeader, "account-a")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}
