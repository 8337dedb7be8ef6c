package submitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wastetrack/bulk-engine/internal/domain"
)

const defaultSubmitTimeout = 30 * time.Second

type createSubmissionsRequest struct {
	BatchID   string               `json:"batchId"`
	AccountID string               `json:"accountId"`
	Kind      string               `json:"kind"`
	Records   []domain.WasteRecord `json:"records"`
}

type createSubmissionsResponse struct {
	Submissions []submissionItem `json:"submissions"`
}

type submissionItem struct {
	ID        string `json:"id"`
	RowNumber int    `json:"rowNumber"`
	Reference string `json:"reference"`
}

// HTTPSubmitter creates submissions through the submission service's REST API.
type HTTPSubmitter struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPSubmitter(endpoint string) (*HTTPSubmitter, error) {
	client := resty.New()
	client.SetTimeout(defaultSubmitTimeout)
	client.SetRetryCount(0)

	return NewHTTPSubmitterWithClient(endpoint, client)
}

func NewHTTPSubmitterWithClient(endpoint string, client *resty.Client) (*HTTPSubmitter, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("submission service endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid submission service endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSubmitTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPSubmitter{
		client:   client,
		endpoint: strings.TrimRight(trimmedEndpoint, "/"),
	}, nil
}

func (s *HTTPSubmitter) CreateSubmissions(ctx context.Context, batch *domain.Batch) ([]domain.SubmissionRef, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("submitter is not initialized")
	}
	if batch == nil || len(batch.State.Records) == 0 {
		return nil, fmt.Errorf("batch has no validated records")
	}

	reqBody := createSubmissionsRequest{
		BatchID:   batch.ID,
		AccountID: batch.AccountID,
		Kind:      batch.Kind.String(),
		Records:   batch.State.Records,
	}

	var respBody createSubmissionsResponse
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&respBody).
		Post(s.endpoint + "/submissions")
	if err != nil {
		return nil, &SubmitterError{
			Message:   "submission request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &SubmitterError{
			Message:   "submission service returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &SubmitterError{
			StatusCode: statusCode,
			Message:    submitterErrorMessage(statusCode, strings.TrimSpace(response.String())),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	if len(respBody.Submissions) != len(batch.State.Records) {
		return nil, &SubmitterError{
			StatusCode: statusCode,
			Message: fmt.Sprintf("submission service created %d submissions for %d records",
				len(respBody.Submissions), len(batch.State.Records)),
		}
	}

	refs := make([]domain.SubmissionRef, 0, len(respBody.Submissions))
	for _, item := range respBody.Submissions {
		refs = append(refs, domain.SubmissionRef{
			ID:        item.ID,
			RowNumber: item.RowNumber,
			Reference: item.Reference,
		})
	}
	return refs, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func submitterErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("submission service returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
