// Package submitter calls the downstream submission service that turns a
// finalized batch's validated records into durable individual submissions.
package submitter

import (
	"context"

	"github.com/wastetrack/bulk-engine/internal/domain"
)

// Submitter creates individual submissions for every validated record of a
// batch and returns one reference per row.
type Submitter interface {
	CreateSubmissions(ctx context.Context, batch *domain.Batch) ([]domain.SubmissionRef, error)
}
