package queue

import "context"

const (
	// BatchSubmittedQueue receives one event per finalized batch.
	BatchSubmittedQueue = "batch.submitted"
	// BatchSubmittedDLQ collects events that downstream consumers rejected.
	BatchSubmittedDLQ = "dlq.batch.submitted"
)

// Publisher publishes batch lifecycle events to a queue.
type Publisher interface {
	PublishBatchSubmitted(ctx context.Context, msg BatchSubmittedMessage) error
	Close() error
}
