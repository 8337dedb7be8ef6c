package queue

import (
	"fmt"
	"strings"
	"time"
)

// BatchSubmittedMessage is the broker payload announcing a finalized batch.
type BatchSubmittedMessage struct {
	BatchID         string    `json:"batchId"`
	AccountID       string    `json:"accountId"`
	Kind            string    `json:"kind"`
	TransactionID   string    `json:"transactionId"`
	SubmissionCount int       `json:"submissionCount"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

func (m BatchSubmittedMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("accountId is required")
	}
	if strings.TrimSpace(m.TransactionID) == "" {
		return fmt.Errorf("transactionId is required")
	}
	return nil
}
