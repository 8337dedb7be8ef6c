package submitter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// SubmitterError classifies submission-service call failures as
// transient/permanent so callers know whether a finalize retry is worthwhile.
type SubmitterError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *SubmitterError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "submission service error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SubmitterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a failed finalize may succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var submitterErr *SubmitterError
	if errors.As(err, &submitterErr) {
		return submitterErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
