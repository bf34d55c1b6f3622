package concurrency

import (
	"fmt"
	"time"
)

// QueueFullError is returned synchronously when both the running set and
// the wait queue are at capacity. The counts let the caller decide its own
// retry policy.
type QueueFullError struct {
	Active    int
	Queued    int
	QueueSize int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("task queue full: %d active, %d/%d queued", e.Active, e.Queued, e.QueueSize)
}

// TimeoutError is returned when a running task exceeds its deadline. The
// underlying work is not interrupted; the caller just stops waiting.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task timed out after %s", e.Timeout)
}
