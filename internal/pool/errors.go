package pool

import (
	"errors"
	"fmt"
)

// errDisconnected marks a handle whose engine process went away between
// the health check and use. Always treated as retryable.
var errDisconnected = errors.New("browser handle disconnected")

// LaunchError reports that a browser engine process could not be started
// within the pool's retry budget.
type LaunchError struct {
	Attempts int
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// SessionCreationError reports that context creation failed after the
// pool exhausted its retry budget, including transparent handle
// replacement on disconnects.
type SessionCreationError struct {
	Attempts int
	Err      error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("session creation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }
