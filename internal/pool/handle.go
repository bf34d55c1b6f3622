package pool

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookpilot/bookpilot/internal/browser"
)

// Handle is one live browser engine process owned by the pool. A handle is
// borrowed by at most one caller at a time; the pool tracks the in-use flag.
type Handle struct {
	ID        string
	CreatedAt time.Time

	b browser.Browser

	// ctxLock serializes context creation against this handle. Creating
	// contexts concurrently on a freshly launched engine is racy.
	ctxLock chan struct{}
}

func newHandle(b browser.Browser) *Handle {
	return &Handle{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		b:         b,
		ctxLock:   make(chan struct{}, 1),
	}
}

// Browser returns the underlying engine interface.
func (h *Handle) Browser() browser.Browser { return h.b }

// Connected reports whether the engine process is still reachable.
func (h *Handle) Connected() bool { return h.b.IsConnected() }
