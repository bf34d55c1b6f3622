package pool

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/bookpilot/bookpilot/internal/browser"
)

const (
	DefaultMaxSize       = 3
	DefaultLaunchRetries = 3
	DefaultRetryDelay    = 500 * time.Millisecond
)

// Pool owns a bounded set of live browser engine processes and arbitrates
// borrowing and returning them. Launching an engine takes seconds, so
// handles are reused aggressively and disconnected ones are discarded
// rather than re-offered.
type Pool struct {
	launcher browser.Launcher
	maxSize  int
	retry    retryPolicy

	// slots bounds the number of live engines; one token is held per
	// launched handle and returned when the handle is discarded.
	slots chan struct{}
	// idle holds connected handles not currently borrowed, FIFO.
	idle chan *Handle

	mu     sync.Mutex
	live   map[*Handle]struct{}
	inUse  int
	closed bool
}

// Options tune pool sizing and the launch/context retry budget.
type Options struct {
	MaxSize       int
	LaunchRetries int
	RetryDelay    time.Duration
}

func New(launcher browser.Launcher, opts Options) *Pool {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.LaunchRetries <= 0 {
		opts.LaunchRetries = DefaultLaunchRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}

	return &Pool{
		launcher: launcher,
		maxSize:  opts.MaxSize,
		retry:    retryPolicy{attempts: opts.LaunchRetries, delay: opts.RetryDelay},
		slots:    make(chan struct{}, opts.MaxSize),
		idle:     make(chan *Handle, opts.MaxSize),
		live:     make(map[*Handle]struct{}),
	}
}

// Acquire returns an idle connected handle if one exists, launches a new
// engine if the pool is below its maximum, and otherwise blocks until a
// handle is released or ctx is canceled. Disconnected idle handles are
// discarded transparently and replaced.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	for {
		// Prefer an idle handle over launching.
		select {
		case h := <-p.idle:
			if p.vet(h) {
				return h, nil
			}
			continue
		default:
		}

		select {
		case h := <-p.idle:
			if p.vet(h) {
				return h, nil
			}
			continue
		case p.slots <- struct{}{}:
			h, err := p.launch(ctx)
			if err != nil {
				<-p.slots
				return nil, err
			}
			p.mu.Lock()
			p.live[h] = struct{}{}
			p.inUse++
			p.mu.Unlock()
			return h, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// vet health-checks an idle handle before handing it out. Bad handles are
// discarded so the caller loops for a replacement.
func (p *Pool) vet(h *Handle) bool {
	if !h.Connected() {
		log.Printf("[POOL] Discarding disconnected handle %s", h.ID)
		p.discard(h)
		return false
	}
	p.mu.Lock()
	p.inUse++
	p.mu.Unlock()
	return true
}

// Release returns a borrowed handle. Still-connected handles go back to
// the idle set and become the next ones handed out; disconnected handles
// are discarded and never re-offered.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if p.inUse > 0 {
		p.inUse--
	}
	p.mu.Unlock()

	if !h.Connected() {
		log.Printf("[POOL] Released handle %s is disconnected, discarding", h.ID)
		p.discard(h)
		return
	}

	select {
	case p.idle <- h:
	default:
		// More releases than slots can only happen on misuse; close the
		// surplus engine instead of leaking it.
		log.Printf("[POOL] Idle set full, closing surplus handle %s", h.ID)
		p.discard(h)
	}
}

// Discard removes a handle from the pool entirely, closing its engine and
// freeing its slot for a future launch. Used by callers that detect a dead
// handle mid-sequence.
func (p *Pool) Discard(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if p.inUse > 0 {
		p.inUse--
	}
	p.mu.Unlock()
	p.discard(h)
}

func (p *Pool) discard(h *Handle) {
	p.mu.Lock()
	_, ok := p.live[h]
	if ok {
		delete(p.live, h)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	_ = h.b.Close()
	<-p.slots
}

// AcquireContextLock takes the per-handle context-creation lock, blocking
// until no other creation sequence holds it. The returned func must be
// called on every exit path; it is safe to call more than once.
func (p *Pool) AcquireContextLock(ctx context.Context, h *Handle) (func(), error) {
	select {
	case h.ctxLock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-h.ctxLock })
	}, nil
}

func (p *Pool) launch(ctx context.Context) (*Handle, error) {
	var b browser.Browser
	err := p.retry.do(ctx, func() (bool, error) {
		var err error
		b, err = p.launcher.Launch(ctx)
		if err != nil {
			log.Printf("[POOL] Browser launch attempt failed: %v", err)
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, &LaunchError{Attempts: p.retry.attempts, Err: err}
	}

	h := newHandle(b)
	log.Printf("[POOL] Launched browser handle %s", h.ID)
	return h, nil
}

// CreateContext acquires a handle and creates a browser context on it under
// the per-handle lock. A mid-sequence disconnect discards the bad handle and
// retries on a fresh one, up to the retry budget. On success the handle is
// borrowed by the caller and must eventually be released.
func (p *Pool) CreateContext(ctx context.Context, opts browser.ContextOptions) (*Handle, browser.Context, error) {
	var lastErr error

	for attempt := 1; attempt <= p.retry.attempts; attempt++ {
		h, err := p.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}

		bctx, err := p.createContextOn(ctx, h, opts)
		if err == nil {
			return h, bctx, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.Release(h)
			return nil, nil, err
		}

		if !h.Connected() {
			// Transient: the engine died under us. Swap it for a fresh one.
			log.Printf("[POOL] Context creation on %s hit a dead engine (attempt %d/%d): %v",
				h.ID, attempt, p.retry.attempts, err)
			p.Discard(h)
			continue
		}

		// The engine is healthy, so the failure is not a handle problem.
		p.Release(h)
		return nil, nil, &SessionCreationError{Attempts: attempt, Err: err}
	}

	return nil, nil, &SessionCreationError{Attempts: p.retry.attempts, Err: lastErr}
}

func (p *Pool) createContextOn(ctx context.Context, h *Handle, opts browser.ContextOptions) (browser.Context, error) {
	release, err := p.AcquireContextLock(ctx, h)
	if err != nil {
		return nil, err
	}
	defer release()

	if !h.Connected() {
		return nil, errDisconnected
	}
	return h.b.NewContext(opts)
}

// Stats is a point-in-time view of pool occupancy.
type Stats struct {
	Live    int `json:"live"`
	Idle    int `json:"idle"`
	InUse   int `json:"in_use"`
	MaxSize int `json:"max_size"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Live:    len(p.live),
		Idle:    len(p.idle),
		InUse:   p.inUse,
		MaxSize: p.maxSize,
	}
}

// Close shuts down every live engine. In-flight borrowers will find their
// handles disconnected and discard them.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	handles := make([]*Handle, 0, len(p.live))
	for h := range p.live {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		p.discard(h)
	}
	log.Printf("[POOL] Closed %d browser handles", len(handles))
}
