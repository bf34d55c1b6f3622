package registry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bookpilot/bookpilot/internal/browser"
	"github.com/bookpilot/bookpilot/internal/pool"
)

const (
	DefaultIdleWindow    = 5 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// HandleReleaser is the slice of the pool the registry needs: a way to
// give a borrowed handle back when a session is torn down.
type HandleReleaser interface {
	Release(*pool.Handle)
}

// Session is a reusable (handle, context, page) tuple kept alive so a
// two-step interaction can skip repeat navigation.
type Session struct {
	Key       string
	Handle    *pool.Handle
	Context   browser.Context
	Page      browser.Page
	CreatedAt time.Time
	LastUsed  time.Time
}

// Registry maps caller identity keys to live browser sessions. Exactly one
// session exists per key; entries whose page closed or whose engine died
// are treated as absent, never as errors.
type Registry struct {
	pool          HandleReleaser
	idleWindow    time.Duration
	sweepInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Options tune idle eviction.
type Options struct {
	IdleWindow    time.Duration
	SweepInterval time.Duration
}

func New(pool HandleReleaser, opts Options) *Registry {
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = DefaultIdleWindow
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	return &Registry{
		pool:          pool,
		idleWindow:    opts.IdleWindow,
		sweepInterval: opts.SweepInterval,
		sessions:      make(map[string]*Session),
	}
}

// Register stores a session under key, replacing any prior entry. The
// prior entry is not closed here; a caller replacing a session must have
// already released its resources.
func (r *Registry) Register(key string, h *pool.Handle, bctx browser.Context, page browser.Page) *Session {
	now := time.Now()
	sess := &Session{
		Key:       key,
		Handle:    h,
		Context:   bctx,
		Page:      page,
		CreatedAt: now,
		LastUsed:  now,
	}

	r.mu.Lock()
	if _, exists := r.sessions[key]; exists {
		log.Printf("[REGISTRY] Replacing session for key %s", key)
	}
	r.sessions[key] = sess
	r.mu.Unlock()

	log.Printf("[REGISTRY] Registered session %s on handle %s", key, h.ID)
	return sess
}

// Get returns the live session for key. A session whose page closed or
// whose handle disconnected is absence, and the stale entry is cleaned up
// on the spot so its resources are not leaked.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if sess.Page.IsClosed() || !sess.Handle.Connected() {
		log.Printf("[REGISTRY] Session %s is stale, cleaning up", key)
		r.Cleanup(key)
		return nil, false
	}

	r.mu.Lock()
	sess.LastUsed = time.Now()
	r.mu.Unlock()
	return sess, true
}

// Cleanup closes the session's page and context, returns its handle to
// the pool, and removes the entry. Calling it for an absent key is a no-op.
func (r *Registry) Cleanup(key string) {
	r.mu.Lock()
	sess, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	r.teardown(sess)
	log.Printf("[REGISTRY] Cleaned up session %s", key)
}

func (r *Registry) teardown(sess *Session) {
	if !sess.Page.IsClosed() {
		if err := sess.Page.Close(); err != nil {
			log.Printf("[REGISTRY] Error closing page for %s: %v", sess.Key, err)
		}
	}
	if err := sess.Context.Close(); err != nil {
		log.Printf("[REGISTRY] Error closing context for %s: %v", sess.Key, err)
	}
	r.pool.Release(sess.Handle)
}

// Start runs the idle-eviction janitor until ctx is canceled. Entries
// idle past the window are cleaned up identically to Cleanup, bounding
// leakage from callers that never complete the second step.
func (r *Registry) Start(ctx context.Context) error {
	log.Printf("[REGISTRY] Janitor started (idle window %s, sweep every %s)", r.idleWindow, r.sweepInterval)

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[REGISTRY] Janitor stopping")
			return ctx.Err()
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.idleWindow)

	r.mu.RLock()
	var expired []string
	for key, sess := range r.sessions {
		if sess.LastUsed.Before(cutoff) {
			expired = append(expired, key)
		}
	}
	r.mu.RUnlock()

	for _, key := range expired {
		log.Printf("[REGISTRY] Evicting idle session %s", key)
		r.Cleanup(key)
	}
}

// Info is the admin view of one session.
type Info struct {
	Key       string    `json:"key"`
	HandleID  string    `json:"handle_id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	PageOpen  bool      `json:"page_open"`
	Connected bool      `json:"connected"`
}

// List returns a snapshot of every registered session.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, Info{
			Key:       sess.Key,
			HandleID:  sess.Handle.ID,
			CreatedAt: sess.CreatedAt,
			LastUsed:  sess.LastUsed,
			PageOpen:  !sess.Page.IsClosed(),
			Connected: sess.Handle.Connected(),
		})
	}
	return infos
}

// Len reports how many sessions are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every session, for process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		r.teardown(sess)
	}
	if len(sessions) > 0 {
		log.Printf("[REGISTRY] Closed %d sessions", len(sessions))
	}
}
