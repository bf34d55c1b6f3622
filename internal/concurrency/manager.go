package concurrency

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	DefaultCapacity  = 3
	DefaultQueueSize = 10
	DefaultTimeout   = 60 * time.Second
)

// Work is one browser-backed operation. It receives a context detached
// from the submitting caller so a timed-out task can still finish its own
// cleanup on its own continuation.
type Work func(ctx context.Context) (any, error)

// Manager provides admission control and bounded parallelism in front of
// all expensive browser operations. Overload is converted into fast,
// explicit rejection rather than silent degradation.
type Manager struct {
	capacity  int
	queueSize int

	mu     sync.Mutex
	active int
	queue  []chan struct{}
}

func NewManager(capacity, queueSize int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{capacity: capacity, queueSize: queueSize}
}

// Execute runs work immediately when a capacity slot is free, queues it
// FIFO when the queue has room, and fails with QueueFullError otherwise.
// The timeout is measured from the moment the work starts. On expiry the
// call resolves with TimeoutError; the work itself keeps running and
// releases its slot when it eventually finishes.
func (m *Manager) Execute(ctx context.Context, work Work, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := m.admit(ctx); err != nil {
		return nil, err
	}

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)

	// Detach the work from the caller so a timed-out or disconnected
	// caller never cancels cleanup the task still owes.
	workCtx := context.WithoutCancel(ctx)

	go func() {
		defer m.settle()
		val, err := work(workCtx)
		done <- result{val, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timer.C:
		log.Printf("[CONCURRENCY] Task exceeded %s deadline, abandoning wait", timeout)
		return nil, &TimeoutError{Timeout: timeout}
	}
}

// admit either claims a free slot, joins the FIFO queue, or rejects.
func (m *Manager) admit(ctx context.Context) error {
	m.mu.Lock()
	if m.active < m.capacity {
		m.active++
		m.mu.Unlock()
		return nil
	}

	if len(m.queue) >= m.queueSize {
		err := &QueueFullError{Active: m.active, Queued: len(m.queue), QueueSize: m.queueSize}
		m.mu.Unlock()
		return err
	}

	turn := make(chan struct{})
	m.queue = append(m.queue, turn)
	m.mu.Unlock()

	select {
	case <-turn:
		// Slot transferred by a settling task; active already counts us.
		return nil
	case <-ctx.Done():
		m.abandon(turn)
		return ctx.Err()
	}
}

// abandon removes a queued waiter that gave up. If the slot was already
// granted in the meantime, it is handed straight to the next waiter.
func (m *Manager) abandon(turn chan struct{}) {
	m.mu.Lock()
	for i, q := range m.queue {
		if q == turn {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.mu.Unlock()
			return
		}
	}
	m.mu.Unlock()

	// Already granted: give the slot back.
	m.settle()
}

// settle releases a capacity slot when a task's work actually finishes,
// starting the next queued task in strict submission order.
func (m *Manager) settle() {
	m.mu.Lock()
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		close(next)
		return
	}
	if m.active > 0 {
		m.active--
	}
	m.mu.Unlock()
}

// Status is a read-only snapshot of manager load.
type Status struct {
	Active    int `json:"active"`
	Capacity  int `json:"capacity"`
	Queued    int `json:"queued"`
	QueueSize int `json:"queue_size"`
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Active:    m.active,
		Capacity:  m.capacity,
		Queued:    len(m.queue),
		QueueSize: m.queueSize,
	}
}
