package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRunsImmediatelyUnderCapacity(t *testing.T) {
	m := NewManager(2, 1)

	result, err := m.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "done", nil
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "done", result)

	status := m.Status()
	assert.Equal(t, 0, status.Active)
	assert.Equal(t, 0, status.Queued)
}

func TestExecutePropagatesWorkError(t *testing.T) {
	m := NewManager(1, 0)
	wantErr := errors.New("widget exploded")

	_, err := m.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, wantErr
	}, time.Second)

	assert.ErrorIs(t, err, wantErr)
}

func TestAdmissionControl(t *testing.T) {
	// capacity=2, queueSize=1: of 4 tasks, 2 run, 1 queues, 1 is
	// rejected synchronously.
	m := NewManager(2, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 4)

	work := func(ctx context.Context) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Execute(context.Background(), work, 5*time.Second)
		}(i)
	}

	// Two must start; the third sits in the queue.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("expected two tasks to start immediately")
		}
	}

	require.Eventually(t, func() bool {
		s := m.Status()
		return s.Active == 2 && s.Queued == 1
	}, time.Second, 5*time.Millisecond)

	// The fourth submission is rejected without blocking.
	_, err := m.Execute(context.Background(), work, 5*time.Second)
	var full *QueueFullError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 2, full.Active)
	assert.Equal(t, 1, full.Queued)
	assert.Equal(t, 1, full.QueueSize)

	close(release)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "task %d", i)
	}
	assert.Equal(t, 0, m.Status().Active)
}

func TestQueuedTasksStartInSubmissionOrder(t *testing.T) {
	m := NewManager(1, 5)

	block := make(chan struct{})
	var order []int
	var mu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Execute(context.Background(), func(ctx context.Context) (any, error) {
			<-block
			return nil, nil
		}, 5*time.Second)
	}()

	require.Eventually(t, func() bool {
		return m.Status().Active == 1
	}, time.Second, time.Millisecond)

	// Queue three tasks one at a time so submission order is known.
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Execute(context.Background(), func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			}, 5*time.Second)
		}()

		require.Eventually(t, func() bool {
			return m.Status().Queued == i
		}, time.Second, time.Millisecond)
	}

	close(block)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestTimeoutResolvesWhileWorkKeepsRunning(t *testing.T) {
	m := NewManager(1, 0)

	workDone := make(chan struct{})
	start := time.Now()

	_, err := m.Execute(context.Background(), func(ctx context.Context) (any, error) {
		defer close(workDone)
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	}, 50*time.Millisecond)

	elapsed := time.Since(start)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 50*time.Millisecond, timeout.Timeout)
	assert.Less(t, elapsed, 150*time.Millisecond, "caller must resolve at the deadline, not at work completion")

	// The slot is held until the work actually finishes.
	assert.Equal(t, 1, m.Status().Active)

	select {
	case <-workDone:
	case <-time.After(time.Second):
		t.Fatal("abandoned work never finished")
	}

	require.Eventually(t, func() bool {
		return m.Status().Active == 0
	}, time.Second, time.Millisecond, "late completion must still release the slot")
}

func TestTimedOutSlotTransfersToQueuedTask(t *testing.T) {
	m := NewManager(1, 1)

	slow := make(chan struct{})
	var secondRan atomic.Bool

	go m.Execute(context.Background(), func(ctx context.Context) (any, error) {
		<-slow
		return nil, nil
	}, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return m.Status().Active == 1
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Execute(context.Background(), func(ctx context.Context) (any, error) {
			secondRan.Store(true)
			return nil, nil
		}, time.Second)
	}()

	require.Eventually(t, func() bool {
		return m.Status().Queued == 1
	}, time.Second, time.Millisecond)

	// First task timed out already, but its slot only frees on completion.
	assert.False(t, secondRan.Load())

	close(slow)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued task never ran after slot release")
	}
	assert.True(t, secondRan.Load())
}

func TestQueuedCallerGivesUp(t *testing.T) {
	m := NewManager(1, 2)

	block := make(chan struct{})
	go m.Execute(context.Background(), func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	}, 5*time.Second)

	require.Eventually(t, func() bool {
		return m.Status().Active == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Execute(ctx, func(ctx context.Context) (any, error) {
			return nil, nil
		}, time.Second)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return m.Status().Queued == 1
	}, time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled waiter never returned")
	}

	assert.Equal(t, 0, m.Status().Queued)

	close(block)
	require.Eventually(t, func() bool {
		return m.Status().Active == 0
	}, time.Second, time.Millisecond)
}

func TestStatusSnapshot(t *testing.T) {
	m := NewManager(3, 7)

	status := m.Status()
	assert.Equal(t, 0, status.Active)
	assert.Equal(t, 3, status.Capacity)
	assert.Equal(t, 0, status.Queued)
	assert.Equal(t, 7, status.QueueSize)
}

func TestDefaults(t *testing.T) {
	m := NewManager(0, -1)

	status := m.Status()
	assert.Equal(t, DefaultCapacity, status.Capacity)
	assert.Equal(t, DefaultQueueSize, status.QueueSize)
}

func TestCapacityNeverExceeded(t *testing.T) {
	m := NewManager(2, 20)

	var running atomic.Int32
	var peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Execute(context.Background(), func(ctx context.Context) (any, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil, nil
			}, 5*time.Second)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}
