package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ring "github.com/eapache/queue"
	"github.com/jzx17/syncore/pkg/types"
)

// BoundedConfig defines configuration for a bounded blocking queue
type BoundedConfig struct {
	// Capacity is the maximum number of buffered elements
	Capacity int

	// Clock drives TryPopFor timeouts (optional, defaults to real clock)
	Clock types.Clock

	// Logger receives lifecycle events (optional, defaults to slog.Default)
	Logger *slog.Logger
}

// DefaultBoundedConfig returns default configuration
func DefaultBoundedConfig() *BoundedConfig {
	return &BoundedConfig{
		Capacity: 1024,
		Clock:    types.NewRealClock(),
		Logger:   slog.Default(),
	}
}

// Bounded is a fixed-capacity FIFO with blocking push and pop.
//
// All state is guarded by one mutex. Producers wait on notFull and consumers
// on notEmpty, so a push wakes only a consumer and a pop wakes only a
// producer. Stop releases every waiter; elements already buffered stay
// poppable until the queue is drained.
type Bounded[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    *ring.Queue
	capacity int
	live     bool

	waitingProducers int
	waitingConsumers int

	clock  types.Clock
	logger *slog.Logger
}

// NewBounded creates a queue holding at most capacity elements
func NewBounded[T any](capacity int) (*Bounded[T], error) {
	config := DefaultBoundedConfig()
	config.Capacity = capacity
	return NewBoundedWithConfig[T](config)
}

// MustNewBounded is like NewBounded but panics on an invalid capacity
func MustNewBounded[T any](capacity int) *Bounded[T] {
	q, err := NewBounded[T](capacity)
	if err != nil {
		panic(err)
	}
	return q
}

// NewBoundedWithConfig creates a queue from config; nil uses the defaults
func NewBoundedWithConfig[T any](config *BoundedConfig) (*Bounded[T], error) {
	if config == nil {
		config = DefaultBoundedConfig()
	}
	if config.Capacity <= 0 {
		return nil, types.NewConfigError("queue.Bounded", "Capacity", config.Capacity)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := &Bounded[T]{
		items:    ring.New(),
		capacity: config.Capacity,
		live:     true,
		clock:    types.OrRealClock(config.Clock),
		logger:   logger,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends v, blocking while the queue is full.
// It returns false without enqueueing if the queue is stopped before room
// becomes available.
func (q *Bounded[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() >= q.capacity && q.live {
		q.waitingProducers++
		for q.items.Length() >= q.capacity && q.live {
			q.notFull.Wait()
		}
		q.waitingProducers--
	}

	if !q.live {
		return false
	}

	q.items.Add(v)
	q.notEmpty.Signal()
	return true
}

// TryPush appends v only if there is room right now
func (q *Bounded[T]) TryPush(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.live || q.items.Length() >= q.capacity {
		return false
	}
	q.items.Add(v)
	q.notEmpty.Signal()
	return true
}

// Pop removes and returns the front element, blocking until one is
// available. It returns types.ErrStopped once the queue is stopped and empty.
func (q *Bounded[T]) Pop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waitNotEmpty(func() bool { return false })

	if v, ok := q.popLocked(); ok {
		return v, nil
	}
	var zero T
	return zero, types.ErrStopped
}

// PopContext is like Pop but also returns ctx.Err() when ctx is done first
func (q *Bounded[T]) PopContext(ctx context.Context) (T, error) {
	// the callback takes the lock so the broadcast cannot slip in between our
	// ctx check and Wait
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.mu.Unlock()
		q.notEmpty.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	q.waitNotEmpty(func() bool { return ctx.Err() != nil })

	if v, ok := q.popLocked(); ok {
		return v, nil
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, types.ErrStopped
}

// TryPopFor is like Pop but gives up after timeout. It reports false when
// the timeout elapses or the queue is stopped and empty. A non-positive
// timeout makes a single non-blocking attempt.
func (q *Bounded[T]) TryPopFor(timeout time.Duration) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timeout > 0 && q.items.Length() == 0 && q.live {
		expired := false
		timer := q.clock.AfterFunc(timeout, func() {
			q.mu.Lock()
			expired = true
			q.mu.Unlock()
			q.notEmpty.Broadcast()
		})
		q.waitNotEmpty(func() bool { return expired })
		timer.Stop()
	}

	return q.popLocked()
}

// waitNotEmpty blocks until an element is buffered, the queue stops or
// cancelled reports true. q.mu must be held.
func (q *Bounded[T]) waitNotEmpty(cancelled func() bool) {
	if q.items.Length() > 0 || !q.live || cancelled() {
		return
	}
	q.waitingConsumers++
	for q.items.Length() == 0 && q.live && !cancelled() {
		q.notEmpty.Wait()
	}
	q.waitingConsumers--
}

// popLocked removes the front element if any. q.mu must be held.
func (q *Bounded[T]) popLocked() (T, bool) {
	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}
	v := q.items.Remove().(T)
	q.notFull.Signal()
	return v, true
}

// Stop marks the queue as no longer live and wakes every waiting producer
// and consumer. Buffered elements can still be popped. Stop is idempotent.
func (q *Bounded[T]) Stop() {
	q.mu.Lock()
	if !q.live {
		q.mu.Unlock()
		return
	}
	q.live = false
	remaining := q.items.Length()
	producers, consumers := q.waitingProducers, q.waitingConsumers
	q.mu.Unlock()

	q.notEmpty.Broadcast()
	q.notFull.Broadcast()

	q.logger.Debug("queue: bounded queue stopped",
		"remaining", remaining,
		"released_producers", producers,
		"released_consumers", consumers)
}

// Len returns the number of buffered elements
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Cap returns the queue capacity
func (q *Bounded[T]) Cap() int {
	return q.capacity
}

// IsStopped reports whether Stop has been called
func (q *Bounded[T]) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.live
}

// Stats returns a consistent snapshot of the queue state
func (q *Bounded[T]) Stats() types.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return types.QueueStats{
		Length:           q.items.Length(),
		Capacity:         q.capacity,
		Live:             q.live,
		WaitingProducers: q.waitingProducers,
		WaitingConsumers: q.waitingConsumers,
	}
}
