package types

import (
	"context"
)

// Task defines the unit of work executed by a worker pool
type Task interface {
	// Execute executes the task
	Execute(ctx context.Context) error

	// ID returns the task ID (for tracking and error reports)
	ID() string
}

// ErrorHandler defines an error handling function.
// The returned error is logged by the caller when non-nil.
type ErrorHandler func(error) error

// PoolStats defines statistics for worker pools
type PoolStats struct {
	// PoolSize is the number of worker goroutines
	PoolSize int

	// IdleWorkers is the number of workers waiting for tasks
	IdleWorkers int

	// RunningWorkers is the number of workers executing a task
	RunningWorkers int

	// QueueLength is the number of tasks waiting in the shared queue
	QueueLength int

	// Submitted is the total number of accepted tasks
	Submitted int64

	// Completed is the number of tasks that finished without error
	Completed int64

	// Failed is the number of tasks that returned an error or panicked
	Failed int64
}

// Finished returns the number of tasks that ran to an outcome
func (s PoolStats) Finished() int64 {
	return s.Completed + s.Failed
}

// QueueStats is a point-in-time view of a bounded queue
type QueueStats struct {
	Length           int
	Capacity         int
	Live             bool
	WaitingProducers int
	WaitingConsumers int
}

// CacheStats defines cache hit/miss counters
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// HitRate returns hits / (hits + misses), or 0 before any lookup
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
