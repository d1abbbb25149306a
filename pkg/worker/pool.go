package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	ring "github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/jzx17/syncore/pkg/types"
)

// PoolConfig defines configuration for a worker pool
type PoolConfig struct {
	// PoolSize is the number of worker goroutines
	PoolSize int

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger receives lifecycle events and task panics (optional, defaults to slog.Default)
	Logger *slog.Logger

	// ErrorHandler receives every *types.TaskError (optional)
	ErrorHandler types.ErrorHandler
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		PoolSize: runtime.NumCPU(),
		Clock:    types.NewRealClock(),
		Logger:   slog.Default(),
	}
}

// Pool is a fixed set of workers draining one shared FIFO task queue.
//
// The queue, the stop flag and the count of running tasks are guarded by mu.
// Workers wait on work until a task arrives or stop is requested; they exit
// only when stop is requested and the queue is empty.
type Pool struct {
	id     string
	config *PoolConfig
	clock  types.Clock
	logger *slog.Logger
	ctx    context.Context

	mu       sync.Mutex
	work     *sync.Cond
	quiet    *sync.Cond
	tasks    *ring.Queue
	stopping bool
	running  int
	live     int

	workers  []*Worker
	wg       sync.WaitGroup
	stopOnce sync.Once

	submitted atomix.Int64
	completed atomix.Int64
	failed    atomix.Int64
}

// NewPool creates a pool and starts its workers; a nil config uses
// DefaultPoolConfig
func NewPool(config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.PoolSize <= 0 {
		return nil, types.NewConfigError("worker.Pool", "PoolSize", config.PoolSize)
	}

	clock := types.OrRealClock(config.Clock)
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New().String()
	p := &Pool{
		id:      id,
		config:  config,
		clock:   clock,
		logger:  logger.With("pool_id", id),
		ctx:     types.WithClock(context.Background(), clock),
		tasks:   ring.New(),
		workers: make([]*Worker, config.PoolSize),
		live:    config.PoolSize,
	}
	p.work = sync.NewCond(&p.mu)
	p.quiet = sync.NewCond(&p.mu)

	p.wg.Add(config.PoolSize)
	for i := range p.workers {
		w := newWorker(i)
		p.workers[i] = w
		go w.run(p)
	}

	p.logger.Debug("worker: pool started", "workers", config.PoolSize)
	return p, nil
}

// MustNewPool is like NewPool but panics on an invalid config
func MustNewPool(config *PoolConfig) *Pool {
	p, err := NewPool(config)
	if err != nil {
		panic(err)
	}
	return p
}

// Enqueue appends fn to the shared queue and wakes one worker. It is always
// accepted; a function enqueued after Stop has returned is never run.
func (p *Pool) Enqueue(fn func()) {
	p.push(FuncTask(fn))
}

// Submit appends task to the shared queue. It fails with types.ErrNilTask for
// a nil task and with types.ErrPoolStopped once Stop has been called.
func (p *Pool) Submit(task types.Task) error {
	if task == nil {
		return types.ErrNilTask
	}

	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return types.ErrPoolStopped
	}
	p.pushLocked(task)
	p.mu.Unlock()
	return nil
}

func (p *Pool) push(task types.Task) {
	p.mu.Lock()
	p.pushLocked(task)
	p.mu.Unlock()
}

func (p *Pool) pushLocked(task types.Task) {
	p.tasks.Add(task)
	p.submitted.Add(1)
	p.work.Signal()
}

// next blocks until a task is available or the pool is stopped and drained
func (p *Pool) next(w *Worker) (types.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.tasks.Length() == 0 && !p.stopping {
		p.work.Wait()
	}
	if p.tasks.Length() == 0 {
		p.live--
		if p.live == 0 {
			p.quiet.Broadcast()
		}
		return nil, false
	}

	task := p.tasks.Remove().(types.Task)
	p.running++
	w.setState(WorkerStateRunning)
	return task, true
}

func (p *Pool) finish(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.setState(WorkerStateIdle)
	p.running--
	if p.running == 0 && p.tasks.Length() == 0 {
		p.quiet.Broadcast()
	}
}

func (p *Pool) handleError(err error, elapsed time.Duration) {
	var taskErr *types.TaskError
	if errors.As(err, &taskErr) && taskErr.Panicked() {
		p.logger.Error("worker: task panicked",
			"worker_id", taskErr.WorkerID,
			"task_id", taskErr.TaskID,
			"error", taskErr.Cause,
			"elapsed", elapsed)
	}

	handler := p.config.ErrorHandler
	if handler == nil {
		if taskErr == nil || !taskErr.Panicked() {
			p.logger.Warn("worker: task failed", "error", err, "elapsed", elapsed)
		}
		return
	}
	if handledErr := handler(err); handledErr != nil {
		p.logger.Warn("worker: error handler failed", "error", handledErr)
	}
}

// Stop requests shutdown and blocks until every worker has exited. Tasks
// queued before Stop are still executed. Stop is idempotent and concurrent
// callers all return once the workers are joined.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopping = true
		p.work.Broadcast()
		p.mu.Unlock()

		p.wg.Wait()
		p.logger.Debug("worker: pool stopped",
			"workers", len(p.workers),
			"completed", p.completed.Load(),
			"failed", p.failed.Load())
	})
}

// Close stops the pool; it implements io.Closer
func (p *Pool) Close() error {
	p.Stop()
	return nil
}

// Wait blocks until the queue is empty and no worker is running a task. Once
// every worker has exited after Stop, Wait returns even if functions were
// enqueued too late to run.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.running > 0 || (p.tasks.Length() > 0 && p.live > 0) {
		p.quiet.Wait()
	}
}

// IsStopped reports whether Stop has been called
func (p *Pool) IsStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}

// ID returns the unique pool ID attached to every log record as pool_id
func (p *Pool) ID() string {
	return p.id
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// QueueLength returns the number of tasks waiting for a worker
func (p *Pool) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks.Length()
}

// WorkerStates returns the current state of every worker
func (p *Pool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.State()
	}
	return states
}

// WorkerStats gets statistics of all workers
func (p *Pool) WorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}

// Stats gets pool statistics
func (p *Pool) Stats() types.PoolStats {
	stats := types.PoolStats{
		PoolSize:    len(p.workers),
		QueueLength: p.QueueLength(),
		Submitted:   p.submitted.Load(),
		Completed:   p.completed.Load(),
		Failed:      p.failed.Load(),
	}
	for _, w := range p.workers {
		switch w.State() {
		case WorkerStateIdle:
			stats.IdleWorkers++
		case WorkerStateRunning:
			stats.RunningWorkers++
		}
	}
	return stats
}
