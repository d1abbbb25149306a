package worker

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/jzx17/syncore/pkg/types"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdle represents a worker waiting for a task
	WorkerStateIdle WorkerState = iota
	// WorkerStateRunning represents a worker executing a task
	WorkerStateRunning
	// WorkerStateExited represents a worker whose goroutine has returned
	WorkerStateExited
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateRunning:
		return "running"
	case WorkerStateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Worker is one goroutine of a Pool. Its state moves Idle → Running → Idle
// for every task and Idle → Exited once the pool is stopped and drained.
type Worker struct {
	id    int
	state atomix.Int32

	// statistics
	totalProcessed atomix.Int64
	totalFailed    atomix.Int64
	lastTaskTime   atomix.Int64 // Unix nanosecond timestamp
}

func newWorker(id int) *Worker {
	return &Worker{id: id}
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *Worker) setState(state WorkerState) {
	w.state.Store(int32(state))
}

// run is the worker loop. It returns once the pool is stopping and the
// shared queue is empty.
func (w *Worker) run(p *Pool) {
	defer p.wg.Done()
	defer w.setState(WorkerStateExited)

	for {
		task, ok := p.next(w)
		if !ok {
			return
		}
		w.processTask(p, task)
		p.finish(w)
	}
}

// processTask runs a single task and records its outcome
func (w *Worker) processTask(p *Pool, task types.Task) {
	startTime := p.clock.Now()
	w.lastTaskTime.Store(startTime.UnixNano())

	err := w.executeTask(p.ctx, task)
	if err == nil {
		w.totalProcessed.Add(1)
		p.completed.Add(1)
		return
	}

	w.totalFailed.Add(1)
	p.failed.Add(1)
	p.handleError(err, p.clock.Since(startTime))
}

// taskID reads task.ID, tolerating tasks whose ID method panics
func taskID(task types.Task) (id string) {
	defer func() {
		if r := recover(); r != nil {
			id = "unknown"
		}
	}()
	return task.ID()
}

// executeTask executes a task with panic recovery
func (w *Worker) executeTask(ctx context.Context, task types.Task) (err error) {
	id := taskID(task)
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("panic: %v", r)
			}
			err = &types.TaskError{
				TaskID:   id,
				WorkerID: w.id,
				Cause:    cause,
				Stack:    string(buf[:n]),
			}
		}
	}()

	if err := task.Execute(ctx); err != nil {
		return &types.TaskError{TaskID: id, WorkerID: w.id, Cause: err}
	}
	return nil
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	var last time.Time
	if ns := w.lastTaskTime.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: w.totalProcessed.Load(),
		TotalFailed:    w.totalFailed.Load(),
		LastTaskTime:   last,
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalFailed    int64
	LastTaskTime   time.Time
}

// IsRunning checks if Worker is executing a task
func (ws WorkerStats) IsRunning() bool {
	return ws.State == WorkerStateRunning
}

// IsIdle checks if Worker is idle
func (ws WorkerStats) IsIdle() bool {
	return ws.State == WorkerStateIdle
}

// SuccessRate gets the success rate
func (ws WorkerStats) SuccessRate() float64 {
	total := ws.TotalProcessed + ws.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(ws.TotalProcessed) / float64(total)
}
