/*
Package worker provides a fixed-size worker pool draining one shared FIFO
task queue.

# Overview

A Pool starts PoolSize worker goroutines as soon as it is created. Every
worker takes the oldest queued task, runs it, and goes back for the next one.
The queue is unbounded and guarded by a single mutex; an idle worker sleeps on
a condition variable until a task arrives or the pool is stopped.

# Lifecycle

Each Worker moves Idle → Running → Idle once per task and Idle → Exited when
the pool shuts down. Stop sets the stop flag, wakes every worker and waits for
all of them to return. Workers exit only once the queue is empty, so every
task queued before Stop still runs. Stop is idempotent; concurrent callers all
block until the workers are joined. Close does the same for io.Closer users.

Enqueue never fails. A function enqueued after Stop has returned is silently
dropped, so callers must not enqueue during or after shutdown. Submit is the
checked form and returns types.ErrPoolStopped once Stop has been called.

# Error Handling

A task that returns an error or panics is counted as failed and reported as a
*types.TaskError to the configured ErrorHandler. Panics are recovered, logged
at error level with the worker and task IDs, and carry the goroutine stack in
TaskError.Stack. The worker keeps running.

# Usage

	pool, err := worker.NewPool(&worker.PoolConfig{PoolSize: 8})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Stop()

	pool.Enqueue(func() {
		// Execute work
	})

	err = pool.Submit(worker.NewBasicTask(func(ctx context.Context) error {
		return process(ctx)
	}))
	if errors.Is(err, types.ErrPoolStopped) {
		log.Println("pool is shutting down")
	}

	pool.Wait()
	stats := pool.Stats()
	fmt.Printf("completed %d, failed %d\n", stats.Completed, stats.Failed)
*/
package worker
