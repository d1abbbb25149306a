/*
Package queue provides two FIFO queues for handing work between goroutines.

# Bounded

Bounded is a fixed-capacity queue guarded by a mutex and two condition
variables, one for "room available" and one for "data available". A full
queue blocks producers, which gives natural backpressure instead of unbounded
memory growth.

	q := queue.MustNewBounded[Job](128)

	go func() {
		for job := range jobs {
			if !q.Push(job) {
				return // queue stopped
			}
		}
	}()

	for {
		job, err := q.Pop()
		if errors.Is(err, types.ErrStopped) {
			break // stopped and drained
		}
		handle(job)
	}

Stop wakes every waiter. Elements pushed before Stop are still delivered by
Pop and TryPopFor; only an empty, stopped queue reports types.ErrStopped (or
false from TryPopFor). A timed out TryPopFor also reports false.

# LockFree

LockFree is an unbounded Michael–Scott queue. Push and Pop never take a lock
and never block: Pop returns false on an empty queue. It has no stop concept,
so producers and consumers must agree on termination themselves.

	q := queue.NewLockFree[Event]()
	q.Push(ev)

	backoff := iox.Backoff{}
	for {
		ev, err := q.Dequeue()
		if types.IsWouldBlock(err) {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		process(ev)
	}

# Ordering

Both queues preserve FIFO order of successfully enqueued elements across all
producers combined; the order between concurrent producers is the order in
which their pushes took effect.
*/
package queue
