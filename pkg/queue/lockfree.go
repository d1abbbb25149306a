package queue

import (
	"sync/atomic"

	"code.hybscloud.com/spin"
	"github.com/jzx17/syncore/pkg/types"
)

// LockFree is an unbounded multi-producer multi-consumer FIFO based on the
// Michael–Scott queue.
//
// head always points at a sentinel whose value has already been consumed;
// the first live element is head.next. tail may trail the last node by one
// link and is advanced by whichever goroutine notices it lagging.
//
// Retired nodes are never freed explicitly. The garbage collector reclaims a
// node only after no goroutine can still dereference it, which gives the
// same guarantee as hazard pointers and rules out use-after-free and ABA on
// the head and tail pointers.
//
// The zero value is not usable; create queues with NewLockFree.
type LockFree[T any] struct {
	_    pad
	head atomic.Pointer[lfNode[T]] // consumer side
	_    pad
	tail atomic.Pointer[lfNode[T]] // producer side
	_    pad
}

type lfNode[T any] struct {
	value T
	next  atomic.Pointer[lfNode[T]]
}

// pad keeps head and tail on separate cache lines
type pad [64]byte

// NewLockFree creates an empty queue holding only the sentinel node
func NewLockFree[T any]() *LockFree[T] {
	q := &LockFree[T]{}
	sentinel := &lfNode[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Push appends v. It never blocks and never fails.
func (q *LockFree[T]) Push(v T) {
	n := &lfNode[T]{value: v}
	sw := spin.Wait{}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// Best effort: a failed swing means another goroutine
				// already helped.
				q.tail.CompareAndSwap(tail, n)
				return
			}
		} else {
			// A producer linked a node but has not swung tail yet.
			q.tail.CompareAndSwap(tail, next)
		}
		sw.Once()
	}
}

// Pop removes the front element. It reports false when the queue is empty,
// which is an expected outcome under contention rather than an error.
func (q *LockFree[T]) Pop() (T, bool) {
	sw := spin.Wait{}
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			var zero T
			return zero, false
		}
		if head == tail {
			// tail must never fall behind head
			q.tail.CompareAndSwap(tail, next)
			sw.Once()
			continue
		}
		if q.head.CompareAndSwap(head, next) {
			// next is now the sentinel and only the CAS winner reads its
			// value. Clearing it keeps the sentinel from pinning user data.
			v := next.value
			var zero T
			next.value = zero
			return v, true
		}
		sw.Once()
	}
}

// Dequeue is Pop in error form: it returns types.ErrWouldBlock when the
// queue is empty so callers can drive an iox.Backoff loop.
func (q *LockFree[T]) Dequeue() (T, error) {
	v, ok := q.Pop()
	if !ok {
		return v, types.ErrWouldBlock
	}
	return v, nil
}

// Empty reports whether the queue held no elements at the time of the call
func (q *LockFree[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}
