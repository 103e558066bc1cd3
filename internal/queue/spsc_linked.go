// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"code.hybscloud.com/atomix"
)

// SPSCLinked is an unbounded single-producer single-consumer queue.
//
// Unlike a bounded Lamport ring ([SPSCPtr] here, or the stagingQueue in
// the root package's drain.go), which rejects an Enqueue once its fixed
// ring is full, SPSCLinked always accepts: a node is allocated per item
// and linked onto the tail. This is the queue behind
// onBackpressureBuffer(ALL) — the one backpressure policy that can grow
// without limit, trading boundedness for never dropping an item. Use a
// bounded ring whenever a capacity bound is acceptable; it has no
// allocation per item and a much smaller footprint.
//
// The head/tail handoff follows the same acquire-release discipline as
// those rings: the producer publishes a node by linking it with StoreRelease on
// the previous node's next pointer, the consumer observes it with
// LoadAcquire.
type SPSCLinked[T any] struct {
	_    pad
	head atomix.Pointer[spscLinkedNode[T]] // consumer-owned sentinel
	_    pad
	tail atomix.Pointer[spscLinkedNode[T]] // producer-owned tail
	_    pad
}

type spscLinkedNode[T any] struct {
	next atomix.Pointer[spscLinkedNode[T]]
	val  T
}

// NewSPSCLinked creates an empty unbounded SPSC queue.
func NewSPSCLinked[T any]() *SPSCLinked[T] {
	sentinel := &spscLinkedNode[T]{}
	q := &SPSCLinked[T]{}
	q.head.StoreRelease(sentinel)
	q.tail.StoreRelease(sentinel)
	return q
}

// Enqueue appends an element (producer only). Never fails: capacity is
// bounded only by available memory.
func (q *SPSCLinked[T]) Enqueue(elem *T) {
	n := &spscLinkedNode[T]{val: *elem}
	tail := q.tail.LoadRelaxed()
	tail.next.StoreRelease(n)
	q.tail.StoreRelease(n)
}

// Dequeue removes and returns the oldest element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSCLinked[T]) Dequeue() (T, error) {
	head := q.head.LoadRelaxed()
	next := head.next.LoadAcquire()
	if next == nil {
		var zero T
		return zero, ErrWouldBlock
	}
	val := next.val
	var zero T
	next.val = zero
	q.head.StoreRelease(next)
	return val, nil
}

// Cap reports that the queue has no fixed capacity; it always returns -1.
func (q *SPSCLinked[T]) Cap() int {
	return -1
}
