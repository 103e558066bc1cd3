// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"unsafe"

	"code.hybscloud.com/streamflow/internal/queue"
)

// FusedQueue is the ASYNC fused-source queue described in §3/§9.4: the
// boundary between an upstream that pushes items and a downstream that
// polls a queue instead of receiving OnNext calls one at a time. It is
// backed by [queue.SPSCPtr] rather than a value ring so an upstream whose
// item type is already pointer-shaped (the common case at an operator
// boundary, where T is often itself a pointer or a small struct wrapping
// one) can hand the same allocation to the consumer instead of copying it
// through an intermediate ring slot.
type FusedQueue[T any] struct {
	ring *queue.SPSCPtr
}

// NewFusedQueue creates a fused queue of the given capacity (rounded up
// to a power of two by the backing ring).
func NewFusedQueue[T any](capacity int) *FusedQueue[T] {
	return &FusedQueue[T]{ring: queue.NewSPSCPtr(capacity)}
}

// Offer boxes item and enqueues it. Returns queue.ErrWouldBlock if full.
func (f *FusedQueue[T]) Offer(item T) error {
	box := new(T)
	*box = item
	return f.ring.Enqueue(unsafe.Pointer(box))
}

// Poll dequeues and unboxes the next item. ok is false if the queue is
// currently empty.
func (f *FusedQueue[T]) Poll() (item T, ok bool) {
	p, err := f.ring.Dequeue()
	if err != nil {
		var zero T
		return zero, false
	}
	box := (*T)(p)
	return *box, true
}

// Cap returns the backing ring's capacity.
func (f *FusedQueue[T]) Cap() int {
	return f.ring.Cap()
}

// fusedStagingQueue adapts a [FusedQueue] to [drainQueue] the same way
// [stagingQueue] adapts its own ring: it holds back one polled item so
// Empty() can be checked without discarding data.
type fusedStagingQueue[T any] struct {
	q          *FusedQueue[T]
	pending    T
	hasPending bool
}

func newFusedStagingQueue[T any](capacity int) *fusedStagingQueue[T] {
	return &fusedStagingQueue[T]{q: NewFusedQueue[T](capacity)}
}

func (s *fusedStagingQueue[T]) Offer(item T) error {
	return s.q.Offer(item)
}

func (s *fusedStagingQueue[T]) Dequeue() (T, error) {
	if s.hasPending {
		v := s.pending
		var zero T
		s.pending = zero
		s.hasPending = false
		return v, nil
	}
	if v, ok := s.q.Poll(); ok {
		return v, nil
	}
	var zero T
	return zero, queue.ErrWouldBlock
}

func (s *fusedStagingQueue[T]) Empty() bool {
	if s.hasPending {
		return false
	}
	v, ok := s.q.Poll()
	if !ok {
		return true
	}
	s.pending = v
	s.hasPending = true
	return false
}

// negotiateFusion type-asserts sub for [FusedSubscriber] and requests
// requested, returning the negotiated mode (FusionNone if sub doesn't
// support fusion at all).
func negotiateFusion[T any](sub Subscriber[T], requested FusionMode) (FusedSubscriber[T], FusionMode) {
	fs, ok := sub.(FusedSubscriber[T])
	if !ok {
		return nil, FusionNone
	}
	return fs, fs.RequestFusion(requested)
}
