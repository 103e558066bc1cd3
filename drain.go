// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"errors"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// drainState is the work-in-progress counter described in §4.3: callers
// atomically increment and, on observing a transition from 0 to 1, take
// responsibility for draining; all others merely mark "work missed" and
// return.
type drainState struct {
	wip atomic.Int32
}

// enter reports whether the caller should run the drain loop now. If
// false, the caller's attempt has been recorded as missed work and
// whichever goroutine is already draining will observe it.
func (d *drainState) enter() bool {
	return d.wip.Add(1) == 1
}

// leave must be called once per completed drain iteration. It decrements
// by the amount this iteration is responsible for (always 1, since every
// missed caller added exactly 1 on entry) and reports whether the loop
// must run again because work was marked missed while it ran.
func (d *drainState) leave() bool {
	return d.wip.Add(-1) != 0
}

// errStagingFull reports that a stagingQueue's ring has no free slot for
// the item being offered. Every caller of Offer treats this as ordinary
// backpressure, not a fault, so a single unexported sentinel is enough —
// nothing downstream needs to distinguish it from any other error.
var errStagingFull = errors.New("flow: staging ring is full")

// stagingQueue is the single-producer single-consumer ring that backs
// every drain loop's queue slot (§4.3): one stage's emitting goroutine
// offers items, the drain loop dequeues them. It is built directly out of
// Lamport's cached-index ring rather than wrapping a general-purpose
// queue type, because the only shape a drain loop ever needs is exactly
// this one: Offer/Dequeue plus a non-destructive Empty().
//
// Empty() holds back one already-dequeued item in pending so the drain
// loop's step (b) — "if Q is empty and T holds a value, deliver it" — can
// observe emptiness without speculatively consuming the next item.
//
// Only the single goroutine running a given drain loop ever calls
// Dequeue/Empty, matching the single-consumer contract the cached tail
// index relies on.
type stagingQueue[T any] struct {
	_          pad
	head       atomix.Uint64
	_          pad
	cachedTail uint64
	_          pad
	tail       atomix.Uint64
	_          pad
	cachedHead uint64
	_          pad
	ring       []T
	mask       uint64

	pending    T
	hasPending bool
}

func newStagingQueue[T any](capacity int) *stagingQueue[T] {
	n := uint64(ringCapacity(capacity))
	return &stagingQueue[T]{ring: make([]T, n), mask: n - 1}
}

// Offer enqueues from the producer side. Returns errStagingFull if the
// ring has no free slot.
func (s *stagingQueue[T]) Offer(item T) error {
	tail := s.tail.LoadRelaxed()
	if tail-s.cachedHead > s.mask {
		s.cachedHead = s.head.LoadAcquire()
		if tail-s.cachedHead > s.mask {
			return errStagingFull
		}
	}
	s.ring[tail&s.mask] = item
	s.tail.StoreRelease(tail + 1)
	return nil
}

func (s *stagingQueue[T]) dequeueRing() (T, error) {
	head := s.head.LoadRelaxed()
	if head >= s.cachedTail {
		s.cachedTail = s.tail.LoadAcquire()
		if head >= s.cachedTail {
			var zero T
			return zero, errStagingFull
		}
	}
	item := s.ring[head&s.mask]
	var zero T
	s.ring[head&s.mask] = zero
	s.head.StoreRelease(head + 1)
	return item, nil
}

// Dequeue removes and returns the next item, consulting the held-back
// pending item first.
func (s *stagingQueue[T]) Dequeue() (T, error) {
	if s.hasPending {
		v := s.pending
		var zero T
		s.pending = zero
		s.hasPending = false
		return v, nil
	}
	return s.dequeueRing()
}

// Empty reports whether the queue currently has no item, without
// discarding one if it does: a speculative dequeue is held in pending for
// the next real Dequeue call.
func (s *stagingQueue[T]) Empty() bool {
	if s.hasPending {
		return false
	}
	v, err := s.dequeueRing()
	if err != nil {
		return true
	}
	s.pending = v
	s.hasPending = true
	return false
}

// Cap returns the ring's capacity.
func (s *stagingQueue[T]) Cap() int {
	return int(s.mask + 1)
}

type pad [64]byte

// ringCapacity rounds n up to the next power of 2, with a floor of 2 so a
// single cached-index pair can never alias head against tail.
func ringCapacity(n int) int {
	if n < 2 {
		n = 2
	}
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}

// drainQueue is the minimal shape runDrain needs from a staging queue:
// destructive Dequeue plus non-destructive Empty. [stagingQueue] and
// [fusedStagingQueue] both implement it.
type drainQueue[T any] interface {
	Dequeue() (T, error)
	Empty() bool
}

// replenishThreshold is the 75%-of-capacity replenishment point from §3:
// "additional requests in units of 75% of capacity".
func replenishThreshold(capacity int64) int64 {
	t := capacity - capacity/4
	if t < 1 {
		return 1
	}
	return t
}

// runDrain implements the §4.3 queue-drain skeleton exactly:
//
//  1. enter() guards re-entrancy; a caller that loses the race returns,
//     trusting the winner to observe its missed work.
//  2. the inner loop re-reads the request counter every iteration (so a
//     concurrent Request(n) is noticed without a second wakeup) and emits
//     while requests remain and the queue is non-empty, replenishing
//     upstream every time 75% of prefetch has been consumed.
//  3. cancellation is checked before emptiness; emptiness is checked
//     before the terminal latch, because producers set the queue then the
//     latch in that order.
//  4. leave() decides whether to loop again or return.
func runDrain[T any](
	st *drainState,
	q drainQueue[T],
	requested *RequestCounter,
	terminal *TerminalLatch,
	isCancelled func() bool,
	clearQueue func(),
	prefetch int64,
	requestMore func(int64),
	emit func(T),
	onComplete func(),
	onError func(error),
) {
	if !st.enter() {
		return
	}
	threshold := replenishThreshold(prefetch)
	var sinceReplenish int64
	for {
		var emitted int64
		for {
			if isCancelled() {
				break
			}
			if emitted >= requested.Get() {
				break
			}
			if q.Empty() {
				break
			}
			item, _ := q.Dequeue()
			emit(item)
			emitted++
			sinceReplenish++
			if sinceReplenish >= threshold {
				requestMore(sinceReplenish)
				sinceReplenish = 0
			}
		}
		if emitted != 0 {
			requested.Produced(emitted)
		}

		if isCancelled() {
			clearQueue()
			return
		}

		if q.Empty() {
			if completed, err, ok := terminal.Get(); ok {
				if completed {
					onComplete()
				} else {
					onError(err)
				}
				return
			}
		}

		if !st.leave() {
			return
		}
	}
}
