// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"math"

	"code.hybscloud.com/atomix"
)

// Unbounded is the request value meaning "accept any number of items".
// It saturates: Request(Unbounded) followed by further Request(n) calls,
// of any n, leaves the counter at Unbounded.
const Unbounded int64 = math.MaxInt64

// addRequested returns min(current+n, Unbounded), saturating instead of
// overflowing. n is assumed non-negative; callers filter n<=0 before
// calling (Request(0) and negative requests are no-ops per the
// [Subscription] contract).
func addRequested(current, n int64) int64 {
	if current >= Unbounded || n >= Unbounded {
		return Unbounded
	}
	sum := current + n
	if sum < 0 || sum > Unbounded { // overflow or saturation
		return Unbounded
	}
	return sum
}

// producedRequested returns the remaining request count after emitting n
// items against current. If current is already Unbounded it is returned
// unchanged (unbounded requests are never drawn down). Consuming more than
// was requested is a protocol bug; in builds with assertions enabled
// (AssertInvariants) it panics instead of silently going negative.
func producedRequested(current, n int64) int64 {
	if current >= Unbounded {
		return Unbounded
	}
	rem := current - n
	if rem < 0 {
		if AssertInvariants {
			panic("flow: consumed more items than were requested")
		}
		return 0
	}
	return rem
}

// AssertInvariants enables the debug check of the no-over-production
// invariant in §3 of the design: with it set, consuming more items than
// a bounded request allowed panics. Off by default. Double termination
// is not checked by it; [TerminalLatch] ignores a second terminal signal.
var AssertInvariants = false

// RequestCounter is the atomic, saturating request accumulator shared by
// every queue-drain operator. Request adds with saturation at [Unbounded];
// Produced subtracts, floored at zero except when the counter is already
// Unbounded (an unbounded request is never drawn down, matching "item
// delivery decrements unless the value is MAX" in §3).
type RequestCounter struct {
	n atomix.Int64
}

// Add records a new request of n (n<=0 is a no-op) and returns the
// resulting total.
func (r *RequestCounter) Add(n int64) int64 {
	if n <= 0 {
		return r.n.LoadAcquire()
	}
	for {
		cur := r.n.LoadAcquire()
		next := addRequested(cur, n)
		if r.n.CompareAndSwapAcqRel(cur, next) {
			return next
		}
	}
}

// Produced records n items having been emitted and returns the remaining
// request count.
func (r *RequestCounter) Produced(n int64) int64 {
	for {
		cur := r.n.LoadAcquire()
		next := producedRequested(cur, n)
		if r.n.CompareAndSwapAcqRel(cur, next) {
			return next
		}
	}
}

// Get returns the current request total without modifying it.
func (r *RequestCounter) Get() int64 {
	return r.n.LoadAcquire()
}
