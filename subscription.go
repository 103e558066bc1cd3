// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync/atomic"
)

// cancelledSubscription is the sentinel installed once an
// [SubscriptionArbiter] is cancelled; it absorbs late Request calls and
// makes Cancel idempotent.
type cancelledSubscription struct{}

func (cancelledSubscription) Request(int64) {}
func (cancelledSubscription) Cancel()        {}

var cancelledSentinel Subscription = cancelledSubscription{}

// SubscriptionArbiter is the atomic, single-slot handle used by every
// operator that sits between exactly one upstream and one downstream: it
// holds the upstream [Subscription] once it arrives, accumulates any
// requests made before that (the "deferred requests" sibling described in
// §4.1), and makes cancellation idempotent and race-free.
//
// The zero value is ready to use. It is safe for concurrent use by the
// goroutine delivering OnSubscribe and the goroutine(s) calling Request/
// Cancel on behalf of downstream.
type SubscriptionArbiter struct {
	slot     atomic.Pointer[Subscription]
	deferred atomic.Int64
	done     atomic.Bool
}

// Set installs sub as the upstream subscription. The first non-nil Set
// wins: if Set has already been called (or Cancel already fired), sub is
// immediately cancelled instead. On a winning Set, any requests
// accumulated via Request before or concurrently with this call are
// forwarded to sub exactly once.
func (a *SubscriptionArbiter) Set(sub Subscription) {
	if sub == nil {
		return
	}
	if !a.slot.CompareAndSwap(nil, &sub) {
		sub.Cancel()
		return
	}
	if a.done.Load() {
		sub.Cancel()
		return
	}
	if n := a.deferred.Swap(0); n > 0 {
		sub.Request(n)
	}
}

// Request forwards n to the installed subscription, or — if none has
// arrived yet, or one is arriving concurrently — accumulates it so it is
// forwarded exactly once, by whichever of Request/Set observes the other's
// effect second.
func (a *SubscriptionArbiter) Request(n int64) {
	if n <= 0 {
		return
	}
	for {
		cur := a.deferred.Load()
		next := addRequested(cur, n)
		if a.deferred.CompareAndSwap(cur, next) {
			break
		}
	}
	if p := a.slot.Load(); p != nil {
		if m := a.deferred.Swap(0); m > 0 {
			(*p).Request(m)
		}
	}
}

// Cancel detaches idempotently: it cancels whatever subscription is
// currently installed (if any) and marks the arbiter so that any
// subscription arriving afterward via Set is cancelled immediately too.
func (a *SubscriptionArbiter) Cancel() {
	a.done.Store(true)
	if p := a.slot.Swap(&cancelledSentinel); p != nil {
		(*p).Cancel()
	}
}

// IsCancelled reports whether Cancel has been called.
func (a *SubscriptionArbiter) IsCancelled() bool {
	return a.done.Load()
}
