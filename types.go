// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

// Publisher is an immutable factory describing a stream shape. Its sole
// operation is Subscribe: attach a Subscriber and start delivering signals.
//
// Publishers are value-like and freely sharable; constructing one does no
// work. All behavior is deferred until a Subscriber attaches.
type Publisher[T any] interface {
	// Subscribe attaches sub to this publisher. sub receives exactly one
	// OnSubscribe per invocation, followed by the other signals in the
	// order described on [Subscriber].
	Subscribe(sub Subscriber[T])
}

// Subscriber receives signals from a [Publisher]: exactly one OnSubscribe,
// zero or more OnNext, then at most one of OnComplete or OnError. After a
// terminal signal, no further signal ever arrives. After the subscriber
// cancels its subscription, it must not observe further signals — an
// already in-flight OnNext may still land, but nothing later will.
//
// Implementations must not call back into their own subscription
// re-entrantly from OnSubscribe, and must tolerate OnSubscribe being
// called at most once.
type Subscriber[T any] interface {
	// OnSubscribe delivers the subscription. Called exactly once, before
	// any other signal.
	OnSubscribe(sub Subscription)
	// OnNext delivers one item. Never called after a terminal signal or
	// after cancellation has been observed by the upstream.
	OnNext(item T)
	// OnComplete signals normal termination. Mutually exclusive with
	// OnError; at most one of the two is ever delivered.
	OnComplete()
	// OnError signals abnormal termination.
	OnError(err error)
}

// Subscription is the handle a [Subscriber] holds on its upstream. It is
// owned exclusively by the subscriber that received it via OnSubscribe.
type Subscription interface {
	// Request declares that up to n additional items are acceptable.
	// Requests accumulate: two calls of Request(3) permit up to 6 items
	// total beyond what was already delivered. Request([Unbounded]) means
	// "unbounded" and saturates under further requests. Request(0) and
	// negative n are no-ops.
	Request(n int64)
	// Cancel irrevocably detaches the subscriber from upstream.
	// Idempotent; cancellation propagates upstream unconditionally and is
	// synchronous with respect to the caller, but an already in-flight
	// OnNext may still land.
	Cancel()
}

// FusionMode describes the negotiated relationship between a fused-source
// subscriber and its upstream.
type FusionMode int

const (
	// FusionNone: no fusion: upstream pushes items via OnNext as normal.
	FusionNone FusionMode = iota
	// FusionSync: upstream is a cold, synchronous generator exposed as a
	// queue the downstream polls directly, on its own thread, without
	// upstream ever calling OnNext.
	FusionSync
	// FusionAsync: upstream will push items into a shared queue
	// asynchronously; downstream polls it once signalled (via OnNext with
	// a zero/sentinel value, conventionally), instead of receiving items
	// individually through virtual dispatch.
	FusionAsync
)

// FusedSubscriber is an optional extension a [Subscriber] may implement.
// On attach, the upstream operator type-asserts for this interface and, if
// present, negotiates a fusion mode via RequestFusion. Fusion eliminates a
// level of per-item allocation and dispatch at asynchronous boundaries by
// giving the downstream direct queue access; see
// [code.hybscloud.com/streamflow/internal/queue] for the SPSC queues used
// on both sides of a fused boundary.
type FusedSubscriber[T any] interface {
	Subscriber[T]

	// RequestFusion negotiates a fusion mode. requested is the mode the
	// caller (usually the downstream operator) would like; the returned
	// mode is what the callee actually supports, which may be
	// FusionNone if fusion is not available here.
	RequestFusion(requested FusionMode) FusionMode
	// Poll retrieves one item when fusion is active. ok is false when no
	// item is currently available; done is true once the fused queue is
	// permanently drained (the upstream terminal has already been
	// observed and the queue is empty).
	Poll() (item T, ok bool, done bool)
	// Size reports the number of items currently queued, for diagnostics
	// and tests. Not load-bearing for correctness.
	Size() int
}
