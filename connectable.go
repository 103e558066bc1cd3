// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/streamflow/internal/queue"
)

// ConnectableFlowable adapts upstream into a hot source that does not
// subscribe to it until Connect is called (or the k-th subscriber attaches,
// via AutoConnect): every downstream subscriber shares that single
// upstream subscription, broadcast through an internal [DirectProcessor].
type ConnectableFlowable[T any] struct {
	upstream  Publisher[T]
	processor *DirectProcessor[T]

	mu        sync.Mutex
	connected bool
	arb       *SubscriptionArbiter
}

// Publish wraps upstream as a ConnectableFlowable.
func Publish[T any](upstream Publisher[T]) *ConnectableFlowable[T] {
	return &ConnectableFlowable[T]{upstream: upstream, processor: NewDirectProcessor[T]()}
}

// Subscribe attaches sub to the shared broadcast; it does not, by itself,
// trigger the upstream subscription.
func (c *ConnectableFlowable[T]) Subscribe(sub Subscriber[T]) { c.processor.Subscribe(sub) }

// Connect subscribes to upstream the first time it is called; the returned
// [Subscription]'s Cancel disconnects. Every later call, including one made
// after that Subscription was cancelled, returns the same Subscription and
// does not subscribe again.
func (c *ConnectableFlowable[T]) Connect() Subscription {
	c.mu.Lock()
	if c.connected {
		arb := c.arb
		c.mu.Unlock()
		return arb
	}
	c.connected = true
	c.arb = &SubscriptionArbiter{}
	arb := c.arb
	c.mu.Unlock()

	c.upstream.Subscribe(&connectableUpstreamSubscriber[T]{processor: c.processor, arb: arb})
	return arb
}

type connectableUpstreamSubscriber[T any] struct {
	processor *DirectProcessor[T]
	arb       *SubscriptionArbiter
}

func (s *connectableUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.arb.Set(sub)
	sub.Request(Unbounded)
}
func (s *connectableUpstreamSubscriber[T]) OnNext(item T)   { s.processor.OnNext(item) }
func (s *connectableUpstreamSubscriber[T]) OnComplete()     { s.processor.OnComplete() }
func (s *connectableUpstreamSubscriber[T]) OnError(e error) { s.processor.OnError(e) }

// AutoConnect arranges for c to Connect once the k-th subscriber attaches
// (k<1 behaves as k=1, connecting on the first). Subsequent subscribers
// beyond the k-th simply join the broadcast already under way.
func (c *ConnectableFlowable[T]) AutoConnect(k int) Publisher[T] {
	if k < 1 {
		k = 1
	}
	return &autoConnectFlow[T]{c: c, k: int64(k)}
}

type autoConnectFlow[T any] struct {
	c *ConnectableFlowable[T]
	k int64

	seen atomic.Int64
}

func (f *autoConnectFlow[T]) Subscribe(sub Subscriber[T]) {
	f.c.Subscribe(sub)
	if f.seen.Add(1) == f.k {
		f.c.Connect()
	}
}

// refcountSlotCapacity bounds the free-index pool Refcount hands out to
// track concurrently attached subscribers; attaching past this bound
// surfaces an [OverflowError] to that subscriber rather than growing the
// pool, since a fixed-capacity compact queue is the whole point of this
// design (§11's domain-stack mapping for MPMCCompactIndirect).
const refcountSlotCapacity = 4096

// Refcount subscribes source's upstream on the first downstream attach and
// disconnects it when the last downstream cancels; reference counting is
// atomic. Per subscriber free-index bookkeeping — needed only so each
// cancellation knows when it is the last one — is tracked through an
// [queue.MPMCCompactIndirect] free-index pool rather than a growing slice,
// keeping per-slot overhead to the 8 bytes that queue already guarantees.
func Refcount[T any](source *ConnectableFlowable[T]) Publisher[T] {
	r := &refcountFlow[T]{source: source, free: queue.NewMPMCCompactIndirect(refcountSlotCapacity)}
	for i := 0; i < refcountSlotCapacity; i++ {
		_ = r.free.Enqueue(uintptr(i))
	}
	return r
}

type refcountFlow[T any] struct {
	source *ConnectableFlowable[T]
	free   *queue.MPMCCompactIndirect

	mu    sync.Mutex
	count int64
	conn  Subscription
}

func (r *refcountFlow[T]) Subscribe(sub Subscriber[T]) {
	slot, err := r.free.Dequeue()
	if err != nil {
		sub.OnSubscribe(cancelledSentinel)
		sub.OnError(NewOverflowError("refcount"))
		return
	}

	r.mu.Lock()
	r.count++
	if r.count == 1 {
		r.conn = r.source.Connect()
	}
	r.mu.Unlock()

	r.source.Subscribe(&refcountSubscriber[T]{r: r, down: sub, slot: slot})
}

func (r *refcountFlow[T]) release(slot uintptr) {
	r.mu.Lock()
	r.count--
	last := r.count == 0
	conn := r.conn
	if last {
		r.conn = nil
	}
	r.mu.Unlock()
	_ = r.free.Enqueue(slot)
	if last && conn != nil {
		conn.Cancel()
	}
}

type refcountSubscriber[T any] struct {
	r    *refcountFlow[T]
	down Subscriber[T]
	slot uintptr
}

func (s *refcountSubscriber[T]) OnSubscribe(sub Subscription) {
	s.down.OnSubscribe(&refcountSubscription[T]{r: s.r, inner: sub, slot: s.slot})
}
func (s *refcountSubscriber[T]) OnNext(item T)   { s.down.OnNext(item) }
func (s *refcountSubscriber[T]) OnComplete()     { s.down.OnComplete() }
func (s *refcountSubscriber[T]) OnError(e error) { s.down.OnError(e) }

type refcountSubscription[T any] struct {
	r     *refcountFlow[T]
	inner Subscription
	slot  uintptr
	done  atomic.Bool
}

func (s *refcountSubscription[T]) Request(n int64) { s.inner.Request(n) }
func (s *refcountSubscription[T]) Cancel() {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.inner.Cancel()
	s.r.release(s.slot)
}
