// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// DefaultIfEmpty emits value and completes if upstream completes having
// emitted nothing; an upstream that emits at least one item passes through
// unchanged.
func DefaultIfEmpty[T any](upstream Publisher[T], value T) Publisher[T] {
	return defaultIfEmptyFlow[T]{upstream: upstream, value: value}
}

type defaultIfEmptyFlow[T any] struct {
	upstream Publisher[T]
	value    T
}

func (f defaultIfEmptyFlow[T]) Subscribe(sub Subscriber[T]) {
	c := &defaultIfEmptyCoordinator[T]{down: sub, value: f.value}
	sub.OnSubscribe(&defaultIfEmptySubscription[T]{c: c})
	f.upstream.Subscribe(&defaultIfEmptyUpstreamSubscriber[T]{c: c})
}

type defaultIfEmptyCoordinator[T any] struct {
	down  Subscriber[T]
	value T
	sub   Subscription

	mu           sync.Mutex
	sawItem      bool
	upstreamDone bool
	delivered    bool

	requested RequestCounter
	cancelled atomix.Bool
}

// tryDeliver emits the default value only once both upstream has completed
// empty-handed and downstream has an outstanding request — whichever of
// the two arrives second triggers delivery.
func (c *defaultIfEmptyCoordinator[T]) tryDeliver() {
	if c.cancelled.LoadAcquire() {
		return
	}
	c.mu.Lock()
	if c.delivered || !c.upstreamDone || c.sawItem {
		c.mu.Unlock()
		return
	}
	if c.requested.Get() <= 0 {
		c.mu.Unlock()
		return
	}
	c.delivered = true
	c.mu.Unlock()
	c.requested.Produced(1)
	c.down.OnNext(c.value)
	c.down.OnComplete()
}

type defaultIfEmptyUpstreamSubscriber[T any] struct{ c *defaultIfEmptyCoordinator[T] }

func (s *defaultIfEmptyUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.mu.Lock()
	s.c.sub = sub
	s.c.mu.Unlock()
	if r := s.c.requested.Get(); r > 0 {
		sub.Request(r)
	}
}
func (s *defaultIfEmptyUpstreamSubscriber[T]) OnNext(item T) {
	s.c.mu.Lock()
	s.c.sawItem = true
	s.c.mu.Unlock()
	s.c.requested.Produced(1)
	s.c.down.OnNext(item)
}
func (s *defaultIfEmptyUpstreamSubscriber[T]) OnComplete() {
	s.c.mu.Lock()
	s.c.upstreamDone = true
	s.c.mu.Unlock()
	if s.c.sawItem {
		s.c.down.OnComplete()
		return
	}
	s.c.tryDeliver()
}
func (s *defaultIfEmptyUpstreamSubscriber[T]) OnError(e error) { s.c.down.OnError(e) }

type defaultIfEmptySubscription[T any] struct{ c *defaultIfEmptyCoordinator[T] }

func (s *defaultIfEmptySubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.mu.Lock()
	sub := s.c.sub
	s.c.mu.Unlock()
	if sub != nil {
		sub.Request(n)
	}
	s.c.tryDeliver()
}
func (s *defaultIfEmptySubscription[T]) Cancel() {
	s.c.cancelled.StoreRelease(true)
	s.c.mu.Lock()
	sub := s.c.sub
	s.c.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// SwitchIfEmpty subscribes to alternate instead of completing if upstream
// completes having emitted nothing; an upstream that emits at least one
// item passes through unchanged and alternate is never subscribed to.
func SwitchIfEmpty[T any](upstream Publisher[T], alternate Publisher[T]) Publisher[T] {
	return switchIfEmptyFlow[T]{upstream: upstream, alternate: alternate}
}

type switchIfEmptyFlow[T any] struct {
	upstream  Publisher[T]
	alternate Publisher[T]
}

func (f switchIfEmptyFlow[T]) Subscribe(sub Subscriber[T]) {
	c := &switchIfEmptyCoordinator[T]{down: sub, alternate: f.alternate}
	c.mainArb.Store(&SubscriptionArbiter{})
	sub.OnSubscribe(&switchIfEmptySubscription[T]{c: c})
	f.upstream.Subscribe(&switchIfEmptyMainSubscriber[T]{c: c})
}

// switchIfEmptyCoordinator routes requests to whichever of main or
// alternate is currently active. main and alternate each get their own
// arbiter, allocated fresh when alternate is subscribed to, since an
// arbiter accepts only the first subscription ever Set into it.
type switchIfEmptyCoordinator[T any] struct {
	down      Subscriber[T]
	alternate Publisher[T]

	mainArb atomic.Pointer[SubscriptionArbiter]
	altArb  atomic.Pointer[SubscriptionArbiter]

	mu       sync.Mutex
	switched bool
	sawItem  bool

	requested RequestCounter
	cancelled atomix.Bool
}

func (c *switchIfEmptyCoordinator[T]) activeArb() *SubscriptionArbiter {
	c.mu.Lock()
	switched := c.switched
	c.mu.Unlock()
	if switched {
		return c.altArb.Load()
	}
	return c.mainArb.Load()
}

func (c *switchIfEmptyCoordinator[T]) switchToAlternate() {
	if c.cancelled.LoadAcquire() {
		return
	}
	c.mu.Lock()
	if c.switched || c.sawItem {
		c.mu.Unlock()
		return
	}
	arb := &SubscriptionArbiter{}
	c.altArb.Store(arb)
	c.switched = true
	c.mu.Unlock()
	c.alternate.Subscribe(&switchIfEmptyAltSubscriber[T]{c: c})
}

type switchIfEmptyMainSubscriber[T any] struct{ c *switchIfEmptyCoordinator[T] }

func (s *switchIfEmptyMainSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.mainArb.Load().Set(sub)
	if r := s.c.requested.Get(); r > 0 {
		sub.Request(r)
	}
}
func (s *switchIfEmptyMainSubscriber[T]) OnNext(item T) {
	s.c.mu.Lock()
	s.c.sawItem = true
	s.c.mu.Unlock()
	s.c.requested.Produced(1)
	s.c.down.OnNext(item)
}
func (s *switchIfEmptyMainSubscriber[T]) OnComplete() {
	s.c.mu.Lock()
	empty := !s.c.sawItem
	s.c.mu.Unlock()
	if empty {
		s.c.switchToAlternate()
		return
	}
	s.c.down.OnComplete()
}
func (s *switchIfEmptyMainSubscriber[T]) OnError(e error) { s.c.down.OnError(e) }

type switchIfEmptyAltSubscriber[T any] struct{ c *switchIfEmptyCoordinator[T] }

func (s *switchIfEmptyAltSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.altArb.Load().Set(sub)
	if r := s.c.requested.Get(); r > 0 {
		sub.Request(r)
	}
}
func (s *switchIfEmptyAltSubscriber[T]) OnNext(item T) {
	s.c.requested.Produced(1)
	s.c.down.OnNext(item)
}
func (s *switchIfEmptyAltSubscriber[T]) OnComplete()     { s.c.down.OnComplete() }
func (s *switchIfEmptyAltSubscriber[T]) OnError(e error) { s.c.down.OnError(e) }

type switchIfEmptySubscription[T any] struct{ c *switchIfEmptyCoordinator[T] }

func (s *switchIfEmptySubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.activeArb().Request(n)
}
func (s *switchIfEmptySubscription[T]) Cancel() {
	s.c.cancelled.StoreRelease(true)
	s.c.mainArb.Load().Cancel()
	if alt := s.c.altArb.Load(); alt != nil {
		alt.Cancel()
	}
}

// FlatMapEnumerable maps each upstream item to a slice of results and
// flattens the slices downstream, composing FlatMap and FromSlice rather
// than duplicating their merge-and-backpressure machinery.
func FlatMapEnumerable[T, R any](upstream Publisher[T], f func(T) []R, bufferSize int) Publisher[R] {
	return FlatMap(upstream, func(item T) Publisher[R] {
		out, err := callUserFunc1(f, item)
		if err != nil {
			return Error[R](err)
		}
		return FromSlice(out)
	}, bufferSize, false)
}
