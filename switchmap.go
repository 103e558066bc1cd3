// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync"

// SwitchMap maps each outer item to an inner Publisher, cancelling the
// previously active inner whenever a new one arrives (§4.4
// "Switch-map"). Items from a superseded inner that arrive after
// cancellation are discarded by tagging every inner with a
// monotonically increasing index and only emitting the current one's.
func SwitchMap[T, R any](upstream Publisher[T], f func(T) Publisher[R]) Publisher[R] {
	return switchMapFlow[T, R]{upstream: upstream, f: f}
}

type switchMapFlow[T, R any] struct {
	upstream Publisher[T]
	f        func(T) Publisher[R]
}

func (sm switchMapFlow[T, R]) Subscribe(sub Subscriber[R]) {
	c := &switchMapCoordinator[T, R]{down: sub, f: sm.f}
	sub.OnSubscribe(&switchMapSubscription[T, R]{c: c})
	sm.upstream.Subscribe(&switchMapOuterSubscriber[T, R]{c: c})
}

type switchMapCoordinator[T, R any] struct {
	down      Subscriber[R]
	f         func(T) Publisher[R]
	requested RequestCounter

	mu          sync.Mutex
	outerSub    Subscription
	innerSub    Subscription
	innerIndex  int64
	outerDone   bool
	innerActive bool
	cancelled   bool
	done        bool
}

func (c *switchMapCoordinator[T, R]) cancel() {
	c.mu.Lock()
	c.cancelled = true
	outer, inner := c.outerSub, c.innerSub
	c.mu.Unlock()
	if outer != nil {
		outer.Cancel()
	}
	if inner != nil {
		inner.Cancel()
	}
}

func (c *switchMapCoordinator[T, R]) terminate(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		if err != nil {
			reportLateError(err)
		}
		return
	}
	c.done = true
	c.mu.Unlock()
	if err != nil {
		c.down.OnError(err)
	} else {
		c.down.OnComplete()
	}
}

type switchMapOuterSubscriber[T, R any] struct{ c *switchMapCoordinator[T, R] }

func (s *switchMapOuterSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.c.mu.Lock()
	s.c.outerSub = sub
	s.c.mu.Unlock()
	sub.Request(Unbounded)
}

func (s *switchMapOuterSubscriber[T, R]) OnNext(item T) {
	c := s.c
	inner, err := callUserFunc1(c.f, item)
	if err != nil {
		c.cancel()
		c.terminate(err)
		return
	}
	c.mu.Lock()
	if prev := c.innerSub; prev != nil {
		prev.Cancel()
	}
	c.innerIndex++
	idx := c.innerIndex
	c.innerActive = true
	c.mu.Unlock()
	inner.Subscribe(&switchMapInnerSubscriber[T, R]{c: c, idx: idx})
}

func (s *switchMapOuterSubscriber[T, R]) OnComplete() {
	c := s.c
	c.mu.Lock()
	c.outerDone = true
	active := c.innerActive
	c.mu.Unlock()
	if !active {
		c.terminate(nil)
	}
}

func (s *switchMapOuterSubscriber[T, R]) OnError(e error) { s.c.cancel(); s.c.terminate(e) }

type switchMapInnerSubscriber[T, R any] struct {
	c   *switchMapCoordinator[T, R]
	idx int64
}

func (s *switchMapInnerSubscriber[T, R]) current() bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.idx == s.c.innerIndex
}

func (s *switchMapInnerSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.c.mu.Lock()
	if s.idx != s.c.innerIndex {
		s.c.mu.Unlock()
		sub.Cancel()
		return
	}
	s.c.innerSub = sub
	s.c.mu.Unlock()
	sub.Request(Unbounded)
}

func (s *switchMapInnerSubscriber[T, R]) OnNext(item T) {
	if s.current() {
		s.c.down.OnNext(item)
	}
}

func (s *switchMapInnerSubscriber[T, R]) OnComplete() {
	if !s.current() {
		return
	}
	c := s.c
	c.mu.Lock()
	c.innerActive = false
	outerDone := c.outerDone
	c.mu.Unlock()
	if outerDone {
		c.terminate(nil)
	}
}

func (s *switchMapInnerSubscriber[T, R]) OnError(e error) {
	if s.current() {
		s.c.cancel()
		s.c.terminate(e)
	}
}

type switchMapSubscription[T, R any] struct{ c *switchMapCoordinator[T, R] }

func (s *switchMapSubscription[T, R]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.mu.Lock()
	inner := s.c.innerSub
	s.c.mu.Unlock()
	if inner != nil {
		inner.Request(n)
	}
}
func (s *switchMapSubscription[T, R]) Cancel() { s.c.cancel() }
