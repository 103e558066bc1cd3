// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync"

// CombineLatest maintains the latest value from every source and
// invokes combiner whenever any source emits, once all sources have
// emitted at least once (§4.4). Completes when any source completes
// without ever having emitted, or once every source has completed.
func CombineLatest[T, R any](combiner func([]T) R, prefetch int, sources ...Publisher[T]) Publisher[R] {
	return combineLatestFlow[T, R]{combiner: combiner, prefetch: prefetch, sources: sources}
}

type combineLatestFlow[T, R any] struct {
	combiner func([]T) R
	prefetch int
	sources  []Publisher[T]
}

func (f combineLatestFlow[T, R]) Subscribe(sub Subscriber[R]) {
	n := len(f.sources)
	c := &combineLatestCoordinator[T, R]{
		down:     sub,
		combiner: f.combiner,
		values:   make([]T, n),
		has:      make([]bool, n),
		done:     make([]bool, n),
		subs:     make([]Subscription, n),
	}
	sub.OnSubscribe(&combineLatestSubscription[T, R]{c: c})
	for i, src := range f.sources {
		src.Subscribe(&combineLatestInnerSubscriber[T, R]{c: c, idx: i, prefetch: f.prefetch})
	}
}

type combineLatestCoordinator[T, R any] struct {
	down      Subscriber[R]
	combiner  func([]T) R
	requested RequestCounter

	mu        sync.Mutex
	values    []T
	has       []bool
	done      []bool
	subs      []Subscription
	haveAll   bool
	completed bool
	cancelled bool
}

func (c *combineLatestCoordinator[T, R]) allHave() bool {
	for _, h := range c.has {
		if !h {
			return false
		}
	}
	return true
}

func (c *combineLatestCoordinator[T, R]) allDone() bool {
	for _, d := range c.done {
		if !d {
			return false
		}
	}
	return true
}

func (c *combineLatestCoordinator[T, R]) cancel() {
	c.mu.Lock()
	c.cancelled = true
	subs := append([]Subscription(nil), c.subs...)
	c.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			s.Cancel()
		}
	}
}

func (c *combineLatestCoordinator[T, R]) finish(err error) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	c.completed = true
	c.mu.Unlock()
	if err != nil {
		c.down.OnError(err)
	} else {
		c.down.OnComplete()
	}
}

type combineLatestInnerSubscriber[T, R any] struct {
	c        *combineLatestCoordinator[T, R]
	idx      int
	prefetch int
}

func (s *combineLatestInnerSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.c.mu.Lock()
	s.c.subs[s.idx] = sub
	s.c.mu.Unlock()
	sub.Request(int64(s.prefetch))
}

func (s *combineLatestInnerSubscriber[T, R]) OnNext(item T) {
	c := s.c
	c.mu.Lock()
	c.values[s.idx] = item
	c.has[s.idx] = true
	ready := c.allHave()
	var snapshot []T
	if ready {
		snapshot = append([]T(nil), c.values...)
	}
	c.mu.Unlock()
	if ready {
		out, err := callUserFunc1(c.combiner, snapshot)
		if err != nil {
			c.cancel()
			c.finish(err)
			return
		}
		if c.requested.Get() > 0 {
			c.requested.Produced(1)
			c.down.OnNext(out)
		}
	}
	if s.c.subs[s.idx] != nil {
		s.c.subs[s.idx].Request(1)
	}
}

func (s *combineLatestInnerSubscriber[T, R]) OnComplete() {
	c := s.c
	c.mu.Lock()
	hadValue := c.has[s.idx]
	c.done[s.idx] = true
	allDone := c.allDone()
	c.mu.Unlock()
	if !hadValue || allDone {
		c.finish(nil)
	}
}

func (s *combineLatestInnerSubscriber[T, R]) OnError(e error) {
	s.c.cancel()
	s.c.finish(e)
}

type combineLatestSubscription[T, R any] struct{ c *combineLatestCoordinator[T, R] }

func (s *combineLatestSubscription[T, R]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
}
func (s *combineLatestSubscription[T, R]) Cancel() { s.c.cancel() }
