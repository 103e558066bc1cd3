// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync"

// WithLatestFrom relays main's items combined with the latest value of
// every other source, dropping main items until every other source has
// emitted at least once. Others never contribute to termination except
// through their errors (§4.4).
func WithLatestFrom[T, U, R any](main Publisher[T], combiner func(T, []U) R, others ...Publisher[U]) Publisher[R] {
	return withLatestFromFlow[T, U, R]{main: main, combiner: combiner, others: others}
}

type withLatestFromFlow[T, U, R any] struct {
	main     Publisher[T]
	combiner func(T, []U) R
	others   []Publisher[U]
}

func (f withLatestFromFlow[T, U, R]) Subscribe(sub Subscriber[R]) {
	n := len(f.others)
	c := &withLatestFromCoordinator[T, U, R]{
		down:     sub,
		combiner: f.combiner,
		values:   make([]U, n),
		has:      make([]bool, n),
		otherSubs: make([]Subscription, n),
	}
	f.main.Subscribe(&withLatestFromMainSubscriber[T, U, R]{c: c})
	for i, other := range f.others {
		other.Subscribe(&withLatestFromOtherSubscriber[T, U, R]{c: c, idx: i})
	}
}

type withLatestFromCoordinator[T, U, R any] struct {
	down     Subscriber[R]
	combiner func(T, []U) R

	mu        sync.Mutex
	values    []U
	has       []bool
	otherSubs []Subscription
	mainSub   Subscription
	done      bool
}

func (c *withLatestFromCoordinator[T, U, R]) allHave() bool {
	for _, h := range c.has {
		if !h {
			return false
		}
	}
	return true
}

func (c *withLatestFromCoordinator[T, U, R]) cancelAll() {
	c.mu.Lock()
	main := c.mainSub
	others := append([]Subscription(nil), c.otherSubs...)
	c.mu.Unlock()
	if main != nil {
		main.Cancel()
	}
	for _, s := range others {
		if s != nil {
			s.Cancel()
		}
	}
}

func (c *withLatestFromCoordinator[T, U, R]) finish(err error) {
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

type withLatestFromMainSubscriber[T, U, R any] struct{ c *withLatestFromCoordinator[T, U, R] }

func (s *withLatestFromMainSubscriber[T, U, R]) OnSubscribe(sub Subscription) {
	s.c.mu.Lock()
	s.c.mainSub = sub
	s.c.mu.Unlock()
	s.c.down.OnSubscribe(&withLatestFromSubscription[T, U, R]{c: s.c})
}

func (s *withLatestFromMainSubscriber[T, U, R]) OnNext(item T) {
	c := s.c
	c.mu.Lock()
	ready := c.allHave()
	var snapshot []U
	main := c.mainSub
	if ready {
		snapshot = append([]U(nil), c.values...)
	}
	c.mu.Unlock()
	if !ready {
		if main != nil {
			main.Request(1)
		}
		return
	}
	out, err := callUserFunc2(c.combiner, item, snapshot)
	if err != nil {
		c.cancelAll()
		c.finish(err)
		return
	}
	c.down.OnNext(out)
}

func (s *withLatestFromMainSubscriber[T, U, R]) OnComplete() { s.c.finish(nil) }
func (s *withLatestFromMainSubscriber[T, U, R]) OnError(e error) {
	s.c.cancelAll()
	s.c.finish(e)
}

type withLatestFromOtherSubscriber[T, U, R any] struct {
	c   *withLatestFromCoordinator[T, U, R]
	idx int
}

func (s *withLatestFromOtherSubscriber[T, U, R]) OnSubscribe(sub Subscription) {
	s.c.mu.Lock()
	s.c.otherSubs[s.idx] = sub
	s.c.mu.Unlock()
	sub.Request(Unbounded)
}

func (s *withLatestFromOtherSubscriber[T, U, R]) OnNext(item U) {
	s.c.mu.Lock()
	s.c.values[s.idx] = item
	s.c.has[s.idx] = true
	s.c.mu.Unlock()
}

func (s *withLatestFromOtherSubscriber[T, U, R]) OnComplete() {}
func (s *withLatestFromOtherSubscriber[T, U, R]) OnError(e error) {
	s.c.cancelAll()
	s.c.finish(e)
}

type withLatestFromSubscription[T, U, R any] struct{ c *withLatestFromCoordinator[T, U, R] }

func (s *withLatestFromSubscription[T, U, R]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.mu.Lock()
	main := s.c.mainSub
	s.c.mu.Unlock()
	if main != nil {
		main.Request(n)
	}
}
func (s *withLatestFromSubscription[T, U, R]) Cancel() { s.c.cancelAll() }
