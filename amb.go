// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync/atomic"

// Amb subscribes to every source; whichever delivers any signal first
// (next, complete, or error) wins, and every other source is cancelled.
// After a winner is chosen the coordinator is a pass-through (§4.4).
func Amb[T any](sources ...Publisher[T]) Publisher[T] {
	return ambFlow[T]{sources: sources}
}

type ambFlow[T any] struct{ sources []Publisher[T] }

func (f ambFlow[T]) Subscribe(sub Subscriber[T]) {
	if len(f.sources) == 0 {
		sub.OnSubscribe(cancelledSentinel)
		sub.OnComplete()
		return
	}
	c := &ambCoordinator[T]{down: sub, subs: make([]Subscription, len(f.sources))}
	sub.OnSubscribe(&ambSubscription[T]{c: c})
	for i, src := range f.sources {
		src.Subscribe(&ambInnerSubscriber[T]{c: c, idx: i})
	}
}

type ambCoordinator[T any] struct {
	down     Subscriber[T]
	winner   atomic.Int64 // 0 = undecided, else idx+1
	subs     []Subscription
	deferred atomic.Int64
}

const ambUndecided = 0

func (c *ambCoordinator[T]) tryWin(idx int) bool {
	return c.winner.CompareAndSwap(ambUndecided, int64(idx)+1)
}

func (c *ambCoordinator[T]) isWinner(idx int) bool {
	return c.winner.Load() == int64(idx)+1
}

func (c *ambCoordinator[T]) cancelLosers(winnerIdx int) {
	for i, s := range c.subs {
		if i != winnerIdx && s != nil {
			s.Cancel()
		}
	}
}

// onWin cancels every other source and, the first time a source wins via
// a signal rather than via an already-decided OnSubscribe, forwards
// whatever request downstream had already accumulated onto the winner's
// own subscription — otherwise the winner would never see anything past
// the initial one-item probe request issued while the race was open.
func (c *ambCoordinator[T]) onWin(winnerIdx int) {
	c.cancelLosers(winnerIdx)
	if n := c.deferred.Swap(0); n > 0 {
		if sub := c.subs[winnerIdx]; sub != nil {
			sub.Request(n)
		}
	}
}

type ambInnerSubscriber[T any] struct {
	c   *ambCoordinator[T]
	idx int
}

func (s *ambInnerSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.subs[s.idx] = sub
	if s.c.isWinner(s.idx) {
		if n := s.c.deferred.Swap(0); n > 0 {
			sub.Request(n)
		}
		return
	}
	if s.c.winner.Load() == ambUndecided {
		sub.Request(1)
	}
}

func (s *ambInnerSubscriber[T]) OnNext(item T) {
	won := s.c.tryWin(s.idx)
	if won || s.c.isWinner(s.idx) {
		if won {
			s.c.onWin(s.idx)
		}
		s.c.down.OnNext(item)
	}
}

func (s *ambInnerSubscriber[T]) OnComplete() {
	won := s.c.tryWin(s.idx)
	if won || s.c.isWinner(s.idx) {
		if won {
			s.c.onWin(s.idx)
		}
		s.c.down.OnComplete()
	}
}

func (s *ambInnerSubscriber[T]) OnError(e error) {
	won := s.c.tryWin(s.idx)
	if won || s.c.isWinner(s.idx) {
		if won {
			s.c.onWin(s.idx)
		}
		s.c.down.OnError(e)
	}
}

type ambSubscription[T any] struct{ c *ambCoordinator[T] }

func (s *ambSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	w := s.c.winner.Load()
	if w != ambUndecided {
		if sub := s.c.subs[w-1]; sub != nil {
			sub.Request(n)
		}
		return
	}
	for {
		cur := s.c.deferred.Load()
		next := addRequested(cur, n)
		if s.c.deferred.CompareAndSwap(cur, next) {
			break
		}
	}
}

func (s *ambSubscription[T]) Cancel() {
	for _, sub := range s.c.subs {
		if sub != nil {
			sub.Cancel()
		}
	}
}
