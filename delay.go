// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"time"

	"code.hybscloud.com/streamflow/executor"
)

// Delay schedules every item and the completion signal on a worker from
// target after duration has elapsed. Ordering is preserved because the
// worker is a FIFO trampoline (§4.4). An upstream error is not delayed: it
// is delivered at once, ahead of any items still waiting on their timers.
func Delay[T any](upstream Publisher[T], duration time.Duration, target executor.Executor) Publisher[T] {
	return delayFlow[T]{upstream: upstream, duration: duration, target: target}
}

type delayFlow[T any] struct {
	upstream Publisher[T]
	duration time.Duration
	target   executor.Executor
}

func (f delayFlow[T]) Subscribe(sub Subscriber[T]) {
	worker := f.target.Worker()
	s := &delaySubscriber[T]{down: sub, worker: worker, duration: f.duration, arb: &SubscriptionArbiter{}}
	sub.OnSubscribe(&delaySubscription[T]{s: s})
	f.upstream.Subscribe(s)
}

type delaySubscriber[T any] struct {
	down     Subscriber[T]
	worker   executor.Worker
	duration time.Duration
	arb      *SubscriptionArbiter
}

func (s *delaySubscriber[T]) OnSubscribe(sub Subscription) { s.arb.Set(sub) }

func (s *delaySubscriber[T]) OnNext(item T) {
	s.worker.ScheduleDelayed(func() { s.down.OnNext(item) }, s.duration)
}

func (s *delaySubscriber[T]) OnComplete() {
	s.worker.ScheduleDelayed(func() { s.down.OnComplete(); s.worker.Dispose() }, s.duration)
}

func (s *delaySubscriber[T]) OnError(e error) {
	// Errors are not delayed: the design's error propagation (§7) must not
	// be postponed behind an arbitrary queue of pending item timers.
	s.down.OnError(e)
	s.worker.Dispose()
}

type delaySubscription[T any] struct{ s *delaySubscriber[T] }

func (d *delaySubscription[T]) Request(n int64) { d.s.arb.Request(n) }
func (d *delaySubscription[T]) Cancel() {
	d.s.arb.Cancel()
	d.s.worker.Dispose()
}

// Timeout fails with a [TimeoutError] (or switches to fallback, if non-nil) if no
// item arrives within window of the previous one (or of subscription,
// for the first item). firstWindow may differ from window.
func Timeout[T any](upstream Publisher[T], firstWindow, window time.Duration, target executor.Executor, fallback Publisher[T]) Publisher[T] {
	return timeoutFlow[T]{upstream: upstream, firstWindow: firstWindow, window: window, target: target, fallback: fallback}
}

type timeoutFlow[T any] struct {
	upstream    Publisher[T]
	firstWindow time.Duration
	window      time.Duration
	target      executor.Executor
	fallback    Publisher[T]
}

func (f timeoutFlow[T]) Subscribe(sub Subscriber[T]) {
	worker := f.target.Worker()
	c := &timeoutCoordinator[T]{
		down:     sub,
		worker:   worker,
		window:   f.window,
		fallback: f.fallback,
		upstream: &SubscriptionArbiter{},
		index:    -1,
	}
	sub.OnSubscribe(&timeoutSubscription[T]{c: c})
	c.armTimer(f.firstWindow, -1)
	f.upstream.Subscribe(&timeoutUpstreamSubscriber[T]{c: c})
}

type timeoutCoordinator[T any] struct {
	down       Subscriber[T]
	worker     executor.Worker
	window     time.Duration
	fallback   Publisher[T]
	upstream   *SubscriptionArbiter
	fallbackSub *SubscriptionArbiter
	index      int64
	timer      executor.Disposable
	switched   bool
	requested  RequestCounter
}

func (c *timeoutCoordinator[T]) armTimer(window time.Duration, idx int64) {
	if c.timer != nil {
		c.timer.Dispose()
	}
	c.timer = c.worker.ScheduleDelayed(func() { c.fire(idx) }, window)
}

func (c *timeoutCoordinator[T]) fire(idx int64) {
	if c.switched || idx != c.index {
		return
	}
	c.switched = true
	c.upstream.Cancel()
	if c.fallback != nil {
		c.fallbackSub = &SubscriptionArbiter{}
		c.fallback.Subscribe(&timeoutFallbackSubscriber[T]{down: c.down, arb: c.fallbackSub, requested: &c.requested})
		return
	}
	c.down.OnError(NewTimeoutError(idx))
}

type timeoutUpstreamSubscriber[T any] struct{ c *timeoutCoordinator[T] }

func (s *timeoutUpstreamSubscriber[T]) OnSubscribe(sub Subscription) { s.c.upstream.Set(sub) }

func (s *timeoutUpstreamSubscriber[T]) OnNext(item T) {
	c := s.c
	if c.switched {
		return
	}
	c.index++
	c.armTimer(c.window, c.index)
	c.down.OnNext(item)
}

func (s *timeoutUpstreamSubscriber[T]) OnComplete() {
	if s.c.switched {
		return
	}
	s.c.switched = true
	if s.c.timer != nil {
		s.c.timer.Dispose()
	}
	s.c.down.OnComplete()
}

func (s *timeoutUpstreamSubscriber[T]) OnError(e error) {
	if s.c.switched {
		return
	}
	s.c.switched = true
	if s.c.timer != nil {
		s.c.timer.Dispose()
	}
	s.c.down.OnError(e)
}

type timeoutSubscription[T any] struct{ c *timeoutCoordinator[T] }

func (s *timeoutSubscription[T]) Request(n int64) {
	s.c.requested.Add(n)
	if s.c.switched && s.c.fallbackSub != nil {
		s.c.fallbackSub.Request(n)
		return
	}
	s.c.upstream.Request(n)
}
func (s *timeoutSubscription[T]) Cancel() {
	s.c.upstream.Cancel()
	if s.c.fallbackSub != nil {
		s.c.fallbackSub.Cancel()
	}
	if s.c.timer != nil {
		s.c.timer.Dispose()
	}
}

type timeoutFallbackSubscriber[T any] struct {
	down      Subscriber[T]
	arb       *SubscriptionArbiter
	requested *RequestCounter
}

func (s *timeoutFallbackSubscriber[T]) OnSubscribe(sub Subscription) {
	s.arb.Set(sub)
	if r := s.requested.Get(); r > 0 {
		s.arb.Request(r)
	} else {
		s.arb.Request(1)
	}
}
func (s *timeoutFallbackSubscriber[T]) OnNext(item T)   { s.down.OnNext(item) }
func (s *timeoutFallbackSubscriber[T]) OnComplete()     { s.down.OnComplete() }
func (s *timeoutFallbackSubscriber[T]) OnError(e error) { s.down.OnError(e) }
