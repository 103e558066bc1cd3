// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"
	"time"

	"code.hybscloud.com/streamflow/executor"
)

// throttleSubscription is the shared Subscription shape for Sample,
// Debounce, and the Throttle variants: downstream's requested count only
// gates whether a tick/window emits, so Request just accumulates it and
// Cancel defers to the operator's own teardown.
type throttleSubscription[T any] struct {
	requested *RequestCounter
	cancel    func()
}

func (s *throttleSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.requested.Add(n)
}
func (s *throttleSubscription[T]) Cancel() { s.cancel() }

// Sample emits upstream's most recent item every time sampler emits,
// dropping every other upstream item; a sample tick with nothing new
// since the last one emits nothing (§4.4).
func Sample[T, U any](upstream Publisher[T], sampler Publisher[U]) Publisher[T] {
	return sampleFlow[T, U]{upstream: upstream, sampler: sampler}
}

type sampleFlow[T, U any] struct {
	upstream Publisher[T]
	sampler  Publisher[U]
}

func (f sampleFlow[T, U]) Subscribe(sub Subscriber[T]) {
	c := &sampleCoordinator[T, U]{down: sub, upstream: &SubscriptionArbiter{}, sampler: &SubscriptionArbiter{}}
	sub.OnSubscribe(&throttleSubscription[T]{requested: &c.requested, cancel: c.cancel})
	f.upstream.Subscribe(&sampleUpstreamSubscriber[T, U]{c: c})
	f.sampler.Subscribe(&sampleTickSubscriber[T, U]{c: c})
}

type sampleCoordinator[T, U any] struct {
	down      Subscriber[T]
	upstream  *SubscriptionArbiter
	sampler   *SubscriptionArbiter
	requested RequestCounter

	mu        sync.Mutex
	latest    T
	hasLatest bool
	done      bool
}

func (c *sampleCoordinator[T, U]) finish(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()
	c.upstream.Cancel()
	c.sampler.Cancel()
	if err != nil {
		c.down.OnError(err)
	} else {
		c.down.OnComplete()
	}
}

func (c *sampleCoordinator[T, U]) cancel() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()
	c.upstream.Cancel()
	c.sampler.Cancel()
}

type sampleUpstreamSubscriber[T, U any] struct{ c *sampleCoordinator[T, U] }

func (s *sampleUpstreamSubscriber[T, U]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}
func (s *sampleUpstreamSubscriber[T, U]) OnNext(item T) {
	c := s.c
	c.mu.Lock()
	c.latest = item
	c.hasLatest = true
	c.mu.Unlock()
}
func (s *sampleUpstreamSubscriber[T, U]) OnComplete()     { s.c.finish(nil) }
func (s *sampleUpstreamSubscriber[T, U]) OnError(e error) { s.c.finish(e) }

type sampleTickSubscriber[T, U any] struct{ c *sampleCoordinator[T, U] }

func (s *sampleTickSubscriber[T, U]) OnSubscribe(sub Subscription) {
	s.c.sampler.Set(sub)
	s.c.sampler.Request(Unbounded)
}
func (s *sampleTickSubscriber[T, U]) OnNext(_ U) {
	c := s.c
	c.mu.Lock()
	if !c.hasLatest {
		c.mu.Unlock()
		return
	}
	v := c.latest
	c.hasLatest = false
	ready := c.requested.Get() > 0
	c.mu.Unlock()
	if !ready {
		return
	}
	c.requested.Produced(1)
	c.down.OnNext(v)
}
func (s *sampleTickSubscriber[T, U]) OnComplete()     { s.c.finish(nil) }
func (s *sampleTickSubscriber[T, U]) OnError(e error) { s.c.finish(e) }

// Debounce emits an item only after duration has elapsed with no further
// upstream item; every superseded item is dropped, and a still-pending
// item is flushed immediately on upstream completion (§4.4).
func Debounce[T any](upstream Publisher[T], duration time.Duration, target executor.Executor) Publisher[T] {
	return debounceFlow[T]{upstream: upstream, duration: duration, target: target}
}

type debounceFlow[T any] struct {
	upstream Publisher[T]
	duration time.Duration
	target   executor.Executor
}

func (f debounceFlow[T]) Subscribe(sub Subscriber[T]) {
	worker := f.target.Worker()
	c := &debounceCoordinator[T]{down: sub, worker: worker, duration: f.duration, upstream: &SubscriptionArbiter{}}
	sub.OnSubscribe(&throttleSubscription[T]{requested: &c.requested, cancel: c.cancel})
	f.upstream.Subscribe(&debounceUpstreamSubscriber[T]{c: c})
}

type debounceCoordinator[T any] struct {
	down      Subscriber[T]
	worker    executor.Worker
	duration  time.Duration
	upstream  *SubscriptionArbiter
	requested RequestCounter

	mu         sync.Mutex
	pending    T
	hasPending bool
	index      int64
	timer      executor.Disposable
	done       bool
}

func (c *debounceCoordinator[T]) armTimer(idx int64) {
	if c.timer != nil {
		c.timer.Dispose()
	}
	c.timer = c.worker.ScheduleDelayed(func() { c.fire(idx) }, c.duration)
}

func (c *debounceCoordinator[T]) fire(idx int64) {
	c.mu.Lock()
	if c.done || idx != c.index || !c.hasPending {
		c.mu.Unlock()
		return
	}
	v := c.pending
	c.hasPending = false
	ready := c.requested.Get() > 0
	c.mu.Unlock()
	if !ready {
		return
	}
	c.requested.Produced(1)
	c.down.OnNext(v)
}

func (c *debounceCoordinator[T]) finish(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	if c.timer != nil {
		c.timer.Dispose()
	}
	c.mu.Unlock()
	if err != nil {
		c.down.OnError(err)
	} else {
		c.down.OnComplete()
	}
	c.worker.Dispose()
}

func (c *debounceCoordinator[T]) cancel() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	if c.timer != nil {
		c.timer.Dispose()
	}
	c.mu.Unlock()
	c.upstream.Cancel()
	c.worker.Dispose()
}

type debounceUpstreamSubscriber[T any] struct{ c *debounceCoordinator[T] }

func (s *debounceUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}
func (s *debounceUpstreamSubscriber[T]) OnNext(item T) {
	c := s.c
	c.mu.Lock()
	c.pending = item
	c.hasPending = true
	c.index++
	idx := c.index
	c.mu.Unlock()
	c.armTimer(idx)
}
func (s *debounceUpstreamSubscriber[T]) OnComplete() {
	c := s.c
	c.mu.Lock()
	v := c.pending
	ready := c.hasPending && c.requested.Get() > 0
	c.hasPending = false
	c.mu.Unlock()
	if ready {
		c.requested.Produced(1)
		c.down.OnNext(v)
	}
	c.finish(nil)
}
func (s *debounceUpstreamSubscriber[T]) OnError(e error) { s.c.finish(e) }

// ThrottleFirst emits the first item in each duration window and drops
// every other item that arrives before the window ends (§4.4).
func ThrottleFirst[T any](upstream Publisher[T], duration time.Duration, target executor.Executor) Publisher[T] {
	return throttleFirstFlow[T]{upstream: upstream, duration: duration, target: target}
}

type throttleFirstFlow[T any] struct {
	upstream Publisher[T]
	duration time.Duration
	target   executor.Executor
}

func (f throttleFirstFlow[T]) Subscribe(sub Subscriber[T]) {
	worker := f.target.Worker()
	c := &throttleFirstCoordinator[T]{down: sub, worker: worker, duration: f.duration, upstream: &SubscriptionArbiter{}}
	sub.OnSubscribe(&throttleSubscription[T]{requested: &c.requested, cancel: c.cancel})
	f.upstream.Subscribe(&throttleFirstUpstreamSubscriber[T]{c: c})
}

type throttleFirstCoordinator[T any] struct {
	down      Subscriber[T]
	worker    executor.Worker
	duration  time.Duration
	upstream  *SubscriptionArbiter
	requested RequestCounter

	mu      sync.Mutex
	cooling bool
	done    bool
}

func (c *throttleFirstCoordinator[T]) endCooldown() {
	c.mu.Lock()
	c.cooling = false
	c.mu.Unlock()
}

func (c *throttleFirstCoordinator[T]) finish(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()
	if err != nil {
		c.down.OnError(err)
	} else {
		c.down.OnComplete()
	}
	c.worker.Dispose()
}

func (c *throttleFirstCoordinator[T]) cancel() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()
	c.upstream.Cancel()
	c.worker.Dispose()
}

type throttleFirstUpstreamSubscriber[T any] struct{ c *throttleFirstCoordinator[T] }

func (s *throttleFirstUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}
func (s *throttleFirstUpstreamSubscriber[T]) OnNext(item T) {
	c := s.c
	c.mu.Lock()
	if c.cooling {
		c.mu.Unlock()
		return
	}
	c.cooling = true
	ready := c.requested.Get() > 0
	c.mu.Unlock()
	c.worker.ScheduleDelayed(c.endCooldown, c.duration)
	if !ready {
		return
	}
	c.requested.Produced(1)
	c.down.OnNext(item)
}
func (s *throttleFirstUpstreamSubscriber[T]) OnComplete()     { s.c.finish(nil) }
func (s *throttleFirstUpstreamSubscriber[T]) OnError(e error) { s.c.finish(e) }

// ThrottleLast emits the most recent item seen in each duration window,
// on every tick, dropping everything else (§4.4).
func ThrottleLast[T any](upstream Publisher[T], duration time.Duration, target executor.Executor) Publisher[T] {
	return throttleLastFlow[T]{upstream: upstream, duration: duration, target: target}
}

type throttleLastFlow[T any] struct {
	upstream Publisher[T]
	duration time.Duration
	target   executor.Executor
}

func (f throttleLastFlow[T]) Subscribe(sub Subscriber[T]) {
	worker := f.target.Worker()
	c := &throttleLastCoordinator[T]{down: sub, worker: worker, upstream: &SubscriptionArbiter{}}
	sub.OnSubscribe(&throttleSubscription[T]{requested: &c.requested, cancel: c.cancel})
	c.timer = worker.SchedulePeriodic(c.tick, f.duration, f.duration)
	f.upstream.Subscribe(&throttleLastUpstreamSubscriber[T]{c: c})
}

type throttleLastCoordinator[T any] struct {
	down      Subscriber[T]
	worker    executor.Worker
	upstream  *SubscriptionArbiter
	timer     executor.Disposable
	requested RequestCounter

	mu        sync.Mutex
	latest    T
	hasLatest bool
	done      bool
}

func (c *throttleLastCoordinator[T]) tick() {
	c.mu.Lock()
	if c.done || !c.hasLatest {
		c.mu.Unlock()
		return
	}
	v := c.latest
	c.hasLatest = false
	ready := c.requested.Get() > 0
	c.mu.Unlock()
	if !ready {
		return
	}
	c.requested.Produced(1)
	c.down.OnNext(v)
}

func (c *throttleLastCoordinator[T]) finish(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()
	if c.timer != nil {
		c.timer.Dispose()
	}
	if err != nil {
		c.down.OnError(err)
	} else {
		c.down.OnComplete()
	}
	c.worker.Dispose()
}

func (c *throttleLastCoordinator[T]) cancel() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()
	if c.timer != nil {
		c.timer.Dispose()
	}
	c.upstream.Cancel()
	c.worker.Dispose()
}

type throttleLastUpstreamSubscriber[T any] struct{ c *throttleLastCoordinator[T] }

func (s *throttleLastUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}
func (s *throttleLastUpstreamSubscriber[T]) OnNext(item T) {
	c := s.c
	c.mu.Lock()
	c.latest = item
	c.hasLatest = true
	c.mu.Unlock()
}
func (s *throttleLastUpstreamSubscriber[T]) OnComplete()     { s.c.finish(nil) }
func (s *throttleLastUpstreamSubscriber[T]) OnError(e error) { s.c.finish(e) }
