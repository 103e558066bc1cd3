// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/streamflow/executor"
)

// ObserveOn hands upstream items off to a worker obtained from target:
// items are written to a bounded queue, a trampoline task is scheduled
// on the worker, and the trampoline runs the §4.3 drain loop there.
// Ordering is preserved because the queue is single-consumer and the
// worker is a single FIFO thread (§4.4).
func ObserveOn[T any](upstream Publisher[T], target executor.Executor, bufferSize int) Publisher[T] {
	return observeOnFlow[T]{upstream: upstream, target: target, bufferSize: bufferSize}
}

type observeOnFlow[T any] struct {
	upstream   Publisher[T]
	target     executor.Executor
	bufferSize int
}

func (f observeOnFlow[T]) Subscribe(sub Subscriber[T]) {
	worker := f.target.Worker()
	size := f.bufferSize
	if size <= 0 {
		size = bufferSize()
	}
	c := &observeOnCoordinator[T]{
		down:       sub,
		worker:     worker,
		upstream:   &SubscriptionArbiter{},
		staging:    newStagingQueue[T](size),
		bufferSize: size,
	}
	sub.OnSubscribe(&observeOnSubscription[T]{c: c})
	f.upstream.Subscribe(&observeOnUpstreamSubscriber[T]{c: c})
}

type observeOnCoordinator[T any] struct {
	down       Subscriber[T]
	worker     executor.Worker
	upstream   *SubscriptionArbiter
	staging    *stagingQueue[T]
	bufferSize int
	requested  RequestCounter
	drain      drainState
	terminal   TerminalLatch
	cancelled  atomix.Bool
}

func (c *observeOnCoordinator[T]) isCancelled() bool { return c.cancelled.LoadAcquire() }

func (c *observeOnCoordinator[T]) clearQueue() {
	c.cancelled.StoreRelease(true)
	c.upstream.Cancel()
	c.worker.Dispose()
}

func (c *observeOnCoordinator[T]) schedule() {
	c.worker.Schedule(c.runDrainLoop)
}

func (c *observeOnCoordinator[T]) runDrainLoop() {
	runDrain[T](
		&c.drain,
		c.staging,
		&c.requested,
		&c.terminal,
		c.isCancelled,
		c.clearQueue,
		int64(max(c.bufferSize, 1)),
		func(n int64) { c.upstream.Request(n) },
		c.down.OnNext,
		func() { c.down.OnComplete(); c.worker.Dispose() },
		func(e error) { c.down.OnError(e); c.worker.Dispose() },
	)
}

type observeOnUpstreamSubscriber[T any] struct{ c *observeOnCoordinator[T] }

func (s *observeOnUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(int64(s.c.bufferSize))
}

func (s *observeOnUpstreamSubscriber[T]) OnNext(item T) {
	if err := s.c.staging.Offer(item); err != nil {
		s.c.terminal.SetError(NewOverflowError("observeOn"))
	}
	s.c.schedule()
}

func (s *observeOnUpstreamSubscriber[T]) OnComplete() {
	s.c.terminal.SetComplete()
	s.c.schedule()
}

func (s *observeOnUpstreamSubscriber[T]) OnError(e error) {
	s.c.terminal.SetError(e)
	s.c.schedule()
}

type observeOnSubscription[T any] struct{ c *observeOnCoordinator[T] }

func (s *observeOnSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.schedule()
}
func (s *observeOnSubscription[T]) Cancel() { s.c.clearQueue() }

// SubscribeOn schedules the call that attaches to upstream on a worker
// from target. If requestOn is true, downstream Request calls are also
// hopped onto that worker — necessary when upstream is
// synchronous-blocking and must not run on the subscribing goroutine
// (§4.4).
func SubscribeOn[T any](upstream Publisher[T], target executor.Executor, requestOn bool) Publisher[T] {
	return subscribeOnFlow[T]{upstream: upstream, target: target, requestOn: requestOn}
}

type subscribeOnFlow[T any] struct {
	upstream  Publisher[T]
	target    executor.Executor
	requestOn bool
}

func (f subscribeOnFlow[T]) Subscribe(sub Subscriber[T]) {
	worker := f.target.Worker()
	arb := &SubscriptionArbiter{}
	down := &subscribeOnSubscriber[T]{down: sub, arb: arb, worker: worker, requestOn: f.requestOn}
	sub.OnSubscribe(&subscribeOnSubscription[T]{s: down})
	worker.Schedule(func() { f.upstream.Subscribe(down) })
}

type subscribeOnSubscriber[T any] struct {
	down      Subscriber[T]
	arb       *SubscriptionArbiter
	worker    executor.Worker
	requestOn bool
}

func (s *subscribeOnSubscriber[T]) OnSubscribe(sub Subscription) { s.arb.Set(sub) }
func (s *subscribeOnSubscriber[T]) OnNext(item T)                { s.down.OnNext(item) }
func (s *subscribeOnSubscriber[T]) OnComplete()                  { s.down.OnComplete(); s.worker.Dispose() }
func (s *subscribeOnSubscriber[T]) OnError(e error)              { s.down.OnError(e); s.worker.Dispose() }

type subscribeOnSubscription[T any] struct{ s *subscribeOnSubscriber[T] }

func (s *subscribeOnSubscription[T]) Request(n int64) {
	if s.s.requestOn {
		s.s.worker.Schedule(func() { s.s.arb.Request(n) })
		return
	}
	s.s.arb.Request(n)
}
func (s *subscribeOnSubscription[T]) Cancel() { s.s.arb.Cancel() }
