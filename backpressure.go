// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/streamflow/internal/queue"
)

// OnBackpressureError cancels upstream and surfaces an [OverflowError]
// the first time upstream outpaces downstream's outstanding request
// (§4.4 ERROR policy).
func OnBackpressureError[T any](upstream Publisher[T]) Publisher[T] {
	return onBackpressureErrorFlow[T]{upstream: upstream}
}

type onBackpressureErrorFlow[T any] struct{ upstream Publisher[T] }

func (f onBackpressureErrorFlow[T]) Subscribe(sub Subscriber[T]) {
	f.upstream.Subscribe(&backpressureErrorSubscriber[T]{down: sub})
}

type backpressureErrorSubscriber[T any] struct {
	down      Subscriber[T]
	sub       Subscription
	requested RequestCounter
	done      bool
}

func (s *backpressureErrorSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(&backpressureCountingSubscription[T]{requested: &s.requested, inner: sub})
}

func (s *backpressureErrorSubscriber[T]) OnNext(item T) {
	if s.done {
		return
	}
	if s.requested.Get() <= 0 {
		s.done = true
		s.sub.Cancel()
		s.down.OnError(NewOverflowError("onBackpressureError"))
		return
	}
	s.requested.Produced(1)
	s.down.OnNext(item)
}

func (s *backpressureErrorSubscriber[T]) OnComplete() {
	if !s.done {
		s.done = true
		s.down.OnComplete()
	}
}
func (s *backpressureErrorSubscriber[T]) OnError(e error) {
	if !s.done {
		s.done = true
		s.down.OnError(e)
	}
}

type backpressureCountingSubscription[T any] struct {
	requested *RequestCounter
	inner     Subscription
}

func (s *backpressureCountingSubscription[T]) Request(n int64) {
	s.requested.Add(n)
	s.inner.Request(n)
}
func (s *backpressureCountingSubscription[T]) Cancel() { s.inner.Cancel() }

// OnBackpressureDrop silently drops any item arriving with no
// outstanding downstream request, invoking onDrop (if non-nil) for each
// one (§4.4 DROP policy).
func OnBackpressureDrop[T any](upstream Publisher[T], onDrop func(T)) Publisher[T] {
	return onBackpressureDropFlow[T]{upstream: upstream, onDrop: onDrop}
}

type onBackpressureDropFlow[T any] struct {
	upstream Publisher[T]
	onDrop   func(T)
}

func (f onBackpressureDropFlow[T]) Subscribe(sub Subscriber[T]) {
	f.upstream.Subscribe(&backpressureDropSubscriber[T]{down: sub, onDrop: f.onDrop})
}

type backpressureDropSubscriber[T any] struct {
	down      Subscriber[T]
	sub       Subscription
	onDrop    func(T)
	requested RequestCounter
}

func (s *backpressureDropSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(&backpressureCountingSubscription[T]{requested: &s.requested, inner: sub})
}

func (s *backpressureDropSubscriber[T]) OnNext(item T) {
	if s.requested.Get() <= 0 {
		if s.onDrop != nil {
			s.onDrop(item)
		}
		return
	}
	s.requested.Produced(1)
	s.down.OnNext(item)
}

func (s *backpressureDropSubscriber[T]) OnComplete()     { s.down.OnComplete() }
func (s *backpressureDropSubscriber[T]) OnError(e error) { s.down.OnError(e) }

// OnBackpressureLatest keeps only the most recent undelivered item,
// overwriting any item still waiting when a newer one arrives (§4.4
// LATEST policy).
func OnBackpressureLatest[T any](upstream Publisher[T]) Publisher[T] {
	return onBackpressureLatestFlow[T]{upstream: upstream}
}

type onBackpressureLatestFlow[T any] struct{ upstream Publisher[T] }

func (f onBackpressureLatestFlow[T]) Subscribe(sub Subscriber[T]) {
	f.upstream.Subscribe(&backpressureLatestSubscriber[T]{down: sub})
}

type backpressureLatestSubscriber[T any] struct {
	down      Subscriber[T]
	sub       Subscription
	requested RequestCounter
	has       bool
	latest    T
}

func (s *backpressureLatestSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(&backpressureCountingSubscription[T]{requested: &s.requested, inner: sub})
}

func (s *backpressureLatestSubscriber[T]) OnNext(item T) {
	if s.requested.Get() <= 0 {
		s.latest = item
		s.has = true
		return
	}
	if s.has {
		s.requested.Produced(1)
		s.down.OnNext(s.latest)
		s.has = false
	}
	s.requested.Produced(1)
	s.down.OnNext(item)
}

func (s *backpressureLatestSubscriber[T]) OnComplete() {
	if s.has && s.requested.Get() > 0 {
		s.requested.Produced(1)
		s.down.OnNext(s.latest)
		s.has = false
	}
	s.down.OnComplete()
}
func (s *backpressureLatestSubscriber[T]) OnError(e error) { s.down.OnError(e) }

// OnBackpressureBuffer buffers every item in an unbounded linked queue
// (§4.4 BUFFER (ALL) policy — the only policy that can exhaust memory)
// and drains it through the §4.3 skeleton whenever downstream requests.
func OnBackpressureBuffer[T any](upstream Publisher[T]) Publisher[T] {
	return onBackpressureBufferFlow[T]{upstream: upstream}
}

type onBackpressureBufferFlow[T any] struct{ upstream Publisher[T] }

func (f onBackpressureBufferFlow[T]) Subscribe(sub Subscriber[T]) {
	q := queue.NewSPSCLinked[T]()
	c := &bufferAllCoordinator[T]{
		down:     sub,
		q:        q,
		staging:  &linkedStagingQueue[T]{q: q},
		upstream: &SubscriptionArbiter{},
	}
	sub.OnSubscribe(&bufferAllSubscription[T]{c: c})
	f.upstream.Subscribe(&bufferAllUpstreamSubscriber[T]{c: c})
}

type bufferAllCoordinator[T any] struct {
	down      Subscriber[T]
	q         *queue.SPSCLinked[T]
	staging   *linkedStagingQueue[T]
	upstream  *SubscriptionArbiter
	requested RequestCounter
	drain     drainState
	terminal  TerminalLatch
	cancelled atomix.Bool
}

func (c *bufferAllCoordinator[T]) isCancelled() bool { return c.cancelled.LoadAcquire() }
func (c *bufferAllCoordinator[T]) clearQueue() {
	c.cancelled.StoreRelease(true)
	c.upstream.Cancel()
}

func (c *bufferAllCoordinator[T]) runDrainLoop() {
	runDrain[T](
		&c.drain,
		c.staging,
		&c.requested,
		&c.terminal,
		c.isCancelled,
		c.clearQueue,
		1,
		func(n int64) { c.upstream.Request(n) },
		c.down.OnNext,
		c.down.OnComplete,
		c.down.OnError,
	)
}

// linkedStagingQueue gives [queue.SPSCLinked] a non-destructive Empty(),
// like the one [stagingQueue] has for its ring, by holding back one
// already-dequeued item.
type linkedStagingQueue[T any] struct {
	q          *queue.SPSCLinked[T]
	pending    T
	hasPending bool
}

func (l *linkedStagingQueue[T]) Dequeue() (T, error) {
	if l.hasPending {
		v := l.pending
		var zero T
		l.pending = zero
		l.hasPending = false
		return v, nil
	}
	return l.q.Dequeue()
}

func (l *linkedStagingQueue[T]) Empty() bool {
	if l.hasPending {
		return false
	}
	v, err := l.q.Dequeue()
	if err != nil {
		return true
	}
	l.pending = v
	l.hasPending = true
	return false
}

type bufferAllUpstreamSubscriber[T any] struct{ c *bufferAllCoordinator[T] }

func (s *bufferAllUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}
func (s *bufferAllUpstreamSubscriber[T]) OnNext(item T) {
	s.c.q.Enqueue(&item)
	s.c.runDrainLoop()
}
func (s *bufferAllUpstreamSubscriber[T]) OnComplete() {
	s.c.terminal.SetComplete()
	s.c.runDrainLoop()
}
func (s *bufferAllUpstreamSubscriber[T]) OnError(e error) {
	s.c.terminal.SetError(e)
	s.c.runDrainLoop()
}

type bufferAllSubscription[T any] struct{ c *bufferAllCoordinator[T] }

func (s *bufferAllSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.runDrainLoop()
}
func (s *bufferAllSubscription[T]) Cancel() { s.c.clearQueue() }
