// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync"

// Zip maintains a bounded queue per source (size prefetch) and emits a
// combined tuple once every source's queue has at least one item,
// consuming one from each (§4.4). Completes when any source completes
// and its queue has been drained empty.
func Zip[T, R any](combiner func([]T) R, prefetch int, sources ...Publisher[T]) Publisher[R] {
	return zipFlow[T, R]{combiner: combiner, prefetch: prefetch, sources: sources}
}

type zipFlow[T, R any] struct {
	combiner func([]T) R
	prefetch int
	sources  []Publisher[T]
}

func (f zipFlow[T, R]) Subscribe(sub Subscriber[R]) {
	n := len(f.sources)
	c := &zipCoordinator[T, R]{
		down:     sub,
		combiner: f.combiner,
		queues:   make([]*stagingQueue[T], n),
		subs:     make([]Subscription, n),
		done:     make([]bool, n),
	}
	for i := range c.queues {
		c.queues[i] = newStagingQueue[T](f.prefetch)
	}
	sub.OnSubscribe(&zipSubscription[T, R]{c: c})
	for i, src := range f.sources {
		src.Subscribe(&zipInnerSubscriber[T, R]{c: c, idx: i, prefetch: f.prefetch})
	}
}

type zipCoordinator[T, R any] struct {
	down      Subscriber[R]
	combiner  func([]T) R
	requested RequestCounter
	drain     drainState
	terminal  TerminalLatch

	mu        sync.Mutex
	queues    []*stagingQueue[T]
	subs      []Subscription
	done      []bool
	cancelled bool
}

func (c *zipCoordinator[T, R]) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *zipCoordinator[T, R]) clearQueues() {
	c.mu.Lock()
	subs := append([]Subscription(nil), c.subs...)
	c.cancelled = true
	c.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			s.Cancel()
		}
	}
}

func (c *zipCoordinator[T, R]) allReady() bool {
	for _, q := range c.queues {
		if q.Empty() {
			return false
		}
	}
	return true
}

func (c *zipCoordinator[T, R]) anyDoneAndEmpty() bool {
	for i, d := range c.done {
		if d && c.queues[i].Empty() {
			return true
		}
	}
	return false
}

type zipQueueAdapter[T, R any] zipCoordinator[T, R]

func (z *zipQueueAdapter[T, R]) Empty() bool {
	c := (*zipCoordinator[T, R])(z)
	if c.allReady() {
		return false
	}
	c.mu.Lock()
	done := c.anyDoneAndEmpty()
	c.mu.Unlock()
	if done {
		c.terminal.SetComplete()
	}
	return true
}

func (z *zipQueueAdapter[T, R]) Dequeue() (R, error) {
	c := (*zipCoordinator[T, R])(z)
	values := make([]T, len(c.queues))
	for i, q := range c.queues {
		v, err := q.Dequeue()
		if err != nil {
			var zero R
			return zero, err
		}
		values[i] = v
		if c.subs[i] != nil {
			c.subs[i].Request(1)
		}
	}
	out, err := callUserFunc1(c.combiner, values)
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

func (c *zipCoordinator[T, R]) runDrainLoop() {
	runDrain[R](
		&c.drain,
		(*zipQueueAdapter[T, R])(c),
		&c.requested,
		&c.terminal,
		c.isCancelled,
		c.clearQueues,
		1,
		func(int64) {},
		c.down.OnNext,
		c.down.OnComplete,
		c.down.OnError,
	)
}

type zipInnerSubscriber[T, R any] struct {
	c        *zipCoordinator[T, R]
	idx      int
	prefetch int
}

func (s *zipInnerSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.c.mu.Lock()
	s.c.subs[s.idx] = sub
	s.c.mu.Unlock()
	sub.Request(int64(s.prefetch))
}

func (s *zipInnerSubscriber[T, R]) OnNext(item T) {
	c := s.c
	c.mu.Lock()
	err := c.queues[s.idx].Offer(item)
	c.mu.Unlock()
	if err != nil {
		c.terminal.SetError(NewOverflowError("zip"))
		c.clearQueues()
		c.runDrainLoop()
		return
	}
	c.runDrainLoop()
}

func (s *zipInnerSubscriber[T, R]) OnComplete() {
	c := s.c
	c.mu.Lock()
	c.done[s.idx] = true
	ready := c.anyDoneAndEmpty()
	c.mu.Unlock()
	if ready {
		c.terminal.SetComplete()
	}
	c.runDrainLoop()
}

func (s *zipInnerSubscriber[T, R]) OnError(e error) {
	s.c.terminal.SetError(e)
	s.c.clearQueues()
	s.c.runDrainLoop()
}

type zipSubscription[T, R any] struct{ c *zipCoordinator[T, R] }

func (s *zipSubscription[T, R]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.runDrainLoop()
}
func (s *zipSubscription[T, R]) Cancel() { s.c.clearQueues() }
