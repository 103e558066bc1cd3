// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/streamflow/executor"
)

// bufferPendingChunks bounds how many not-yet-delivered []T chunks the
// staging queue holds; it is independent of each chunk's own size.
const bufferPendingChunks = 16

// Buffer collects upstream into non-overlapping []T chunks of at most
// size items each, emitting a chunk (possibly short) once per size items
// or on upstream completion (§4.4; composes the Window skeleton rather
// than duplicating it, collecting instead of sub-publishing).
func Buffer[T any](upstream Publisher[T], size int) Publisher[[]T] {
	if size < 1 {
		size = 1
	}
	return bufferFlow[T]{upstream: upstream, size: int64(size)}
}

type bufferFlow[T any] struct {
	upstream Publisher[T]
	size     int64
}

func (f bufferFlow[T]) Subscribe(sub Subscriber[[]T]) {
	c := newBufferCoordinator[T](sub, f.size)
	sub.OnSubscribe(&bufferSubscription[T]{c: c})
	f.upstream.Subscribe(&bufferUpstreamSubscriber[T]{c: c})
}

// BufferTime collects upstream into a []T chunk per duration window,
// flushing (possibly empty) on every tick.
func BufferTime[T any](upstream Publisher[T], duration time.Duration, target executor.Executor) Publisher[[]T] {
	return bufferTimeFlow[T]{upstream: upstream, duration: duration, target: target}
}

type bufferTimeFlow[T any] struct {
	upstream Publisher[T]
	duration time.Duration
	target   executor.Executor
}

func (f bufferTimeFlow[T]) Subscribe(sub Subscriber[[]T]) {
	c := newBufferCoordinator[T](sub, Unbounded)
	c.worker = f.target.Worker()
	sub.OnSubscribe(&bufferSubscription[T]{c: c})
	c.timer = c.worker.SchedulePeriodic(c.flush, f.duration, f.duration)
	f.upstream.Subscribe(&bufferUpstreamSubscriber[T]{c: c})
}

type bufferCoordinator[T any] struct {
	down     Subscriber[[]T]
	size     int64
	upstream *SubscriptionArbiter
	worker   executor.Worker
	timer    executor.Disposable

	mu      sync.Mutex
	current []T

	staging   *stagingQueue[[]T]
	requested RequestCounter
	drain     drainState
	terminal  TerminalLatch
	cancelled atomix.Bool
}

func newBufferCoordinator[T any](sub Subscriber[[]T], size int64) *bufferCoordinator[T] {
	return &bufferCoordinator[T]{
		down:     sub,
		size:     size,
		upstream: &SubscriptionArbiter{},
		staging:  newStagingQueue[[]T](bufferPendingChunks),
	}
}

func (c *bufferCoordinator[T]) isCancelled() bool { return c.cancelled.LoadAcquire() }
func (c *bufferCoordinator[T]) clearQueue() {
	c.cancelled.StoreRelease(true)
	c.upstream.Cancel()
	if c.timer != nil {
		c.timer.Dispose()
	}
}

func (c *bufferCoordinator[T]) runDrainLoop() {
	runDrain[[]T](
		&c.drain,
		c.staging,
		&c.requested,
		&c.terminal,
		c.isCancelled,
		c.clearQueue,
		bufferPendingChunks,
		func(n int64) { c.upstream.Request(n) },
		c.down.OnNext,
		c.down.OnComplete,
		c.down.OnError,
	)
}

func (c *bufferCoordinator[T]) append(item T) {
	c.mu.Lock()
	c.current = append(c.current, item)
	flush := c.size != Unbounded && int64(len(c.current)) >= c.size
	c.mu.Unlock()
	if flush {
		c.flush()
	}
}

// flush emits the accumulated chunk (even if empty, for the time-based
// variant's regular ticks) and starts a fresh one.
func (c *bufferCoordinator[T]) flush() {
	c.mu.Lock()
	chunk := c.current
	c.current = nil
	c.mu.Unlock()
	if err := c.staging.Offer(chunk); err != nil {
		c.terminal.SetError(NewOverflowError("buffer"))
	}
	c.runDrainLoop()
}

// flushFinal emits only a non-empty trailing chunk on upstream
// termination — a bare tick's empty chunk is still meaningful for
// BufferTime, but a trailing empty chunk on complete/error is not.
func (c *bufferCoordinator[T]) flushFinal() {
	c.mu.Lock()
	chunk := c.current
	c.current = nil
	c.mu.Unlock()
	if len(chunk) > 0 {
		if err := c.staging.Offer(chunk); err != nil {
			c.terminal.SetError(NewOverflowError("buffer"))
		}
	}
}

type bufferUpstreamSubscriber[T any] struct{ c *bufferCoordinator[T] }

func (s *bufferUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}
func (s *bufferUpstreamSubscriber[T]) OnNext(item T) { s.c.append(item) }
func (s *bufferUpstreamSubscriber[T]) OnComplete() {
	s.c.flushFinal()
	if s.c.timer != nil {
		s.c.timer.Dispose()
	}
	s.c.terminal.SetComplete()
	s.c.runDrainLoop()
}
func (s *bufferUpstreamSubscriber[T]) OnError(e error) {
	s.c.flushFinal()
	if s.c.timer != nil {
		s.c.timer.Dispose()
	}
	s.c.terminal.SetError(e)
	s.c.runDrainLoop()
}

type bufferSubscription[T any] struct{ c *bufferCoordinator[T] }

func (s *bufferSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.runDrainLoop()
}
func (s *bufferSubscription[T]) Cancel() { s.c.clearQueue() }
