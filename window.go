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

// Window re-chunks upstream into non-overlapping Publisher[T] windows of
// at most size items each, delivered through an outer Publisher[Publisher[T]].
func Window[T any](upstream Publisher[T], size int64, bufferSize int) Publisher[Publisher[T]] {
	if size < 1 {
		size = 1
	}
	if bufferSize < 1 {
		bufferSize = int(min(size, 4096))
	}
	return windowFlow[T]{upstream: upstream, size: size, bufferSize: bufferSize}
}

type windowFlow[T any] struct {
	upstream   Publisher[T]
	size       int64
	bufferSize int
}

func (f windowFlow[T]) Subscribe(sub Subscriber[Publisher[T]]) {
	c := newWindowCoordinator[T](sub, f.size, f.bufferSize)
	sub.OnSubscribe(&windowOuterSubscription[T]{c: c})
	f.upstream.Subscribe(&windowUpstreamSubscriber[T]{c: c})
}

// WindowTime re-chunks upstream by wall-clock time: a new window opens
// every duration, regardless of how many items (if any) the previous one
// held, and the first window opens at subscription time.
func WindowTime[T any](upstream Publisher[T], duration time.Duration, target executor.Executor, bufferSize int) Publisher[Publisher[T]] {
	if bufferSize < 1 {
		bufferSize = 256
	}
	return windowTimeFlow[T]{upstream: upstream, duration: duration, target: target, bufferSize: bufferSize}
}

type windowTimeFlow[T any] struct {
	upstream   Publisher[T]
	duration   time.Duration
	target     executor.Executor
	bufferSize int
}

func (f windowTimeFlow[T]) Subscribe(sub Subscriber[Publisher[T]]) {
	c := newWindowCoordinator[T](sub, Unbounded, f.bufferSize)
	c.worker = f.target.Worker()
	sub.OnSubscribe(&windowOuterSubscription[T]{c: c})

	c.mu.Lock()
	c.current = newWindowInner[T](f.bufferSize)
	first := c.current
	c.mu.Unlock()
	c.emitWindow(first)
	c.timer = c.worker.SchedulePeriodic(c.rotateWindow, f.duration, f.duration)

	f.upstream.Subscribe(&windowUpstreamSubscriber[T]{c: c})
}

type windowCoordinator[T any] struct {
	down       Subscriber[Publisher[T]]
	size       int64
	bufferSize int
	upstream   *SubscriptionArbiter
	worker     executor.Worker
	timer      executor.Disposable

	mu      sync.Mutex
	current *windowInner[T]
	count   int64

	outerStaging   *stagingQueue[Publisher[T]]
	outerRequested RequestCounter
	outerDrain     drainState
	outerTerminal  TerminalLatch
	outerCancelled atomix.Bool
}

func newWindowCoordinator[T any](sub Subscriber[Publisher[T]], size int64, bufferSize int) *windowCoordinator[T] {
	return &windowCoordinator[T]{
		down:         sub,
		size:         size,
		bufferSize:   bufferSize,
		upstream:     &SubscriptionArbiter{},
		outerStaging: newStagingQueue[Publisher[T]](4),
	}
}

func (c *windowCoordinator[T]) runOuterDrain() {
	runDrain[Publisher[T]](
		&c.outerDrain,
		c.outerStaging,
		&c.outerRequested,
		&c.outerTerminal,
		func() bool { return c.outerCancelled.LoadAcquire() },
		c.disposeAll,
		4,
		func(int64) {},
		c.down.OnNext,
		c.down.OnComplete,
		c.down.OnError,
	)
}

func (c *windowCoordinator[T]) disposeAll() {
	c.upstream.Cancel()
	if c.timer != nil {
		c.timer.Dispose()
	}
}

func (c *windowCoordinator[T]) emitWindow(w *windowInner[T]) {
	if err := c.outerStaging.Offer(w); err != nil {
		c.outerTerminal.SetError(NewOverflowError("window"))
	}
	c.runOuterDrain()
}

// nextWindow returns the currently open window, opening a new one if
// none is open, and reports whether the count-based size was just
// reached (closeNow) so the caller can complete it after offering the
// triggering item.
func (c *windowCoordinator[T]) nextWindow() (cur *windowInner[T], isNew, closeNow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		c.current = newWindowInner[T](c.bufferSize)
		c.count = 0
		isNew = true
	}
	cur = c.current
	c.count++
	if c.size != Unbounded && c.count >= c.size {
		c.current = nil
	}
	closeNow = c.current == nil
	return
}

func (c *windowCoordinator[T]) rotateWindow() {
	c.mu.Lock()
	old := c.current
	c.current = newWindowInner[T](c.bufferSize)
	next := c.current
	c.count = 0
	c.mu.Unlock()
	if old != nil {
		old.complete()
	}
	c.emitWindow(next)
}

func (c *windowCoordinator[T]) takeCurrent() *windowInner[T] {
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.mu.Unlock()
	return cur
}

type windowOuterSubscription[T any] struct{ c *windowCoordinator[T] }

func (s *windowOuterSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.outerRequested.Add(n)
	s.c.runOuterDrain()
}

func (s *windowOuterSubscription[T]) Cancel() {
	s.c.outerCancelled.StoreRelease(true)
	s.c.disposeAll()
	if cur := s.c.takeCurrent(); cur != nil {
		cur.cancelled.StoreRelease(true)
	}
}

type windowUpstreamSubscriber[T any] struct{ c *windowCoordinator[T] }

func (s *windowUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}

func (s *windowUpstreamSubscriber[T]) OnNext(item T) {
	c := s.c
	cur, isNew, closeNow := c.nextWindow()
	if isNew {
		c.emitWindow(cur)
	}
	cur.offer(item)
	if closeNow {
		cur.complete()
	}
}

func (s *windowUpstreamSubscriber[T]) OnComplete() {
	c := s.c
	if cur := c.takeCurrent(); cur != nil {
		cur.complete()
	}
	if c.timer != nil {
		c.timer.Dispose()
	}
	c.outerTerminal.SetComplete()
	c.runOuterDrain()
}

func (s *windowUpstreamSubscriber[T]) OnError(e error) {
	c := s.c
	if cur := c.takeCurrent(); cur != nil {
		cur.fail(e)
	}
	if c.timer != nil {
		c.timer.Dispose()
	}
	c.outerTerminal.SetError(e)
	c.runOuterDrain()
}

// windowInner is one window's buffer: a staging queue drained through the
// §4.3 skeleton on whichever goroutine offers to it or requests from it
// (there is exactly one active window at a time, so no dispatch pool is
// needed the way GroupBy needs one for many concurrent keys).
type windowInner[T any] struct {
	mu   sync.Mutex
	down Subscriber[T]

	staging   *stagingQueue[T]
	requested RequestCounter
	drain     drainState
	terminal  TerminalLatch
	cancelled atomix.Bool
}

func newWindowInner[T any](bufferSize int) *windowInner[T] {
	return &windowInner[T]{staging: newStagingQueue[T](bufferSize)}
}

func (w *windowInner[T]) Subscribe(sub Subscriber[T]) {
	w.mu.Lock()
	w.down = sub
	w.mu.Unlock()
	sub.OnSubscribe(&windowInnerSubscription[T]{w: w})
	w.runDrainLoop()
}

func (w *windowInner[T]) offer(item T) {
	if err := w.staging.Offer(item); err != nil {
		return
	}
	w.runDrainLoop()
}

func (w *windowInner[T]) complete() {
	w.terminal.SetComplete()
	w.runDrainLoop()
}

func (w *windowInner[T]) fail(e error) {
	w.terminal.SetError(e)
	w.runDrainLoop()
}

func (w *windowInner[T]) isCancelled() bool { return w.cancelled.LoadAcquire() }
func (w *windowInner[T]) clearQueue()       { w.cancelled.StoreRelease(true) }

func (w *windowInner[T]) emit(item T) {
	w.mu.Lock()
	down := w.down
	w.mu.Unlock()
	if down != nil {
		down.OnNext(item)
	}
}

func (w *windowInner[T]) onComplete() {
	w.mu.Lock()
	down := w.down
	w.mu.Unlock()
	if down != nil {
		down.OnComplete()
	}
}

func (w *windowInner[T]) onError(e error) {
	w.mu.Lock()
	down := w.down
	w.mu.Unlock()
	if down != nil {
		down.OnError(e)
	}
}

func (w *windowInner[T]) runDrainLoop() {
	runDrain[T](
		&w.drain,
		w.staging,
		&w.requested,
		&w.terminal,
		w.isCancelled,
		w.clearQueue,
		int64(max(w.staging.Cap(), 1)),
		func(int64) {},
		w.emit,
		w.onComplete,
		w.onError,
	)
}

type windowInnerSubscription[T any] struct{ w *windowInner[T] }

func (s *windowInnerSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.w.requested.Add(n)
	s.w.runDrainLoop()
}
func (s *windowInnerSubscription[T]) Cancel() { s.w.cancelled.StoreRelease(true) }
