// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"

	"code.hybscloud.com/streamflow/internal/queue"
)

// mergeCoordinator is the shared state machine backing both Merge and
// FlatMap (§4.4): a request counter, a set of active inner subscribers
// each with its own bounded SPSC queue, and the §4.3 drain loop running
// fair round-robin over whichever inner queues are non-empty.
type mergeCoordinator[T any] struct {
	down         Subscriber[T]
	requested    RequestCounter
	drain        drainState
	terminal     TerminalLatch
	outerSub     Subscription
	cancelled    bool
	bufferSize   int
	delayErrors  bool

	mu       sync.Mutex
	inners   []*mergeInner[T]
	cursor   int
	errs     []error
	outerDone bool
	active   int
}

type mergeInner[T any] struct {
	staging *stagingQueue[T]
	sub     Subscription
	done    bool
}

func newMergeCoordinator[T any](down Subscriber[T], bufferSizeArg int, delayErrors bool) *mergeCoordinator[T] {
	if bufferSizeArg <= 0 {
		bufferSizeArg = bufferSize()
	}
	return &mergeCoordinator[T]{down: down, bufferSize: bufferSizeArg, delayErrors: delayErrors}
}

func (c *mergeCoordinator[T]) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *mergeCoordinator[T]) clearQueues() {
	c.mu.Lock()
	for _, in := range c.inners {
		in.sub.Cancel()
	}
	if c.outerSub != nil {
		c.outerSub.Cancel()
	}
	c.mu.Unlock()
}

func (c *mergeCoordinator[T]) cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.clearQueues()
}

// subscribeInner attaches a new inner source, requesting bufferSize
// items upfront (§4.4: "inner subscribers request bufferSize upfront").
func (c *mergeCoordinator[T]) subscribeInner(src Publisher[T]) {
	in := &mergeInner[T]{staging: newStagingQueue[T](c.bufferSize)}
	c.mu.Lock()
	c.inners = append(c.inners, in)
	c.active++
	c.mu.Unlock()
	src.Subscribe(&mergeInnerSubscriber[T]{c: c, in: in})
}

func (c *mergeCoordinator[T]) onOuterComplete() {
	c.mu.Lock()
	c.outerDone = true
	empty := c.active == 0
	c.mu.Unlock()
	if empty {
		c.finishIfDone()
	}
}

func (c *mergeCoordinator[T]) onInnerDone(in *mergeInner[T], err error) {
	c.mu.Lock()
	in.done = true
	c.active--
	if err != nil {
		if c.delayErrors {
			c.errs = append(c.errs, err)
		} else {
			c.mu.Unlock()
			c.terminal.SetError(err)
			c.cancel()
			c.runDrain()
			return
		}
	}
	// drop exhausted inners to bound memory
	kept := c.inners[:0]
	for _, x := range c.inners {
		if !(x.done && x.staging.Empty()) {
			kept = append(kept, x)
		}
	}
	c.inners = kept
	active := c.active
	outerDone := c.outerDone
	c.mu.Unlock()
	if active == 0 && outerDone {
		c.finishIfDone()
	}
	c.runDrain()
}

func (c *mergeCoordinator[T]) finishIfDone() {
	if len(c.errs) > 0 {
		c.terminal.SetError(NewCompositeError(c.errs))
	} else {
		c.terminal.SetComplete()
	}
	c.runDrain()
}

func (c *mergeCoordinator[T]) requestMoreOuter(_ int64) {
	if c.outerSub != nil {
		c.outerSub.Request(1)
	}
}

func (c *mergeCoordinator[T]) runDrain() {
	runDrain[T](
		&c.drain,
		(*mergeQueueSet[T])(c),
		&c.requested,
		&c.terminal,
		c.isCancelled,
		c.clearQueues,
		int64(max(c.bufferSize, 1)),
		func(int64) {},
		c.down.OnNext,
		c.down.OnComplete,
		c.down.OnError,
	)
}

// mergeQueueSet adapts mergeCoordinator's inner slice to [drainQueue]: a
// non-destructive Empty() and a fair round-robin Dequeue() across
// whichever inner currently has a pending item, replenishing that inner
// by one request immediately after taking from it.
type mergeQueueSet[T any] mergeCoordinator[T]

func (m *mergeQueueSet[T]) Empty() bool {
	c := (*mergeCoordinator[T])(m)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, in := range c.inners {
		if !in.staging.Empty() {
			return false
		}
	}
	return true
}

func (m *mergeQueueSet[T]) Dequeue() (T, error) {
	c := (*mergeCoordinator[T])(m)
	c.mu.Lock()
	n := len(c.inners)
	for i := 0; i < n; i++ {
		idx := (c.cursor + i) % n
		in := c.inners[idx]
		if !in.staging.Empty() {
			v, err := in.staging.Dequeue()
			c.cursor = (idx + 1) % n
			sub := in.sub
			c.mu.Unlock()
			sub.Request(1)
			return v, err
		}
	}
	c.mu.Unlock()
	var zero T
	return zero, queue.ErrWouldBlock
}

type mergeInnerSubscriber[T any] struct {
	c  *mergeCoordinator[T]
	in *mergeInner[T]
}

func (s *mergeInnerSubscriber[T]) OnSubscribe(sub Subscription) {
	s.in.sub = sub
	sub.Request(int64(s.c.bufferSize))
}

func (s *mergeInnerSubscriber[T]) OnNext(item T) {
	if err := s.in.staging.Offer(item); err != nil {
		s.c.onInnerDone(s.in, NewOverflowError("merge"))
		return
	}
	s.c.runDrain()
}

func (s *mergeInnerSubscriber[T]) OnComplete()     { s.c.onInnerDone(s.in, nil) }
func (s *mergeInnerSubscriber[T]) OnError(e error) { s.c.onInnerDone(s.in, e) }

type mergeOuterSubscriber[T, R any] struct {
	c *mergeCoordinator[R]
	f func(T) Publisher[R]
}

func (s *mergeOuterSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.c.outerSub = sub
	s.c.down.OnSubscribe(&mergeSubscription[R]{c: s.c})
	sub.Request(Unbounded)
}

func (s *mergeOuterSubscriber[T, R]) OnNext(item T) {
	inner, err := callUserFunc1(s.f, item)
	if err != nil {
		s.c.terminal.SetError(err)
		s.c.cancel()
		s.c.runDrain()
		return
	}
	s.c.subscribeInner(inner)
}

func (s *mergeOuterSubscriber[T, R]) OnComplete()     { s.c.onOuterComplete() }
func (s *mergeOuterSubscriber[T, R]) OnError(e error) { s.c.terminal.SetError(e); s.c.cancel(); s.c.runDrain() }

type mergeSubscription[T any] struct{ c *mergeCoordinator[T] }

func (s *mergeSubscription[T]) Request(n int64) {
	s.c.requested.Add(n)
	s.c.runDrain()
}
func (s *mergeSubscription[T]) Cancel() { s.c.cancel() }

// Merge interleaves the items of every source, completing once all have
// completed (or immediately on the first error). Items from distinct
// sources may interleave in any fair round-robin order (§4.4).
func Merge[T any](bufferSize int, sources ...Publisher[T]) Publisher[T] {
	return mergeFlow[T]{bufferSize: bufferSize, sources: sources}
}

type mergeFlow[T any] struct {
	bufferSize int
	sources    []Publisher[T]
}

func (m mergeFlow[T]) Subscribe(sub Subscriber[T]) {
	c := newMergeCoordinator[T](sub, m.bufferSize, false)
	c.outerDone = true
	sub.OnSubscribe(&mergeSubscription[T]{c: c})
	for _, src := range m.sources {
		c.subscribeInner(src)
	}
	if len(m.sources) == 0 {
		c.finishIfDone()
	}
}

// FlatMap maps every upstream item to an inner Publisher via f and
// merges their emissions. The outer is requested without bound and each
// inner is subscribed as soon as its outer item arrives, so the number of
// inner sources active at once is not limited; bufferSize bounds each
// inner's prefetch and staging queue.
func FlatMap[T, R any](upstream Publisher[T], f func(T) Publisher[R], bufferSize int, delayErrors bool) Publisher[R] {
	return flatMapFlow[T, R]{upstream: upstream, f: f, bufferSize: bufferSize, delayErrors: delayErrors}
}

type flatMapFlow[T, R any] struct {
	upstream    Publisher[T]
	f           func(T) Publisher[R]
	bufferSize  int
	delayErrors bool
}

func (fm flatMapFlow[T, R]) Subscribe(sub Subscriber[R]) {
	c := newMergeCoordinator[R](sub, fm.bufferSize, fm.delayErrors)
	fm.upstream.Subscribe(&mergeOuterSubscriber[T, R]{c: c, f: fm.f})
}
