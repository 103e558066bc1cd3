// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync"

// concatCoordinator runs at most one inner subscription at a time,
// switching to the next source on completion of the current one (§4.4
// "Concat (sequential)"). Errors terminate immediately unless
// delayErrors collects them into a composite emitted once every source
// has been drained.
type concatCoordinator[T any] struct {
	down        Subscriber[T]
	requested   RequestCounter
	next        func() (Publisher[T], bool)
	delayErrors bool

	mu        sync.Mutex
	active    Subscription
	cancelled bool
	errs      []error
}

func (c *concatCoordinator[T]) start() {
	c.advance()
}

func (c *concatCoordinator[T]) advance() {
	src, ok := c.next()
	if !ok {
		if len(c.errs) > 0 {
			c.down.OnError(NewCompositeError(c.errs))
		} else {
			c.down.OnComplete()
		}
		return
	}
	src.Subscribe(&concatInnerSubscriber[T]{c: c})
}

func (c *concatCoordinator[T]) onInnerSubscribe(sub Subscription) {
	c.mu.Lock()
	cancelled := c.cancelled
	c.active = sub
	c.mu.Unlock()
	if cancelled {
		sub.Cancel()
		return
	}
	if r := c.requested.Get(); r > 0 {
		sub.Request(r)
	}
}

func (c *concatCoordinator[T]) onInnerComplete(err error) {
	if err != nil {
		if c.delayErrors {
			c.errs = append(c.errs, err)
		} else {
			c.down.OnError(err)
			return
		}
	}
	if c.isCancelled() {
		return
	}
	c.advance()
}

func (c *concatCoordinator[T]) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *concatCoordinator[T]) cancel() {
	c.mu.Lock()
	c.cancelled = true
	active := c.active
	c.mu.Unlock()
	if active != nil {
		active.Cancel()
	}
}

type concatInnerSubscriber[T any] struct {
	c    *concatCoordinator[T]
	down Subscriber[T]
}

func (s *concatInnerSubscriber[T]) OnSubscribe(sub Subscription) { s.c.onInnerSubscribe(sub) }
func (s *concatInnerSubscriber[T]) OnNext(item T)                { s.c.down.OnNext(item) }
func (s *concatInnerSubscriber[T]) OnComplete()                  { s.c.onInnerComplete(nil) }
func (s *concatInnerSubscriber[T]) OnError(e error)              { s.c.onInnerComplete(e) }

type concatSubscription[T any] struct{ c *concatCoordinator[T] }

func (s *concatSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.mu.Lock()
	active := s.c.active
	s.c.mu.Unlock()
	if active != nil {
		active.Request(n)
	}
}
func (s *concatSubscription[T]) Cancel() { s.c.cancel() }

// Concat subscribes to each source in order, emitting only after the
// previous source has completed. delayErrors postpones any source's
// error until every remaining source has run.
func Concat[T any](delayErrors bool, sources ...Publisher[T]) Publisher[T] {
	return concatFlow[T]{delayErrors: delayErrors, sources: sources}
}

type concatFlow[T any] struct {
	delayErrors bool
	sources     []Publisher[T]
}

func (f concatFlow[T]) Subscribe(sub Subscriber[T]) {
	idx := 0
	c := &concatCoordinator[T]{down: sub, delayErrors: f.delayErrors}
	c.next = func() (Publisher[T], bool) {
		if idx >= len(f.sources) {
			return nil, false
		}
		s := f.sources[idx]
		idx++
		return s, true
	}
	sub.OnSubscribe(&concatSubscription[T]{c: c})
	c.start()
}

// ConcatMap maps each upstream item to an inner Publisher via f and
// concatenates their emissions in outer-arrival order: the current
// inner drains to completion before the next begins. prefetch bounds how
// many outer items are buffered ahead of being mapped and subscribed.
func ConcatMap[T, R any](upstream Publisher[T], f func(T) Publisher[R], prefetch int, delayErrors bool) Publisher[R] {
	return concatMapFlow[T, R]{upstream: upstream, f: f, prefetch: prefetch, delayErrors: delayErrors}
}

type concatMapFlow[T, R any] struct {
	upstream    Publisher[T]
	f           func(T) Publisher[R]
	prefetch    int
	delayErrors bool
}

func (cm concatMapFlow[T, R]) Subscribe(sub Subscriber[R]) {
	c := &concatCoordinator[R]{down: sub, delayErrors: cm.delayErrors}
	outer := &concatMapOuterSubscriber[T, R]{
		c:        c,
		f:        cm.f,
		pending:  newStagingQueue[T](cm.prefetch),
		prefetch: cm.prefetch,
	}
	c.next = outer.nextInner
	sub.OnSubscribe(&concatSubscription[R]{c: c})
	cm.upstream.Subscribe(outer)
}

type concatMapOuterSubscriber[T, R any] struct {
	c        *concatCoordinator[R]
	f        func(T) Publisher[R]
	sub      Subscription
	pending  *stagingQueue[T]
	prefetch int
	started  bool
	done     bool
}

func (o *concatMapOuterSubscriber[T, R]) OnSubscribe(sub Subscription) {
	o.sub = sub
	sub.Request(int64(o.prefetch))
}

func (o *concatMapOuterSubscriber[T, R]) OnNext(item T) {
	_ = o.pending.Offer(item)
	if !o.started {
		o.started = true
		o.c.start()
	}
}

func (o *concatMapOuterSubscriber[T, R]) OnComplete() { o.done = true }
func (o *concatMapOuterSubscriber[T, R]) OnError(e error) {
	o.done = true
	o.c.errs = append(o.c.errs, e)
}

// nextInner is the concatCoordinator's next() hook: pull one buffered
// outer item (requesting a replacement from upstream) and map it.
func (o *concatMapOuterSubscriber[T, R]) nextInner() (Publisher[R], bool) {
	if o.pending.Empty() {
		if o.done {
			return nil, false
		}
		return nil, false
	}
	item, err := o.pending.Dequeue()
	if err != nil {
		return nil, false
	}
	o.sub.Request(1)
	inner, err := callUserFunc1(o.f, item)
	if err != nil {
		return Error[R](err), true
	}
	return inner, true
}

// ConcatEager subscribes to up to maxConcurrency inner publishers
// immediately (each backed by its own bounded queue so production can
// run ahead) but still drains and emits them strictly in arrival order
// (§4.4 "Concat Eager"): the head inner's queue must be fully relayed —
// to completion or error — before the next inner's queue is relayed.
func ConcatEager[T any](bufferSize, maxConcurrency int, sources ...Publisher[T]) Publisher[T] {
	return concatEagerFlow[T]{bufferSize: bufferSize, maxConcurrency: maxConcurrency, sources: sources}
}

type concatEagerFlow[T any] struct {
	bufferSize     int
	maxConcurrency int
	sources        []Publisher[T]
}

type eagerInner[T any] struct {
	staging *stagingQueue[T]
	sub     Subscription
	done    bool
	err     error
}

func (f concatEagerFlow[T]) Subscribe(sub Subscriber[T]) {
	c := &concatEagerCoordinator[T]{down: sub, bufferSize: f.bufferSize, maxConcurrency: f.maxConcurrency, sources: f.sources}
	sub.OnSubscribe(&concatEagerSubscription[T]{c: c})
	c.fillWindow()
}

type concatEagerCoordinator[T any] struct {
	down           Subscriber[T]
	requested      RequestCounter
	drain          drainState
	terminal       TerminalLatch
	bufferSize     int
	maxConcurrency int
	sources        []Publisher[T]

	mu        sync.Mutex
	nextIdx   int
	inners    []*eagerInner[T]
	cancelled bool
}

func (c *concatEagerCoordinator[T]) fillWindow() {
	c.mu.Lock()
	for c.nextIdx < len(c.sources) && len(c.inners) < c.maxConcurrency {
		src := c.sources[c.nextIdx]
		c.nextIdx++
		in := &eagerInner[T]{staging: newStagingQueue[T](c.bufferSize)}
		c.inners = append(c.inners, in)
		idx := len(c.inners) - 1
		c.mu.Unlock()
		src.Subscribe(&eagerInnerSubscriber[T]{c: c, in: in, idx: idx})
		c.mu.Lock()
	}
	c.mu.Unlock()
}

func (c *concatEagerCoordinator[T]) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *concatEagerCoordinator[T]) clearQueues() {
	c.mu.Lock()
	for _, in := range c.inners {
		if in.sub != nil {
			in.sub.Cancel()
		}
	}
	c.mu.Unlock()
}

func (c *concatEagerCoordinator[T]) cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.clearQueues()
}

// headQueue presents only the current head inner (index 0) to runDrain;
// once it is both done and drained, it is popped and the next source is
// eagerly subscribed to keep the window full.
type headQueue[T any] concatEagerCoordinator[T]

func (h *headQueue[T]) Empty() bool {
	c := (*concatEagerCoordinator[T])(h)
	for {
		c.mu.Lock()
		if len(c.inners) == 0 {
			c.mu.Unlock()
			return true
		}
		head := c.inners[0]
		if !head.staging.Empty() {
			c.mu.Unlock()
			return false
		}
		if !head.done {
			c.mu.Unlock()
			return true
		}
		if head.err != nil {
			err := head.err
			c.mu.Unlock()
			c.terminal.SetError(err)
			c.cancel()
			return true
		}
		c.inners = c.inners[1:]
		noneLeft := len(c.inners) == 0 && c.nextIdx >= len(c.sources)
		c.mu.Unlock()
		c.fillWindow()
		if noneLeft {
			c.terminal.SetComplete()
			return true
		}
	}
}

func (h *headQueue[T]) Dequeue() (T, error) {
	c := (*concatEagerCoordinator[T])(h)
	c.mu.Lock()
	if len(c.inners) == 0 {
		c.mu.Unlock()
		var zero T
		return zero, NewProtocolError("concat eager: dequeue on empty window")
	}
	head := c.inners[0]
	sub := head.sub
	c.mu.Unlock()
	v, err := head.staging.Dequeue()
	if err == nil && sub != nil {
		sub.Request(1)
	}
	return v, err
}

func (c *concatEagerCoordinator[T]) runDrainLoop() {
	runDrain[T](
		&c.drain,
		(*headQueue[T])(c),
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

type eagerInnerSubscriber[T any] struct {
	c   *concatEagerCoordinator[T]
	in  *eagerInner[T]
	idx int
}

func (s *eagerInnerSubscriber[T]) OnSubscribe(sub Subscription) {
	s.in.sub = sub
	sub.Request(int64(s.c.bufferSize))
}
func (s *eagerInnerSubscriber[T]) OnNext(item T) {
	_ = s.in.staging.Offer(item)
	s.c.runDrainLoop()
}
func (s *eagerInnerSubscriber[T]) OnComplete() {
	s.in.done = true
	s.c.runDrainLoop()
}
func (s *eagerInnerSubscriber[T]) OnError(e error) {
	s.in.done = true
	s.in.err = e
	s.c.runDrainLoop()
}

type concatEagerSubscription[T any] struct{ c *concatEagerCoordinator[T] }

func (s *concatEagerSubscription[T]) Request(n int64) {
	s.c.requested.Add(n)
	s.c.runDrainLoop()
}
func (s *concatEagerSubscription[T]) Cancel() { s.c.cancel() }
