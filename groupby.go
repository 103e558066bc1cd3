// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/streamflow/executor"
	"code.hybscloud.com/streamflow/internal/queue"
)

// GroupedFlow is one key's sub-stream within a GroupBy. It is itself a
// Publisher[T]: subscribing to it drains only the items seen under Key.
type GroupedFlow[K comparable, T any] struct {
	Key K
	Publisher[T]
}

// defaultGroupDispatchCapacity bounds the SPMC queue of groups with
// pending work; it is sized generously since an entry is just a pointer
// a worker has not yet claimed, not buffered data.
const defaultGroupDispatchCapacity = 1024

// GroupBy demultiplexes upstream into per-key GroupedFlow sub-streams,
// delivered through an outer Publisher[GroupedFlow[K,T]]. A group is
// created lazily the first time its key is seen and torn down when its
// subscriber cancels or upstream completes. Ready-to-drain groups are
// dispatched across target's worker pool through a shared queue, rather
// than pinning every group to a single goroutine, so keys with bursty
// traffic do not starve keys that arrive rarely.
func GroupBy[K comparable, T any](upstream Publisher[T], keySelector func(T) K, target executor.Executor, groupBufferSize int) Publisher[GroupedFlow[K, T]] {
	if groupBufferSize < 1 {
		groupBufferSize = 1
	}
	return groupByFlow[K, T]{upstream: upstream, keySelector: keySelector, target: target, groupBufferSize: groupBufferSize}
}

type groupByFlow[K comparable, T any] struct {
	upstream        Publisher[T]
	keySelector     func(T) K
	target          executor.Executor
	groupBufferSize int
}

func (f groupByFlow[K, T]) Subscribe(sub Subscriber[GroupedFlow[K, T]]) {
	c := &groupByCoordinator[K, T]{
		down:            sub,
		keySelector:     f.keySelector,
		target:          f.target,
		groupBufferSize: f.groupBufferSize,
		groups:          make(map[K]*groupInner[K, T]),
		upstream:        &SubscriptionArbiter{},
		outerStaging:    newStagingQueue[GroupedFlow[K, T]](f.groupBufferSize),
		ready:           queue.NewSPMC[*groupInner[K, T]](defaultGroupDispatchCapacity),
	}
	sub.OnSubscribe(&groupBySubscription[K, T]{c: c})
	f.upstream.Subscribe(&groupByUpstreamSubscriber[K, T]{c: c})
}

type groupByCoordinator[K comparable, T any] struct {
	down            Subscriber[GroupedFlow[K, T]]
	keySelector     func(T) K
	target          executor.Executor
	groupBufferSize int
	upstream        *SubscriptionArbiter

	mu     sync.Mutex
	groups map[K]*groupInner[K, T]

	outerStaging   *stagingQueue[GroupedFlow[K, T]]
	outerRequested RequestCounter
	outerDrain     drainState
	outerTerminal  TerminalLatch
	outerCancelled atomix.Bool

	ready *queue.SPMC[*groupInner[K, T]]
}

func (c *groupByCoordinator[K, T]) runOuterDrain() {
	runDrain[GroupedFlow[K, T]](
		&c.outerDrain,
		c.outerStaging,
		&c.outerRequested,
		&c.outerTerminal,
		func() bool { return c.outerCancelled.LoadAcquire() },
		func() { c.upstream.Cancel() },
		int64(max(c.groupBufferSize, 1)),
		func(int64) {}, // new-group notifications are not rate-limited against upstream
		c.down.OnNext,
		c.down.OnComplete,
		c.down.OnError,
	)
}

func (c *groupByCoordinator[K, T]) emitGroup(gf GroupedFlow[K, T]) {
	if err := c.outerStaging.Offer(gf); err != nil {
		c.outerTerminal.SetError(NewOverflowError("groupBy"))
	}
	c.runOuterDrain()
}

func (c *groupByCoordinator[K, T]) snapshotGroups() []*groupInner[K, T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*groupInner[K, T], 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	return out
}

func (c *groupByCoordinator[K, T]) failAll(e error) {
	c.outerTerminal.SetError(e)
	c.runOuterDrain()
	for _, g := range c.snapshotGroups() {
		g.upstreamError(e)
	}
}

// dispatchOne claims whichever group is next in the ready queue and runs
// its drain loop. Multiple workers in target's pool may run dispatchOne
// concurrently; each claims a distinct group via the SPMC's FAA dequeue.
func (c *groupByCoordinator[K, T]) dispatchOne() {
	g, err := c.ready.Dequeue()
	if err != nil {
		return
	}
	g.queuedForDispatch.Store(false)
	g.runDrainLoop()
}

type groupByUpstreamSubscriber[K comparable, T any] struct{ c *groupByCoordinator[K, T] }

func (s *groupByUpstreamSubscriber[K, T]) OnSubscribe(sub Subscription) {
	s.c.upstream.Set(sub)
	s.c.upstream.Request(Unbounded)
}

func (s *groupByUpstreamSubscriber[K, T]) OnNext(item T) {
	c := s.c
	key, err := callUserFunc1(c.keySelector, item)
	if err != nil {
		s.c.upstream.Cancel()
		c.failAll(err)
		return
	}

	c.mu.Lock()
	g, existed := c.groups[key]
	if !existed {
		g = newGroupInner(c, key)
		c.groups[key] = g
	}
	c.mu.Unlock()

	if !existed {
		c.emitGroup(GroupedFlow[K, T]{Key: key, Publisher: g})
	}
	g.offer(item)
}

func (s *groupByUpstreamSubscriber[K, T]) OnComplete() {
	c := s.c
	c.outerTerminal.SetComplete()
	c.runOuterDrain()
	for _, g := range c.snapshotGroups() {
		g.upstreamComplete()
	}
}

func (s *groupByUpstreamSubscriber[K, T]) OnError(e error) {
	s.c.failAll(e)
}

type groupBySubscription[K comparable, T any] struct{ c *groupByCoordinator[K, T] }

func (s *groupBySubscription[K, T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.outerRequested.Add(n)
	s.c.runOuterDrain()
}

func (s *groupBySubscription[K, T]) Cancel() {
	s.c.outerCancelled.StoreRelease(true)
	s.c.upstream.Cancel()
	for _, g := range s.c.snapshotGroups() {
		g.cancelFromOuter()
	}
}

// groupInner is one key's buffer: a bounded staging queue drained through
// the §4.3 skeleton, dispatched onto the coordinator's worker pool rather
// than owning a dedicated goroutine.
type groupInner[K comparable, T any] struct {
	key K
	c   *groupByCoordinator[K, T]

	mu   sync.Mutex
	down Subscriber[T]

	staging           *stagingQueue[T]
	requested         RequestCounter
	drain             drainState
	terminal          TerminalLatch
	cancelled         atomix.Bool
	queuedForDispatch atomic.Bool
}

func newGroupInner[K comparable, T any](c *groupByCoordinator[K, T], key K) *groupInner[K, T] {
	return &groupInner[K, T]{key: key, c: c, staging: newStagingQueue[T](c.groupBufferSize)}
}

func (g *groupInner[K, T]) Subscribe(sub Subscriber[T]) {
	g.mu.Lock()
	g.down = sub
	g.mu.Unlock()
	sub.OnSubscribe(&groupInnerSubscription[K, T]{g: g})
	g.signalReady()
}

// offer buffers item for this key. A key whose subscriber cannot keep up
// drops its newest item rather than blocking the shared upstream or
// starving sibling keys — the same tradeoff already made explicit for
// SwitchMap and CombineLatest.
func (g *groupInner[K, T]) offer(item T) {
	if err := g.staging.Offer(item); err != nil {
		return
	}
	g.signalReady()
}

func (g *groupInner[K, T]) upstreamComplete() {
	g.terminal.SetComplete()
	g.signalReady()
}

func (g *groupInner[K, T]) upstreamError(e error) {
	g.terminal.SetError(e)
	g.signalReady()
}

func (g *groupInner[K, T]) cancelFromOuter() {
	g.cancelled.StoreRelease(true)
	g.signalReady()
}

func (g *groupInner[K, T]) hasSubscriber() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.down != nil
}

func (g *groupInner[K, T]) signalReady() {
	if !g.hasSubscriber() {
		return
	}
	if !g.queuedForDispatch.CompareAndSwap(false, true) {
		return
	}
	elem := g
	if err := g.c.ready.Enqueue(&elem); err != nil {
		g.queuedForDispatch.Store(false)
		return
	}
	g.c.target.Worker().Schedule(g.c.dispatchOne)
}

func (g *groupInner[K, T]) isCancelled() bool { return g.cancelled.LoadAcquire() }
func (g *groupInner[K, T]) clearQueue()       { g.cancelled.StoreRelease(true) }

func (g *groupInner[K, T]) emit(item T) {
	g.mu.Lock()
	down := g.down
	g.mu.Unlock()
	if down != nil {
		down.OnNext(item)
	}
}

func (g *groupInner[K, T]) complete() {
	g.mu.Lock()
	down := g.down
	g.mu.Unlock()
	if down != nil {
		down.OnComplete()
	}
}

func (g *groupInner[K, T]) fail(e error) {
	g.mu.Lock()
	down := g.down
	g.mu.Unlock()
	if down != nil {
		down.OnError(e)
	}
}

func (g *groupInner[K, T]) runDrainLoop() {
	runDrain[T](
		&g.drain,
		g.staging,
		&g.requested,
		&g.terminal,
		g.isCancelled,
		g.clearQueue,
		int64(max(g.c.groupBufferSize, 1)),
		func(int64) {}, // the demux source already requested Unbounded once
		g.emit,
		g.complete,
		g.fail,
	)
}

type groupInnerSubscription[K comparable, T any] struct{ g *groupInner[K, T] }

func (s *groupInnerSubscription[K, T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.g.requested.Add(n)
	s.g.signalReady()
}

func (s *groupInnerSubscription[K, T]) Cancel() {
	s.g.cancelled.StoreRelease(true)
	s.g.c.mu.Lock()
	delete(s.g.c.groups, s.g.key)
	s.g.c.mu.Unlock()
}
