// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

func callUserFunc0[R any](f func() R) (out R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = userCallbackPanic(r)
		}
	}()
	return f(), nil
}

// Repeat re-subscribes to upstream after each complete, for a total of n
// subscriptions; errors are never repeated (§9).
func Repeat[T any](upstream Publisher[T], n int64) Publisher[T] {
	if n < 1 {
		n = 1
	}
	var done int64
	return RepeatIf(upstream, func() bool {
		done++
		return done < n
	})
}

// RepeatIf re-subscribes to upstream after each complete for as long as
// predicate returns true; errors are never repeated.
func RepeatIf[T any](upstream Publisher[T], predicate func() bool) Publisher[T] {
	return repeatFlow[T]{upstream: upstream, predicate: predicate}
}

type repeatFlow[T any] struct {
	upstream  Publisher[T]
	predicate func() bool
}

func (f repeatFlow[T]) Subscribe(sub Subscriber[T]) {
	c := &repeatCoordinator[T]{upstream: f.upstream, predicate: f.predicate, down: sub}
	c.arb.Store(&SubscriptionArbiter{})
	sub.OnSubscribe(&repeatSubscription[T]{c: c})
	c.subscribeNext()
}

type repeatCoordinator[T any] struct {
	upstream  Publisher[T]
	predicate func() bool
	down      Subscriber[T]
	arb       atomic.Pointer[SubscriptionArbiter]
	requested RequestCounter
	cancelled atomix.Bool
}

func (c *repeatCoordinator[T]) subscribeNext() {
	c.upstream.Subscribe(&repeatInnerSubscriber[T]{c: c})
}

type repeatInnerSubscriber[T any] struct{ c *repeatCoordinator[T] }

func (s *repeatInnerSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.arb.Load().Set(sub)
	if r := s.c.requested.Get(); r > 0 {
		sub.Request(r)
	}
}
func (s *repeatInnerSubscriber[T]) OnNext(item T) {
	s.c.requested.Produced(1)
	s.c.down.OnNext(item)
}
func (s *repeatInnerSubscriber[T]) OnComplete() {
	if s.c.cancelled.LoadAcquire() {
		return
	}
	again, err := callUserFunc0(s.c.predicate)
	if err != nil {
		s.c.down.OnError(err)
		return
	}
	if again {
		s.c.arb.Store(&SubscriptionArbiter{})
		s.c.subscribeNext()
		return
	}
	s.c.down.OnComplete()
}
func (s *repeatInnerSubscriber[T]) OnError(e error) { s.c.down.OnError(e) }

type repeatSubscription[T any] struct{ c *repeatCoordinator[T] }

func (s *repeatSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.arb.Load().Request(n)
}
func (s *repeatSubscription[T]) Cancel() {
	s.c.cancelled.StoreRelease(true)
	s.c.arb.Load().Cancel()
}

// Retry re-subscribes to upstream after each error, up to n attempts;
// completion is never retried (§9's recovery-operator rule: a fresh
// subscription supersedes the errored one, preserving terminal-once).
func Retry[T any](upstream Publisher[T], n int64) Publisher[T] {
	if n < 0 {
		n = 0
	}
	var attempts int64
	return RetryIf(upstream, func(error) bool {
		if attempts >= n {
			return false
		}
		attempts++
		return true
	})
}

// RetryIf re-subscribes to upstream after each error for as long as
// predicate(err) returns true.
func RetryIf[T any](upstream Publisher[T], predicate func(error) bool) Publisher[T] {
	return retryFlow[T]{upstream: upstream, predicate: predicate}
}

type retryFlow[T any] struct {
	upstream  Publisher[T]
	predicate func(error) bool
}

func (f retryFlow[T]) Subscribe(sub Subscriber[T]) {
	c := &retryCoordinator[T]{upstream: f.upstream, predicate: f.predicate, down: sub}
	c.arb.Store(&SubscriptionArbiter{})
	sub.OnSubscribe(&retrySubscription[T]{c: c})
	c.subscribeNext()
}

type retryCoordinator[T any] struct {
	upstream  Publisher[T]
	predicate func(error) bool
	down      Subscriber[T]
	arb       atomic.Pointer[SubscriptionArbiter]
	requested RequestCounter
	cancelled atomix.Bool
}

func (c *retryCoordinator[T]) subscribeNext() {
	c.upstream.Subscribe(&retryInnerSubscriber[T]{c: c})
}

type retryInnerSubscriber[T any] struct{ c *retryCoordinator[T] }

func (s *retryInnerSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.arb.Load().Set(sub)
	if r := s.c.requested.Get(); r > 0 {
		sub.Request(r)
	}
}
func (s *retryInnerSubscriber[T]) OnNext(item T) {
	s.c.requested.Produced(1)
	s.c.down.OnNext(item)
}
func (s *retryInnerSubscriber[T]) OnComplete() { s.c.down.OnComplete() }
func (s *retryInnerSubscriber[T]) OnError(e error) {
	if s.c.cancelled.LoadAcquire() {
		return
	}
	again, err := callUserFunc1(s.c.predicate, e)
	if err != nil {
		s.c.down.OnError(err)
		return
	}
	if again {
		s.c.arb.Store(&SubscriptionArbiter{})
		s.c.subscribeNext()
		return
	}
	s.c.down.OnError(e)
}

type retrySubscription[T any] struct{ c *retryCoordinator[T] }

func (s *retrySubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.arb.Load().Request(n)
}
func (s *retrySubscription[T]) Cancel() {
	s.c.cancelled.StoreRelease(true)
	s.c.arb.Load().Cancel()
}

// errorNotifierBuffer bounds how many not-yet-delivered errors the
// notifier passed to a RetryWhen handler holds; failures are rare enough
// relative to item throughput that this rarely matters in practice.
const errorNotifierBuffer = 16

// errorNotifier is the Publisher[error] handed to a RetryWhen handler: an
// external push(err) feeds it, subscribed exactly once, drained through
// the §4.3 skeleton.
type errorNotifier struct {
	mu   sync.Mutex
	down Subscriber[error]

	staging   *stagingQueue[error]
	requested RequestCounter
	drain     drainState
	terminal  TerminalLatch
	cancelled atomix.Bool
}

func newErrorNotifier() *errorNotifier {
	return &errorNotifier{staging: newStagingQueue[error](errorNotifierBuffer)}
}

func (n *errorNotifier) Subscribe(sub Subscriber[error]) {
	n.mu.Lock()
	n.down = sub
	n.mu.Unlock()
	sub.OnSubscribe(&errorNotifierSubscription{n: n})
	n.runDrainLoop()
}

// push enqueues a failure for the handler to observe. When the queue is
// full, the new notification is dropped and the older pending ones are
// kept, rather than blocking the failing source.
func (n *errorNotifier) push(err error) {
	if e := n.staging.Offer(err); e != nil {
		return
	}
	n.runDrainLoop()
}

func (n *errorNotifier) isCancelled() bool { return n.cancelled.LoadAcquire() }
func (n *errorNotifier) clearQueue()       { n.cancelled.StoreRelease(true) }

func (n *errorNotifier) emit(e error) {
	n.mu.Lock()
	down := n.down
	n.mu.Unlock()
	if down != nil {
		down.OnNext(e)
	}
}
func (n *errorNotifier) onComplete() {
	n.mu.Lock()
	down := n.down
	n.mu.Unlock()
	if down != nil {
		down.OnComplete()
	}
}
func (n *errorNotifier) onError(e error) {
	n.mu.Lock()
	down := n.down
	n.mu.Unlock()
	if down != nil {
		down.OnError(e)
	}
}

func (n *errorNotifier) runDrainLoop() {
	runDrain[error](
		&n.drain,
		n.staging,
		&n.requested,
		&n.terminal,
		n.isCancelled,
		n.clearQueue,
		errorNotifierBuffer,
		func(int64) {},
		n.emit,
		n.onComplete,
		n.onError,
	)
}

type errorNotifierSubscription struct{ n *errorNotifier }

func (s *errorNotifierSubscription) Request(n int64) {
	if n <= 0 {
		return
	}
	s.n.requested.Add(n)
	s.n.runDrainLoop()
}
func (s *errorNotifierSubscription) Cancel() { s.n.cancelled.StoreRelease(true) }

// RetryWhen re-subscribes to upstream whenever the Publisher[struct{}]
// returned by handler emits, having passed it a Publisher[error] of
// upstream's failures. If that control publisher completes, the original
// error's retries stop and downstream completes; if it errors, that error
// is surfaced downstream instead.
func RetryWhen[T any](upstream Publisher[T], handler func(Publisher[error]) Publisher[struct{}]) Publisher[T] {
	return retryWhenFlow[T]{upstream: upstream, handler: handler}
}

type retryWhenFlow[T any] struct {
	upstream Publisher[T]
	handler  func(Publisher[error]) Publisher[struct{}]
}

func (f retryWhenFlow[T]) Subscribe(sub Subscriber[T]) {
	c := &retryWhenCoordinator[T]{
		upstream:   f.upstream,
		down:       sub,
		controlArb: &SubscriptionArbiter{},
		notifier:   newErrorNotifier(),
	}
	c.arb.Store(&SubscriptionArbiter{})
	sub.OnSubscribe(&retryWhenSubscription[T]{c: c})
	control := f.handler(c.notifier)
	control.Subscribe(&retryWhenControlSubscriber[T]{c: c})
	c.subscribeNext()
}

type retryWhenCoordinator[T any] struct {
	upstream   Publisher[T]
	down       Subscriber[T]
	arb        atomic.Pointer[SubscriptionArbiter]
	controlArb *SubscriptionArbiter
	notifier   *errorNotifier
	requested  RequestCounter
	cancelled  atomix.Bool
	stopped    atomix.Bool
}

func (c *retryWhenCoordinator[T]) subscribeNext() {
	c.upstream.Subscribe(&retryWhenInnerSubscriber[T]{c: c})
}

type retryWhenInnerSubscriber[T any] struct{ c *retryWhenCoordinator[T] }

func (s *retryWhenInnerSubscriber[T]) OnSubscribe(sub Subscription) {
	s.c.arb.Load().Set(sub)
	if r := s.c.requested.Get(); r > 0 {
		sub.Request(r)
	}
}
func (s *retryWhenInnerSubscriber[T]) OnNext(item T) {
	s.c.requested.Produced(1)
	s.c.down.OnNext(item)
}
func (s *retryWhenInnerSubscriber[T]) OnComplete() {
	s.c.stopped.StoreRelease(true)
	s.c.controlArb.Cancel()
	s.c.down.OnComplete()
}
func (s *retryWhenInnerSubscriber[T]) OnError(e error) {
	if s.c.cancelled.LoadAcquire() || s.c.stopped.LoadAcquire() {
		return
	}
	s.c.notifier.push(e)
	s.c.controlArb.Request(1)
}

type retryWhenControlSubscriber[T any] struct{ c *retryWhenCoordinator[T] }

func (s *retryWhenControlSubscriber[T]) OnSubscribe(sub Subscription) { s.c.controlArb.Set(sub) }
func (s *retryWhenControlSubscriber[T]) OnNext(struct{}) {
	if s.c.stopped.LoadAcquire() {
		return
	}
	s.c.arb.Store(&SubscriptionArbiter{})
	s.c.subscribeNext()
}
func (s *retryWhenControlSubscriber[T]) OnComplete() {
	s.c.stopped.StoreRelease(true)
	s.c.down.OnComplete()
}
func (s *retryWhenControlSubscriber[T]) OnError(e error) {
	s.c.stopped.StoreRelease(true)
	s.c.down.OnError(e)
}

type retryWhenSubscription[T any] struct{ c *retryWhenCoordinator[T] }

func (s *retryWhenSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.c.requested.Add(n)
	s.c.arb.Load().Request(n)
}
func (s *retryWhenSubscription[T]) Cancel() {
	s.c.cancelled.StoreRelease(true)
	s.c.arb.Load().Cancel()
	s.c.controlArb.Cancel()
}
