// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync/atomic"

// BackpressureStrategy selects one of the four policies of §4.4 for
// reconciling a backpressure-oblivious push source with a downstream's
// actual request rate, for use with [ToFlowable].
type BackpressureStrategy int

const (
	BackpressureError BackpressureStrategy = iota
	BackpressureDrop
	BackpressureLatest
	BackpressureBuffer
)

// ObservableEmitter is the push-only handle a source passed to
// [ToFlowable] uses to emit. Unlike [Subscription] there is no Request:
// the source pushes as fast as it likes, and the chosen
// [BackpressureStrategy] absorbs any mismatch with what downstream has
// actually requested.
type ObservableEmitter[T any] interface {
	OnNext(item T)
	OnComplete()
	OnError(err error)
}

// ToFlowable adapts a cold, backpressure-oblivious push source into a
// Publisher[T]: run is invoked once per subscriber and must call exactly
// one of the emitter's OnComplete/OnError once done, having called OnNext
// any number of times before that — the external "cold push, no
// backpressure" adapter of §6.
func ToFlowable[T any](run func(emitter ObservableEmitter[T]), strategy BackpressureStrategy) Publisher[T] {
	base := observableFlow[T]{run: run}
	switch strategy {
	case BackpressureDrop:
		return OnBackpressureDrop[T](base, nil)
	case BackpressureLatest:
		return OnBackpressureLatest[T](base)
	case BackpressureBuffer:
		return OnBackpressureBuffer[T](base)
	default:
		return OnBackpressureError[T](base)
	}
}

type observableFlow[T any] struct{ run func(emitter ObservableEmitter[T]) }

func (f observableFlow[T]) Subscribe(sub Subscriber[T]) {
	s := &observableSubscription{}
	sub.OnSubscribe(s)
	f.run(&observableEmitter[T]{down: sub, sub: s})
}

type observableSubscription struct{ cancelled atomic.Bool }

func (s *observableSubscription) Request(int64) {}
func (s *observableSubscription) Cancel()       { s.cancelled.Store(true) }

type observableEmitter[T any] struct {
	down Subscriber[T]
	sub  *observableSubscription
}

func (e *observableEmitter[T]) OnNext(item T) {
	if e.sub.cancelled.Load() {
		return
	}
	e.down.OnNext(item)
}
func (e *observableEmitter[T]) OnComplete() {
	if e.sub.cancelled.Load() {
		return
	}
	e.down.OnComplete()
}
func (e *observableEmitter[T]) OnError(err error) {
	if e.sub.cancelled.Load() {
		return
	}
	e.down.OnError(err)
}

// Future is the minimal one-shot future shape [FromFuture] adapts: Done
// closes exactly once, after which Result returns the resolved value or
// error — idiomatic Go's equivalent of a promise, built on a channel
// rather than a callback-registration API.
type Future[T any] interface {
	Done() <-chan struct{}
	Result() (T, error)
}

// FromFuture adapts future into a one-shot Publisher[T]: on attach it
// waits for future to resolve and emits one item (or one error), then
// completes — §6's task/future adapter.
func FromFuture[T any](future Future[T]) Publisher[T] {
	return futureFlow[T]{future: future}
}

type futureFlow[T any] struct{ future Future[T] }

func (f futureFlow[T]) Subscribe(sub Subscriber[T]) {
	s := &futureSubscription{}
	sub.OnSubscribe(s)
	go func() {
		<-f.future.Done()
		if s.cancelled.Load() {
			return
		}
		v, err := f.future.Result()
		if s.cancelled.Load() {
			return
		}
		if err != nil {
			sub.OnError(err)
			return
		}
		sub.OnNext(v)
		sub.OnComplete()
	}()
}

type futureSubscription struct{ cancelled atomic.Bool }

func (s *futureSubscription) Request(int64) {}
func (s *futureSubscription) Cancel()       { s.cancelled.Store(true) }
