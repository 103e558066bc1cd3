// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

// Deliberately minimal per the design's scoping of plain sources as
// trivially derived: each is a synchronous generator that emits on the
// subscriber's own requesting goroutine, up to n items per Request(n)
// call, honoring cancellation between items.

type rangeFlow struct {
	start, count int
}

// Range emits the count consecutive integers starting at start, then
// completes. count<=0 emits nothing.
func Range(start, count int) Publisher[int] {
	return &rangeFlow{start: start, count: count}
}

func (r *rangeFlow) Subscribe(sub Subscriber[int]) {
	sub.OnSubscribe(&rangeSubscription{sub: sub, cur: r.start, remaining: r.count})
}

type rangeSubscription struct {
	sub       Subscriber[int]
	cur       int
	remaining int
	cancelled bool
	emitting  bool
	extra     int64
}

// Request honors reentrant calls (a downstream that requests more from
// within its own OnNext, as a winning [Amb] branch does once the race is
// decided) by accumulating them into extra instead of silently dropping
// them: the active loop below picks extra up once its current budget is
// spent, rather than returning control with demand still outstanding.
func (s *rangeSubscription) Request(n int64) {
	if n <= 0 || s.cancelled {
		return
	}
	if s.emitting {
		s.extra = addRequested(s.extra, n)
		return
	}
	s.emitting = true
	defer func() { s.emitting = false }()
	for {
		for ; n > 0 && s.remaining > 0 && !s.cancelled; n-- {
			v := s.cur
			s.cur++
			s.remaining--
			s.sub.OnNext(v)
		}
		if s.remaining == 0 && !s.cancelled {
			s.cancelled = true
			s.sub.OnComplete()
			return
		}
		if s.cancelled || s.extra <= 0 {
			return
		}
		n, s.extra = s.extra, 0
	}
}

func (s *rangeSubscription) Cancel() { s.cancelled = true }

// FromSlice emits every element of items in order, then completes.
func FromSlice[T any](items []T) Publisher[T] {
	return &sliceFlow[T]{items: items}
}

type sliceFlow[T any] struct{ items []T }

func (f *sliceFlow[T]) Subscribe(sub Subscriber[T]) {
	sub.OnSubscribe(&sliceSubscription[T]{sub: sub, items: f.items})
}

type sliceSubscription[T any] struct {
	sub       Subscriber[T]
	items     []T
	idx       int
	cancelled bool
	emitting  bool
	extra     int64
}

// Request honors reentrant calls the same way [rangeSubscription.Request]
// does: accumulate into extra rather than drop, and keep looping.
func (s *sliceSubscription[T]) Request(n int64) {
	if n <= 0 || s.cancelled {
		return
	}
	if s.emitting {
		s.extra = addRequested(s.extra, n)
		return
	}
	s.emitting = true
	defer func() { s.emitting = false }()
	for {
		for ; n > 0 && s.idx < len(s.items) && !s.cancelled; n-- {
			v := s.items[s.idx]
			s.idx++
			s.sub.OnNext(v)
		}
		if s.idx >= len(s.items) && !s.cancelled {
			s.cancelled = true
			s.sub.OnComplete()
			return
		}
		if s.cancelled || s.extra <= 0 {
			return
		}
		n, s.extra = s.extra, 0
	}
}

func (s *sliceSubscription[T]) Cancel() { s.cancelled = true }

// Just emits a fixed set of values, then completes.
func Just[T any](items ...T) Publisher[T] {
	return FromSlice(items)
}

// Empty completes immediately without emitting any item.
func Empty[T any]() Publisher[T] {
	return emptyFlow[T]{}
}

type emptyFlow[T any] struct{}

func (emptyFlow[T]) Subscribe(sub Subscriber[T]) {
	sub.OnSubscribe(cancelledSentinel)
	sub.OnComplete()
}

// Error immediately signals err without emitting any item.
func Error[T any](err error) Publisher[T] {
	return errorFlow[T]{err: err}
}

type errorFlow[T any] struct{ err error }

func (f errorFlow[T]) Subscribe(sub Subscriber[T]) {
	sub.OnSubscribe(cancelledSentinel)
	sub.OnError(f.err)
}

// Defer builds a fresh Publisher via factory for every new subscriber,
// rather than sharing one instance (§4.4 "defer").
func Defer[T any](factory func() Publisher[T]) Publisher[T] {
	return deferFlow[T]{factory: factory}
}

type deferFlow[T any] struct{ factory func() Publisher[T] }

func (f deferFlow[T]) Subscribe(sub Subscriber[T]) {
	f.factory().Subscribe(sub)
}

// Using builds a resource, a publisher over it, and disposes the
// resource once the publisher terminates or is cancelled (§4.4 "using").
func Using[T, R any](resourceFactory func() R, flowFactory func(R) Publisher[T], dispose func(R)) Publisher[T] {
	return usingFlow[T, R]{resourceFactory: resourceFactory, flowFactory: flowFactory, dispose: dispose}
}

type usingFlow[T, R any] struct {
	resourceFactory func() R
	flowFactory     func(R) Publisher[T]
	dispose         func(R)
}

func (f usingFlow[T, R]) Subscribe(sub Subscriber[T]) {
	resource := f.resourceFactory()
	var disposed bool
	once := func() {
		if !disposed {
			disposed = true
			f.dispose(resource)
		}
	}
	f.flowFactory(resource).Subscribe(&usingSubscriber[T]{sub: sub, onTerminal: once})
}

type usingSubscriber[T any] struct {
	sub        Subscriber[T]
	sub_       Subscription
	onTerminal func()
}

func (s *usingSubscriber[T]) OnSubscribe(sn Subscription) {
	s.sub_ = sn
	s.sub.OnSubscribe(&usingSubscription{inner: sn, onCancel: s.onTerminal})
}
func (s *usingSubscriber[T]) OnNext(item T) { s.sub.OnNext(item) }
func (s *usingSubscriber[T]) OnComplete() {
	s.onTerminal()
	s.sub.OnComplete()
}
func (s *usingSubscriber[T]) OnError(err error) {
	s.onTerminal()
	s.sub.OnError(err)
}

type usingSubscription struct {
	inner    Subscription
	onCancel func()
}

func (s *usingSubscription) Request(n int64) { s.inner.Request(n) }
func (s *usingSubscription) Cancel() {
	s.onCancel()
	s.inner.Cancel()
}
