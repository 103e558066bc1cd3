// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

// Take emits at most n items then cancels upstream and completes. If
// limitRequest is true, exactly n is requested upfront regardless of what
// downstream asks for; otherwise downstream's own requests pass through
// and any items beyond the n-th are dropped at the cutoff (§4.4).
func Take[T any](upstream Publisher[T], n int64, limitRequest bool) Publisher[T] {
	return takeFlow[T]{upstream: upstream, n: n, limitRequest: limitRequest}
}

type takeFlow[T any] struct {
	upstream     Publisher[T]
	n            int64
	limitRequest bool
}

func (t takeFlow[T]) Subscribe(sub Subscriber[T]) {
	if t.n <= 0 {
		sub.OnSubscribe(cancelledSentinel)
		sub.OnComplete()
		return
	}
	t.upstream.Subscribe(&takeSubscriber[T]{down: sub, remaining: t.n, limitRequest: t.limitRequest})
}

type takeSubscriber[T any] struct {
	down         Subscriber[T]
	sub          Subscription
	remaining    int64
	limitRequest bool
	done         bool
}

func (s *takeSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(&takeSubscription[T]{s: s})
	if s.limitRequest {
		sub.Request(s.remaining)
	}
}

func (s *takeSubscriber[T]) OnNext(item T) {
	if s.done || s.remaining <= 0 {
		return
	}
	s.remaining--
	s.down.OnNext(item)
	if s.remaining == 0 {
		s.done = true
		s.sub.Cancel()
		s.down.OnComplete()
	}
}

func (s *takeSubscriber[T]) OnComplete() {
	if !s.done {
		s.done = true
		s.down.OnComplete()
	}
}

func (s *takeSubscriber[T]) OnError(err error) {
	if !s.done {
		s.done = true
		s.down.OnError(err)
	}
}

type takeSubscription[T any] struct{ s *takeSubscriber[T] }

func (t *takeSubscription[T]) Request(n int64) {
	if t.s.limitRequest || n <= 0 {
		return
	}
	t.s.sub.Request(n)
}
func (t *takeSubscription[T]) Cancel() { t.s.sub.Cancel() }

// Skip drops the first n items then passes the rest through unchanged.
func Skip[T any](upstream Publisher[T], n int64) Publisher[T] {
	return skipFlow[T]{upstream: upstream, n: n}
}

type skipFlow[T any] struct {
	upstream Publisher[T]
	n        int64
}

func (s skipFlow[T]) Subscribe(sub Subscriber[T]) {
	s.upstream.Subscribe(&skipSubscriber[T]{down: sub, remaining: s.n})
}

type skipSubscriber[T any] struct {
	down      Subscriber[T]
	sub       Subscription
	remaining int64
}

func (s *skipSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(sub)
}

func (s *skipSubscriber[T]) OnNext(item T) {
	if s.remaining > 0 {
		s.remaining--
		s.sub.Request(1)
		return
	}
	s.down.OnNext(item)
}

func (s *skipSubscriber[T]) OnComplete()     { s.down.OnComplete() }
func (s *skipSubscriber[T]) OnError(e error) { s.down.OnError(e) }

// TakeWhile passes items through while predicate holds, then cancels
// upstream and completes on the first item for which it returns false
// (that item is not emitted).
func TakeWhile[T any](upstream Publisher[T], predicate func(T) bool) Publisher[T] {
	return takeWhileFlow[T]{upstream: upstream, predicate: predicate}
}

type takeWhileFlow[T any] struct {
	upstream  Publisher[T]
	predicate func(T) bool
}

func (t takeWhileFlow[T]) Subscribe(sub Subscriber[T]) {
	t.upstream.Subscribe(&takeWhileSubscriber[T]{down: sub, predicate: t.predicate})
}

type takeWhileSubscriber[T any] struct {
	down      Subscriber[T]
	sub       Subscription
	predicate func(T) bool
	done      bool
}

func (s *takeWhileSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(sub)
}

func (s *takeWhileSubscriber[T]) OnNext(item T) {
	if s.done {
		return
	}
	keep, err := callUserFunc1(s.predicate, item)
	if err != nil {
		s.done = true
		s.sub.Cancel()
		s.down.OnError(err)
		return
	}
	if !keep {
		s.done = true
		s.sub.Cancel()
		s.down.OnComplete()
		return
	}
	s.down.OnNext(item)
}

func (s *takeWhileSubscriber[T]) OnComplete() {
	if !s.done {
		s.done = true
		s.down.OnComplete()
	}
}
func (s *takeWhileSubscriber[T]) OnError(e error) {
	if !s.done {
		s.done = true
		s.down.OnError(e)
	}
}

// SkipWhile drops items while predicate holds, then passes through
// everything from (and including) the first item for which it returns
// false.
func SkipWhile[T any](upstream Publisher[T], predicate func(T) bool) Publisher[T] {
	return skipWhileFlow[T]{upstream: upstream, predicate: predicate}
}

type skipWhileFlow[T any] struct {
	upstream  Publisher[T]
	predicate func(T) bool
}

func (s skipWhileFlow[T]) Subscribe(sub Subscriber[T]) {
	s.upstream.Subscribe(&skipWhileSubscriber[T]{down: sub, predicate: s.predicate, skipping: true})
}

type skipWhileSubscriber[T any] struct {
	down      Subscriber[T]
	sub       Subscription
	predicate func(T) bool
	skipping  bool
}

func (s *skipWhileSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(sub)
}

func (s *skipWhileSubscriber[T]) OnNext(item T) {
	if s.skipping {
		keep, err := callUserFunc1(s.predicate, item)
		if err != nil {
			s.sub.Cancel()
			s.down.OnError(err)
			return
		}
		if keep {
			s.sub.Request(1)
			return
		}
		s.skipping = false
	}
	s.down.OnNext(item)
}

func (s *skipWhileSubscriber[T]) OnComplete()     { s.down.OnComplete() }
func (s *skipWhileSubscriber[T]) OnError(e error) { s.down.OnError(e) }

// TakeUntil passes upstream items through until other emits any signal
// (next, complete, or error), at which point upstream is cancelled and
// downstream completes.
func TakeUntil[T, U any](upstream Publisher[T], other Publisher[U]) Publisher[T] {
	return takeUntilFlow[T, U]{upstream: upstream, other: other}
}

type takeUntilFlow[T, U any] struct {
	upstream Publisher[T]
	other    Publisher[U]
}

func (t takeUntilFlow[T, U]) Subscribe(sub Subscriber[T]) {
	s := &takeUntilSubscriber[T, U]{down: sub}
	t.upstream.Subscribe(s)
	t.other.Subscribe(&takeUntilOtherSubscriber[T, U]{parent: s})
}

type takeUntilSubscriber[T, U any] struct {
	down      Subscriber[T]
	mainSub   Subscription
	otherSub  Subscription
	done      bool
}

func (s *takeUntilSubscriber[T, U]) OnSubscribe(sub Subscription) {
	s.mainSub = sub
	s.down.OnSubscribe(&takeUntilSubscription[T, U]{s: s})
}
func (s *takeUntilSubscriber[T, U]) OnNext(item T) {
	if !s.done {
		s.down.OnNext(item)
	}
}
func (s *takeUntilSubscriber[T, U]) OnComplete() {
	if !s.done {
		s.done = true
		if s.otherSub != nil {
			s.otherSub.Cancel()
		}
		s.down.OnComplete()
	}
}
func (s *takeUntilSubscriber[T, U]) OnError(e error) {
	if !s.done {
		s.done = true
		if s.otherSub != nil {
			s.otherSub.Cancel()
		}
		s.down.OnError(e)
	}
}
func (s *takeUntilSubscriber[T, U]) terminateFromOther() {
	if !s.done {
		s.done = true
		if s.mainSub != nil {
			s.mainSub.Cancel()
		}
		s.down.OnComplete()
	}
}

type takeUntilSubscription[T, U any] struct{ s *takeUntilSubscriber[T, U] }

func (t *takeUntilSubscription[T, U]) Request(n int64) {
	if t.s.mainSub != nil {
		t.s.mainSub.Request(n)
	}
}
func (t *takeUntilSubscription[T, U]) Cancel() {
	if t.s.mainSub != nil {
		t.s.mainSub.Cancel()
	}
	if t.s.otherSub != nil {
		t.s.otherSub.Cancel()
	}
}

type takeUntilOtherSubscriber[T, U any] struct {
	parent *takeUntilSubscriber[T, U]
}

func (o *takeUntilOtherSubscriber[T, U]) OnSubscribe(sub Subscription) {
	o.parent.otherSub = sub
	sub.Request(1)
}
func (o *takeUntilOtherSubscriber[T, U]) OnNext(U)   { o.parent.terminateFromOther() }
func (o *takeUntilOtherSubscriber[T, U]) OnComplete() { o.parent.terminateFromOther() }
func (o *takeUntilOtherSubscriber[T, U]) OnError(error) { o.parent.terminateFromOther() }

// SkipUntil drops upstream items until other emits its first item, then
// passes everything after that through unchanged.
func SkipUntil[T, U any](upstream Publisher[T], other Publisher[U]) Publisher[T] {
	return skipUntilFlow[T, U]{upstream: upstream, other: other}
}

type skipUntilFlow[T, U any] struct {
	upstream Publisher[T]
	other    Publisher[U]
}

func (f skipUntilFlow[T, U]) Subscribe(sub Subscriber[T]) {
	s := &skipUntilSubscriber[T, U]{down: sub}
	f.upstream.Subscribe(s)
	f.other.Subscribe(&skipUntilOtherSubscriber[T, U]{parent: s})
}

type skipUntilSubscriber[T, U any] struct {
	down     Subscriber[T]
	mainSub  Subscription
	otherSub Subscription
	gate     bool
	done     bool
}

func (s *skipUntilSubscriber[T, U]) OnSubscribe(sub Subscription) {
	s.mainSub = sub
	s.down.OnSubscribe(sub)
}
func (s *skipUntilSubscriber[T, U]) OnNext(item T) {
	if s.gate && !s.done {
		s.down.OnNext(item)
		return
	}
	if s.mainSub != nil {
		s.mainSub.Request(1)
	}
}
func (s *skipUntilSubscriber[T, U]) OnComplete() {
	if !s.done {
		s.done = true
		if s.otherSub != nil {
			s.otherSub.Cancel()
		}
		s.down.OnComplete()
	}
}
func (s *skipUntilSubscriber[T, U]) OnError(e error) {
	if !s.done {
		s.done = true
		if s.otherSub != nil {
			s.otherSub.Cancel()
		}
		s.down.OnError(e)
	}
}

type skipUntilOtherSubscriber[T, U any] struct {
	parent *skipUntilSubscriber[T, U]
}

func (o *skipUntilOtherSubscriber[T, U]) OnSubscribe(sub Subscription) {
	o.parent.otherSub = sub
	sub.Request(1)
}
func (o *skipUntilOtherSubscriber[T, U]) OnNext(U) {
	o.parent.gate = true
	if o.parent.otherSub != nil {
		o.parent.otherSub.Cancel()
	}
}
func (o *skipUntilOtherSubscriber[T, U]) OnComplete() {}
func (o *skipUntilOtherSubscriber[T, U]) OnError(e error) {
	if !o.parent.done {
		o.parent.done = true
		if o.parent.mainSub != nil {
			o.parent.mainSub.Cancel()
		}
		o.parent.down.OnError(e)
	}
}

// TakeLast keeps a ring buffer of the last n items and drains it on
// upstream completion, emitting them in original order.
func TakeLast[T any](upstream Publisher[T], n int) Publisher[T] {
	return takeLastFlow[T]{upstream: upstream, n: n}
}

type takeLastFlow[T any] struct {
	upstream Publisher[T]
	n        int
}

func (t takeLastFlow[T]) Subscribe(sub Subscriber[T]) {
	if t.n <= 0 {
		sub.OnSubscribe(cancelledSentinel)
		sub.OnComplete()
		return
	}
	t.upstream.Subscribe(&takeLastSubscriber[T]{down: sub, buf: make([]T, t.n), cap: t.n})
}

// takeLastSubscriber's ring buffer is deliberately the same fixed-size,
// slot-recycling shape as the stagingQueue ring in drain.go: a backing
// array reused in place, advancing a write cursor modulo capacity, rather
// than reallocating or shifting on every push.
type takeLastSubscriber[T any] struct {
	down Subscriber[T]
	sub  Subscription
	buf  []T
	cap  int
	size int
	head int
}

func (s *takeLastSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(&takeLastSubscription[T]{s: s})
	sub.Request(Unbounded)
}

func (s *takeLastSubscriber[T]) OnNext(item T) {
	idx := (s.head + s.size) % s.cap
	if s.size < s.cap {
		s.buf[idx] = item
		s.size++
	} else {
		s.buf[s.head] = item
		s.head = (s.head + 1) % s.cap
	}
}

func (s *takeLastSubscriber[T]) OnComplete() {
	for i := 0; i < s.size; i++ {
		s.down.OnNext(s.buf[(s.head+i)%s.cap])
	}
	s.down.OnComplete()
}

func (s *takeLastSubscriber[T]) OnError(e error) { s.down.OnError(e) }

type takeLastSubscription[T any] struct{ s *takeLastSubscriber[T] }

func (t *takeLastSubscription[T]) Request(int64) {}
func (t *takeLastSubscription[T]) Cancel()       { t.s.sub.Cancel() }

// SkipLast withholds the last n items: it buffers the most recent n
// arrivals and only emits the oldest buffered item once the buffer is
// full and a new item displaces it.
func SkipLast[T any](upstream Publisher[T], n int) Publisher[T] {
	return skipLastFlow[T]{upstream: upstream, n: n}
}

type skipLastFlow[T any] struct {
	upstream Publisher[T]
	n        int
}

func (f skipLastFlow[T]) Subscribe(sub Subscriber[T]) {
	if f.n <= 0 {
		f.upstream.Subscribe(sub)
		return
	}
	f.upstream.Subscribe(&skipLastSubscriber[T]{down: sub, buf: make([]T, 0, f.n), n: f.n})
}

type skipLastSubscriber[T any] struct {
	down Subscriber[T]
	sub  Subscription
	buf  []T
	n    int
	head int
}

func (s *skipLastSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(sub)
}

func (s *skipLastSubscriber[T]) OnNext(item T) {
	if len(s.buf) < s.n {
		s.buf = append(s.buf, item)
		s.sub.Request(1)
		return
	}
	out := s.buf[s.head]
	s.buf[s.head] = item
	s.head = (s.head + 1) % s.n
	s.down.OnNext(out)
}

func (s *skipLastSubscriber[T]) OnComplete()     { s.down.OnComplete() }
func (s *skipLastSubscriber[T]) OnError(e error) { s.down.OnError(e) }
