// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

// Map transforms every item with f. A panic from f cancels upstream and
// surfaces as an error downstream (§4.4).
func Map[T, R any](upstream Publisher[T], f func(T) R) Publisher[R] {
	return mapFlow[T, R]{upstream: upstream, f: f}
}

type mapFlow[T, R any] struct {
	upstream Publisher[T]
	f        func(T) R
}

func (m mapFlow[T, R]) Subscribe(sub Subscriber[R]) {
	m.upstream.Subscribe(&mapSubscriber[T, R]{down: sub, f: m.f})
}

type mapSubscriber[T, R any] struct {
	down Subscriber[R]
	f    func(T) R
	sub  Subscription
}

func (s *mapSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(sub)
}

func (s *mapSubscriber[T, R]) OnNext(item T) {
	out, err := callUserFunc1(s.f, item)
	if err != nil {
		s.sub.Cancel()
		s.down.OnError(err)
		return
	}
	s.down.OnNext(out)
}

func (s *mapSubscriber[T, R]) OnComplete()     { s.down.OnComplete() }
func (s *mapSubscriber[T, R]) OnError(e error) { s.down.OnError(e) }

// Filter suppresses items for which predicate returns false, replenishing
// the downstream's request for each one dropped so upstream keeps making
// progress without downstream having to ask again (§4.4).
func Filter[T any](upstream Publisher[T], predicate func(T) bool) Publisher[T] {
	return filterFlow[T]{upstream: upstream, predicate: predicate}
}

type filterFlow[T any] struct {
	upstream  Publisher[T]
	predicate func(T) bool
}

func (f filterFlow[T]) Subscribe(sub Subscriber[T]) {
	f.upstream.Subscribe(&filterSubscriber[T]{down: sub, predicate: f.predicate})
}

type filterSubscriber[T any] struct {
	down      Subscriber[T]
	predicate func(T) bool
	sub       Subscription
}

func (s *filterSubscriber[T]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(sub)
}

func (s *filterSubscriber[T]) OnNext(item T) {
	keep, err := callUserFunc1(s.predicate, item)
	if err != nil {
		s.sub.Cancel()
		s.down.OnError(err)
		return
	}
	if keep {
		s.down.OnNext(item)
		return
	}
	s.sub.Request(1)
}

func (s *filterSubscriber[T]) OnComplete()     { s.down.OnComplete() }
func (s *filterSubscriber[T]) OnError(e error) { s.down.OnError(e) }

// Scan folds f over upstream, emitting every running accumulation
// starting from seed (seed itself is not emitted; the first emission is
// f(seed, firstItem)).
func Scan[T, R any](upstream Publisher[T], seed R, f func(R, T) R) Publisher[R] {
	return scanFlow[T, R]{upstream: upstream, seed: seed, f: f}
}

type scanFlow[T, R any] struct {
	upstream Publisher[T]
	seed     R
	f        func(R, T) R
}

func (s scanFlow[T, R]) Subscribe(sub Subscriber[R]) {
	s.upstream.Subscribe(&scanSubscriber[T, R]{down: sub, acc: s.seed, f: s.f})
}

type scanSubscriber[T, R any] struct {
	down Subscriber[R]
	acc  R
	f    func(R, T) R
	sub  Subscription
}

func (s *scanSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.sub = sub
	s.down.OnSubscribe(sub)
}

func (s *scanSubscriber[T, R]) OnNext(item T) {
	next, err := callUserFunc2(s.f, s.acc, item)
	if err != nil {
		s.sub.Cancel()
		s.down.OnError(err)
		return
	}
	s.acc = next
	s.down.OnNext(s.acc)
}

func (s *scanSubscriber[T, R]) OnComplete()     { s.down.OnComplete() }
func (s *scanSubscriber[T, R]) OnError(e error) { s.down.OnError(e) }

// callUserFunc1/callUserFunc2 recover a panicking user callback and turn
// it into an error, per §7's "user-callback error" kind: upstream is
// cancelled and downstream sees OnError, never a crashed goroutine.
func callUserFunc1[A, R any](f func(A) R, a A) (out R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = userCallbackPanic(r)
		}
	}()
	return f(a), nil
}

func callUserFunc2[A, B, R any](f func(A, B) R, a A, b B) (out R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = userCallbackPanic(r)
		}
	}()
	return f(a, b), nil
}

func userCallbackPanic(r any) error {
	if err, ok := r.(error); ok {
		return NewProtocolError("user callback panicked: " + err.Error())
	}
	return NewProtocolError("user callback panicked")
}
