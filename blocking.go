// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync"

// BlockingSubscribe subscribes to p and blocks the calling goroutine until
// p terminates, invoking onNext for each item and, on failure, onError.
// No operator in this package blocks by design (§5); this bridge utility
// is the deliberate exception, for callers outside a reactive chain.
func BlockingSubscribe[T any](p Publisher[T], onNext func(T), onError func(error)) {
	done := make(chan struct{})
	p.Subscribe(&blockingSubscriber[T]{onNext: onNext, onError: onError, done: done})
	<-done
}

type blockingSubscriber[T any] struct {
	onNext  func(T)
	onError func(error)
	done    chan struct{}
}

func (s *blockingSubscriber[T]) OnSubscribe(sub Subscription) { sub.Request(Unbounded) }
func (s *blockingSubscriber[T]) OnNext(item T) {
	if s.onNext != nil {
		s.onNext(item)
	}
}
func (s *blockingSubscriber[T]) OnComplete() { close(s.done) }
func (s *blockingSubscriber[T]) OnError(e error) {
	if s.onError != nil {
		s.onError(e)
	}
	close(s.done)
}

// BlockingIterator exposes a Publisher[T] as a pull-based iterator for
// code outside a reactive chain: it requests one item at a time, so the
// upstream is only ever as far ahead as one buffered item.
type BlockingIterator[T any] struct {
	items chan T
	errCh chan error

	mu   sync.Mutex
	sub  Subscription
	once sync.Once
}

// NewBlockingIterator subscribes to p on a dedicated goroutine (a
// synchronous source would otherwise deadlock delivering its first item
// before this constructor could return the iterator to read it).
func NewBlockingIterator[T any](p Publisher[T]) *BlockingIterator[T] {
	it := &BlockingIterator[T]{items: make(chan T), errCh: make(chan error, 1)}
	go p.Subscribe(&blockingIteratorSubscriber[T]{it: it})
	return it
}

// Next blocks for the next item. ok is false once the stream has
// completed or errored; check Err to tell the two apart.
func (it *BlockingIterator[T]) Next() (item T, ok bool) {
	v, open := <-it.items
	if !open {
		return item, false
	}
	return v, true
}

// Err returns the terminal error, if the stream ended with one.
func (it *BlockingIterator[T]) Err() error {
	select {
	case e := <-it.errCh:
		return e
	default:
		return nil
	}
}

// Stop cancels the underlying subscription; idempotent.
func (it *BlockingIterator[T]) Stop() {
	it.once.Do(func() {
		it.mu.Lock()
		sub := it.sub
		it.mu.Unlock()
		if sub != nil {
			sub.Cancel()
		}
	})
}

type blockingIteratorSubscriber[T any] struct{ it *BlockingIterator[T] }

func (s *blockingIteratorSubscriber[T]) OnSubscribe(sub Subscription) {
	s.it.mu.Lock()
	s.it.sub = sub
	s.it.mu.Unlock()
	sub.Request(1)
}
func (s *blockingIteratorSubscriber[T]) OnNext(item T) {
	s.it.items <- item
	s.it.mu.Lock()
	sub := s.it.sub
	s.it.mu.Unlock()
	sub.Request(1)
}
func (s *blockingIteratorSubscriber[T]) OnComplete() { close(s.it.items) }
func (s *blockingIteratorSubscriber[T]) OnError(e error) {
	s.it.errCh <- e
	close(s.it.items)
}
