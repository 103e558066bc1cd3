// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"sync"

	flow "code.hybscloud.com/streamflow"
)

// collector is a Subscriber[T] that requests Unbounded up front and
// records everything it sees, for tests that only care about the final
// sequence rather than exercising backpressure directly.
type collector[T any] struct {
	mu        sync.Mutex
	items     []T
	completed bool
	err       error
	sub       flow.Subscription
}

func newCollector[T any]() *collector[T] { return &collector[T]{} }

func (c *collector[T]) OnSubscribe(sub flow.Subscription) {
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	sub.Request(flow.Unbounded)
}
func (c *collector[T]) OnNext(item T) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}
func (c *collector[T]) OnComplete() {
	c.mu.Lock()
	c.completed = true
	c.mu.Unlock()
}
func (c *collector[T]) OnError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *collector[T]) snapshot() ([]T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out, c.completed, c.err
}

// run subscribes c to p and returns once p has produced a terminal
// signal synchronously (true for every cold source in this package that
// is not deliberately asynchronous).
func run[T any](p flow.Publisher[T]) *collector[T] {
	c := newCollector[T]()
	p.Subscribe(c)
	return c
}
