// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"sync"
	"testing"
	"time"

	flow "code.hybscloud.com/streamflow"
	"code.hybscloud.com/streamflow/executor"
)

// manualSource is a Publisher that never completes on its own; pushItem
// feeds items directly and finish closes it out, both safe to call from
// a test goroutine independently of when/whether a subscriber attaches.
type manualSource[T any] struct {
	mu   sync.Mutex
	subs []flow.Subscriber[T]
}

func (s *manualSource[T]) Subscribe(sub flow.Subscriber[T]) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	sub.OnSubscribe(noopSubscription{})
}

func (s *manualSource[T]) pushItem(v T) {
	s.mu.Lock()
	subs := append([]flow.Subscriber[T](nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.OnNext(v)
	}
}

func (s *manualSource[T]) finish() {
	s.mu.Lock()
	subs := append([]flow.Subscriber[T](nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.OnComplete()
	}
}

func waitForItems[T any](t *testing.T, c *collector[T], n int) []T {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		items, _, _ := c.snapshot()
		if len(items) >= n {
			return items
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d items, got %v", n, items)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSampleEmitsLatestOnEachTick(t *testing.T) {
	upstream := &manualSource[int]{}
	sampler := &manualSource[struct{}]{}
	out := flow.Sample[int, struct{}](upstream, sampler)
	c := run[int](out)

	upstream.pushItem(1)
	upstream.pushItem(2)
	sampler.pushItem(struct{}{})
	sampler.pushItem(struct{}{}) // nothing new since last tick: emits nothing
	upstream.pushItem(3)
	sampler.pushItem(struct{}{})
	upstream.finish()
	sampler.finish()

	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{2, 3}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestDebounceFlushesAfterQuietPeriod(t *testing.T) {
	upstream := &manualSource[int]{}
	target := executor.NewSingle()
	out := flow.Debounce[int](upstream, 20*time.Millisecond, target)
	c := run[int](out)

	upstream.pushItem(1)
	upstream.pushItem(2)
	upstream.pushItem(3) // only the last of this burst should survive

	items := waitForItems(t, c, 1)
	if len(items) != 1 || items[0] != 3 {
		t.Fatalf("got %v, want [3]", items)
	}

	upstream.finish()
	waitForCompletion(t, c)
}

func TestDebounceFlushesPendingItemOnComplete(t *testing.T) {
	upstream := &manualSource[int]{}
	target := executor.NewSingle()
	out := flow.Debounce[int](upstream, time.Hour, target)
	c := run[int](out)

	upstream.pushItem(7)
	upstream.finish()

	items := waitForItems(t, c, 1)
	if len(items) != 1 || items[0] != 7 {
		t.Fatalf("got %v, want [7]", items)
	}
	waitForCompletion(t, c)
}

func TestThrottleFirstEmitsOnlyFirstPerWindow(t *testing.T) {
	upstream := &manualSource[int]{}
	target := executor.NewSingle()
	out := flow.ThrottleFirst[int](upstream, 50*time.Millisecond, target)
	c := run[int](out)

	upstream.pushItem(1)
	upstream.pushItem(2)
	upstream.pushItem(3)
	upstream.finish()

	items := waitForItems(t, c, 1)
	if items[0] != 1 {
		t.Fatalf("got %v, want first item 1 leading", items)
	}
	waitForCompletion(t, c)
}

func TestThrottleLastEmitsOnEachTick(t *testing.T) {
	upstream := &manualSource[int]{}
	target := executor.NewSingle()
	out := flow.ThrottleLast[int](upstream, 20*time.Millisecond, target)
	c := run[int](out)

	upstream.pushItem(1)
	upstream.pushItem(2)

	items := waitForItems(t, c, 1)
	if items[len(items)-1] != 2 {
		t.Fatalf("got %v, want last seen item 2 to have ticked through", items)
	}
	upstream.finish()
}

func waitForCompletion[T any](t *testing.T, c *collector[T]) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, completed, err := c.snapshot()
		if completed || err != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for completion")
		}
		time.Sleep(time.Millisecond)
	}
}
