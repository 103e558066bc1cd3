// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestDefaultIfEmptyEmitsValueWhenUpstreamEmpty(t *testing.T) {
	out := flow.DefaultIfEmpty[int](flow.Empty[int](), 42)
	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) != 1 || items[0] != 42 {
		t.Fatalf("got %v, want [42]", items)
	}
}

func TestDefaultIfEmptyPassesThroughNonEmpty(t *testing.T) {
	out := flow.DefaultIfEmpty[int](flow.Just(1, 2, 3), 42)
	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{1, 2, 3}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestSwitchIfEmptySwitchesWhenUpstreamEmpty(t *testing.T) {
	out := flow.SwitchIfEmpty[int](flow.Empty[int](), flow.Just(7, 8))
	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{7, 8}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestSwitchIfEmptyNeverSubscribesAlternateWhenNonEmpty(t *testing.T) {
	subscribed := false
	alt := trackingAlternate{subscribed: &subscribed}
	out := flow.SwitchIfEmpty[int](flow.Just(1), alt)
	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) != 1 || items[0] != 1 {
		t.Fatalf("got %v, want [1]", items)
	}
	if subscribed {
		t.Fatal("alternate must not be subscribed to when upstream is non-empty")
	}
}

type trackingAlternate struct{ subscribed *bool }

func (a trackingAlternate) Subscribe(sub flow.Subscriber[int]) {
	*a.subscribed = true
	sub.OnSubscribe(noopSubscription{})
	sub.OnComplete()
}
