// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"errors"
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestConcatRunsSourcesInOrder(t *testing.T) {
	out := flow.Concat[int](false, flow.Just(1, 2), flow.Just(3, 4), flow.Just(5))
	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{1, 2, 3, 4, 5}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestConcatStopsAtFirstErrorWithoutDelay(t *testing.T) {
	boom := errors.New("boom")
	out := flow.Concat[int](false, flow.Just(1), flow.Error[int](boom), flow.Just(2))
	c := run[int](out)
	items, completed, err := c.snapshot()
	if completed {
		t.Fatal("expected error, not completion")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if len(items) != 1 || items[0] != 1 {
		t.Fatalf("got %v, want [1]", items)
	}
}

func TestConcatDelayErrorsRunsEverySourceFirst(t *testing.T) {
	boom := errors.New("boom")
	out := flow.Concat[int](true, flow.Just(1), flow.Error[int](boom), flow.Just(2))
	c := run[int](out)
	items, completed, err := c.snapshot()
	if completed {
		t.Fatal("expected error, not completion")
	}
	if err == nil {
		t.Fatal("expected a composite error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want it to wrap %v", err, boom)
	}
	want := []int{1, 2}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestConcatMapFlattensInOuterOrder(t *testing.T) {
	out := flow.ConcatMap[int, int](flow.Range(1, 3), func(n int) flow.Publisher[int] {
		return flow.Range(n*10, 2)
	}, 4, false)
	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{10, 11, 20, 21, 30, 31}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestConcatEagerPreservesArrivalOrderAcrossConcurrentInners(t *testing.T) {
	out := flow.ConcatEager[int](16, 3, flow.Just(1, 2), flow.Just(3, 4), flow.Just(5, 6))
	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{1, 2, 3, 4, 5, 6}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}
