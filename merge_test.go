// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"sort"
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestMergeInterleavesAllSources(t *testing.T) {
	a := flow.Just(1, 2, 3)
	b := flow.Just(10, 20, 30)
	merged := flow.Merge(16, a, b)

	c := run[int](merged)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) != 6 {
		t.Fatalf("got %d items, want 6: %v", len(items), items)
	}
	sort.Ints(items)
	want := []int{1, 2, 3, 10, 20, 30}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestMergeNoSourcesCompletesImmediately(t *testing.T) {
	merged := flow.Merge[int](16)
	c := run[int](merged)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion with zero sources")
	}
	if len(items) != 0 {
		t.Fatalf("got %v, want empty", items)
	}
}

func TestFlatMapFlattensInnerPublishers(t *testing.T) {
	src := flow.Range(1, 3) // 1, 2, 3
	out := flow.FlatMap(src, func(n int) flow.Publisher[int] {
		return flow.Range(n*10, 2) // [n*10, n*10+1]
	}, 16, false)

	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) != 6 {
		t.Fatalf("got %d items, want 6: %v", len(items), items)
	}
	sort.Ints(items)
	want := []int{10, 11, 20, 21, 30, 31}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestFlatMapEnumerableFlattensSlices(t *testing.T) {
	src := flow.Just(1, 2, 3)
	out := flow.FlatMapEnumerable(src, func(n int) []int {
		return []int{n, n}
	}, 16)

	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{1, 1, 2, 2, 3, 3}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}
