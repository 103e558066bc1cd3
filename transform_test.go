// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"errors"
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestRangeFilterScan(t *testing.T) {
	src := flow.Range(1, 10)
	evens := flow.Filter(src, func(n int) bool { return n%2 == 0 })
	sums := flow.Scan(evens, 0, func(acc, n int) int { return acc + n })

	c := run[int](sums)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []int{2, 6, 12, 20, 30} // running sum of 2,4,6,8,10
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestMapPropagatesPanicAsError(t *testing.T) {
	boom := errors.New("boom")
	src := flow.Just(1, 2, 3)
	mapped := flow.Map(src, func(n int) int {
		if n == 2 {
			panic(boom)
		}
		return n * 10
	})

	c := run[int](mapped)
	items, completed, err := c.snapshot()
	if completed {
		t.Fatal("expected error, not completion")
	}
	if err == nil {
		t.Fatal("expected an error from the panicking mapper")
	}
	if len(items) != 1 || items[0] != 10 {
		t.Fatalf("got %v, want [10] before the panic", items)
	}
}

func TestFilterEmpty(t *testing.T) {
	src := flow.Range(1, 5)
	none := flow.Filter(src, func(int) bool { return false })
	c := run[int](none)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) != 0 {
		t.Fatalf("got %v, want empty", items)
	}
}
