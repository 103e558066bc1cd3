// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func assertItems(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTakeLimitsAndCancelsUpstream(t *testing.T) {
	c := run[int](flow.Take[int](flow.Range(1, 10), 3, true))
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{1, 2, 3})
}

func TestTakeZeroCompletesImmediately(t *testing.T) {
	c := run[int](flow.Take[int](flow.Range(1, 10), 0, true))
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed || len(items) != 0 {
		t.Fatalf("got items=%v completed=%v, want empty and completed", items, completed)
	}
}

func TestSkipDropsLeadingItems(t *testing.T) {
	c := run[int](flow.Skip[int](flow.Range(1, 5), 2))
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{3, 4, 5})
}

func TestTakeWhilePassesThroughUntilPredicateFails(t *testing.T) {
	c := run[int](flow.TakeWhile[int](flow.Range(1, 10), func(n int) bool { return n < 4 }))
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{1, 2, 3})
}

func TestSkipWhileDropsUntilPredicateFails(t *testing.T) {
	c := run[int](flow.SkipWhile[int](flow.Range(1, 6), func(n int) bool { return n < 4 }))
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{4, 5, 6})
}

func TestTakeUntilStopsWhenOtherEmits(t *testing.T) {
	main := &manualSource[int]{}
	other := &manualSource[struct{}]{}
	out := flow.TakeUntil[int, struct{}](main, other)
	c := run[int](out)

	main.pushItem(1)
	main.pushItem(2)
	other.pushItem(struct{}{})
	main.pushItem(3) // dropped: already terminated

	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion once other signals")
	}
	assertItems(t, items, []int{1, 2})
}

func TestSkipUntilStartsPassingAfterOtherEmits(t *testing.T) {
	main := &manualSource[int]{}
	other := &manualSource[struct{}]{}
	out := flow.SkipUntil[int, struct{}](main, other)
	c := run[int](out)

	main.pushItem(1)
	other.pushItem(struct{}{})
	main.pushItem(2)
	main.pushItem(3)
	main.finish()

	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{2, 3})
}

func TestTakeLastKeepsOnlyMostRecentN(t *testing.T) {
	c := run[int](flow.TakeLast[int](flow.Range(1, 10), 3))
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{8, 9, 10})
}

func TestSkipLastWithholdsMostRecentN(t *testing.T) {
	c := run[int](flow.SkipLast[int](flow.Range(1, 5), 2))
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{1, 2, 3})
}
