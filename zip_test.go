// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestZipTerminatesWithShortestSource(t *testing.T) {
	a := flow.Range(1, 5)  // 1..5
	b := flow.Range(10, 2) // 10,11

	zipped := flow.Zip(func(vs []int) int { return vs[0] + vs[1] }, 8, a, b)
	c := run[int](zipped)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion once the shorter source is drained")
	}
	want := []int{11, 13} // (1+10), (2+11)
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestCombineLatestWaitsForEverySourceOnce(t *testing.T) {
	a := flow.Just(1, 2)
	b := flow.Just(100)

	combined := flow.CombineLatest(func(vs []int) int { return vs[0] + vs[1] }, 8, a, b)
	c := run[int](combined)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) == 0 {
		t.Fatal("expected at least one combined emission")
	}
	last := items[len(items)-1]
	if last != 102 {
		t.Fatalf("last combined value: got %d, want 102", last)
	}
}

func TestAmbFirstSourceWins(t *testing.T) {
	// Both sources are cold and synchronous, so whichever is subscribed
	// to first delivers its first signal first and wins the race.
	first := flow.Just(1, 2, 3)
	second := flow.Just(100, 200, 300)

	race := flow.Amb(first, second)
	c := run[int](race)
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
			t.Fatalf("got %v, want %v (second source's items must not appear)", items, want)
		}
	}
}
