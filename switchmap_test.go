// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"testing"

	flow "code.hybscloud.com/streamflow"
)

// trackingInner never emits; it exists to observe whether SwitchMap
// cancels it once superseded by a later outer item.
type trackingInner struct{ cancelled *bool }

func (t trackingInner) Subscribe(sub flow.Subscriber[int]) {
	sub.OnSubscribe(&trackingSub{cancelled: t.cancelled})
}

type trackingSub struct{ cancelled *bool }

func (s *trackingSub) Request(int64) {}
func (s *trackingSub) Cancel()       { *s.cancelled = true }

func TestSwitchMapCancelsStaleInner(t *testing.T) {
	cancelled := false
	outer := flow.Just(1, 2)
	out := flow.SwitchMap(outer, func(n int) flow.Publisher[int] {
		if n == 1 {
			return trackingInner{cancelled: &cancelled}
		}
		return flow.Just(100, 200)
	})

	c := run[int](out)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if !cancelled {
		t.Fatal("expected the stale inner (for outer item 1) to be cancelled")
	}
	want := []int{100, 200}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}
