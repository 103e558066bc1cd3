// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestWithLatestFromDropsMainUntilOthersHaveEmitted(t *testing.T) {
	main := &manualSource[int]{}
	other := &manualSource[int]{}
	out := flow.WithLatestFrom[int, int, int](main, func(m int, others []int) int {
		sum := m
		for _, o := range others {
			sum += o
		}
		return sum
	}, other)
	c := run[int](out)

	main.pushItem(1) // dropped: other has not emitted yet
	other.pushItem(100)
	main.pushItem(2) // 2+100
	main.pushItem(3) // 3+100
	other.pushItem(200)
	main.pushItem(4) // 4+200
	main.finish()
	other.finish()

	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	assertItems(t, items, []int{102, 103, 204})
}
