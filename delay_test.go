// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"errors"
	"testing"
	"time"

	flow "code.hybscloud.com/streamflow"
	"code.hybscloud.com/streamflow/executor"
)

func TestDelayPreservesOrderAndAddsLatency(t *testing.T) {
	target := executor.NewSingle()
	out := flow.Delay[int](flow.Range(1, 3), 20*time.Millisecond, target)

	start := time.Now()
	c := run[int](out)
	items := waitForItems(t, c, 3)
	elapsed := time.Since(start)

	want := []int{1, 2, 3}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
	if elapsed < 20*time.Millisecond {
		t.Fatalf("items arrived too fast (%v), delay not honored", elapsed)
	}
	waitForCompletion(t, c)
}

func TestDelayDoesNotDelayErrors(t *testing.T) {
	target := executor.NewSingle()
	wantErr := flow.NewOverflowError("probe")
	out := flow.Delay[int](flow.Error[int](wantErr), time.Hour, target)

	c := run[int](out)
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, err := c.snapshot()
		if err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for error")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTimeoutFiresWhenUpstreamStalls(t *testing.T) {
	upstream := &manualSource[int]{}
	target := executor.NewSingle()
	out := flow.Timeout[int](upstream, 20*time.Millisecond, 20*time.Millisecond, target, nil)
	c := run[int](out)

	var gotErr error
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, err := c.snapshot()
		if err != nil {
			gotErr = err
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for timeout error")
		}
		time.Sleep(time.Millisecond)
	}
	var timeoutErr *flow.TimeoutError
	if !errors.As(gotErr, &timeoutErr) {
		t.Fatalf("got %v, want a *flow.TimeoutError", gotErr)
	}
}

func TestTimeoutSwitchesToFallback(t *testing.T) {
	upstream := &manualSource[int]{}
	target := executor.NewSingle()
	fallback := flow.Just(9, 10)
	out := flow.Timeout[int](upstream, 20*time.Millisecond, 20*time.Millisecond, target, fallback)
	c := run[int](out)

	items := waitForItems(t, c, 2)
	want := []int{9, 10}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
	waitForCompletion(t, c)
}
