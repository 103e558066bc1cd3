// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"testing"
	"time"

	flow "code.hybscloud.com/streamflow"
	"code.hybscloud.com/streamflow/executor"
)

func TestObserveOnDeliversOnTargetWorker(t *testing.T) {
	target := executor.NewSingle()
	out := flow.ObserveOn[int](flow.Range(1, 5), target, 4)
	c := run[int](out)

	items := waitForItems(t, c, 5)
	want := []int{1, 2, 3, 4, 5}
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

func TestSubscribeOnSubscribesUpstreamAndRelaysSignals(t *testing.T) {
	target := executor.NewSingle()
	callerGoroutine := make(chan bool, 1)
	source := subscribeObservingSource{subscribedOnCaller: callerGoroutine}
	out := flow.SubscribeOn[int](source, target, false)

	c := run[int](out)

	select {
	case <-callerGoroutine:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upstream subscription")
	}

	waitForCompletion(t, c)
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

// subscribeObservingSource signals on a buffered channel each time its
// Subscribe runs, then emits 42 and completes. It does not record which
// goroutine ran it.
type subscribeObservingSource struct {
	subscribedOnCaller chan bool
}

func (s subscribeObservingSource) Subscribe(sub flow.Subscriber[int]) {
	s.subscribedOnCaller <- true
	sub.OnSubscribe(noopSubscription{})
	sub.OnNext(42)
	sub.OnComplete()
}
