// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"errors"
	"testing"
	"time"

	flow "code.hybscloud.com/streamflow"
)

func TestBlockingSubscribeCollectsAllItems(t *testing.T) {
	var got []int
	var gotErr error
	flow.BlockingSubscribe[int](flow.Range(1, 5), func(n int) { got = append(got, n) }, func(e error) { gotErr = e })

	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBlockingSubscribeReportsError(t *testing.T) {
	wantErr := errors.New("boom")
	var gotErr error
	flow.BlockingSubscribe[int](flow.Error[int](wantErr), func(int) {}, func(e error) { gotErr = e })

	if !errors.Is(gotErr, wantErr) {
		t.Fatalf("got %v, want %v", gotErr, wantErr)
	}
}

func TestBlockingIteratorPullsOneAtATime(t *testing.T) {
	it := flow.NewBlockingIterator[int](flow.Range(1, 3))

	var got []int
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if it.Err() != nil {
		t.Fatalf("unexpected error: %v", it.Err())
	}
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// subscribeSignalingSource never emits; it closes subscribed once its
// OnSubscribe has been delivered (NewBlockingIterator attaches on its
// own goroutine, so a test must wait for that handoff before asserting
// on cancellation) and tracks whether Cancel was ever called.
type subscribeSignalingSource struct {
	subscribed chan struct{}
	cancelled  *bool
}

func (s subscribeSignalingSource) Subscribe(sub flow.Subscriber[int]) {
	sub.OnSubscribe(&trackingSub{cancelled: s.cancelled})
	close(s.subscribed)
}

func TestBlockingIteratorStopCancelsUpstream(t *testing.T) {
	cancelled := false
	src := subscribeSignalingSource{subscribed: make(chan struct{}), cancelled: &cancelled}
	it := flow.NewBlockingIterator[int](src)

	select {
	case <-src.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the iterator to subscribe")
	}

	it.Stop()
	it.Stop() // idempotent

	if !cancelled {
		t.Fatal("expected upstream subscription to be cancelled")
	}
}
