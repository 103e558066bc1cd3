// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"sync"
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestDirectProcessorBroadcastsToEverySubscriber(t *testing.T) {
	p := flow.NewDirectProcessor[int]()
	a := run[int](p)
	b := run[int](p)

	p.OnNext(1)
	p.OnNext(2)
	p.OnComplete()

	for name, c := range map[string]*collector[int]{"a": a, "b": b} {
		items, completed, err := c.snapshot()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !completed {
			t.Fatalf("%s: expected completion", name)
		}
		if len(items) != 2 || items[0] != 1 || items[1] != 2 {
			t.Fatalf("%s: got %v, want [1 2]", name, items)
		}
	}
}

func TestNewSubjectIsSafeForConcurrentPush(t *testing.T) {
	push, pub := flow.NewSubject[int]()
	c := run[int](pub)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				push.OnNext(base*25 + i)
			}
		}(g)
	}
	wg.Wait()
	push.OnComplete()

	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) != 100 {
		t.Fatalf("got %d items, want 100", len(items))
	}
}

func TestConnectableFlowableSharesOneUpstreamSubscription(t *testing.T) {
	subscribes := 0
	source := flow.Defer(func() flow.Publisher[int] {
		subscribes++
		return flow.Just(1, 2, 3)
	})
	conn := flow.Publish[int](source)

	a := run[int](conn)
	b := run[int](conn)
	conn.Connect()

	for name, c := range map[string]*collector[int]{"a": a, "b": b} {
		items, completed, err := c.snapshot()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !completed {
			t.Fatalf("%s: expected completion", name)
		}
		want := []int{1, 2, 3}
		if len(items) != len(want) {
			t.Fatalf("%s: got %v, want %v", name, items, want)
		}
	}
	if subscribes != 1 {
		t.Fatalf("got %d upstream subscriptions, want exactly 1", subscribes)
	}
}

func TestAutoConnectConnectsOnKthSubscriber(t *testing.T) {
	subscribes := 0
	source := flow.Defer(func() flow.Publisher[int] {
		subscribes++
		return flow.Just(1, 2, 3)
	})
	auto := flow.Publish[int](source).AutoConnect(2)

	a := run[int](auto)
	if subscribes != 0 {
		t.Fatalf("got %d upstream subscriptions after 1st subscriber, want 0", subscribes)
	}
	b := run[int](auto)
	if subscribes != 1 {
		t.Fatalf("got %d upstream subscriptions after 2nd subscriber, want 1", subscribes)
	}

	for name, c := range map[string]*collector[int]{"a": a, "b": b} {
		_, completed, err := c.snapshot()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !completed {
			t.Fatalf("%s: expected completion", name)
		}
	}
}

func TestReplayFlowReplaysBacklogToLateSubscribers(t *testing.T) {
	r := flow.NewReplayFlow[int](10)
	r.OnNext(1)
	r.OnNext(2)

	early := run[int](r)

	r.OnNext(3)
	r.OnComplete()

	late := run[int](r)

	earlyItems, earlyDone, err := early.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !earlyDone {
		t.Fatal("expected early subscriber to complete")
	}
	wantEarly := []int{1, 2, 3}
	if len(earlyItems) != len(wantEarly) {
		t.Fatalf("early: got %v, want %v", earlyItems, wantEarly)
	}

	lateItems, lateDone, err := late.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lateDone {
		t.Fatal("expected late subscriber to complete")
	}
	wantLate := []int{1, 2, 3}
	if len(lateItems) != len(wantLate) {
		t.Fatalf("late: got %v, want %v", lateItems, wantLate)
	}
	for i := range wantLate {
		if lateItems[i] != wantLate[i] {
			t.Fatalf("late: got %v, want %v", lateItems, wantLate)
		}
	}
}

func TestRefcountDisconnectsUpstreamAfterLastSubscriberCancels(t *testing.T) {
	cancelled := false
	source := trackingInner{cancelled: &cancelled} // never emits; Refcount's disconnect is observed via Cancel
	shared := flow.Refcount[int](flow.Publish[int](source))

	var subA, subB flow.Subscription
	a := &capturingSubscriber[int]{onSubscribe: func(s flow.Subscription) { subA = s }}
	shared.Subscribe(a)
	b := &capturingSubscriber[int]{onSubscribe: func(s flow.Subscription) { subB = s }}
	shared.Subscribe(b)

	if cancelled {
		t.Fatal("upstream must stay connected while a subscriber remains")
	}

	subA.Cancel()
	if cancelled {
		t.Fatal("upstream must stay connected while one subscriber (b) remains")
	}

	subB.Cancel()
	if !cancelled {
		t.Fatal("expected upstream to be cancelled once the last subscriber dropped off")
	}
}

type capturingSubscriber[T any] struct {
	onSubscribe func(flow.Subscription)
}

func (s *capturingSubscriber[T]) OnSubscribe(sub flow.Subscription) { s.onSubscribe(sub) }
func (s *capturingSubscriber[T]) OnNext(T)                          {}
func (s *capturingSubscriber[T]) OnComplete()                       {}
func (s *capturingSubscriber[T]) OnError(error)                     {}
