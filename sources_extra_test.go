// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"errors"
	"sync"
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestFromSliceEmitsEveryElementInOrder(t *testing.T) {
	out := flow.FromSlice[string]([]string{"a", "b", "c"})
	c := run[string](out)

	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := []string{"a", "b", "c"}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
}

func TestFromSliceEmpty(t *testing.T) {
	out := flow.FromSlice[int](nil)
	c := run[int](out)

	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	if len(items) != 0 {
		t.Fatalf("got %v, want no items", items)
	}
}

func TestRetryIfStopsWhenPredicateRejectsTheError(t *testing.T) {
	transient := errors.New("transient")
	fatal := errors.New("fatal")
	attempts := 0
	src := flow.Defer(func() flow.Publisher[int] {
		attempts++
		if attempts < 3 {
			return flow.Error[int](transient)
		}
		return flow.Error[int](fatal)
	})
	out := flow.RetryIf[int](src, func(err error) bool { return errors.Is(err, transient) })

	c := run[int](out)
	_, completed, err := c.snapshot()
	if completed {
		t.Fatal("expected a surfaced error, not completion")
	}
	if !errors.Is(err, fatal) {
		t.Fatalf("got err %v, want %v", err, fatal)
	}
	if attempts != 3 {
		t.Fatalf("got %d attempts, want 3", attempts)
	}
}

func TestSerializeOrdersConcurrentProducers(t *testing.T) {
	c := newCollector[int]()
	down := flow.Serialize[int](c)

	down.OnSubscribe(noopSubscription{})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				down.OnNext(base*25 + i)
			}
		}(g)
	}
	wg.Wait()
	down.OnComplete()

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
