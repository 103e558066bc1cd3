// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"sync"
	"testing"
	"time"

	flow "code.hybscloud.com/streamflow"
	"code.hybscloud.com/streamflow/executor"
)

func TestBufferChunksBySize(t *testing.T) {
	src := flow.Range(1, 10)
	chunks := flow.Buffer[int](src, 3)

	c := run[[]int](chunks)
	items, completed, err := c.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatal("expected completion")
	}
	want := [][]int{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10}}
	if len(items) != len(want) {
		t.Fatalf("got %d chunks, want %d: %v", len(items), len(want), items)
	}
	for i, chunk := range want {
		if len(items[i]) != len(chunk) {
			t.Fatalf("chunk %d: got %v, want %v", i, items[i], chunk)
		}
		for j := range chunk {
			if items[i][j] != chunk[j] {
				t.Fatalf("chunk %d: got %v, want %v", i, items[i], chunk)
			}
		}
	}
}

func TestWindowChunksIntoInnerPublishers(t *testing.T) {
	src := flow.Range(1, 7)
	windows := flow.Window[int](src, 3, 16)

	// A window's items arrive after it is handed to onWindow (emitted
	// the moment it opens, filled as the upstream item that triggered it
	// is offered next) but still within this same synchronous Subscribe
	// call, so every collector is fully populated once Subscribe returns.
	var innerCollectors []*collector[int]
	windows.Subscribe(&windowCollectingSubscriber{
		onWindow: func(w flow.Publisher[int]) {
			innerCollectors = append(innerCollectors, run[int](w))
		},
	})

	if len(innerCollectors) != 3 {
		t.Fatalf("got %d windows, want 3", len(innerCollectors))
	}
	var flattened []int
	for _, ic := range innerCollectors {
		got, _, _ := ic.snapshot()
		flattened = append(flattened, got...)
	}
	want := []int{1, 2, 3, 4, 5, 6, 7}
	if len(flattened) != len(want) {
		t.Fatalf("got %v, want %v", flattened, want)
	}
	for i := range want {
		if flattened[i] != want[i] {
			t.Fatalf("got %v, want %v", flattened, want)
		}
	}
}

type windowCollectingSubscriber struct {
	onWindow func(flow.Publisher[int])
}

func (s *windowCollectingSubscriber) OnSubscribe(sub flow.Subscription) { sub.Request(flow.Unbounded) }
func (s *windowCollectingSubscriber) OnNext(w flow.Publisher[int])      { s.onWindow(w) }
func (s *windowCollectingSubscriber) OnComplete()                       {}
func (s *windowCollectingSubscriber) OnError(error)                     {}

func TestBufferTimeFlushesOnEachTick(t *testing.T) {
	src := &manualSource[int]{}
	worker := executor.NewSingle()
	out := flow.BufferTime[int](src, 40*time.Millisecond, worker)
	c := run[[]int](out)

	src.pushItem(1)
	src.pushItem(2)

	chunks := waitForItems(t, c, 1)
	if len(chunks[0]) != 2 || chunks[0][0] != 1 || chunks[0][1] != 2 {
		t.Fatalf("got first chunk %v, want [1 2]", chunks[0])
	}

	src.pushItem(3)
	chunks = waitForItems(t, c, 2)
	if len(chunks[1]) != 1 || chunks[1][0] != 3 {
		t.Fatalf("got second chunk %v, want [3]", chunks[1])
	}

	src.finish()
	waitForCompletion(t, c)
}

func TestWindowTimeOpensANewWindowOnEachTick(t *testing.T) {
	src := &manualSource[int]{}
	worker := executor.NewSingle()
	windows := flow.WindowTime[int](src, 40*time.Millisecond, worker, 16)

	var mu sync.Mutex
	var collectors []*collector[int]
	windows.Subscribe(&windowCollectingSubscriber{
		onWindow: func(w flow.Publisher[int]) {
			c := run[int](w)
			mu.Lock()
			collectors = append(collectors, c)
			mu.Unlock()
		},
	})

	src.pushItem(1)
	src.pushItem(2)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(collectors)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a second window to open")
		}
		time.Sleep(time.Millisecond)
	}

	src.pushItem(3)
	src.finish()

	mu.Lock()
	first, second := collectors[0], collectors[1]
	mu.Unlock()

	assertItems(t, waitForItems(t, first, 2), []int{1, 2})
	assertItems(t, waitForItems(t, second, 1), []int{3})
}
