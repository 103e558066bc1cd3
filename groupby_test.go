// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	flow "code.hybscloud.com/streamflow"
	"code.hybscloud.com/streamflow/executor"
)

// groupCollector gathers one GroupedFlow's items asynchronously (groups
// are drained on the target executor's worker pool, not inline) and
// signals done once its terminal arrives.
type groupCollector struct {
	mu    sync.Mutex
	items []int
	done  chan struct{}
}

func newGroupCollector() *groupCollector { return &groupCollector{done: make(chan struct{})} }

func (g *groupCollector) OnSubscribe(sub flow.Subscription) { sub.Request(flow.Unbounded) }
func (g *groupCollector) OnNext(item int) {
	g.mu.Lock()
	g.items = append(g.items, item)
	g.mu.Unlock()
}
func (g *groupCollector) OnComplete() { close(g.done) }
func (g *groupCollector) OnError(error) { close(g.done) }

func TestGroupByDemultiplexesByKey(t *testing.T) {
	target := executor.NewSingle()
	src := flow.Just(1, 2, 3, 4, 5, 6, 7, 8, 9)
	grouped := flow.GroupBy[int, int](src, func(n int) int { return n % 3 }, target, 16)

	var mu sync.Mutex
	collectors := make(map[int]*groupCollector)
	var wg sync.WaitGroup

	outerDone := make(chan struct{})
	grouped.Subscribe(&groupOuterCollector{
		onGroup: func(g flow.GroupedFlow[int, int]) {
			gc := newGroupCollector()
			mu.Lock()
			collectors[g.Key] = gc
			mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				g.Subscribe(gc)
				<-gc.done
			}()
		},
		onDone: func() { close(outerDone) },
	})

	select {
	case <-outerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outer completion")
	}

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for groups to drain")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(collectors) != 3 {
		t.Fatalf("got %d groups, want 3", len(collectors))
	}
	for key, want := range map[int][]int{
		0: {3, 6, 9},
		1: {1, 4, 7},
		2: {2, 5, 8},
	} {
		gc, ok := collectors[key]
		if !ok {
			t.Fatalf("missing group for key %d", key)
		}
		gc.mu.Lock()
		got := append([]int(nil), gc.items...)
		gc.mu.Unlock()
		sort.Ints(got)
		if len(got) != len(want) {
			t.Fatalf("key %d: got %v, want %v", key, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("key %d: got %v, want %v", key, got, want)
			}
		}
	}
}

type groupOuterCollector struct {
	onGroup func(flow.GroupedFlow[int, int])
	onDone  func()
}

func (s *groupOuterCollector) OnSubscribe(sub flow.Subscription) { sub.Request(flow.Unbounded) }
func (s *groupOuterCollector) OnNext(g flow.GroupedFlow[int, int]) { s.onGroup(g) }
func (s *groupOuterCollector) OnComplete()                         { s.onDone() }
func (s *groupOuterCollector) OnError(error)                       { s.onDone() }
