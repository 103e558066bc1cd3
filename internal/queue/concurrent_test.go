// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/streamflow/internal/queue"
)

// drainAll spins a backoff-gated loop on dequeue until want items have
// been collected, matching how executor/single.go and computation.go
// actually poll these queues.
func drainAll(t *testing.T, want int, dequeue func() (int, error)) []int {
	t.Helper()
	got := make([]int, 0, want)
	backoff := iox.Backoff{}
	for len(got) < want {
		v, err := dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		got = append(got, v)
	}
	return got
}

func TestMPSCConcurrentProducersPreserveEverySubmission(t *testing.T) {
	if queue.RaceEnabled {
		t.Skip("lock-free acquire-release ordering triggers race-detector false positives")
	}
	const producers, perProducer = 8, 200
	q := queue.NewMPSC[int](1024)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			backoff := iox.Backoff{}
			for i := range perProducer {
				v := base*perProducer + i
				for q.Enqueue(&v) != nil {
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}
	wg.Wait()

	got := drainAll(t, producers*perProducer, q.Dequeue)
	seen := make([]bool, producers*perProducer)
	for _, v := range got {
		seen[v] = true
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("value %d was never observed", i)
		}
	}
}

func TestSPMCConcurrentConsumersSplitTheWork(t *testing.T) {
	if queue.RaceEnabled {
		t.Skip("lock-free acquire-release ordering triggers race-detector false positives")
	}
	const total, consumers = 2000, 8
	q := queue.NewSPMC[int](1024)

	var mu sync.Mutex
	seen := make([]bool, total)
	var wg sync.WaitGroup
	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			got := 0
			for got < total/consumers {
				v, err := q.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
				got++
			}
		}()
	}

	backoff := iox.Backoff{}
	for i := range total {
		v := i
		for q.Enqueue(&v) != nil {
			backoff.Wait()
		}
		backoff.Reset()
	}
	wg.Wait()

	for i, ok := range seen {
		if !ok {
			t.Fatalf("value %d was never observed", i)
		}
	}
}

func TestMPMCConcurrentProducersAndConsumers(t *testing.T) {
	if queue.RaceEnabled {
		t.Skip("lock-free acquire-release ordering triggers race-detector false positives")
	}
	const producers, perProducer, consumers = 4, 500, 4
	total := producers * perProducer
	q := queue.NewMPMC[int](1024)

	var pwg sync.WaitGroup
	for p := range producers {
		pwg.Add(1)
		go func(base int) {
			defer pwg.Done()
			backoff := iox.Backoff{}
			for i := range perProducer {
				v := base*perProducer + i
				for q.Enqueue(&v) != nil {
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}

	var mu sync.Mutex
	seen := make([]bool, total)
	var cwg sync.WaitGroup
	var collected int
	for range consumers {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			backoff := iox.Backoff{}
			for {
				mu.Lock()
				done := collected >= total
				mu.Unlock()
				if done {
					return
				}
				v, err := q.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				mu.Lock()
				seen[v] = true
				collected++
				mu.Unlock()
			}
		}()
	}

	pwg.Wait()
	cwg.Wait()

	for i, ok := range seen {
		if !ok {
			t.Fatalf("value %d was never observed", i)
		}
	}
}
