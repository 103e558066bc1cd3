// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/spin"
	"code.hybscloud.com/streamflow/internal/queue"
)

// singleQueueCapacity is the depth of a Single worker's task queue.
const singleQueueCapacity = 1024

// singleOptions configures NewSingle.
type singleOptions struct {
	compact bool
}

// SingleOption configures a [NewSingle] executor.
type SingleOption func(*singleOptions)

// WithCompactQueue selects the CAS-based compact MPSC queue algorithm
// (half the physical slots of the FAA default) for the worker's task
// queue, trading contention scalability for memory — see
// [code.hybscloud.com/streamflow/internal/queue.MPSCSeq].
func WithCompactQueue() SingleOption {
	return func(o *singleOptions) { o.compact = true }
}

// NewSingle creates an executor with exactly one dedicated goroutine
// draining its task queue in FIFO order. Many goroutines may call
// Schedule concurrently (the queue is an MPSC: [queue.MPSC] by default, or
// [queue.MPSCSeq] with WithCompactQueue).
func NewSingle(opts ...SingleOption) Executor {
	var o singleOptions
	for _, f := range opts {
		f(&o)
	}
	var q taskQueue
	if o.compact {
		q = queue.NewMPSCSeq[Task](singleQueueCapacity)
	} else {
		q = queue.NewMPSC[Task](singleQueueCapacity)
	}
	return &singleExecutor{w: newQueueWorker(q, 1)}
}

type singleExecutor struct{ w *queueWorker }

func (e *singleExecutor) Worker() Worker { return e.w }

// queueWorker runs `workers` goroutines draining q, each falling back to
// a spin-wait backoff (mirroring the teacher's own retry-with-backoff
// pattern for queue contention) bounded by a park on wake before sleeping
// the OS thread, so an idle executor doesn't spin forever.
type queueWorker struct {
	q        taskQueue
	wake     chan struct{}
	disposed atomic.Bool
	wg       sync.WaitGroup
}

func newQueueWorker(q taskQueue, workers int) *queueWorker {
	w := &queueWorker{q: q, wake: make(chan struct{}, 1)}
	w.wg.Add(workers)
	for range workers {
		go w.loop()
	}
	return w
}

func (w *queueWorker) loop() {
	defer w.wg.Done()
	sw := spin.Wait{}
	for {
		if w.disposed.Load() {
			return
		}
		task, err := w.q.Dequeue()
		if err != nil {
			sw.Once()
			select {
			case <-w.wake:
				sw = spin.Wait{}
			case <-time.After(time.Millisecond):
			}
			continue
		}
		sw = spin.Wait{}
		task()
	}
}

func (w *queueWorker) Schedule(task Task) Disposable {
	var cancelled atomic.Bool
	wrapped := func() {
		if !cancelled.Load() {
			task()
		}
	}
	sw := spin.Wait{}
	for w.q.Enqueue(&wrapped) != nil {
		sw.Once()
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return disposableFunc(func() { cancelled.Store(true) })
}

func (w *queueWorker) ScheduleDelayed(task Task, delay time.Duration) Disposable {
	if delay <= 0 {
		return w.Schedule(task)
	}
	timer := time.AfterFunc(delay, func() { w.Schedule(task) })
	return disposableFunc(func() { timer.Stop() })
}

func (w *queueWorker) SchedulePeriodic(task Task, initial, period time.Duration) Disposable {
	return schedulePeriodicWithTimer(w, task, initial, period)
}

func (w *queueWorker) Dispose() {
	if w.disposed.Swap(true) {
		return
	}
	close(w.wake)
}
