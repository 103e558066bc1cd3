// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package executor provides the worker-based scheduler abstraction timed
// and asynchronous-boundary operators run on (§5, §6 of the design).
//
// Three executors are provided, matching the three named in the design:
// Immediate (runs inline on the calling goroutine), Single (one dedicated
// goroutine, FIFO order), and Computation (a fixed pool of goroutines).
// Single and Computation stage their incoming tasks through the same
// lock-free bounded queues as every other asynchronous boundary in this
// module — [code.hybscloud.com/streamflow/internal/queue]'s MPSC for
// Single (many callers schedule, one worker drains) and MPMC for
// Computation (many callers schedule, many workers drain).
package executor

import (
	"time"
)

// Task is a unit of work scheduled onto a [Worker].
type Task func()

// Disposable cancels a scheduled task or worker. Disposing an
// already-run or already-disposed Disposable is a no-op.
type Disposable interface {
	Dispose()
}

// Worker is a single logical thread of FIFO execution obtained from an
// [Executor]. For Single and Computation, Schedule/ScheduleDelayed/
// SchedulePeriodic never block the caller and the task body runs later, on
// the worker's own goroutine(s); Immediate's Schedule runs the task inline
// on the calling goroutine before it returns.
type Worker interface {
	Schedule(task Task) Disposable
	ScheduleDelayed(task Task, delay time.Duration) Disposable
	SchedulePeriodic(task Task, initial, period time.Duration) Disposable
	// Dispose cancels all pending tasks; an in-flight task finishes.
	// Immediate's Dispose does nothing: its delayed and periodic timers
	// are stopped only through the Disposable each Schedule call returns.
	Dispose()
}

// Executor hands out [Worker]s.
type Executor interface {
	Worker() Worker
}

type disposableFunc func()

func (f disposableFunc) Dispose() { f() }

type noopDisposable struct{}

func (noopDisposable) Dispose() {}

// taskQueue is the minimal shape both the MPSC (Single) and MPMC
// (Computation) task queues share.
type taskQueue interface {
	Enqueue(t *Task) error
	Dequeue() (Task, error)
}
