// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import "time"

type immediateExecutor struct{}

// Immediate returns the executor whose worker runs every task
// synchronously on the calling goroutine. ScheduleDelayed and
// SchedulePeriodic still use a real timer — "immediate" describes where
// the task body runs, not when.
func Immediate() Executor { return immediateExecutor{} }

func (immediateExecutor) Worker() Worker { return immediateWorker{} }

type immediateWorker struct{}

func (immediateWorker) Schedule(task Task) Disposable {
	task()
	return noopDisposable{}
}

func (immediateWorker) ScheduleDelayed(task Task, delay time.Duration) Disposable {
	if delay <= 0 {
		task()
		return noopDisposable{}
	}
	timer := time.AfterFunc(delay, task)
	return disposableFunc(func() { timer.Stop() })
}

func (w immediateWorker) SchedulePeriodic(task Task, initial, period time.Duration) Disposable {
	return schedulePeriodicWithTimer(w, task, initial, period)
}

func (immediateWorker) Dispose() {}
