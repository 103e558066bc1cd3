// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"sync/atomic"
	"time"
)

// schedulePeriodicWithTimer implements SchedulePeriodic in terms of
// Schedule: each firing hands the task to w.Schedule, so the task body
// runs wherever that worker's Schedule runs it — on the worker's own
// goroutine(s) for Single and Computation, and inline on the timer's
// goroutine for Immediate. Shared by every Worker implementation in this
// package.
func schedulePeriodicWithTimer(w Worker, task Task, initial, period time.Duration) Disposable {
	var stopped atomic.Bool
	var timer *time.Timer

	var fire func()
	fire = func() {
		if stopped.Load() {
			return
		}
		w.Schedule(task)
		if stopped.Load() {
			return
		}
		timer = time.AfterFunc(period, fire)
	}
	timer = time.AfterFunc(initial, fire)

	return disposableFunc(func() {
		stopped.Store(true)
		timer.Stop()
	})
}
