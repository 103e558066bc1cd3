// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"fmt"
	"os"
	"sync/atomic"
)

// defaultBufferSize is the default prefetch/queue capacity for operators
// that don't take an explicit size (ObserveOn, Merge's per-inner queue,
// and friends). Mirrors RxJava's Flowable.bufferSize() default of 128.
const defaultBufferSize = 128

// config is the process-wide configuration record: the error hook and the
// default buffer size. Modeled as a single immutable value behind an
// atomic pointer, the way the teacher's Options/Builder keep configuration
// as a plain value rather than scattered global vars — swapped wholesale
// rather than mutated in place, so readers never observe a half-updated
// record.
type config struct {
	errorHook  ErrorHook
	bufferSize int
}

var globalConfig atomic.Pointer[config]

func init() {
	globalConfig.Store(&config{
		errorHook:  defaultErrorHook,
		bufferSize: defaultBufferSize,
	})
}

func defaultErrorHook(err error) {
	fmt.Fprintf(os.Stderr, "flow: undeliverable error after termination: %v\n", err)
}

// SetErrorHook overrides the process-wide late-error hook. Intended for
// early-process configuration (e.g. to route late errors into structured
// logging); the swap itself is race-safe but changing the hook mid-flight
// means in-progress chains may observe either the old or new hook.
func SetErrorHook(hook ErrorHook) {
	if hook == nil {
		hook = defaultErrorHook
	}
	cur := globalConfig.Load()
	globalConfig.Store(&config{errorHook: hook, bufferSize: cur.bufferSize})
}

// SetDefaultBufferSize overrides the process-wide default prefetch/queue
// capacity used by operators that don't take an explicit size.
func SetDefaultBufferSize(n int) {
	if n < 2 {
		n = 2
	}
	cur := globalConfig.Load()
	globalConfig.Store(&config{errorHook: cur.errorHook, bufferSize: n})
}

// reportLateError routes err to the current error hook. Called whenever an
// operator would otherwise have to deliver a second terminal signal.
func reportLateError(err error) {
	globalConfig.Load().errorHook(err)
}

// bufferSize returns the current process-wide default buffer size.
func bufferSize() int {
	return globalConfig.Load().bufferSize
}
