// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import "sync/atomic"

// terminalSignal is the value held by a [TerminalLatch]: either nothing,
// "completed", or "errored with err".
type terminalSignal struct {
	err       error
	completed bool
}

// TerminalLatch is a once-only cell holding {Completed | Error(e) | empty}.
// A drain loop reads it only after observing its queue empty, because
// producers set the queue then the latch in that order (§4.3); this
// ordering is what lets the drain loop tell "queue temporarily empty"
// apart from "queue empty because upstream is done".
//
// The zero value is empty and ready to use.
type TerminalLatch struct {
	sig atomic.Pointer[terminalSignal]
}

// SetComplete latches normal completion. A no-op if the latch already
// holds a value (first terminal signal wins, matching "at most one of
// complete or error" in §3).
func (t *TerminalLatch) SetComplete() bool {
	return t.sig.CompareAndSwap(nil, &terminalSignal{completed: true})
}

// SetError latches err. A no-op — and the error is routed to the
// process-wide late-error hook instead — if the latch already holds a
// value.
func (t *TerminalLatch) SetError(err error) bool {
	if t.sig.CompareAndSwap(nil, &terminalSignal{err: err}) {
		return true
	}
	reportLateError(err)
	return false
}

// Get returns (completed, err, ok): ok is false if nothing has latched
// yet. Exactly one of completed or err!=nil holds when ok is true.
func (t *TerminalLatch) Get() (completed bool, err error, ok bool) {
	p := t.sig.Load()
	if p == nil {
		return false, nil, false
	}
	return p.completed, p.err, true
}
