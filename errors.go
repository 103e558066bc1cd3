// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"errors"
	"fmt"
)

// ProtocolError reports a violation of the subscriber contract: a null
// subscription, a second OnSubscribe on an already-subscribed subscriber,
// overproduction against a bounded request, or a reentrant signal. These
// are detected eagerly and never silently swallowed.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "flow: protocol violation: " + e.Reason
}

// NewProtocolError builds a [ProtocolError] with the given reason.
func NewProtocolError(reason string) error {
	return &ProtocolError{Reason: reason}
}

// OverflowError reports that an unbounded upstream outran a bounded
// downstream request under the ERROR backpressure policy (§4.4).
type OverflowError struct {
	Stage string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("flow: backpressure overflow in %s: could not emit without exceeding request", e.Stage)
}

// NewOverflowError builds an [OverflowError] for the named stage.
func NewOverflowError(stage string) error {
	return &OverflowError{Stage: stage}
}

// TimeoutError reports that no item arrived within a configured window.
type TimeoutError struct {
	Index int64 // 0-based item index whose window expired; -1 for subscription-level timeout
}

func (e *TimeoutError) Error() string {
	if e.Index < 0 {
		return "flow: timeout before first item"
	}
	return fmt.Sprintf("flow: timeout waiting for item after index %d", e.Index)
}

// NewTimeoutError builds a [TimeoutError] for the item index that timed
// out, or -1 if the timeout fired before any item arrived.
func NewTimeoutError(index int64) error {
	return &TimeoutError{Index: index}
}

// CompositeError collects multiple concurrent errors (e.g. Merge with
// delayErrors) preserving their order of arrival. errors.Is/As unwrap
// against every contained error.
type CompositeError struct {
	Errors []error
}

func (e *CompositeError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("flow: %d errors occurred: %v", len(e.Errors), errors.Join(e.Errors...))
}

// Unwrap exposes the contained errors to errors.Is/As.
func (e *CompositeError) Unwrap() []error {
	return e.Errors
}

// NewCompositeError builds a [CompositeError] from one or more errors in
// arrival order. Panics if errs is empty.
func NewCompositeError(errs []error) error {
	if len(errs) == 0 {
		panic("flow: NewCompositeError requires at least one error")
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &CompositeError{Errors: errs}
}

// ErrorHook is called for a "late error": one that occurs after the
// receiving subscriber has already been terminated. Routing late errors
// here (instead of re-delivering them, which would violate the
// terminal-once invariant) is the process-wide default documented in §7.
//
// The default hook writes to standard error. Override with SetErrorHook
// during process startup; the setter is race-safe (atomic pointer swap)
// but is not intended for use after the process has begun building chains.
type ErrorHook func(err error)
