// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"errors"
	"testing"

	flow "code.hybscloud.com/streamflow"
)

func TestNewProtocolErrorReportsReason(t *testing.T) {
	err := flow.NewProtocolError("second OnSubscribe")
	var pe *flow.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v (%T), want *flow.ProtocolError", err, err)
	}
	if pe.Reason != "second OnSubscribe" {
		t.Fatalf("got reason %q, want %q", pe.Reason, "second OnSubscribe")
	}
}

func TestNewTimeoutErrorCarriesIndex(t *testing.T) {
	err := flow.NewTimeoutError(3)
	var te *flow.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("got %v (%T), want *flow.TimeoutError", err, err)
	}
	if te.Index != 3 {
		t.Fatalf("got index %d, want 3", te.Index)
	}
}

func TestNewCompositeErrorUnwrapsEveryContainedError(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")
	err := flow.NewCompositeError([]error{e1, e2})

	if !errors.Is(err, e1) {
		t.Fatalf("got %v, want errors.Is to find %v", err, e1)
	}
	if !errors.Is(err, e2) {
		t.Fatalf("got %v, want errors.Is to find %v", err, e2)
	}
}

func TestNewCompositeErrorCollapsesASingleError(t *testing.T) {
	e1 := errors.New("only")
	err := flow.NewCompositeError([]error{e1})
	if err != e1 {
		t.Fatalf("got %v, want the single error returned unwrapped", err)
	}
}

func TestNewCompositeErrorPanicsOnEmptySlice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an empty error slice")
		}
	}()
	flow.NewCompositeError(nil)
}
