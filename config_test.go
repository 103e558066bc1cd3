// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	flow "code.hybscloud.com/streamflow"
	"code.hybscloud.com/streamflow/executor"
)

func TestSetErrorHookReceivesLateErrors(t *testing.T) {
	var mu sync.Mutex
	var got error
	done := make(chan struct{})
	flow.SetErrorHook(func(e error) {
		mu.Lock()
		got = e
		mu.Unlock()
		close(done)
	})
	defer flow.SetErrorHook(nil) // restore the default hook

	boom := errors.New("late boom")
	p := flow.NewDirectProcessor[int]()
	run[int](p)
	p.OnComplete()
	p.OnError(boom) // late: already terminated, must route through the hook instead of re-delivering

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the late-error hook to fire")
	}

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(got, boom) {
		t.Fatalf("got %v, want %v", got, boom)
	}
}

func TestSetDefaultBufferSizeFloorsAtTwo(t *testing.T) {
	flow.SetDefaultBufferSize(0)
	defer flow.SetDefaultBufferSize(128)

	// ObserveOn falls back to the default buffer size when given a
	// non-positive one; after SetDefaultBufferSize(0) that default is the
	// floor of 2. Confirm a buffer that small still delivers every item
	// instead of wedging on the request/staging interaction.
	out := flow.ObserveOn[int](flow.Range(1, 5), executor.NewSingle(), 0)
	c := run[int](out)
	items := waitForItems(t, c, 5)
	want := []int{1, 2, 3, 4, 5}
	assertItems(t, items, want)
}
