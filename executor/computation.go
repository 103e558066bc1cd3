// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"runtime"

	"code.hybscloud.com/streamflow/internal/queue"
)

// computationQueueCapacity is the depth of a Computation pool's shared
// task queue.
const computationQueueCapacity = 4096

// computationOptions configures NewComputation.
type computationOptions struct {
	compact  bool
	poolSize int
}

// ComputationOption configures a [NewComputation] executor.
type ComputationOption func(*computationOptions)

// WithPoolSize overrides the default pool size of runtime.GOMAXPROCS(0).
func WithPoolSize(n int) ComputationOption {
	return func(o *computationOptions) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithComputationCompactQueue selects [queue.MPMCSeq] instead of the
// default [queue.MPMC] for the pool's shared task queue.
func WithComputationCompactQueue() ComputationOption {
	return func(o *computationOptions) { o.compact = true }
}

// NewComputation creates an executor backed by a fixed pool of
// goroutines (GOMAXPROCS by default) all draining one shared task
// queue — many producers schedule work, many pool workers consume it.
// Every call to Worker returns a handle onto that same shared pool;
// disposing it stops the whole pool, not just tasks scheduled through
// that particular handle.
func NewComputation(opts ...ComputationOption) Executor {
	o := computationOptions{poolSize: runtime.GOMAXPROCS(0)}
	for _, f := range opts {
		f(&o)
	}
	var q taskQueue
	if o.compact {
		q = queue.NewMPMCSeq[Task](computationQueueCapacity)
	} else {
		q = queue.NewMPMC[Task](computationQueueCapacity)
	}
	return &computationExecutor{w: newQueueWorker(q, o.poolSize)}
}

type computationExecutor struct{ w *queueWorker }

func (e *computationExecutor) Worker() Worker { return e.w }
