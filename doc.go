// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flow provides a backpressure-aware asynchronous dataflow runtime.
//
// A chain is built by composing [Publisher] values: map, filter, merge,
// concat, window, and the rest of the operator catalog. Nothing runs until
// a [Subscriber] attaches via Subscribe — construction is cheap, all work
// is deferred to attachment.
//
// # Quick Start
//
// Build a chain and attach a subscriber:
//
//	pub := flow.Map(flow.Range(1, 10), func(x int) int { return x * 2 })
//	flow.BlockingSubscribe(pub,
//	    func(v int) { fmt.Println(v) },
//	    func(err error) { log.Fatal(err) },
//	)
//
// # The Flow-Control Contract
//
// A [Subscriber] receives exactly: one Subscribe call (delivering a
// [Subscription]), zero or more Next calls, then at most one of Complete
// or Error. The subscriber drives flow control by calling
// Subscription.Request(n) — "I can accept up to n more items" — and may
// Cancel at any time. No operator in this package ever delivers more
// items than have been requested; see [RequestCounter] for the
// saturating arithmetic that makes "unbounded" (MaxInt64) a first-class
// request value.
//
// # Asynchronous Boundaries
//
// Operators that hand work across goroutines (ObserveOn, Merge, Zip,
// Window, ...) are built on the same queue-drain skeleton: a bounded
// single-producer single-consumer ring ([stagingQueue] in drain.go), a
// work-in-progress counter, and a terminal latch. See [runDrain] and the
// per-operator files for the concrete wiring.
//
// # Executors
//
// Timed and asynchronous operators run user callbacks on a
// [code.hybscloud.com/streamflow/executor.Executor]. Three are provided:
// Immediate (runs on the calling goroutine), Single (one dedicated
// goroutine, FIFO), and Computation (a fixed worker pool).
package flow
