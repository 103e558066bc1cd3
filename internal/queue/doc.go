// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue provides the bounded FIFO queues that back every
// asynchronous boundary in streamflow: the executors' task queues (MPSC
// for Single, MPMC for Computation), the free-slot pool behind Refcount's
// subscriber bookkeeping (MPMCCompactIndirect), and zero-copy handoff
// across a fused boundary (SPSCPtr). The per-stage drain queue used by
// Buffer/Window/GroupBy/ObserveOn/Merge/Sample is not built on this
// package — it is the Lamport ring inlined directly into stagingQueue in
// the root package's drain.go, since that shape never needs anything a
// generic SPSC would add.
//
// Three producer/consumer shapes are provided for generic T, each with a
// default FAA-based (fetch-and-add) algorithm using 2n physical slots for
// capacity n, and a "Seq" CAS-based variant using n slots at the cost of
// scalability under contention:
//
//   - MPSC / MPSCSeq: Multi-Producer Single-Consumer
//   - SPMC / SPMCSeq: Single-Producer Multi-Consumer
//   - MPMC / MPMCSeq: Multi-Producer Multi-Consumer
//
// SPSCPtr is the one single-producer single-consumer shape this package
// carries: a Lamport ring over unsafe.Pointer rather than generic T, for
// the zero-copy fused boundary. MPMCCompactIndirect carries uintptr
// values (here, free slot indices) at 8 bytes per slot.
//
// # Basic Usage
//
// All queues share the same enqueue/dequeue shape:
//
//	q := queue.NewMPMC[int](1024)
//
//	value := 42
//	if err := q.Enqueue(&value); err != nil {
//	    // queue is full — backpressure
//	}
//
//	elem, err := q.Dequeue()
//	if err != nil {
//	    // queue is empty — try again later
//	}
//
// # Error Handling
//
// Queues return [ErrWouldBlock] (an alias for [code.hybscloud.com/iox]'s
// sentinel) when an operation cannot proceed immediately:
//
//	queue.IsWouldBlock(err)  // true if queue full/empty
//	queue.IsSemantic(err)    // true if control flow signal
//	queue.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// # Capacity
//
// Capacity rounds up to the next power of 2; the minimum is 2. Length is
// intentionally not provided — accurate counts in lock-free algorithms
// require expensive cross-core synchronization, and none of this
// package's callers need one.
//
// # Graceful Shutdown
//
// MPMC and SPMC use a threshold mechanism to avoid livelock, which can
// make Dequeue return [ErrWouldBlock] even with items still queued once
// producers have stopped. MPMC implements [Drainer]: call Drain once all
// producers are done so consumers can fully drain without threshold
// blocking. SPMC has no Drain method. MPSC also implements Drainer, but it
// has no threshold, so its Drain only records that producers are done.
// SPSCPtr, SPSCLinked and the CAS-based Seq/Compact variants have no
// threshold and do not implement Drainer.
//
// # Race Detection
//
// These algorithms protect non-atomic fields with acquire-release
// orderings the race detector cannot observe as synchronization; tests
// that would false-positive under it skip themselves when [RaceEnabled]
// is true (set by the build-tagged race.go / race_off.go).
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit memory
// ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package queue
