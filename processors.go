// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// A processor is simultaneously a [Subscriber] and a [Publisher]: a hot,
// shared stage that application code feeds directly (by calling its
// OnNext/OnComplete/OnError) while any number of subscribers attach to
// observe it.

// DirectProcessor broadcasts every signal it receives to every subscriber
// currently attached; it carries no buffering of its own. A subscriber
// that has not requested enough to accept the next item sees a
// [ProtocolError] instead of that item and is dropped from the broadcast
// — this processor has no backpressure state, per §4.5.
type DirectProcessor[T any] struct {
	mu          sync.Mutex
	subscribers []*directSlot[T]
	terminal    TerminalLatch
}

// NewDirectProcessor returns a ready-to-use DirectProcessor.
func NewDirectProcessor[T any]() *DirectProcessor[T] {
	return &DirectProcessor[T]{}
}

func (p *DirectProcessor[T]) OnSubscribe(sub Subscription) { sub.Request(Unbounded) }

func (p *DirectProcessor[T]) OnNext(item T) {
	for _, slot := range p.snapshot() {
		if slot.cancelled.LoadAcquire() {
			continue
		}
		if slot.requested.Get() <= 0 {
			slot.cancelled.StoreRelease(true)
			p.remove(slot)
			slot.down.OnError(NewProtocolError("downstream had no outstanding request (missing backpressure)"))
			continue
		}
		slot.requested.Produced(1)
		slot.down.OnNext(item)
	}
}

func (p *DirectProcessor[T]) OnComplete() {
	if !p.terminal.SetComplete() {
		return
	}
	for _, slot := range p.snapshot() {
		slot.down.OnComplete()
	}
}

func (p *DirectProcessor[T]) OnError(e error) {
	if !p.terminal.SetError(e) {
		return
	}
	for _, slot := range p.snapshot() {
		slot.down.OnError(e)
	}
}

// Subscribe attaches sub to the broadcast. A processor already terminated
// replays only the terminal signal; it never replays past items (that is
// [ReplayFlow]'s job).
func (p *DirectProcessor[T]) Subscribe(sub Subscriber[T]) {
	p.mu.Lock()
	if completed, err, ok := p.terminal.Get(); ok {
		p.mu.Unlock()
		sub.OnSubscribe(cancelledSentinel)
		if completed {
			sub.OnComplete()
		} else {
			sub.OnError(err)
		}
		return
	}
	slot := &directSlot[T]{down: sub}
	p.subscribers = append(p.subscribers, slot)
	p.mu.Unlock()
	sub.OnSubscribe(&directSubscription[T]{p: p, slot: slot})
}

func (p *DirectProcessor[T]) snapshot() []*directSlot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*directSlot[T], len(p.subscribers))
	copy(out, p.subscribers)
	return out
}

func (p *DirectProcessor[T]) remove(slot *directSlot[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subscribers {
		if s == slot {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

type directSlot[T any] struct {
	down      Subscriber[T]
	requested RequestCounter
	cancelled atomix.Bool
}

type directSubscription[T any] struct {
	p    *DirectProcessor[T]
	slot *directSlot[T]
}

func (s *directSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.slot.requested.Add(n)
}
func (s *directSubscription[T]) Cancel() {
	s.slot.cancelled.StoreRelease(true)
	s.p.remove(s.slot)
}

// serializeSignal is one pending signal for a serialized subscriber: an
// item, completion, or error, tagged so a single queue can carry all
// three signal kinds funneled through Serialize.
type serializeSignal[T any] struct {
	isTerminal bool
	isError    bool
	item       T
	err        error
}

// serializedSubscriber funnels concurrent OnNext/OnComplete/OnError calls
// through a mutex-guarded queue-drain, so down — which the Subscriber
// contract requires to see a strictly serial sequence — never observes
// two signals interleaved from different caller goroutines. This is a
// genuinely multi-producer queue (unlike the single-producer
// [stagingQueue] ring used everywhere else in this package), so it is a
// plain mutex-guarded slice rather than an SPSC ring.
type serializedSubscriber[T any] struct {
	down Subscriber[T]

	mu       sync.Mutex
	emitting bool
	pending  []serializeSignal[T]
	done     bool
}

// Serialize wraps down so OnNext/OnComplete/OnError may be called safely
// from any number of goroutines concurrently; down itself still sees them
// one at a time, in arrival order. This is the shield a hot processor
// needs when fed by more than one producer (§4.5's "Serialize wrapper").
func Serialize[T any](down Subscriber[T]) Subscriber[T] {
	return &serializedSubscriber[T]{down: down}
}

func (s *serializedSubscriber[T]) OnSubscribe(sub Subscription) { s.down.OnSubscribe(sub) }
func (s *serializedSubscriber[T]) OnNext(item T)                { s.offer(serializeSignal[T]{item: item}) }
func (s *serializedSubscriber[T]) OnComplete()                  { s.offer(serializeSignal[T]{isTerminal: true}) }
func (s *serializedSubscriber[T]) OnError(e error) {
	s.offer(serializeSignal[T]{isTerminal: true, isError: true, err: e})
}

func (s *serializedSubscriber[T]) offer(sig serializeSignal[T]) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if s.emitting {
		s.pending = append(s.pending, sig)
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.mu.Unlock()
	s.drain(sig)
}

func (s *serializedSubscriber[T]) drain(first serializeSignal[T]) {
	sig := first
	for {
		s.deliver(sig)
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.emitting = false
			s.mu.Unlock()
			return
		}
		sig = s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
	}
}

func (s *serializedSubscriber[T]) deliver(sig serializeSignal[T]) {
	if sig.isTerminal {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		if sig.isError {
			s.down.OnError(sig.err)
		} else {
			s.down.OnComplete()
		}
		return
	}
	s.down.OnNext(sig.item)
}

// NewSubject returns a hot push/subscribe pair sharing a [DirectProcessor]:
// push is safe to call concurrently from any number of goroutines (it
// funnels through [Serialize]); pub multicasts every signal to whichever
// subscribers are currently attached.
func NewSubject[T any]() (push Subscriber[T], pub Publisher[T]) {
	p := NewDirectProcessor[T]()
	return Serialize[T](p), p
}

// defaultReplayBufferSize is used by callers that pass a non-positive
// bufferSize to [NewReplayFlow].
const defaultReplayBufferSize = 256

// ReplayFlow is a hot processor that retains up to bufferSize of the most
// recently seen items (FIFO eviction beyond that bound, per spec.md §9's
// replay/refcount open question) and replays them to every new subscriber
// before it joins the live broadcast. Unlike [DirectProcessor], each
// subscriber gets its own backlog-then-live staging queue honoring its own
// request rate, rather than being dropped on a missed request.
type ReplayFlow[T any] struct {
	bufferSize int

	mu       sync.Mutex
	buf      []T
	subs     []*replaySlot[T]
	terminal TerminalLatch
}

// NewReplayFlow returns a ReplayFlow retaining at most bufferSize items.
func NewReplayFlow[T any](bufferSize int) *ReplayFlow[T] {
	if bufferSize < 1 {
		bufferSize = defaultReplayBufferSize
	}
	return &ReplayFlow[T]{bufferSize: bufferSize}
}

func (r *ReplayFlow[T]) OnSubscribe(sub Subscription) { sub.Request(Unbounded) }

func (r *ReplayFlow[T]) OnNext(item T) {
	r.mu.Lock()
	r.buf = append(r.buf, item)
	if len(r.buf) > r.bufferSize {
		r.buf = r.buf[len(r.buf)-r.bufferSize:]
	}
	subs := append([]*replaySlot[T](nil), r.subs...)
	r.mu.Unlock()
	for _, s := range subs {
		s.offer(item)
	}
}

func (r *ReplayFlow[T]) OnComplete() {
	r.mu.Lock()
	r.terminal.SetComplete()
	subs := append([]*replaySlot[T](nil), r.subs...)
	r.subs = nil
	r.mu.Unlock()
	for _, s := range subs {
		s.complete()
	}
}

func (r *ReplayFlow[T]) OnError(e error) {
	r.mu.Lock()
	r.terminal.SetError(e)
	subs := append([]*replaySlot[T](nil), r.subs...)
	r.subs = nil
	r.mu.Unlock()
	for _, s := range subs {
		s.fail(e)
	}
}

// Subscribe replays the current backlog to sub, then registers it for the
// live broadcast (unless this ReplayFlow has already terminated, in which
// case the backlog is followed immediately by the latched terminal signal).
func (r *ReplayFlow[T]) Subscribe(sub Subscriber[T]) {
	r.mu.Lock()
	backlog := append([]T(nil), r.buf...)
	completed, err, terminated := r.terminal.Get()
	slot := &replaySlot[T]{down: sub, staging: newStagingQueue[T](len(backlog) + r.bufferSize)}
	for _, item := range backlog {
		_ = slot.staging.Offer(item)
	}
	if terminated {
		if completed {
			slot.terminal.SetComplete()
		} else {
			slot.terminal.SetError(err)
		}
	} else {
		r.subs = append(r.subs, slot)
	}
	r.mu.Unlock()

	sub.OnSubscribe(&replaySubscription[T]{r: r, slot: slot})
	slot.runDrainLoop()
}

func (r *ReplayFlow[T]) removeSlot(slot *replaySlot[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s == slot {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

// replaySlot is one subscriber's own backlog-then-live staging queue,
// drained through the §4.3 skeleton like every other per-subscriber
// buffer in this package (mirroring groupInner/windowInner).
type replaySlot[T any] struct {
	down Subscriber[T]

	staging   *stagingQueue[T]
	requested RequestCounter
	drain     drainState
	terminal  TerminalLatch
	cancelled atomix.Bool
}

func (s *replaySlot[T]) offer(item T) {
	if err := s.staging.Offer(item); err != nil {
		s.terminal.SetError(NewOverflowError("replay"))
	}
	s.runDrainLoop()
}
func (s *replaySlot[T]) complete() { s.terminal.SetComplete(); s.runDrainLoop() }
func (s *replaySlot[T]) fail(e error) { s.terminal.SetError(e); s.runDrainLoop() }

func (s *replaySlot[T]) isCancelled() bool { return s.cancelled.LoadAcquire() }
func (s *replaySlot[T]) clearQueue()       { s.cancelled.StoreRelease(true) }

func (s *replaySlot[T]) runDrainLoop() {
	runDrain[T](
		&s.drain,
		s.staging,
		&s.requested,
		&s.terminal,
		s.isCancelled,
		s.clearQueue,
		int64(max(s.staging.Cap(), 1)),
		func(int64) {}, // a push-fed processor is not rate-limited against any upstream
		s.down.OnNext,
		s.down.OnComplete,
		s.down.OnError,
	)
}

type replaySubscription[T any] struct {
	r    *ReplayFlow[T]
	slot *replaySlot[T]
}

func (s *replaySubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.slot.requested.Add(n)
	s.slot.runDrainLoop()
}
func (s *replaySubscription[T]) Cancel() {
	s.slot.cancelled.StoreRelease(true)
	s.r.removeSlot(s.slot)
}
