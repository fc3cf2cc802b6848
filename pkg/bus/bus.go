// Package bus implements the in-memory broadcast channel that fans one
// node data stream out to every subscribed frontend.
//
// The channel is single-producer, multi-consumer, and lossy: a bounded ring
// of payloads is shared by all receivers, and a receiver that falls further
// behind than the ring capacity skips the lost region instead of stalling
// the producer. Freshness beats completeness for realtime spectra.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the ring size used by the registry for new streams.
const DefaultCapacity = 10

// ErrClosed is returned by Recv after the sender has been closed and all
// buffered payloads consumed by this receiver were overwritten or read.
var ErrClosed = errors.New("broadcast channel closed")

// LagError reports that a receiver fell behind and missed Count payloads.
// The receiver has been advanced past the lost region; the next Recv
// returns the oldest payload still buffered. Lag is a soft condition.
type LagError struct {
	Count uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("broadcast receiver lagged, %d payloads dropped", e.Count)
}

// shared is the state common to the sender and all receivers.
type shared struct {
	mu       sync.Mutex
	ring     [][]byte
	capacity uint64
	seq      uint64 // next sequence number to be written
	subs     int
	closed   bool
	pulse    chan struct{} // closed and replaced on every publish or Close
}

// Sender is the producing half of a broadcast channel. A Sender is safe
// for concurrent use, though each stream has exactly one producer in
// practice.
type Sender struct {
	sh *shared
}

// Receiver consumes payloads from a broadcast channel starting at the
// moment of subscription. Receivers are not safe for concurrent use.
type Receiver struct {
	sh   *shared
	next uint64
	done bool
}

// New creates a broadcast channel with the given ring capacity.
func New(capacity int) *Sender {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sender{sh: &shared{
		ring:     make([][]byte, capacity),
		capacity: uint64(capacity),
		pulse:    make(chan struct{}),
	}}
}

// Publish enqueues a payload for all current subscribers without blocking.
// With zero subscribers the payload is discarded and false is returned, so
// producers can skip the publish entirely. The byte slice is shared by all
// receivers and must not be mutated afterwards.
func (s *Sender) Publish(payload []byte) bool {
	sh := s.sh
	sh.mu.Lock()
	if sh.closed || sh.subs == 0 {
		sh.mu.Unlock()
		return false
	}
	sh.ring[sh.seq%sh.capacity] = payload
	sh.seq++
	close(sh.pulse)
	sh.pulse = make(chan struct{})
	sh.mu.Unlock()
	return true
}

// Subscribe returns a receiver positioned at the current tail: it sees
// future publishes only.
func (s *Sender) Subscribe() *Receiver {
	sh := s.sh
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.subs++
	return &Receiver{sh: sh, next: sh.seq}
}

// SubscriberCount reports how many receivers are currently attached.
func (s *Sender) SubscriberCount() int {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	return s.sh.subs
}

// Close marks the channel closed. Blocked receivers wake up and, once they
// drain what is still buffered, observe ErrClosed. Close is idempotent.
func (s *Sender) Close() {
	sh := s.sh
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.closed {
		return
	}
	sh.closed = true
	close(sh.pulse)
}

// Recv returns the next payload in publish order.
//
// If the receiver fell further behind than the ring capacity it is advanced
// past the lost region and a *LagError with the drop count is returned; the
// caller may simply continue receiving. After the sender closes, remaining
// buffered payloads are still delivered before ErrClosed.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	if r.done {
		return nil, ErrClosed
	}
	sh := r.sh
	for {
		sh.mu.Lock()
		if sh.seq > sh.capacity && r.next < sh.seq-sh.capacity {
			lost := sh.seq - sh.capacity - r.next
			r.next = sh.seq - sh.capacity
			sh.mu.Unlock()
			return nil, &LagError{Count: lost}
		}
		if r.next < sh.seq {
			payload := sh.ring[r.next%sh.capacity]
			r.next++
			sh.mu.Unlock()
			return payload, nil
		}
		if sh.closed {
			sh.mu.Unlock()
			return nil, ErrClosed
		}
		pulse := sh.pulse
		sh.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-pulse:
		}
	}
}

// Close detaches the receiver so the producer stops counting it as a
// subscriber. Recv returns ErrClosed afterwards. Close is idempotent.
func (r *Receiver) Close() {
	if r.done {
		return
	}
	r.done = true
	r.sh.mu.Lock()
	r.sh.subs--
	r.sh.mu.Unlock()
}
