package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/sdrhub/pkg/bus"
	"github.com/marmos91/sdrhub/pkg/protocol"
)

var (
	nodeA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	nodeB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func TestAdmitControlUniqueness(t *testing.T) {
	r := New(0)

	s, inbox, err := r.AdmitControl(nodeA)
	if err != nil {
		t.Fatalf("first admission: %v", err)
	}
	if s == nil || inbox == nil {
		t.Fatal("admission returned nil session or inbox")
	}

	if _, _, err := r.AdmitControl(nodeA); !errors.Is(err, ErrAlreadyAdmitted) {
		t.Errorf("second admission: got %v, want ErrAlreadyAdmitted", err)
	}

	// A different node is unaffected.
	if _, _, err := r.AdmitControl(nodeB); err != nil {
		t.Errorf("admission of other node: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestConcurrentAdmissionAdmitsExactlyOne(t *testing.T) {
	r := New(0)

	const attempts = 16
	var wg sync.WaitGroup
	var admitted atomic32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := r.AdmitControl(nodeA); err == nil {
				admitted.inc()
			}
		}()
	}
	wg.Wait()

	if got := admitted.load(); got != 1 {
		t.Errorf("admitted %d sessions, want exactly 1", got)
	}
}

type atomic32 struct {
	mu sync.Mutex
	n  int
}

func (a *atomic32) inc()      { a.mu.Lock(); a.n++; a.mu.Unlock() }
func (a *atomic32) load() int { a.mu.Lock(); defer a.mu.Unlock(); return a.n }

func TestAttachStreamRequiresSession(t *testing.T) {
	r := New(0)

	if _, _, err := r.AttachStream(nodeA, protocol.StreamKindFFT); !errors.Is(err, ErrNoSession) {
		t.Errorf("got %v, want ErrNoSession", err)
	}
	if r.Len() != 0 {
		t.Error("failed attach must not create a registry entry")
	}
}

func TestAttachStreamReusesSender(t *testing.T) {
	r := New(0)
	if _, _, err := r.AdmitControl(nodeA); err != nil {
		t.Fatal(err)
	}

	first, _, err := r.AttachStream(nodeA, protocol.StreamKindFFT)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := r.AttachStream(nodeA, protocol.StreamKindFFT)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("reattach must return the existing sender so frontend subscribers survive")
	}

	other, _, err := r.AttachStream(nodeA, protocol.StreamKindZigBee)
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("different kinds must get distinct senders")
	}
}

func TestRemoveCascades(t *testing.T) {
	r := New(0)
	if _, _, err := r.AdmitControl(nodeA); err != nil {
		t.Fatal(err)
	}
	sender, session, err := r.AttachStream(nodeA, protocol.StreamKindFFT)
	if err != nil {
		t.Fatal(err)
	}
	receiver := sender.Subscribe()
	defer receiver.Close()

	r.Remove(nodeA)

	if !session.Terminated() {
		t.Error("terminate flag must be set on removal")
	}
	if _, ok := r.Lookup(nodeA); ok {
		t.Error("entry must be gone after removal")
	}

	// Subscribers observe channel closure.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := receiver.Recv(ctx); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("receiver got %v, want bus.ErrClosed", err)
	}

	// Session handles captured before removal keep reporting termination,
	// and the inbox rejects further sends.
	if err := session.Send(protocol.SendConfig{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send after removal: got %v, want ErrSessionClosed", err)
	}

	// Removing again is a no-op.
	r.Remove(nodeA)
}

func TestRemoveClosesInboxForPump(t *testing.T) {
	r := New(0)
	session, inbox, err := r.AdmitControl(nodeA)
	if err != nil {
		t.Fatal(err)
	}

	if err := session.Send(protocol.SendConfig{}); err != nil {
		t.Fatal(err)
	}
	r.Remove(nodeA)

	// The pump drains the queued message, then sees the closed channel.
	if _, ok := <-inbox; !ok {
		t.Fatal("queued message lost on removal")
	}
	if _, ok := <-inbox; ok {
		t.Error("inbox must be closed after removal")
	}
}

func TestRemoveUnblocksSenderOnFullInbox(t *testing.T) {
	r := New(0)
	session, _, err := r.AdmitControl(nodeA)
	if err != nil {
		t.Fatal(err)
	}

	// No pump is draining: fill the inbox, then park one more sender on it.
	for i := 0; i < ControlInboxCapacity; i++ {
		if err := session.Send(protocol.SendConfig{}); err != nil {
			t.Fatal(err)
		}
	}
	sendErr := make(chan error, 1)
	go func() { sendErr <- session.Send(protocol.SendConfig{}) }()
	time.Sleep(10 * time.Millisecond)

	removed := make(chan struct{})
	go func() {
		r.Remove(nodeA)
		close(removed)
	}()

	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("Remove blocked behind a pending Send")
	}
	select {
	case err := <-sendErr:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("pending Send: got %v, want ErrSessionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending Send never returned after removal")
	}
}

func TestTouchIsMonotonicAndLockIndependent(t *testing.T) {
	r := New(0)
	session, _, err := r.AdmitControl(nodeA)
	if err != nil {
		t.Fatal(err)
	}

	base := session.LastSeen()
	future := base.Add(time.Minute)
	session.Touch(future)
	if !session.LastSeen().Equal(future) {
		t.Error("Touch with later timestamp must advance last_seen")
	}

	// An older timestamp never rewinds the clock.
	session.Touch(base)
	if !session.LastSeen().Equal(future) {
		t.Error("Touch with earlier timestamp must not rewind last_seen")
	}

	// Registry-level touch on an absent node is best-effort.
	r.Touch(nodeB, time.Now())
}

func TestSnapshot(t *testing.T) {
	r := New(0)
	if _, _, err := r.AdmitControl(nodeA); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.AttachStream(nodeA, protocol.StreamKindFFT); err != nil {
		t.Fatal(err)
	}

	entries := r.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("snapshot has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.NodeID != nodeA {
		t.Errorf("NodeID = %v", e.NodeID)
	}
	if len(e.Streams) != 1 || e.Streams[0] != protocol.StreamKindFFT {
		t.Errorf("Streams = %v", e.Streams)
	}
	if e.LastSeen.IsZero() {
		t.Error("LastSeen must be set on admission")
	}
}
