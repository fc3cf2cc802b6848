package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	s := New(10)
	if s.Publish([]byte("dropped")) {
		t.Error("Publish with zero subscribers should report false")
	}

	// A receiver attached afterwards must not see the earlier payload.
	r := s.Subscribe()
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}
}

func TestFanOutOrder(t *testing.T) {
	s := New(10)
	const subscribers = 4
	const payloads = 8

	receivers := make([]*Receiver, subscribers)
	for i := range receivers {
		receivers[i] = s.Subscribe()
	}
	if got := s.SubscriberCount(); got != subscribers {
		t.Fatalf("SubscriberCount = %d, want %d", got, subscribers)
	}

	var wg sync.WaitGroup
	for i, r := range receivers {
		wg.Add(1)
		go func(i int, r *Receiver) {
			defer wg.Done()
			defer r.Close()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			for n := 0; n < payloads; n++ {
				payload, err := r.Recv(ctx)
				if err != nil {
					t.Errorf("receiver %d: %v", i, err)
					return
				}
				want := fmt.Sprintf("payload-%d", n)
				if string(payload) != want {
					t.Errorf("receiver %d: got %q, want %q", i, payload, want)
					return
				}
			}
		}(i, r)
	}

	for n := 0; n < payloads; n++ {
		// Give receivers a moment so none of them laps the small ring.
		time.Sleep(time.Millisecond)
		if !s.Publish([]byte(fmt.Sprintf("payload-%d", n))) {
			t.Fatalf("Publish %d reported no subscribers", n)
		}
	}
	wg.Wait()
}

func TestSlowReceiverLagsWithoutBlockingPublisher(t *testing.T) {
	s := New(10)
	slow := s.Subscribe()
	defer slow.Close()
	fast := s.Subscribe()
	defer fast.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The slow receiver never reads while 50 payloads go through.
	fastDone := make(chan error, 1)
	go func() {
		for n := 0; n < 50; n++ {
			payload, err := fast.Recv(ctx)
			if err != nil {
				fastDone <- fmt.Errorf("payload %d: %w", n, err)
				return
			}
			if string(payload) != fmt.Sprintf("p%d", n) {
				fastDone <- fmt.Errorf("payload %d: got %q", n, payload)
				return
			}
		}
		fastDone <- nil
	}()

	for n := 0; n < 50; n++ {
		time.Sleep(time.Millisecond)
		s.Publish([]byte(fmt.Sprintf("p%d", n)))
	}
	if err := <-fastDone; err != nil {
		t.Fatalf("fast receiver: %v", err)
	}

	// The slow receiver resumes: first a lag report, then the tail in order.
	_, err := slow.Recv(ctx)
	var lag *LagError
	if !errors.As(err, &lag) {
		t.Fatalf("expected LagError, got %v", err)
	}
	if lag.Count != 40 {
		t.Errorf("lag count = %d, want 40", lag.Count)
	}
	for n := 40; n < 50; n++ {
		payload, err := slow.Recv(ctx)
		if err != nil {
			t.Fatalf("tail payload %d: %v", n, err)
		}
		if string(payload) != fmt.Sprintf("p%d", n) {
			t.Errorf("tail payload %d: got %q", n, payload)
		}
	}
}

func TestRecvAfterClose(t *testing.T) {
	s := New(10)
	r := s.Subscribe()
	defer r.Close()

	s.Publish([]byte("last"))
	s.Close()
	s.Close() // idempotent

	ctx := context.Background()
	payload, err := r.Recv(ctx)
	if err != nil {
		t.Fatalf("buffered payload after close: %v", err)
	}
	if string(payload) != "last" {
		t.Errorf("got %q, want %q", payload, "last")
	}
	if _, err := r.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCloseWakesBlockedReceiver(t *testing.T) {
	s := New(10)
	r := s.Subscribe()
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		_, err := r.Recv(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver did not wake on Close")
	}
}

func TestReceiverCloseDropsSubscriberCount(t *testing.T) {
	s := New(10)
	r := s.Subscribe()
	if s.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", s.SubscriberCount())
	}
	r.Close()
	r.Close() // idempotent
	if s.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", s.SubscriberCount())
	}
	if s.Publish([]byte("x")) {
		t.Error("Publish after last unsubscribe should be a no-op")
	}
}
