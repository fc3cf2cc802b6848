// Package registry holds the authoritative map of admitted capture nodes.
//
// A node gains an entry only through control-session admission; data
// sessions and frontends look entries up but never create them. Removing
// an entry tears the whole node down: the terminate flag flips first so
// in-flight data loops exit, then every broadcast sender closes so
// attached frontends observe end-of-stream.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/sdrhub/pkg/bus"
	"github.com/marmos91/sdrhub/pkg/protocol"
)

// ControlInboxCapacity bounds how many hub->node messages may queue for
// transmission before senders back off.
const ControlInboxCapacity = 5

var (
	// ErrAlreadyAdmitted is returned when a control session exists for the node.
	ErrAlreadyAdmitted = errors.New("node already admitted")

	// ErrNoSession is returned when no control session exists for the node.
	ErrNoSession = errors.New("no control session for node")

	// ErrSessionClosed is returned when sending on a removed session's inbox.
	ErrSessionClosed = errors.New("control session closed")
)

// Session is the live state of one admitted node. The registry owns the
// canonical reference; handlers hold handle copies that stay valid (but
// observe termination) after removal.
type Session struct {
	nodeID uuid.UUID

	// inbox carries hub->node control messages to the outbound pump.
	// done unblocks senders stuck on a full inbox when the session ends;
	// sending tracks in-flight senders so the inbox only closes once they
	// have all left.
	inbox    chan protocol.HubMessage
	done     chan struct{}
	inboxMu  sync.Mutex
	inboxEnd bool
	sending  sync.WaitGroup

	// streams maps kind -> broadcast sender, guarded by the registry lock.
	streams map[protocol.StreamKind]*bus.Sender

	// lastSeen has its own lock so data-session hot paths never touch the
	// registry lock.
	lastSeenMu sync.Mutex
	lastSeen   time.Time

	terminate atomic.Bool
}

// NodeID returns the identity this session was admitted under.
func (s *Session) NodeID() uuid.UUID {
	return s.nodeID
}

// Send enqueues a control message for transmission to the node. It blocks
// while the inbox is full and fails once the session has been removed.
// The channel send happens outside the mutex so removal never waits on a
// full inbox.
func (s *Session) Send(msg protocol.HubMessage) error {
	s.inboxMu.Lock()
	if s.inboxEnd {
		s.inboxMu.Unlock()
		return ErrSessionClosed
	}
	s.sending.Add(1)
	s.inboxMu.Unlock()
	defer s.sending.Done()

	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Touch records activity from the node at the given instant. last_seen is
// monotonic non-decreasing for the lifetime of the session.
func (s *Session) Touch(ts time.Time) {
	s.lastSeenMu.Lock()
	if ts.After(s.lastSeen) {
		s.lastSeen = ts
	}
	s.lastSeenMu.Unlock()
}

// LastSeen returns the most recent activity timestamp.
func (s *Session) LastSeen() time.Time {
	s.lastSeenMu.Lock()
	defer s.lastSeenMu.Unlock()
	return s.lastSeen
}

// Terminated reports whether the session has been removed from the
// registry. Data-ingest loops poll this every iteration.
func (s *Session) Terminated() bool {
	return s.terminate.Load()
}

// closeInbox ends the hub->node message stream. Blocked senders are
// released via done; the inbox channel closes only after they have all
// returned, so the outbound pump drains what was queued and exits.
func (s *Session) closeInbox() {
	s.inboxMu.Lock()
	if s.inboxEnd {
		s.inboxMu.Unlock()
		return
	}
	s.inboxEnd = true
	s.inboxMu.Unlock()

	close(s.done)
	s.sending.Wait()
	close(s.inbox)
}

// Entry is one row of a registry snapshot.
type Entry struct {
	NodeID   uuid.UUID
	LastSeen time.Time
	Streams  []protocol.StreamKind
}

// Registry maps node identity to session state. The single mutex guards
// only map-level operations; per-session state carries its own locks.
type Registry struct {
	mu          sync.Mutex
	nodes       map[uuid.UUID]*Session
	busCapacity int
}

// New creates an empty registry whose streams use the given broadcast
// ring capacity.
func New(busCapacity int) *Registry {
	if busCapacity <= 0 {
		busCapacity = bus.DefaultCapacity
	}
	return &Registry{
		nodes:       make(map[uuid.UUID]*Session),
		busCapacity: busCapacity,
	}
}

// AdmitControl atomically checks and inserts a session for the node,
// returning the session handle and the receiving end of its control inbox.
// A second admission for the same node fails with ErrAlreadyAdmitted while
// the first is live.
func (r *Registry) AdmitControl(nodeID uuid.UUID) (*Session, <-chan protocol.HubMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[nodeID]; exists {
		return nil, nil, ErrAlreadyAdmitted
	}

	s := &Session{
		nodeID:   nodeID,
		inbox:    make(chan protocol.HubMessage, ControlInboxCapacity),
		done:     make(chan struct{}),
		streams:  make(map[protocol.StreamKind]*bus.Sender),
		lastSeen: time.Now(),
	}
	r.nodes[nodeID] = s
	return s, s.inbox, nil
}

// AttachStream returns the broadcast sender for (node, kind), creating it
// on first use. Reusing an existing sender lets a reconnecting data worker
// resume publishing without invalidating frontend subscribers. Fails with
// ErrNoSession if the node has no control session.
func (r *Registry) AttachStream(nodeID uuid.UUID, kind protocol.StreamKind) (*bus.Sender, *Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.nodes[nodeID]
	if !exists {
		return nil, nil, ErrNoSession
	}

	sender, ok := s.streams[kind]
	if !ok {
		sender = bus.New(r.busCapacity)
		s.streams[kind] = sender
	}
	return sender, s, nil
}

// Stream looks up the broadcast sender for (node, kind) without creating
// anything. Used by frontend realtime handlers.
func (r *Registry) Stream(nodeID uuid.UUID, kind protocol.StreamKind) (*bus.Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.nodes[nodeID]
	if !exists {
		return nil, false
	}
	sender, ok := s.streams[kind]
	return sender, ok
}

// Lookup returns the session for a node if admitted.
func (r *Registry) Lookup(nodeID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.nodes[nodeID]
	return s, ok
}

// Remove tears the node down. The terminate flag is set before the map
// entry disappears so concurrent data loops holding session handles
// observe it, then every broadcast sender closes so subscribers see
// end-of-stream. Removing an absent node is a no-op.
func (r *Registry) Remove(nodeID uuid.UUID) {
	r.mu.Lock()
	s, exists := r.nodes[nodeID]
	if !exists {
		r.mu.Unlock()
		return
	}
	s.terminate.Store(true)
	delete(r.nodes, nodeID)
	streams := make([]*bus.Sender, 0, len(s.streams))
	for _, sender := range s.streams {
		streams = append(streams, sender)
	}
	r.mu.Unlock()

	for _, sender := range streams {
		sender.Close()
	}
	s.closeInbox()
}

// Touch updates the node's last_seen; best-effort if it was removed.
func (r *Registry) Touch(nodeID uuid.UUID, ts time.Time) {
	r.mu.Lock()
	s, exists := r.nodes[nodeID]
	r.mu.Unlock()
	if exists {
		s.Touch(ts)
	}
}

// Snapshot lists the currently admitted nodes.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.nodes))
	for _, s := range r.nodes {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	entries := make([]Entry, 0, len(sessions))
	for _, s := range sessions {
		r.mu.Lock()
		kinds := make([]protocol.StreamKind, 0, len(s.streams))
		for k := range s.streams {
			kinds = append(kinds, k)
		}
		r.mu.Unlock()
		entries = append(entries, Entry{
			NodeID:   s.nodeID,
			LastSeen: s.LastSeen(),
			Streams:  kinds,
		})
	}
	return entries
}

// Len reports how many nodes are admitted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}
