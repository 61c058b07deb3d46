// Package session owns the session table: one entry per live agent<->gateway
// duplex channel, its outbound frame queue, pending-request correlation map,
// and access-log ring buffer.
package session

import (
	"sync"
	"time"

	"github.com/0xReLogic/Tunly/internal/domain/frame"
)

// OutboundCapacity is the bounded capacity of a session's outbound frame
// channel.
const OutboundCapacity = 64

// AccessLogLimit is the maximum number of entries retained in a session's
// access-log ring buffer.
const AccessLogLimit = 50

// IdleTTL is the duration of inactivity after which a session becomes
// eligible for idle GC.
const IdleTTL = 600 * time.Second

// SweepInterval is how often the idle GC sweep runs.
const SweepInterval = 60 * time.Second

// AccessLogEntry records one proxied request for the session-log page.
type AccessLogEntry struct {
	Time   time.Time
	Method string
	Path   string
	Status int
}

// pendingSlot is a single-shot completion rendezvous: exactly one producer
// (the reader task, on a matching response frame) and one consumer (the
// proxy-ingress handler awaiting that response), capacity 1 so the producer
// never blocks even if the consumer has already given up.
type pendingSlot chan frame.ResponseEnvelope

// Session is a live agent<->gateway duplex channel and its associated state.
// Exported fields are read-mostly snapshots; mutation happens only through
// the methods below, which take the session's own lock.
type Session struct {
	ID string

	// Outbound is the bounded queue the writer task drains to transmit
	// frames to the agent. Enqueue failure (channel full) is treated as
	// "peer gone" by the caller.
	Outbound chan frame.RequestEnvelope

	mu         sync.Mutex
	pending    map[uint64]pendingSlot
	createdAt  time.Time
	lastAccess time.Time
	accessLog  []AccessLogEntry
}

// New creates a session with a fresh bounded outbound channel.
func New(id string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Outbound:   make(chan frame.RequestEnvelope, OutboundCapacity),
		pending:    make(map[uint64]pendingSlot),
		createdAt:  now,
		lastAccess: now,
	}
}

// Touch updates last-activity to now. Called by the reader task on any
// inbound frame and by the writer task on every successful transmit.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// IdleSince reports how long the session has been without activity.
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

// AddPending inserts a fresh completion slot for id and returns it. The
// caller enqueues the corresponding request envelope before awaiting it.
func (s *Session) AddPending(id uint64) pendingSlot {
	ch := make(pendingSlot, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	return ch
}

// RemovePending removes the completion slot for id without completing it,
// used by the proxy handler on timeout and by enqueue-failure paths.
func (s *Session) RemovePending(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// CompletePending atomically removes the pending slot for id and delivers
// resp to it, returning false if no such slot exists (a late or duplicate
// response). This is the linearization point for "this request is claimed".
func (s *Session) CompletePending(resp frame.ResponseEnvelope) bool {
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// DrainPending removes and closes every outstanding pending slot, waking
// any awaiters with a closed (zero-value) channel read. Called on session
// teardown so pending proxy handlers observe "tunnel closed".
func (s *Session) DrainPending() {
	s.mu.Lock()
	slots := s.pending
	s.pending = make(map[uint64]pendingSlot)
	s.mu.Unlock()
	for _, ch := range slots {
		close(ch)
	}
}

// AppendAccessLog records an access-log entry, evicting the oldest entry
// once the ring buffer exceeds AccessLogLimit.
func (s *Session) AppendAccessLog(e AccessLogEntry) {
	s.mu.Lock()
	s.accessLog = append(s.accessLog, e)
	if len(s.accessLog) > AccessLogLimit {
		s.accessLog = s.accessLog[len(s.accessLog)-AccessLogLimit:]
	}
	s.mu.Unlock()
}

// AccessLog returns a copy of the current access-log ring buffer, newest last.
func (s *Session) AccessLog() []AccessLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AccessLogEntry, len(s.accessLog))
	copy(out, s.accessLog)
	return out
}
