// Package heartbeat drives long-lived server-push sessions that signal liveness
// to a connected peer: one connected event, then a heartbeat per interval.
package heartbeat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is the heartbeat period.
const DefaultInterval = 30 * time.Second

// State is the lifecycle state of a Session.
type State int

const (
	StateOpening State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event types.
const (
	EventConnected = "connected"
	EventHeartbeat = "heartbeat"
)

// Close reasons.
const (
	ReasonDisconnect = "disconnect"
	ReasonClosed     = "closed"
	ReasonShutdown   = "shutdown"
	ReasonWriteError = "write_error"
)

// ErrNotOpening is returned by Run on a session that already ran or was closed.
var ErrNotOpening = errors.New("session is not in opening state")

// Event is a single frame pushed to the peer.
type Event struct {
	Type      string  `json:"type"`
	Service   string  `json:"service"`
	Session   string  `json:"session,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

// EmitFunc delivers one event to the peer. A returned error ends the session.
// Close cannot interrupt a call in progress, so emit must return within a bounded time.
type EmitFunc func(Event) error

// Session is one heartbeat stream. It is driven by a single Run call; Close may be
// called from any goroutine.
type Session struct {
	id        string
	service   string
	createdAt time.Time
	interval  time.Duration
	clock     *Clock

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	onClose  func(*Session)

	mu            sync.Mutex
	state         State
	running       bool
	reason        string
	lastHeartbeat time.Time
	heartbeats    int
}

// NewSession creates a session in the Opening state. A nil clock gets a fresh one;
// a non-positive interval uses DefaultInterval.
func NewSession(service string, interval time.Duration, clock *Clock) *Session {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = NewClock()
	}
	return &Session{
		id:        uuid.NewString(),
		service:   service,
		createdAt: time.Now(),
		interval:  interval,
		clock:     clock,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastHeartbeat returns the time of the last emitted heartbeat, zero if none.
func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// Heartbeats returns the number of heartbeats emitted.
func (s *Session) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeats
}

// Reason returns why the session closed, empty while it is live.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Close ends the session. It is idempotent.
func (s *Session) Close() {
	s.closeWith(ReasonClosed)
}

func (s *Session) closeWith(reason string) {
	s.setReason(reason)
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	idle := !s.running
	s.mu.Unlock()
	if idle {
		s.finish()
	}
}

func (s *Session) setReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason == "" {
		s.reason = reason
	}
}

// finish enters Closed, runs the close hook and then closes Done.
func (s *Session) finish() {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		if s.onClose != nil {
			s.onClose(s)
		}
		close(s.done)
	})
}

// Run emits the connected event, then a heartbeat every interval until ctx is done,
// Close is called or emit fails. The ticker is stopped before Run returns, and the
// session is Closed by then.
func (s *Session) Run(ctx context.Context, emit EmitFunc) error {
	s.mu.Lock()
	if s.state != StateOpening || s.running {
		s.mu.Unlock()
		return ErrNotOpening
	}
	s.running = true
	s.mu.Unlock()
	defer s.finish()

	if s.stopped(ctx) {
		return nil
	}
	if err := emit(s.event(EventConnected)); err != nil {
		s.setReason(ReasonWriteError)
		return err
	}

	s.mu.Lock()
	s.state = StateStreaming
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setReason(ReasonDisconnect)
			return nil
		case <-s.stop:
			return nil
		case <-ticker.C:
			if s.stopped(ctx) {
				return nil
			}
			if err := emit(s.event(EventHeartbeat)); err != nil {
				s.setReason(ReasonWriteError)
				return err
			}
			s.mu.Lock()
			s.lastHeartbeat = time.Now()
			s.heartbeats++
			s.mu.Unlock()
		}
	}
}

// stopped reports whether ctx or Close already ended the session.
func (s *Session) stopped(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		s.setReason(ReasonDisconnect)
		return true
	default:
		return false
	}
}

func (s *Session) event(kind string) Event {
	return Event{
		Type:      kind,
		Service:   s.service,
		Session:   s.id,
		Timestamp: s.clock.Now(),
	}
}
