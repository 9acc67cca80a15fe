package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/mcp-servers/pkg/events"
	"github.com/morezero/mcp-servers/pkg/metrics"
)

const logPrefix = "heartbeat:manager"

// ErrShutdown is returned by Open after Shutdown.
var ErrShutdown = errors.New("heartbeat manager is shut down")

// ManagerParams holds parameters for NewManager. Publisher, Metrics and Clock are optional.
type ManagerParams struct {
	Service   string
	Interval  time.Duration
	Clock     *Clock
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
}

// Manager tracks live sessions of one service.
type Manager struct {
	service   string
	interval  time.Duration
	clock     *Clock
	publisher events.EventPublisher
	metrics   *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	shutdown bool
}

// NewManager creates a Manager.
func NewManager(p ManagerParams) *Manager {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.Clock == nil {
		p.Clock = NewClock()
	}
	if p.Publisher == nil {
		p.Publisher = &events.NoOpPublisher{}
	}
	return &Manager{
		service:   p.Service,
		interval:  p.Interval,
		clock:     p.Clock,
		publisher: p.Publisher,
		metrics:   p.Metrics,
		sessions:  make(map[string]*Session),
	}
}

// Interval returns the heartbeat period.
func (m *Manager) Interval() time.Duration {
	return m.interval
}

// Open creates and tracks a new session. The session is untracked when it closes.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	s := NewSession(m.service, m.interval, m.clock)
	s.onClose = m.release

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	slog.Debug(fmt.Sprintf("%s - SSE session %s opened", logPrefix, s.ID()))
	m.publish(ctx, &events.SessionEvent{
		Service:   m.service,
		SessionID: s.ID(),
		Kind:      events.SessionOpened,
		Timestamp: s.CreatedAt().UTC().Format(time.RFC3339Nano),
	})
	return s, nil
}

// Serve opens a session and runs it until it closes.
func (m *Manager) Serve(ctx context.Context, emit EmitFunc) error {
	s, err := m.Open(ctx)
	if err != nil {
		return err
	}

	return s.Run(ctx, func(e Event) error {
		if err := emit(e); err != nil {
			return err
		}
		if e.Type == EventHeartbeat {
			m.metrics.HeartbeatSent()
		}
		return nil
	})
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID())
	m.mu.Unlock()

	m.metrics.SessionClosed()
	slog.Info(fmt.Sprintf("%s - %s SSE session %s disconnected (reason=%s heartbeats=%d)",
		logPrefix, m.service, s.ID(), s.Reason(), s.Heartbeats()))
	m.publish(context.Background(), &events.SessionEvent{
		Service:    m.service,
		SessionID:  s.ID(),
		Kind:       events.SessionClosed,
		Reason:     s.Reason(),
		Heartbeats: s.Heartbeats(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes every live session, rejects new ones and waits until all of them
// are Closed or ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	if len(live) > 0 {
		slog.Info(fmt.Sprintf("%s - Closing %d SSE session(s)", logPrefix, len(live)))
	}
	for _, s := range live {
		s.closeWith(ReasonShutdown)
	}
	for _, s := range live {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return fmt.Errorf("%s - shutdown interrupted with %d session(s) live: %w", logPrefix, m.Active(), ctx.Err())
		}
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, e *events.SessionEvent) {
	if err := m.publisher.PublishSession(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish session %s event: %v", logPrefix, e.Kind, err))
	}
}
