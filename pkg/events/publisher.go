package events

import "context"

// EventPublisher is the interface for publishing gateway events.
type EventPublisher interface {
	PublishInvoked(ctx context.Context, event *InvocationEvent) error
	PublishSession(ctx context.Context, event *SessionEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for deployments without COMMS).
type NoOpPublisher struct{}

// PublishInvoked is a no-op.
func (p *NoOpPublisher) PublishInvoked(_ context.Context, _ *InvocationEvent) error {
	return nil
}

// PublishSession is a no-op.
func (p *NoOpPublisher) PublishSession(_ context.Context, _ *SessionEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls callback functions (for testing).
// Either callback may be nil.
type CallbackPublisher struct {
	onInvoked func(ctx context.Context, event *InvocationEvent) error
	onSession func(ctx context.Context, event *SessionEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(
	onInvoked func(ctx context.Context, event *InvocationEvent) error,
	onSession func(ctx context.Context, event *SessionEvent) error,
) *CallbackPublisher {
	return &CallbackPublisher{onInvoked: onInvoked, onSession: onSession}
}

// PublishInvoked calls the invocation callback.
func (p *CallbackPublisher) PublishInvoked(ctx context.Context, event *InvocationEvent) error {
	if p.onInvoked == nil {
		return nil
	}
	return p.onInvoked(ctx, event)
}

// PublishSession calls the session callback.
func (p *CallbackPublisher) PublishSession(ctx context.Context, event *SessionEvent) error {
	if p.onSession == nil {
		return nil
	}
	return p.onSession(ctx, event)
}
