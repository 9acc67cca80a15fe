package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/mcp-servers/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisher publishes gateway events to COMMS subjects.
type CommsPublisher struct {
	nc      *comms.Conn
	service string
}

// NewCommsPublisher creates a new CommsPublisher for the named service.
func NewCommsPublisher(nc *comms.Conn, service string) *CommsPublisher {
	return &CommsPublisher{nc: nc, service: service}
}

// PublishInvoked publishes an InvocationEvent to mcp.<service>.invoked.<action>.
func (p *CommsPublisher) PublishInvoked(_ context.Context, event *InvocationEvent) error {
	return p.publish(commsutil.BuildInvokedSubject(p.service, event.Action), event)
}

// PublishSession publishes a SessionEvent to mcp.<service>.session.<kind>.
func (p *CommsPublisher) PublishSession(_ context.Context, event *SessionEvent) error {
	return p.publish(commsutil.BuildSessionSubject(p.service, event.Kind), event)
}

func (p *CommsPublisher) publish(subject string, event interface{}) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}
	slog.Debug(fmt.Sprintf("%s - Published event to %s", commsPublisherLogPrefix, subject))
	return nil
}
