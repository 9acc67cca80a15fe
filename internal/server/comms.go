package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/mcp-servers/pkg/commsutil"
	"github.com/morezero/mcp-servers/pkg/dispatcher"
)

// SubscribeActions answers ActionRequests on mcp.<service>.v1 until the subscription is
// removed. Requests already in flight outlive ctx so a drain lets them finish.
func (s *Server) SubscribeActions(ctx context.Context, nc *comms.Conn) (*comms.Subscription, error) {
	subject := commsutil.BuildActionSubject(s.disp.Service())
	requestTimeout := s.cfg.RequestTimeout

	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		go s.handleActionMsg(ctx, msg, requestTimeout)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	return sub, nil
}

// handleActionMsg runs on its own goroutine so a slow action never holds up the subscription.
func (s *Server) handleActionMsg(ctx context.Context, msg *comms.Msg, requestTimeout time.Duration) {
	var req dispatcher.ActionRequest
	if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
		respond(msg, &dispatcher.ActionResponse{
			Ok: false,
			Error: &dispatcher.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: "Failed to decode request",
			},
		})
		return
	}

	// Per-request timeout; a shorter client timeout wins.
	timeout := requestTimeout
	if req.TimeoutMs > 0 {
		if client := time.Duration(req.TimeoutMs) * time.Millisecond; client < timeout {
			timeout = client
		}
	}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	respond(msg, s.disp.Dispatch(reqCtx, &req))
}

func respond(msg *comms.Msg, resp *dispatcher.ActionResponse) {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond: %v", logPrefix, err))
	}
}
