package server

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/mcp-servers/internal/config"
	"github.com/morezero/mcp-servers/pkg/dispatcher"
	"github.com/morezero/mcp-servers/pkg/events"
	"github.com/morezero/mcp-servers/pkg/heartbeat"
	"github.com/morezero/mcp-servers/pkg/metrics"
	"github.com/morezero/mcp-servers/pkg/provider"
	"github.com/morezero/mcp-servers/pkg/provider/template"
	"github.com/morezero/mcp-servers/pkg/provider/xiaohongshu"
	"github.com/morezero/mcp-servers/pkg/registry"
)

// Build constructs the registry, provider, dispatcher and Server for cfg.
// nc may be nil; it is required only when cfg.Provider is comms.
func Build(cfg *config.Config, nc *comms.Conn) (*Server, error) {
	clock := heartbeat.NewClock()

	reg, routes, err := BuildRegistry(cfg, nc, clock)
	if err != nil {
		return nil, err
	}

	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if nc != nil {
		publisher = events.NewCommsPublisher(nc, cfg.ServiceKind)
	}
	m := metrics.New(cfg.ServiceKind)

	disp := dispatcher.NewDispatcher(dispatcher.Params{
		Registry:  reg,
		Publisher: publisher,
		Metrics:   m,
	})

	return New(Params{
		Config:     cfg,
		Dispatcher: disp,
		Routes:     routes,
		Publisher:  publisher,
		Metrics:    m,
		Clock:      clock,
	}), nil
}

// BuildRegistry registers the capabilities of cfg.ServiceKind backed by the configured
// provider, and freezes the registry.
func BuildRegistry(cfg *config.Config, nc *comms.Conn, clock *heartbeat.Clock) (*registry.Registry, []provider.Route, error) {
	var client *provider.CommsClient
	if cfg.Provider == config.ProviderComms {
		if nc == nil {
			return nil, nil, fmt.Errorf("%s - PROVIDER=%s requires a COMMS connection", logPrefix, config.ProviderComms)
		}
		client = provider.NewCommsClient(nc, cfg.ProviderSubject, cfg.ProviderTimeout)
		slog.Info(fmt.Sprintf("%s - Forwarding capabilities to %s", logPrefix, cfg.ProviderSubject))
	}

	reg := registry.New(cfg.ServiceKind)
	var routes []provider.Route
	var err error

	switch cfg.ServiceKind {
	case config.KindXiaohongshu:
		var p xiaohongshu.Provider = xiaohongshu.NewMockProvider()
		if client != nil {
			p = xiaohongshu.NewCommsProvider(client)
		}
		err = xiaohongshu.Register(reg, p)
		routes = xiaohongshu.Routes
	case config.KindTemplate:
		var p template.Provider = template.NewMockProvider(clock.Now, template.DefaultLatency)
		if client != nil {
			p = template.NewCommsProvider(client)
		}
		err = template.Register(reg, p)
		routes = template.Routes
	default:
		err = fmt.Errorf("unknown service kind %q", cfg.ServiceKind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to register capabilities: %w", logPrefix, err)
	}

	reg.Freeze()
	slog.Info(fmt.Sprintf("%s - Registered %d capabilities for %s: %v", logPrefix, reg.Len(), reg.Service(), reg.Names()))
	return reg, routes, nil
}
