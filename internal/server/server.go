// Package server wires one MCP service: capability registry, dispatcher, heartbeat
// sessions, the HTTP surface and the optional COMMS action subject.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/morezero/mcp-servers/internal/config"
	"github.com/morezero/mcp-servers/pkg/commsutil"
	"github.com/morezero/mcp-servers/pkg/dispatcher"
	"github.com/morezero/mcp-servers/pkg/events"
	"github.com/morezero/mcp-servers/pkg/heartbeat"
	"github.com/morezero/mcp-servers/pkg/metrics"
	"github.com/morezero/mcp-servers/pkg/provider"
	"github.com/morezero/mcp-servers/pkg/ratelimit"
)

const logPrefix = "server:server"

// Server holds the per-process handles passed to every request handler.
type Server struct {
	cfg        *config.Config
	disp       *dispatcher.Dispatcher
	sessions   *heartbeat.Manager
	metrics    *metrics.Metrics
	limiter    *ratelimit.Limiter
	clock      *heartbeat.Clock
	routes     []provider.Route
	httpServer *http.Server
}

// Params holds parameters for New. Publisher is optional.
type Params struct {
	Config     *config.Config
	Dispatcher *dispatcher.Dispatcher
	Routes     []provider.Route
	Publisher  events.EventPublisher
	Metrics    *metrics.Metrics
	Clock      *heartbeat.Clock
}

// New creates a Server. The dispatcher's registry must already be frozen.
func New(p Params) *Server {
	clock := p.Clock
	if clock == nil {
		clock = heartbeat.NewClock()
	}
	return &Server{
		cfg:     p.Config,
		disp:    p.Dispatcher,
		metrics: p.Metrics,
		limiter: ratelimit.New(p.Config.RateLimitRPS, p.Config.RateLimitBurst, 0),
		clock:   clock,
		routes:  p.Routes,
		sessions: heartbeat.NewManager(heartbeat.ManagerParams{
			Service:   p.Config.ServiceName,
			Interval:  p.Config.HeartbeatInterval,
			Clock:     clock,
			Publisher: p.Publisher,
			Metrics:   p.Metrics,
		}),
	}
}

// Sessions returns the heartbeat session manager.
func (s *Server) Sessions() *heartbeat.Manager {
	return s.sessions
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting %s %s (provider=%s)", logPrefix, cfg.ServiceName, cfg.ServiceVersion, cfg.Provider))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var nc *comms.Conn
	if cfg.COMMSURL != "" {
		nc, err = commsutil.Connect(commsutil.Options{URL: cfg.COMMSURL, Name: cfg.ServiceName})
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		defer nc.Close()
	} else {
		slog.Info(fmt.Sprintf("%s - COMMS_URL not set; action subject and events disabled", logPrefix))
	}

	s, err := Build(cfg, nc)
	if err != nil {
		return err
	}
	return s.Serve(ctx, nc)
}

// Serve runs the HTTP listener and, when nc is set, the COMMS action subject until ctx
// is done, then shuts everything down within the configured timeout.
func (s *Server) Serve(ctx context.Context, nc *comms.Conn) error {
	var sub *comms.Subscription
	if nc != nil {
		var err error
		sub, err = s.SubscribeActions(ctx, nc)
		if err != nil {
			return err
		}
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s - HTTP server error: %w", logPrefix, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info(fmt.Sprintf("%s - Shutting down %s", logPrefix, s.cfg.ServiceName))
		return s.shutdown(sub, nc)
	})

	slog.Info(fmt.Sprintf("%s - %s is ready", logPrefix, s.cfg.ServiceName))
	err := g.Wait()
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return err
}

func (s *Server) shutdown(sub *comms.Subscription, nc *comms.Conn) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe failed: %v", logPrefix, err))
		}
	}
	// SSE handlers never return on their own, so sessions close before the listener drains.
	if err := s.sessions.Shutdown(shutdownCtx); err != nil {
		slog.Warn(err.Error())
	}
	var errs []error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("%s - HTTP shutdown: %w", logPrefix, err))
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("%s - COMMS drain: %w", logPrefix, err))
		}
	}
	return errors.Join(errs...)
}
