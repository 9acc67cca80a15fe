package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/mcp-servers/pkg/events"
	"github.com/morezero/mcp-servers/pkg/metrics"
	"github.com/morezero/mcp-servers/pkg/registry"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes action calls to registered capabilities.
// It holds no mutable state; concurrent Invoke calls never contend.
type Dispatcher struct {
	registry  *registry.Registry
	publisher events.EventPublisher
	metrics   *metrics.Metrics
}

// Params holds parameters for NewDispatcher. Publisher and Metrics are optional.
type Params struct {
	Registry  *registry.Registry
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(p Params) *Dispatcher {
	pub := p.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &Dispatcher{
		registry:  p.Registry,
		publisher: pub,
		metrics:   p.Metrics,
	}
}

// Service returns the service identifier of the underlying registry.
func (d *Dispatcher) Service() string {
	return d.registry.Service()
}

// Registry returns the capability registry.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Validate runs the required-argument check for action. Unknown actions pass:
// the dispatcher reports them in-band.
func (d *Dispatcher) Validate(action string, args map[string]interface{}) error {
	c, err := d.registry.Resolve(action)
	if err != nil {
		return nil
	}
	return Validate(c, args)
}

// Invoke resolves and runs action. It never panics: every failure is returned as an error envelope.
func (d *Dispatcher) Invoke(ctx context.Context, action string, args map[string]interface{}) Envelope {
	start := time.Now()
	env := d.invoke(ctx, action, args)
	d.record(ctx, env, time.Since(start))
	return env
}

func (d *Dispatcher) invoke(ctx context.Context, action string, args map[string]interface{}) Envelope {
	service := d.registry.Service()

	c, err := d.registry.Resolve(action)
	if err != nil {
		return Failure(service, action, err)
	}
	if err := ctx.Err(); err != nil {
		return Failure(service, action, err)
	}

	result, err := d.call(ctx, c, withDefaults(c, args))
	if err != nil {
		return Failure(service, action, err)
	}
	return Success(service, action, result)
}

type outcome struct {
	result interface{}
	err    error
}

// call runs the handler. Blocking handlers go to a worker goroutine and the caller
// waits on the result or on ctx, whichever comes first.
func (d *Dispatcher) call(ctx context.Context, c *registry.Capability, args registry.Args) (interface{}, error) {
	if c.Mode != registry.ModeBlocking {
		return safeCall(ctx, c, args)
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := safeCall(ctx, c, args)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func safeCall(ctx context.Context, c *registry.Capability, args registry.Args) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%s panicked: %v", c.Name, rec)
		}
	}()
	return c.Handler(ctx, args)
}

func (d *Dispatcher) record(ctx context.Context, env Envelope, elapsed time.Duration) {
	if env.OK() {
		slog.Info(fmt.Sprintf("%s - service=%s action=%s status=%s duration=%s",
			logPrefix, env.Service, env.Action, env.Status, elapsed))
	} else {
		slog.Error(fmt.Sprintf("%s - service=%s action=%s status=%s duration=%s error=%s",
			logPrefix, env.Service, env.Action, env.Status, elapsed, env.Error))
	}

	d.metrics.ObserveInvocation(env.Action, env.Status, elapsed)

	event := &events.InvocationEvent{
		Service:    env.Service,
		Action:     env.Action,
		Status:     env.Status,
		Error:      env.Error,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := d.publisher.PublishInvoked(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish invocation event for %s: %v", logPrefix, env.Action, err))
	}
}

// Dispatch is the COMMS entry point: it validates, invokes and wraps the envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req *ActionRequest) *ActionResponse {
	slog.Debug(fmt.Sprintf("%s - action=%s id=%s", logPrefix, req.Action, req.ID))

	if req.Action == "" {
		return errorResponse(req.ID, "INVALID_REQUEST", "action is required", false)
	}

	if err := d.Validate(req.Action, req.Args); err != nil {
		return errorResponse(req.ID, "INVALID_ARGUMENT", err.Error(), false)
	}

	env := d.Invoke(ctx, req.Action, req.Args)
	return &ActionResponse{ID: req.ID, Ok: true, Envelope: &env}
}

func errorResponse(id, code, message string, retryable bool) *ActionResponse {
	return &ActionResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}
