// Package provider holds the transport shared by capability providers that forward
// calls to an external backend over COMMS.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/mcp-servers/pkg/commsutil"
)

const logPrefix = "provider:comms"

// DefaultTimeout bounds a backend call when the caller's context carries no deadline.
const DefaultTimeout = 10 * time.Second

// Request is the wire form of a backend call.
type Request struct {
	ID     string                 `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Response is the wire form of a backend reply.
type Response struct {
	ID     string          `json:"id"`
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *BackendError   `json:"error,omitempty"`
}

// BackendError is a failure reported by the backend.
type BackendError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *BackendError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrEmptyResponse is returned when the backend replies ok without a result.
var ErrEmptyResponse = errors.New("backend returned no result")

// CommsClient sends request/reply calls to a backend subject.
type CommsClient struct {
	nc      *comms.Conn
	subject string
	timeout time.Duration
}

// NewCommsClient creates a client bound to subject. A non-positive timeout uses DefaultTimeout.
func NewCommsClient(nc *comms.Conn, subject string, timeout time.Duration) *CommsClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommsClient{nc: nc, subject: subject, timeout: timeout}
}

// Subject returns the backend subject.
func (c *CommsClient) Subject() string {
	return c.subject
}

// Call sends method with params and decodes the result into out (which may be nil).
func (c *CommsClient) Call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := Request{ID: uuid.NewString(), Method: method, Params: params}
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		return fmt.Errorf("%s - failed to encode %s request: %w", logPrefix, method, err)
	}

	slog.Debug(fmt.Sprintf("%s - method=%s subject=%s id=%s", logPrefix, method, c.subject, req.ID))

	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return fmt.Errorf("%s - %s request failed: %w", logPrefix, method, err)
	}

	var resp Response
	if err := commsutil.DecodePayload(msg.Data, &resp); err != nil {
		return fmt.Errorf("%s - invalid %s response: %w", logPrefix, method, err)
	}
	if !resp.Ok {
		if resp.Error == nil {
			return &BackendError{Code: "UNKNOWN", Message: fmt.Sprintf("%s failed", method)}
		}
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s - failed to decode %s result: %w", logPrefix, method, err)
	}
	return nil
}
