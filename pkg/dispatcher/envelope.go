// Package dispatcher resolves action names to capabilities, invokes them and
// normalizes every outcome into a response envelope.
package dispatcher

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/morezero/mcp-servers/pkg/registry"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the canonical success/error wrapper returned for every dispatched action.
type Envelope struct {
	Status  string      `json:"status"`
	Service string      `json:"service"`
	Action  string      `json:"action"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

// OK reports whether the envelope carries a success outcome.
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// Build assembles an envelope. For StatusError, payloadOrErr is rendered as the error message;
// otherwise it becomes the payload. Build has no side effects.
func Build(status, service, action string, payloadOrErr interface{}, count *int) Envelope {
	env := Envelope{
		Status:  status,
		Service: service,
		Action:  action,
	}
	if status == StatusError {
		env.Error = errorMessage(payloadOrErr)
		return env
	}
	env.Data = payloadOrErr
	if count != nil {
		n := *count
		env.Count = &n
	}
	return env
}

// Success wraps a handler result; sequences also get their length as count.
func Success(service, action string, payload interface{}) Envelope {
	return Build(StatusSuccess, service, action, payload, sequenceLen(payload))
}

// Failure wraps a failure cause.
func Failure(service, action string, cause interface{}) Envelope {
	return Build(StatusError, service, action, cause, nil)
}

func sequenceLen(v interface{}) *int {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		n := rv.Len()
		return &n
	case reflect.Array:
		n := rv.Len()
		return &n
	default:
		return nil
	}
}

func errorMessage(cause interface{}) string {
	switch c := cause.(type) {
	case nil:
		return "unknown error"
	case *registry.RegistryError:
		return c.Message
	case error:
		var regErr *registry.RegistryError
		if errors.As(c, &regErr) {
			return regErr.Message
		}
		if msg := c.Error(); msg != "" {
			return msg
		}
		return fmt.Sprintf("%T", c)
	case string:
		if c == "" {
			return "unknown error"
		}
		return c
	default:
		return fmt.Sprint(c)
	}
}

// ActionRequest is the COMMS wire form of an inbound action call.
type ActionRequest struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	Args      map[string]interface{} `json:"args,omitempty"`
	TimeoutMs int                    `json:"timeoutMs,omitempty"`
}

// ActionResponse is the COMMS reply. Ok is false only when the request was rejected
// before dispatch; dispatched calls always carry an envelope, whatever its status.
type ActionResponse struct {
	ID       string       `json:"id"`
	Ok       bool         `json:"ok"`
	Envelope *Envelope    `json:"envelope,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured pre-dispatch error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
