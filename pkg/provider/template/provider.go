// Package template is the starter service: one blocking and one suspending capability
// that new backends copy when they are added.
package template

import "context"

// Service is the service identifier carried in every envelope.
const Service = "template"

// Action names.
const (
	ActionTestFunction      = "test_function"
	ActionAsyncTestFunction = "async_test_function"
)

// Defaults applied when a request omits them.
const (
	DefaultMessage = "Hello"
	DefaultData    = "Test"
)

// TestResult is returned by test_function.
type TestResult struct {
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// AsyncResult is returned by async_test_function.
type AsyncResult struct {
	Data      string `json:"data"`
	Processed bool   `json:"processed"`
}

// Provider is the backend contract for the template service.
type Provider interface {
	TestFunction(ctx context.Context, message string) (*TestResult, error)
	AsyncTestFunction(ctx context.Context, data string) (*AsyncResult, error)
}
