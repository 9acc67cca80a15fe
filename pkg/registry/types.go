// Package registry holds the static action-name to capability table of a service.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode tells the dispatcher how a capability handler behaves.
type Mode int

const (
	// ModeSuspending handlers honour ctx and may be called on the caller's goroutine.
	ModeSuspending Mode = iota
	// ModeBlocking handlers ignore ctx; the dispatcher runs them on a worker goroutine.
	ModeBlocking
)

func (m Mode) String() string {
	switch m {
	case ModeBlocking:
		return "blocking"
	case ModeSuspending:
		return "suspending"
	default:
		return "unknown"
	}
}

// Handler is the uniform invocation signature every capability satisfies.
type Handler func(ctx context.Context, args Args) (interface{}, error)

// Capability is a named backend operation.
type Capability struct {
	Name        string
	Description string
	Mode        Mode
	// Required lists argument names that must be present and non-empty before dispatch.
	Required []string
	// Defaults are applied to absent arguments before dispatch.
	Defaults map[string]interface{}
	Handler  Handler
}

// Args is the argument mapping of an action request.
type Args map[string]interface{}

// String returns the string argument under key, or def when absent.
func (a Args) String(key, def string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string, got %T", key, v)
	}
	return s, nil
}

// Int returns the integer argument under key, or def when absent.
// JSON numbers decode as float64, so integral floats are accepted.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return saturateInt64(n), nil
	case float64:
		if math.IsNaN(n) || n != math.Trunc(n) {
			return 0, fmt.Errorf("argument %s must be an integer, got %v", key, n)
		}
		return saturate(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return saturateInt64(i), nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("argument %s must be an integer, got %s", key, n)
		}
		return saturate(f), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("argument %s must be an integer, got %q", key, n)
		}
		return saturateInt64(i), nil
	default:
		return 0, fmt.Errorf("argument %s must be an integer, got %T", key, v)
	}
}

func saturateInt64(i int64) int {
	if int64(int(i)) == i {
		return int(i)
	}
	if i > 0 {
		return math.MaxInt
	}
	return math.MinInt
}

// saturate converts an integral float to int, pinning values outside the int range
// to math.MaxInt or math.MinInt.
func saturate(f float64) int {
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt
	case f <= float64(math.MinInt):
		return math.MinInt
	default:
		return int(f)
	}
}

// Present reports whether key holds a non-empty value.
func (a Args) Present(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// RegistryError is a structured error from the registry.
type RegistryError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RegistryError) Error() string {
	return e.Code + ": " + e.Message
}

// NewRegistryError creates a new RegistryError.
func NewRegistryError(code, message string) *RegistryError {
	return &RegistryError{Code: code, Message: message}
}

// Registry error codes.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateCapability = "DUPLICATE_CAPABILITY"
	CodeInvalidCapability   = "INVALID_CAPABILITY"
	CodeFrozen              = "REGISTRY_FROZEN"
)
