package template

import (
	"context"
	"fmt"
	"time"
)

// DefaultLatency is the simulated latency of AsyncTestFunction.
const DefaultLatency = 100 * time.Millisecond

// MockProvider answers locally. Clock supplies TestResult timestamps.
type MockProvider struct {
	clock   func() float64
	latency time.Duration
}

// NewMockProvider creates a MockProvider. A nil clock reports Unix seconds.
func NewMockProvider(clock func() float64, latency time.Duration) *MockProvider {
	if clock == nil {
		clock = func() float64 {
			return float64(time.Now().UnixNano()) / float64(time.Second)
		}
	}
	if latency < 0 {
		latency = 0
	}
	return &MockProvider{clock: clock, latency: latency}
}

// TestFunction echoes message.
func (m *MockProvider) TestFunction(_ context.Context, message string) (*TestResult, error) {
	return &TestResult{
		Message:   fmt.Sprintf("Mock response: %s", message),
		Timestamp: m.clock(),
	}, nil
}

// AsyncTestFunction waits for the simulated latency, or until ctx is done, then echoes data.
func (m *MockProvider) AsyncTestFunction(ctx context.Context, data string) (*AsyncResult, error) {
	timer := time.NewTimer(m.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &AsyncResult{
		Data:      fmt.Sprintf("Async mock response: %s", data),
		Processed: true,
	}, nil
}
