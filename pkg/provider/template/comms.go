package template

import (
	"context"

	"github.com/morezero/mcp-servers/pkg/provider"
)

// CommsProvider forwards every call to an external backend over COMMS.
type CommsProvider struct {
	client *provider.CommsClient
}

// NewCommsProvider creates a CommsProvider on top of client.
func NewCommsProvider(client *provider.CommsClient) *CommsProvider {
	return &CommsProvider{client: client}
}

// TestFunction forwards test_function.
func (p *CommsProvider) TestFunction(ctx context.Context, message string) (*TestResult, error) {
	var out TestResult
	if err := p.client.Call(ctx, ActionTestFunction, map[string]interface{}{"message": message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AsyncTestFunction forwards async_test_function.
func (p *CommsProvider) AsyncTestFunction(ctx context.Context, data string) (*AsyncResult, error) {
	var out AsyncResult
	if err := p.client.Call(ctx, ActionAsyncTestFunction, map[string]interface{}{"data": data}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
