package template

import (
	"context"

	"github.com/morezero/mcp-servers/pkg/provider"
	"github.com/morezero/mcp-servers/pkg/registry"
)

// Routes lists the service-specific POST endpoints.
var Routes = []provider.Route{
	{Path: "/test", Action: ActionTestFunction},
	{Path: "/async-test", Action: ActionAsyncTestFunction},
}

// Register binds both capabilities of p into reg. test_function is registered as
// blocking and runs off the caller's goroutine.
func Register(reg *registry.Registry, p Provider) error {
	caps := []registry.Capability{
		{
			Name:        ActionTestFunction,
			Description: "Echo a message with a timestamp",
			Mode:        registry.ModeBlocking,
			Defaults:    map[string]interface{}{"message": DefaultMessage},
			Handler: func(ctx context.Context, args registry.Args) (interface{}, error) {
				message, err := args.String("message", DefaultMessage)
				if err != nil {
					return nil, err
				}
				return p.TestFunction(ctx, message)
			},
		},
		{
			Name:        ActionAsyncTestFunction,
			Description: "Echo data after a simulated delay",
			Mode:        registry.ModeSuspending,
			Defaults:    map[string]interface{}{"data": DefaultData},
			Handler: func(ctx context.Context, args registry.Args) (interface{}, error) {
				data, err := args.String("data", DefaultData)
				if err != nil {
					return nil, err
				}
				return p.AsyncTestFunction(ctx, data)
			},
		},
	}

	for _, c := range caps {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
