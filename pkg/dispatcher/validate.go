package dispatcher

import (
	"fmt"

	"github.com/morezero/mcp-servers/pkg/registry"
)

// ValidationError reports a missing or empty required argument.
type ValidationError struct {
	Action string
	Field  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Validate checks the capability's required arguments.
func Validate(c *registry.Capability, args map[string]interface{}) error {
	a := registry.Args(args)
	for _, field := range c.Required {
		if !a.Present(field) {
			return &ValidationError{Action: c.Name, Field: field}
		}
	}
	return nil
}

// withDefaults returns a copy of args with the capability defaults filled in.
// The caller's map is never modified.
func withDefaults(c *registry.Capability, args map[string]interface{}) registry.Args {
	out := make(registry.Args, len(args)+len(c.Defaults))
	for k, v := range c.Defaults {
		out[k] = v
	}
	for k, v := range args {
		if v == nil {
			if _, hasDefault := c.Defaults[k]; hasDefault {
				continue
			}
		}
		out[k] = v
	}
	return out
}
