package registry

import (
	"fmt"
	"log/slog"
	"sort"
)

const logPrefix = "registry:registry"

// Registry maps action names to capabilities. It is written only during startup;
// after Freeze the map is read-only and safe for concurrent Resolve calls without locking.
type Registry struct {
	service      string
	capabilities map[string]*Capability
	frozen       bool
}

// New creates an empty Registry for the named service.
func New(service string) *Registry {
	return &Registry{
		service:      service,
		capabilities: make(map[string]*Capability),
	}
}

// Service returns the service identifier echoed in every envelope.
func (r *Registry) Service() string {
	return r.service
}

// Register adds a capability. Startup only.
func (r *Registry) Register(c Capability) error {
	if r.frozen {
		return NewRegistryError(CodeFrozen, fmt.Sprintf("cannot register %q after startup", c.Name))
	}
	if c.Name == "" {
		return NewRegistryError(CodeInvalidCapability, "capability name is required")
	}
	if c.Handler == nil {
		return NewRegistryError(CodeInvalidCapability, fmt.Sprintf("capability %q has no handler", c.Name))
	}
	if _, exists := r.capabilities[c.Name]; exists {
		return NewRegistryError(CodeDuplicateCapability, fmt.Sprintf("capability %q already registered", c.Name))
	}

	cp := c
	cp.Required = append([]string(nil), c.Required...)
	if c.Defaults != nil {
		cp.Defaults = make(map[string]interface{}, len(c.Defaults))
		for k, v := range c.Defaults {
			cp.Defaults[k] = v
		}
	}
	r.capabilities[c.Name] = &cp

	slog.Debug(fmt.Sprintf("%s - Registered %s.%s (%s)", logPrefix, r.service, c.Name, c.Mode))
	return nil
}

// MustRegister is Register for boot-time wiring; a bad table is a programming error.
func (r *Registry) MustRegister(c Capability) {
	if err := r.Register(c); err != nil {
		panic(fmt.Sprintf("%s - %v", logPrefix, err))
	}
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.frozen = true
	slog.Info(fmt.Sprintf("%s - %s registry frozen with %d capabilities", logPrefix, r.service, len(r.capabilities)))
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Resolve looks up a capability by action name.
func (r *Registry) Resolve(name string) (*Capability, error) {
	c, ok := r.capabilities[name]
	if !ok {
		return nil, NewRegistryError(CodeNotFound, fmt.Sprintf("unknown action: %s", name))
	}
	return c, nil
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capabilities returns copies of all registered capabilities sorted by name.
func (r *Registry) Capabilities() []Capability {
	out := make([]Capability, 0, len(r.capabilities))
	for _, name := range r.Names() {
		out = append(out, *r.capabilities[name])
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.capabilities)
}
