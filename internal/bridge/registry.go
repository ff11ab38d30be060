package bridge

import (
	"context"
	"fmt"
	"slices"
)

// Middleware wraps every capability handler
type Middleware func(name string, next Handler) Handler

// Registry is the closed set of capabilities. It is built once by New and
// cannot be extended afterwards; lookups are lock free.
type Registry struct {
	caps  map[string]Capability
	names []string // sorted for consistent iteration
}

// registryBuilder accumulates configuration during registry construction
type registryBuilder struct {
	caps       map[string]Capability
	middleware []Middleware
	errors     []error
}

// RegistryOption configures a registry under construction
type RegistryOption func(*registryBuilder)

// NewRegistry creates an immutable registry from the given options.
// Returns an error if a capability name is registered twice.
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	b := &registryBuilder{caps: make(map[string]Capability)}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.caps))
	wrapped := make(map[string]Capability, len(b.caps))
	for name, c := range b.caps {
		names = append(names, name)

		// first middleware wraps outermost
		h := c.handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](name, h)
		}
		c.Args = slices.Clone(c.Args)
		c.handler = h
		wrapped[name] = c
	}
	slices.Sort(names)

	return &Registry{caps: wrapped, names: names}, nil
}

// WithCapability registers one capability
func WithCapability(name string, kind Kind, args []ArgKind, doc string, h Handler) RegistryOption {
	return func(b *registryBuilder) {
		if name == "" {
			b.errors = append(b.errors, fmt.Errorf("capability name cannot be empty"))
			return
		}
		if h == nil {
			b.errors = append(b.errors, fmt.Errorf("capability %q has no handler", name))
			return
		}
		if _, exists := b.caps[name]; exists {
			b.errors = append(b.errors, fmt.Errorf("duplicate capability name: %q", name))
			return
		}
		b.caps[name] = Capability{Name: name, Kind: kind, Args: args, Doc: doc, handler: h}
	}
}

// WithMiddleware adds middleware in FIFO order
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// Names returns the sorted capability names
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Lookup returns a copy of the named capability
func (r *Registry) Lookup(name string) (Capability, bool) {
	c, ok := r.caps[name]
	if !ok {
		return Capability{}, false
	}
	c.Args = slices.Clone(c.Args)
	return c, true
}

// Check validates a call without running it
func (r *Registry) Check(name string, args []any) (Capability, error) {
	c, ok := r.caps[name]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
	}
	if err := c.check(args); err != nil {
		return Capability{}, err
	}
	return c, nil
}

// Invoke validates and runs a capability. A malformed call never reaches
// the handler.
func (r *Registry) Invoke(ctx context.Context, name string, args []any) (any, error) {
	c, err := r.Check(name, args)
	if err != nil {
		return nil, err
	}
	return c.handler(ctx, args)
}
