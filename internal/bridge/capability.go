package bridge

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
)

var (
	// ErrMalformedCall rejects a call whose arguments do not match the
	// capability signature. Nothing privileged runs.
	ErrMalformedCall = errors.New("malformed capability call")
	// ErrUnknownCapability is returned for a name outside the closed set.
	ErrUnknownCapability = errors.New("unknown capability")
)

// Kind is how a capability returns to the caller
type Kind int

const (
	// FireAndForget calls return nothing; the caller never waits
	FireAndForget Kind = iota
	// Sync calls return a value immediately
	Sync
	// Async calls return a value later; the page sees a Promise
	Async
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case FireAndForget:
		return "fire-and-forget"
	case Sync:
		return "sync"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// ArgKind is the type of one positional argument
type ArgKind int

const (
	ArgString ArgKind = iota
	ArgBool
	ArgNumber
	ArgFunc
)

// String returns the string representation of the argument kind
func (a ArgKind) String() string {
	switch a {
	case ArgString:
		return "string"
	case ArgBool:
		return "boolean"
	case ArgNumber:
		return "number"
	case ArgFunc:
		return "function"
	default:
		return "unknown"
	}
}

// Callback is a page function handed to the host. The sandbox guarantees it
// runs on the page's own loop and becomes a no-op once the page is closed.
type Callback func(value any)

// Handler performs one privileged operation on validated arguments
type Handler func(ctx context.Context, args []any) (any, error)

// Capability is one named, fixed-shape privileged operation
type Capability struct {
	Name    string
	Kind    Kind
	Args    []ArgKind
	Doc     string
	handler Handler
}

// Signature renders the capability as name(arg, ...) for diagnostics
func (c Capability) Signature() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}

// check validates arity and argument types
func (c Capability) check(args []any) error {
	if len(args) != len(c.Args) {
		return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrMalformedCall, c.Signature(), len(c.Args), len(args))
	}
	for i, want := range c.Args {
		if !matches(want, args[i]) {
			return fmt.Errorf("%w: %s argument %d must be %s, got %T", ErrMalformedCall, c.Signature(), i, want, args[i])
		}
	}
	return nil
}

func matches(want ArgKind, v any) bool {
	switch want {
	case ArgString:
		_, ok := v.(string)
		return ok
	case ArgBool:
		_, ok := v.(bool)
		return ok
	case ArgNumber:
		f, ok := asFloat(v)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	case ArgFunc:
		cb, ok := v.(Callback)
		return ok && cb != nil
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Materialize turns lazily produced results into plain values a page can
// hold. A sequence is drained once; draining it again yields nothing.
func Materialize(v any) any {
	if seq, ok := v.(iter.Seq[string]); ok {
		out := slices.Collect(seq)
		if out == nil {
			out = []string{}
		}
		return out
	}
	return v
}
