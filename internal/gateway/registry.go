package gateway

import (
	"errors"
	"fmt"

	"github.com/encode-dcc/serverless-rnaget/internal/routes"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
)

var (
	// ErrUnknownHandler is returned for a name the shared artifact does not serve
	ErrUnknownHandler = errors.New("unknown handler")
	// ErrNetworkUnresolved is returned when a handler needs the internal
	// network but the VPC, subnets or security group were not resolved
	ErrNetworkUnresolved = errors.New("internal network unresolved")
	// ErrDuplicateHandler is returned when a handler name is registered twice
	ErrDuplicateHandler = routes.ErrDuplicateHandler
)

// Placement is where a function runs
type Placement int

const (
	// DefaultPlacement runs the function outside any VPC
	DefaultPlacement Placement = iota
	// NetworkPlacement runs the function in the existing VPC subnets with
	// the existing security group
	NetworkPlacement
)

// String returns the string representation of the placement
func (p Placement) String() string {
	if p == NetworkPlacement {
		return "network"
	}
	return "default"
}

// Handler is a deployed function serving one handler name
type Handler struct {
	Name      string
	Placement Placement
	Function  *lambda.Function
	LogGroup  *cloudwatch.LogGroup
}

// Registry maps handler names to their functions in registration order.
// A build owns exactly one registry.
type Registry struct {
	handlers map[string]*Handler
	order    []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds h, rejecting a name that is already present
func (r *Registry) Register(h *Handler) error {
	if _, exists := r.handlers[h.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, h.Name)
	}
	r.handlers[h.Name] = h
	r.order = append(r.order, h.Name)
	return nil
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Get returns the handler registered under name
func (r *Registry) Get(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Handlers returns the registered handlers in registration order
func (r *Registry) Handlers() []*Handler {
	out := make([]*Handler, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name])
	}
	return out
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	return len(r.order)
}
