// Package provider defines the capability-flagged abstraction (C1) over
// pluggable query backends — SQL, MongoDB, Splunk/SPL. Structurally
// modeled on the teacher's pkg/mcp client/transport/registry/factory split
// (no MCP protocol involved, just the shape: Registry resolves a
// configured backend to a concrete Provider). Result/capability shapes are
// grounded on original_source/src/text2x/providers/base.py's
// QueryProvider.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// Capability is one optional operation a Provider may support.
type Capability string

const (
	CapabilitySchemaIntrospection Capability = "schema_introspection"
	CapabilityQueryValidation     Capability = "query_validation"
	CapabilityQueryExecution      Capability = "query_execution"
	CapabilityQueryExplanation    Capability = "query_explanation"
	CapabilityDryRun              Capability = "dry_run"
	CapabilityCostEstimation      Capability = "cost_estimation"
)

// Provider is the interface every query backend implements. Callers must
// check HasCapability before calling an optional method; providers return
// an error wrapping ErrUnsupported for capabilities they lack.
type Provider interface {
	ID() string
	QueryLanguage() string
	Capabilities() []Capability
	HasCapability(c Capability) bool

	GetSchema(ctx context.Context) (*models.SchemaContext, error)
	ValidateSyntax(ctx context.Context, query string) (*models.ValidationResult, error)
	ExecuteQuery(ctx context.Context, query string, limit int) (*models.ExecutionResult, error)
	ExplainQuery(ctx context.Context, query string) (string, error)
	EstimateCost(ctx context.Context, query string) (float64, error)
}

// ErrUnsupported is wrapped by Provider methods for capabilities a backend
// does not implement.
var ErrUnsupported = fmt.Errorf("capability not supported by this provider")

// HasCapability is a small helper embeddable by concrete providers so they
// only need to define Capabilities().
func HasCapability(caps []Capability, want Capability) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}

// Registry resolves a provider ID to a live Provider instance, created
// lazily from configuration and cached thereafter — the same shape as the
// teacher's pkg/mcp client registry (connect-on-first-use, cache by ID).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	factory   func(ctx context.Context, id string) (Provider, error)
}

// NewRegistry builds a Registry that lazily constructs providers via
// factory, keyed by provider ID.
func NewRegistry(factory func(ctx context.Context, id string) (Provider, error)) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		factory:   factory,
	}
}

// Get returns the Provider for id, constructing and caching it on first
// use.
func (r *Registry) Get(ctx context.Context, id string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[id]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[id]; ok {
		return p, nil
	}

	p, err := r.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("construct provider %q: %w", id, err)
	}
	r.providers[id] = p
	return p, nil
}
