package step

import (
	"fmt"
	"sort"
	"sync"

	"github.com/TomDLT/realtimefmri/errors"
)

// Kind classifies a step type for documentation and validation.
type Kind string

// Step kinds.
const (
	KindTransform Kind = "transform" // consumes ports, produces ports
	KindSink      Kind = "sink"      // consumes ports, publishes or persists
)

// Registration holds the factory and metadata for one step type.
type Registration struct {
	Name        string // Type identifier used in pipeline documents
	Kind        Kind   // transform or sink
	Description string // Human-readable description
	Factory     Factory
}

// Registry maps step type identifiers to registered factories. The set is
// closed and statically known at build time; duplicate registration is
// rejected.
type Registry struct {
	factories map[string]*Registration
	mu        sync.RWMutex
}

// NewRegistry creates an empty step registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
	}
}

// Register adds a step type to the registry.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Name == "" {
		return errors.WrapConfig(errors.ErrInvalidConfig, "Registry", "Register", "registration validation")
	}
	if reg.Factory == nil {
		return errors.WrapConfig(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("factory validation for %q", reg.Name))
	}
	if reg.Kind != KindTransform && reg.Kind != KindSink {
		return errors.WrapConfig(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("kind validation for %q", reg.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.Name]; exists {
		return errors.WrapConfig(
			fmt.Errorf("step type %q is already registered", reg.Name),
			"Registry", "Register", "duplicate type check")
	}

	r.factories[reg.Name] = reg
	return nil
}

// Lookup returns the registration for a type identifier.
func (r *Registry) Lookup(typeID string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[typeID]
	return reg, ok
}

// Create constructs a step instance for the given type identifier.
// Unknown types and factory failures are configuration errors.
func (r *Registry) Create(typeID string, params map[string]any, deps Dependencies) (Step, error) {
	reg, ok := r.Lookup(typeID)
	if !ok {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: %q", errors.ErrUnknownStepType, typeID),
			"Registry", "Create", "type lookup")
	}

	instance, err := reg.Factory(params, deps)
	if err != nil {
		return nil, errors.WrapConfig(err, "Registry", "Create",
			fmt.Sprintf("construct %q", typeID))
	}
	return instance, nil
}

// Types returns the sorted list of registered type identifiers.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
