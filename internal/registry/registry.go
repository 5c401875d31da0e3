// Package registry implements the Task Registry and the Configurable
// Class Registry: both are the same polymorphic-by-name pattern — a
// type descriptor table `(rootKind, name) -> factory`, partitioned by root
// base class, with two-stage schema validation (base, then subclass).
package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Factory constructs a concrete instance from its raw JSON config plus
// whatever the root kind's construction contract requires as "extra" — a
// CameleerDefaults for tasks, or the engine handle for controls/managers.
type Factory func(rawConfig json.RawMessage, extra any) (any, error)

type entry struct {
	factory Factory
	schema  *jsonschema.Schema
}

// partition is one root base class's name -> factory table: each root owns
// its own name-to-constructor table.
type partition struct {
	mu         sync.Mutex
	baseSchema *jsonschema.Schema
	byName     map[string]entry
}

// Registry holds every root partition.
type Registry struct {
	mu    sync.Mutex
	roots map[string]*partition
}

func New() *Registry {
	return &Registry{roots: map[string]*partition{}}
}

// Root declares a root base class with its base schema (declaring an
// existing root again has no effect; the first base schema is kept) —
// validated before the subclass-specific schema on every Instantiate call.
// baseSchema may be nil to skip base validation.
func (r *Registry) Root(rootKind string, baseSchema *jsonschema.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roots[rootKind]; ok {
		return
	}
	r.roots[rootKind] = &partition{baseSchema: baseSchema, byName: map[string]entry{}}
}

// UnregisterRoot clears an entire root partition.
func (r *Registry) UnregisterRoot(rootKind string) {
	r.mu.Lock()
	delete(r.roots, rootKind)
	r.mu.Unlock()
}

// Register adds name -> factory under rootKind, with an optional
// subclass-specific schema. Fails on a duplicate name unless forceOverride.
func (r *Registry) Register(rootKind, name string, factory Factory, subSchema *jsonschema.Schema, forceOverride bool) error {
	r.mu.Lock()
	p, ok := r.roots[rootKind]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoot, rootKind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byName[name]; exists && !forceOverride {
		return fmt.Errorf("%w: %q under %q", ErrDuplicateName, name, rootKind)
	}
	p.byName[name] = entry{factory: factory, schema: subSchema}
	return nil
}

// Instantiate validates rawConfig against rootKind's base schema, locates
// the registered factory by typeName, validates again against its
// subclass-specific schema if any, and constructs the instance.
func (r *Registry) Instantiate(rootKind, typeName string, rawConfig json.RawMessage, extra any) (any, error) {
	r.mu.Lock()
	p, ok := r.roots[rootKind]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoot, rootKind)
	}

	var doc any
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
		}
	}
	if p.baseSchema != nil {
		if err := p.baseSchema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
		}
	}

	p.mu.Lock()
	e, ok := p.byName[typeName]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q under %q", ErrUnknownType, typeName, rootKind)
	}

	if e.schema != nil {
		if err := e.schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
		}
	}

	return e.factory(rawConfig, extra)
}

// NewInstanceID generates an id for a control/manager instance that doesn't
// declare a stable name of its own.
func NewInstanceID() string {
	return uuid.NewString()
}
