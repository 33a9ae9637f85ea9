package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Result is what a module's Execute call reports back to the worker pool.
type Result struct {
	Status   Status          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Status is the closed set of outcomes a module execution can report.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Module is the capability set every action type implements: identity,
// an informational JSON schema for its config, config validation, and
// execution against a rendered ActionContext.
type Module interface {
	ID() string
	Name() string
	ConfigSchema() json.RawMessage
	ValidateConfig(cfg map[string]any) error
	Execute(ctx context.Context, actx *ActionContext, cfg map[string]any) (Result, error)
}

// Registry is an immutable-after-startup map from action_type to Module,
// populated once during boot and read concurrently thereafter without
// synchronization.
type Registry struct {
	modules map[string]Module
	schemas map[string]*jsonschema.Schema
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds module to the registry, compiling its config_schema (if
// any) up front so a malformed schema fails at startup rather than on the
// first dispatch.
func (r *Registry) Register(module Module) error {
	r.modules[module.ID()] = module

	schema := module.ConfigSchema()
	if len(schema) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://formrelay.dev/schemas/actions/%s.json", module.ID())
	if err := compiler.AddResource(schemaURL, strings.NewReader(string(schema))); err != nil {
		return fmt.Errorf("actions: load schema for %q: %w", module.ID(), err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("actions: compile schema for %q: %w", module.ID(), err)
	}
	r.schemas[module.ID()] = compiled
	return nil
}

// Get looks up a module by action_type in O(1); ok is false for an unknown
// type.
func (r *Registry) Get(actionType string) (Module, bool) {
	m, ok := r.modules[actionType]
	return m, ok
}

// List returns every registered module, in no particular order.
func (r *Registry) List() []Module {
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	return out
}

// ValidateStoredConfig runs both the module's own ValidateConfig and, if a
// JSON schema was compiled for it, schema validation against the decoded
// config. The worker pool does not call it: stored Action configs are
// dispatched without being validated again.
func (r *Registry) ValidateStoredConfig(actionType string, cfg map[string]any) error {
	module, ok := r.Get(actionType)
	if !ok {
		return fmt.Errorf("actions: unknown module %q", actionType)
	}
	if err := module.ValidateConfig(cfg); err != nil {
		return err
	}
	if schema, ok := r.schemas[actionType]; ok {
		if err := schema.Validate(cfg); err != nil {
			return fmt.Errorf("actions: config failed schema validation: %w", err)
		}
	}
	return nil
}
