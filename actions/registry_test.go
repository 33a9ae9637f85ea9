package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModule struct {
	id     string
	schema json.RawMessage
}

func (m *stubModule) ID() string                   { return m.id }
func (m *stubModule) Name() string                 { return m.id }
func (m *stubModule) ConfigSchema() json.RawMessage { return m.schema }
func (m *stubModule) ValidateConfig(cfg map[string]any) error {
	if cfg["required_field"] == nil {
		return fmt.Errorf("required_field is required")
	}
	return nil
}
func (m *stubModule) Execute(ctx context.Context, actx *ActionContext, cfg map[string]any) (Result, error) {
	return Result{Status: StatusSuccess}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubModule{id: "stub"}))

	m, ok := r.Get("stub")
	assert.True(t, ok)
	assert.Equal(t, "stub", m.ID())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_CompilesConfigSchema(t *testing.T) {
	r := NewRegistry()
	schema := json.RawMessage(`{
		"type": "object",
		"required": ["required_field"],
		"properties": {"required_field": {"type": "string"}}
	}`)
	require.NoError(t, r.Register(&stubModule{id: "stub", schema: schema}))

	err := r.ValidateStoredConfig("stub", map[string]any{"required_field": "x"})
	assert.NoError(t, err)

	err = r.ValidateStoredConfig("stub", map[string]any{})
	assert.Error(t, err)
}

func TestRegistry_ValidateStoredConfig_UnknownModule(t *testing.T) {
	r := NewRegistry()
	err := r.ValidateStoredConfig("nonexistent", map[string]any{})
	assert.Error(t, err)
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubModule{id: "a"}))
	require.NoError(t, r.Register(&stubModule{id: "b"}))
	assert.Len(t, r.List(), 2)
}
