package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"formrelay.dev/db"
)

func TestSortFields_NilFieldsPutsEverythingInData(t *testing.T) {
	data, extras := SortFields(map[string]any{"a": 1, "b": 2}, nil)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, data)
	assert.Empty(t, extras)
}

func TestSortFields_PartitionsByDefinedName(t *testing.T) {
	fields := []db.EndpointField{{Name: "email"}, {Name: "message"}}
	data, extras := SortFields(map[string]any{
		"email": "a@b.com", "message": "hi", "honeypot": "",
	}, fields)

	assert.Equal(t, map[string]any{"email": "a@b.com", "message": "hi"}, data)
	assert.Equal(t, map[string]any{"honeypot": ""}, extras)
}

func TestValidateFields_MissingRequired(t *testing.T) {
	fields := []db.EndpointField{{Name: "email", Required: true}}
	warnings := ValidateFields(map[string]any{}, fields)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "missing required field: email")
}

func TestValidateFields_EmptyRequiredString(t *testing.T) {
	fields := []db.EndpointField{{Name: "email", Required: true}}
	warnings := ValidateFields(map[string]any{"email": ""}, fields)
	assert.Contains(t, warnings[0], "required field is empty: email")
}

func TestValidateFields_FormatChecks(t *testing.T) {
	fields := []db.EndpointField{
		{Name: "email", Type: "email"},
		{Name: "site", Type: "url"},
		{Name: "count", Type: "number"},
		{Name: "age", Type: "integer"},
	}
	warnings := ValidateFields(map[string]any{
		"email": "not-an-email",
		"site":  "not-a-url",
		"count": "not-a-number",
		"age":   "not-an-integer",
	}, fields)
	assert.Len(t, warnings, 4)
}

func TestValidateFields_ValidValuesProduceNoWarnings(t *testing.T) {
	fields := []db.EndpointField{
		{Name: "email", Type: "email", Required: true},
		{Name: "site", Type: "url"},
		{Name: "count", Type: "number"},
		{Name: "age", Type: "integer"},
	}
	warnings := ValidateFields(map[string]any{
		"email": "a@b.com",
		"site":  "https://example.com",
		"count": "3.14",
		"age":   "42",
	}, fields)
	assert.Empty(t, warnings)
}

func TestValidateFields_NonStringValueSkipsFormatCheck(t *testing.T) {
	fields := []db.EndpointField{{Name: "count", Type: "number"}}
	warnings := ValidateFields(map[string]any{"count": 42}, fields)
	assert.Empty(t, warnings)
}
