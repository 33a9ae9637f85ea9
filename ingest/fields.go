package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"formrelay.dev/db"
)

// SortFields partitions payload into (data, extras): keys matching a
// defined field name go to data, everything else to extras. A nil fields
// list means no schema is defined, so the entire payload becomes data and
// extras is empty.
func SortFields(payload map[string]any, fields []db.EndpointField) (data, extras map[string]any) {
	if fields == nil {
		return payload, map[string]any{}
	}

	defined := make(map[string]bool, len(fields))
	for _, f := range fields {
		defined[f.Name] = true
	}

	data = make(map[string]any)
	extras = make(map[string]any)
	for key, value := range payload {
		if defined[key] {
			data[key] = value
		} else {
			extras[key] = value
		}
	}
	return data, extras
}

// ValidateFields checks required-not-missing, required-not-empty, and
// per-type format for each defined field against data. It never rejects a
// submission; the returned warnings are for logging only.
func ValidateFields(data map[string]any, fields []db.EndpointField) []string {
	var warnings []string

	for _, field := range fields {
		value, present := data[field.Name]

		if !present || value == nil {
			if field.Required {
				warnings = append(warnings, fmt.Sprintf("missing required field: %s", field.Name))
			}
			continue
		}

		s, isString := value.(string)
		if isString && field.Required && s == "" {
			warnings = append(warnings, fmt.Sprintf("required field is empty: %s", field.Name))
		}
		if !isString {
			continue
		}

		switch field.Type {
		case "email":
			if !strings.Contains(s, "@") {
				warnings = append(warnings, fmt.Sprintf("invalid email format: %s", field.Name))
			}
		case "url":
			if !strings.HasPrefix(s, "http") {
				warnings = append(warnings, fmt.Sprintf("invalid url format: %s", field.Name))
			}
		case "number":
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid number format: %s", field.Name))
			}
		case "integer":
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid integer format: %s", field.Name))
			}
		}
	}

	return warnings
}
