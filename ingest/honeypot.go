// Package ingest implements the submission pipeline: parsing the raw
// request body, honeypot spam detection, field sorting, best-effort
// validation, request metadata capture, and persistence + enqueue of the
// resulting Submission and its ActionQueueItems.
package ingest

import "encoding/json"

// IsSpam reports whether payload carries a non-empty value at honeypotField.
// An unset or empty field name disables the check entirely.
func IsSpam(payload map[string]any, honeypotField string) bool {
	if honeypotField == "" {
		return false
	}

	value, ok := payload[honeypotField]
	if !ok || value == nil {
		return false
	}

	switch v := value.(type) {
	case string:
		return v != ""
	case json.RawMessage:
		return len(v) > 0 && string(v) != "null" && string(v) != `""`
	default:
		return true
	}
}
