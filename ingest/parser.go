package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
)

const (
	contentTypeJSON      = "application/json"
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
)

// IsFormContentType reports whether contentType is one of the form-encoded
// media types the public ingest endpoint accepts (used to decide whether a
// configured redirect applies).
func IsFormContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, contentTypeForm) || strings.Contains(ct, contentTypeMultipart)
}

// ParseBody dispatches on contentType and decodes body into a string-keyed
// payload: form bodies give flat string values, JSON objects keep their
// nested values. Multipart bodies must go through ParseMultipart
// instead, since they need the full Content-Type header for the boundary
// parameter.
func ParseBody(contentType string, body []byte) (map[string]any, error) {
	ct := strings.ToLower(contentType)

	switch {
	case strings.Contains(ct, contentTypeJSON):
		return parseJSON(body)
	case strings.Contains(ct, contentTypeForm):
		return parseFormURLEncoded(body)
	case ct == "":
		return parseFallback(body)
	default:
		return parseFallback(body)
	}
}

func parseFallback(body []byte) (map[string]any, error) {
	if payload, err := parseJSON(body); err == nil {
		return payload, nil
	}
	payload, err := parseFormURLEncoded(body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse body: unrecognized content type")
	}
	return payload, nil
}

func parseJSON(body []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return payload, nil
}

func parseFormURLEncoded(body []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	payload := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			payload[key] = vals[0]
		}
	}
	return payload, nil
}

// ParseMultipart streams each part of a multipart/form-data body, reading
// every part's content as a string field — uploaded files are currently
// captured as text, not stored as binary attachments.
func ParseMultipart(contentType string, body []byte) (map[string]any, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("missing multipart boundary: %w", err)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, fmt.Errorf("missing multipart boundary")
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	payload := make(map[string]any)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("multipart error: %w", err)
		}

		name := part.FormName()
		if name == "" {
			name = "unknown"
		}

		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("field read error: %w", err)
		}
		payload[name] = string(content)
	}

	return payload, nil
}
