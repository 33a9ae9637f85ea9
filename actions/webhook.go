package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"formrelay.dev/netsafe"
)

const (
	webhookTimeout       = 30 * time.Second
	webhookMaxRespChars  = 1024
	webhookDefaultMethod = http.MethodPost
)

// WebhookModule renders a target URL, headers, and a JSON body against the
// submission context, enforces the SSRF policy, and issues the request.
type WebhookModule struct {
	client *http.Client
	ssrf   *netsafe.Policy
}

// NewWebhookModule builds a WebhookModule with a fixed 30s client timeout
// and the given SSRF policy.
func NewWebhookModule(ssrf *netsafe.Policy) *WebhookModule {
	return &WebhookModule{
		client: &http.Client{Timeout: webhookTimeout},
		ssrf:   ssrf,
	}
}

func (m *WebhookModule) ID() string   { return "webhook" }
func (m *WebhookModule) Name() string { return "Webhook" }

func (m *WebhookModule) ConfigSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "Webhook URL (templateable)"},
			"method": {"type": "string", "enum": ["POST", "PUT"], "default": "POST"},
			"headers": {"type": "object", "description": "Custom headers (templateable values)"},
			"body_template": {"type": "string", "description": "Custom JSON body template; full submission sent when empty"}
		},
		"required": ["url"]
	}`)
}

func (m *WebhookModule) ValidateConfig(cfg map[string]any) error {
	url, _ := cfg["url"].(string)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// Execute renders the URL, validates it against the SSRF policy, builds the
// request body and headers, issues the request, and classifies the
// response.
func (m *WebhookModule) Execute(ctx context.Context, actx *ActionContext, cfg map[string]any) (Result, error) {
	rawURL, _ := cfg["url"].(string)
	if strings.TrimSpace(rawURL) == "" {
		return Result{}, fmt.Errorf("url is required")
	}
	url := RenderTemplate(rawURL, actx)

	if err := m.ssrf.ValidateURL(ctx, url); err != nil {
		return Result{}, err
	}

	method := webhookDefaultMethod
	if raw, ok := cfg["method"].(string); ok {
		raw = strings.ToUpper(strings.TrimSpace(raw))
		if raw == http.MethodPost || raw == http.MethodPut {
			method = raw
		}
	}

	body, err := m.buildBody(cfg, actx)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if headers, ok := cfg["headers"].(map[string]any); ok {
		for key, raw := range headers {
			val, ok := raw.(string)
			if !ok {
				continue
			}
			rendered := RenderTemplate(val, actx)
			if strings.ContainsAny(rendered, "\r\n") {
				return Result{}, fmt.Errorf("header %q contains invalid characters", key)
			}
			req.Header.Set(key, rendered)
		}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return Result{
			Status:   StatusFailed,
			Response: mustJSON(map[string]any{"error": fmt.Sprintf("webhook request failed: %v", err)}),
		}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	truncated := truncateUTF8(string(respBody), webhookMaxRespChars)

	status := StatusFailed
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		status = StatusSuccess
	}

	return Result{
		Status: status,
		Response: mustJSON(map[string]any{
			"status_code": resp.StatusCode,
			"body":        truncated,
		}),
	}, nil
}

func (m *WebhookModule) buildBody(cfg map[string]any, actx *ActionContext) ([]byte, error) {
	tmpl, hasTemplate := cfg["body_template"].(string)
	if hasTemplate && strings.TrimSpace(tmpl) != "" {
		rendered := RenderTemplate(tmpl, actx)
		if json.Valid([]byte(rendered)) {
			return []byte(rendered), nil
		}
		return json.Marshal(rendered)
	}
	return m.defaultBody(actx)
}

func (m *WebhookModule) defaultBody(actx *ActionContext) ([]byte, error) {
	payload := map[string]any{
		"data":         rawOrEmptyObject(actx.Submission.Data),
		"extras":       rawOrEmptyObject(actx.Submission.Extras),
		"metadata":     rawOrEmptyObject(actx.Submission.Metadata),
		"endpoint":     actx.Endpoint.Name,
		"project":      actx.Project.Name,
		"submitted_at": actx.Submission.CreatedAt.UTC().Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

func rawOrEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// truncateUTF8 limits s to at most maxChars runes, counting characters
// rather than bytes so multi-byte UTF-8 text isn't split mid-rune.
func truncateUTF8(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= maxChars {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
