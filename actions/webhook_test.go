package actions

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formrelay.dev/netsafe"
)

func relaxedPolicy(t *testing.T) *netsafe.Policy {
	t.Helper()
	p, err := netsafe.NewPolicy("relaxed", nil)
	require.NoError(t, err)
	return p
}

func TestWebhookModule_Execute_SuccessClassification(t *testing.T) {
	var gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := NewWebhookModule(relaxedPolicy(t))
	actx := testContext()
	cfg := map[string]any{"url": srv.URL}

	result, err := m.Execute(t.Context(), actx, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, gotBody, "a@b.com")
}

func TestWebhookModule_Execute_NonSuccessStatusIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewWebhookModule(relaxedPolicy(t))
	result, err := m.Execute(t.Context(), testContext(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestWebhookModule_Execute_RendersURLTemplate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewWebhookModule(relaxedPolicy(t))
	cfg := map[string]any{"url": srv.URL + "/hooks/{{endpoint.slug}}"}
	_, err := m.Execute(t.Context(), testContext(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "/hooks/contact", gotPath)
}

func TestWebhookModule_Execute_RejectsHeaderInjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewWebhookModule(relaxedPolicy(t))
	cfg := map[string]any{
		"url":     srv.URL,
		"headers": map[string]any{"X-Evil": "value\r\nX-Injected: yes"},
	}
	_, err := m.Execute(t.Context(), testContext(), cfg)
	assert.ErrorContains(t, err, "invalid characters")
}

func TestWebhookModule_Execute_CustomBodyTemplate(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewWebhookModule(relaxedPolicy(t))
	cfg := map[string]any{
		"url":           srv.URL,
		"body_template": `{"who":"{{tenant.name}}"}`,
	}
	_, err := m.Execute(t.Context(), testContext(), cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"who":"Acme Inc"}`, gotBody)
}

func TestWebhookModule_ValidateConfig_RequiresURL(t *testing.T) {
	m := NewWebhookModule(relaxedPolicy(t))
	assert.Error(t, m.ValidateConfig(map[string]any{}))
	assert.NoError(t, m.ValidateConfig(map[string]any{"url": "https://example.com"}))
}

func TestTruncateUTF8_LimitsByRuneCount(t *testing.T) {
	assert.Equal(t, "hello", truncateUTF8("hello", 10))
	assert.Equal(t, "he", truncateUTF8("hello", 2))
	assert.Equal(t, "日本", truncateUTF8("日本語", 2))
}
