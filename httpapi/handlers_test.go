package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"formrelay.dev/db"
)

func TestSocketPeerIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", socketPeerIP("203.0.113.7:54321"))
	assert.Equal(t, "2001:db8::1", socketPeerIP("[2001:db8::1]:443"))
	assert.Equal(t, "not-an-addr", socketPeerIP("not-an-addr"))
}

func TestApplyCORSHeaders_DefaultsToWildcard(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodOptions, "/", nil), rec)

	applyCORSHeaders(c, nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestApplyCORSHeaders_JoinsConfiguredOrigins(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodOptions, "/", nil), rec)

	applyCORSHeaders(c, &db.EndpointSettings{
		CORSOrigins: []string{"https://a.example.com", "https://b.example.com"},
	})
	assert.Equal(t, "https://a.example.com,https://b.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseTrustedProxies_SkipsInvalidEntries(t *testing.T) {
	nets := ParseTrustedProxies([]string{"10.0.0.0/8", "garbage", "192.168.0.0/16"}, nil)
	assert.Len(t, nets, 2)
}
