package ingest

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBody_JSON(t *testing.T) {
	payload, err := ParseBody("application/json", []byte(`{"name":"a","age":3}`))
	require.NoError(t, err)
	assert.Equal(t, "a", payload["name"])
}

func TestParseBody_JSON_Invalid(t *testing.T) {
	_, err := ParseBody("application/json", []byte(`{not json`))
	assert.Error(t, err)
}

func TestParseBody_FormURLEncoded(t *testing.T) {
	payload, err := ParseBody("application/x-www-form-urlencoded", []byte("name=bob&age=9"))
	require.NoError(t, err)
	assert.Equal(t, "bob", payload["name"])
	assert.Equal(t, "9", payload["age"])
}

func TestParseBody_FallbackTriesJSONThenForm(t *testing.T) {
	payload, err := ParseBody("", []byte(`{"name":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", payload["name"])

	payload, err = ParseBody("", []byte("name=bob"))
	require.NoError(t, err)
	assert.Equal(t, "bob", payload["name"])
}

func TestParseBody_UnknownContentTypeFallsBack(t *testing.T) {
	payload, err := ParseBody("text/plain", []byte("name=bob"))
	require.NoError(t, err)
	assert.Equal(t, "bob", payload["name"])
}

func TestIsFormContentType(t *testing.T) {
	assert.True(t, IsFormContentType("application/x-www-form-urlencoded"))
	assert.True(t, IsFormContentType("multipart/form-data; boundary=xyz"))
	assert.False(t, IsFormContentType("application/json"))
}

func TestParseMultipart_ReadsFieldsAsStrings(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "bob"))
	require.NoError(t, w.WriteField("message", "hello"))
	require.NoError(t, w.Close())

	payload, err := ParseMultipart(w.FormDataContentType(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "bob", payload["name"])
	assert.Equal(t, "hello", payload["message"])
}

func TestParseMultipart_MissingBoundary(t *testing.T) {
	_, err := ParseMultipart("multipart/form-data", []byte("irrelevant"))
	assert.Error(t, err)
}
