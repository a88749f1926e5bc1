package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/memstore"
	"github.com/substratefabric/core/pkg/validator"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	srv := NewServer(store, DefaultOptions())
	return httptest.NewServer(srv.Handler())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReceiveAndRead(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	payload, err := json.Marshal(map[string]any{"tx": []any{"mutable://open/x", map[string]any{"v": 1}}})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/v1/receive", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	readResp, err := http.Get(ts.URL + "/api/v1/read/mutable/open/x")
	require.NoError(t, err)
	defer readResp.Body.Close()
	assert.Equal(t, http.StatusOK, readResp.StatusCode)

	var rec map[string]any
	require.NoError(t, json.NewDecoder(readResp.Body).Decode(&rec))
	data := rec["data"].(map[string]any)
	assert.EqualValues(t, 1, data["v"])
}

func TestRead_NotFound(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/read/mutable/open/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestReceive_BinaryPayload_ReadReturnsRawBytesWithMIME(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	raw := []byte("<html>hi</html>")
	env := map[string]any{"__binary": true, "encoding": "base64", "data": base64.StdEncoding.EncodeToString(raw)}
	payload, err := json.Marshal(map[string]any{"tx": []any{"mutable://open/page.html", env}})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/v1/receive", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readResp, err := http.Get(ts.URL + "/api/v1/read/mutable/open/page.html")
	require.NoError(t, err)
	defer readResp.Body.Close()
	assert.Equal(t, "text/html", readResp.Header.Get("Content-Type"))
}

func TestList(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	for _, u := range []string{"mutable://open/a", "mutable://open/b"} {
		payload, _ := json.Marshal(map[string]any{"tx": []any{u, map[string]any{"v": 1}}})
		resp, err := http.Post(ts.URL+"/api/v1/receive", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/v1/list/mutable/open/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["Total"])
}

func TestCORS_MultiOriginAllowlistEchoesMatchingOrigin(t *testing.T) {
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	opts := DefaultOptions()
	opts.CORSOrigin = []any{"https://a.example", "https://b.example"}
	srv := NewServer(store, opts)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://b.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://b.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_MultiOriginAllowlistRejectsUnlistedOrigin(t *testing.T) {
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	opts := DefaultOptions()
	opts.CORSOrigin = []any{"https://a.example"}
	srv := NewServer(store, opts)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDelete(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	payload, _ := json.Marshal(map[string]any{"tx": []any{"mutable://open/x", map[string]any{"v": 1}}})
	resp, err := http.Post(ts.URL+"/api/v1/receive", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, ts.URL+"/api/v1/delete/mutable/open/x", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)
}
