package wsapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/memstore"
	"github.com/substratefabric/core/pkg/validator"
)

func newTestConn(t *testing.T) *websocket.Conn {
	t.Helper()
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	srv := NewServer(store)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, op Op, args any) response {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.WriteJSON(request{ID: "1", Op: op, Args: raw}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestReceiveAndRead(t *testing.T) {
	conn := newTestConn(t)

	resp := roundTrip(t, conn, OpReceive, map[string]any{"uri": "mutable://open/x", "data": map[string]any{"v": 1}})
	assert.Empty(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.True(t, result["accepted"].(bool))

	readResp := roundTrip(t, conn, OpRead, map[string]any{"uri": "mutable://open/x"})
	readResult := readResp.Result.(map[string]any)
	assert.True(t, readResult["success"].(bool))
}

func TestRead_NotFound(t *testing.T) {
	conn := newTestConn(t)
	resp := roundTrip(t, conn, OpRead, map[string]any{"uri": "mutable://open/missing"})
	result := resp.Result.(map[string]any)
	assert.False(t, result["success"].(bool))
}

func TestHealth(t *testing.T) {
	conn := newTestConn(t)
	resp := roundTrip(t, conn, OpHealth, map[string]any{})
	result := resp.Result.(map[string]any)
	assert.Equal(t, "healthy", result["status"])
}

func TestUnknownOp(t *testing.T) {
	conn := newTestConn(t)
	resp := roundTrip(t, conn, Op("bogus"), map[string]any{})
	assert.NotEmpty(t, resp.Error)
}

func TestGetSchema(t *testing.T) {
	conn := newTestConn(t)
	resp := roundTrip(t, conn, OpGetSchema, map[string]any{})
	result := resp.Result.(map[string]any)
	_, ok := result["schema"]
	assert.True(t, ok)
}
