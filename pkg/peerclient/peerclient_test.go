package peerclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/httpapi"
	"github.com/substratefabric/core/pkg/memstore"
	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/validator"
	"github.com/substratefabric/core/pkg/wsapi"
)

func TestHTTPClient_ReceiveReadListDelete(t *testing.T) {
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	srv := httpapi.NewServer(store, httpapi.DefaultOptions())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	ctx := context.Background()

	recv := c.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": float64(1)})})
	require.NoError(t, recv.Err)
	assert.True(t, recv.Accepted)

	read := c.Read(ctx, "mutable://open/x")
	require.NoError(t, read.Err)
	assert.True(t, read.Success)

	list := c.List(ctx, "mutable://open/", substrate.ListOptions{})
	require.NoError(t, list.Err)
	assert.GreaterOrEqual(t, list.Pagination.Total, 1)

	del := c.Delete(ctx, "mutable://open/x")
	require.NoError(t, del.Err)
	assert.True(t, del.Success)

	health := c.Health(ctx)
	assert.NotEmpty(t, health.Status)
}

func TestHTTPClient_ReadNotFound(t *testing.T) {
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	srv := httpapi.NewServer(store, httpapi.DefaultOptions())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 5*time.Second)
	read := c.Read(context.Background(), "mutable://open/missing")
	assert.False(t, read.Success)
	assert.Error(t, read.Err)
}

func TestWSClient_ReceiveReadHealth(t *testing.T) {
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	srv := wsapi.NewServer(store)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewWSClient(ctx, wsURL)
	require.NoError(t, err)
	defer c.Close()

	recv := c.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": float64(1)})})
	require.NoError(t, recv.Err)
	assert.True(t, recv.Accepted)

	read := c.Read(ctx, "mutable://open/x")
	require.NoError(t, read.Err)
	assert.True(t, read.Success)

	health := c.Health(ctx)
	assert.NotEmpty(t, health.Status)

	del := c.Delete(ctx, "mutable://open/x")
	require.NoError(t, del.Err)
	assert.True(t, del.Success)
}

func TestWSClient_ReadNotFound(t *testing.T) {
	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := memstore.New(validate, nil)
	srv := wsapi.NewServer(store)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewWSClient(ctx, wsURL)
	require.NoError(t, err)
	defer c.Close()

	read := c.Read(ctx, "mutable://open/missing")
	assert.False(t, read.Success)
}
