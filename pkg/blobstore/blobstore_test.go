package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/canonicalize"
	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/validator"
)

func acceptAll() validator.Func {
	return validator.Schema(validator.NewRegistry(validator.Accept))
}

func newFSStore(t *testing.T) *Store {
	t.Helper()
	drv, err := NewFSDriver(t.TempDir())
	require.NoError(t, err)
	return New(drv, acceptAll(), nil)
}

func TestReceiveAndRead(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()
	data := []byte("hello substrate")
	digest := canonicalize.HashBytes(data)
	u := "blob://open/sha256:" + digest

	res := store.Receive(ctx, record.Message{URI: u, Data: record.NewBytes(data)})
	require.True(t, res.Accepted)
	assert.False(t, res.Duplicate)

	rr := store.Read(ctx, u)
	require.True(t, rr.Success)
	assert.Equal(t, data, rr.Record.Data.Bytes)
}

func TestReceive_DigestMismatchRejected(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()
	wrongDigest := canonicalize.HashBytes([]byte("a different payload"))
	u := "blob://open/sha256:" + wrongDigest

	res := store.Receive(ctx, record.Message{URI: u, Data: record.NewBytes([]byte("nope"))})
	assert.False(t, res.Accepted)
	assert.Equal(t, substrate.KindHashMismatch, substrate.KindOf(res.Err))
}

func TestReceive_DuplicateIsIdempotent(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()
	data := []byte("same bytes twice")
	digest := canonicalize.HashBytes(data)
	u := "blob://open/sha256:" + digest

	res1 := store.Receive(ctx, record.Message{URI: u, Data: record.NewBytes(data)})
	require.True(t, res1.Accepted)
	require.False(t, res1.Duplicate)

	res2 := store.Receive(ctx, record.Message{URI: u, Data: record.NewBytes(data)})
	require.True(t, res2.Accepted)
	assert.True(t, res2.Duplicate)
}

func TestReceive_RejectsNonBlobScheme(t *testing.T) {
	store := newFSStore(t)
	res := store.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewBytes([]byte("x"))})
	assert.False(t, res.Accepted)
	assert.Equal(t, substrate.KindValidationFailed, substrate.KindOf(res.Err))
}

func TestReceive_RejectsStructuredPayload(t *testing.T) {
	store := newFSStore(t)
	u := "blob://open/sha256:" + canonicalize.HashBytes([]byte("x"))
	res := store.Receive(context.Background(), record.Message{URI: u, Data: record.NewStruct(map[string]any{"v": 1})})
	assert.False(t, res.Accepted)
	assert.Equal(t, substrate.KindValidationFailed, substrate.KindOf(res.Err))
}

func TestRead_NotFound(t *testing.T) {
	store := newFSStore(t)
	rr := store.Read(context.Background(), "blob://open/sha256:"+canonicalize.HashBytes([]byte("absent")))
	assert.False(t, rr.Success)
	assert.Equal(t, substrate.KindNotFound, substrate.KindOf(rr.Err))
}

func TestListAndDelete(t *testing.T) {
	store := newFSStore(t)
	ctx := context.Background()

	var uris []string
	for _, s := range []string{"a", "b", "c"} {
		data := []byte(s)
		digest := canonicalize.HashBytes(data)
		u := "blob://open/sha256:" + digest
		res := store.Receive(ctx, record.Message{URI: u, Data: record.NewBytes(data)})
		require.True(t, res.Accepted)
		uris = append(uris, u)
	}

	lr := store.List(ctx, "blob://open/", substrate.ListOptions{})
	require.True(t, lr.Success)
	assert.Equal(t, 3, lr.Pagination.Total)

	dr := store.Delete(ctx, uris[0])
	assert.True(t, dr.Success)

	dr2 := store.Delete(ctx, uris[0])
	assert.False(t, dr2.Success)
	assert.Equal(t, substrate.KindNotFound, substrate.KindOf(dr2.Err))

	lr2 := store.List(ctx, "blob://open/", substrate.ListOptions{})
	require.True(t, lr2.Success)
	assert.Equal(t, 2, lr2.Pagination.Total)
}

func TestHealth(t *testing.T) {
	store := newFSStore(t)
	hr := store.Health(context.Background())
	assert.Equal(t, substrate.HealthHealthy, hr.Status)
}
