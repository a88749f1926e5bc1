package memstore

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
	reg := validator.NewRegistry(validator.Accept)
	return validator.Schema(reg)
}

func TestReceiveAndRead_Mutable(t *testing.T) {
	s := New(acceptAll(), nil)
	ctx := context.Background()

	res := s.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": 1})})
	require.True(t, res.Accepted)

	rr := s.Read(ctx, "mutable://open/x")
	require.True(t, rr.Success)

	res2 := s.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": 2})})
	require.True(t, res2.Accepted)
	rr2 := s.Read(ctx, "mutable://open/x")
	m := rr2.Record.Data.Value().(map[string]any)
	assert.EqualValues(t, 2, m["v"])
}

func TestReceive_ImmutableRejectsSecondWrite(t *testing.T) {
	s := New(acceptAll(), nil)
	ctx := context.Background()

	res := s.Receive(ctx, record.Message{URI: "immutable://open/x", Data: record.NewStruct(map[string]any{"v": 1})})
	require.True(t, res.Accepted)

	res2 := s.Receive(ctx, record.Message{URI: "immutable://open/x", Data: record.NewStruct(map[string]any{"v": 2})})
	assert.False(t, res2.Accepted)
	assert.Equal(t, substrate.KindImmutable, substrate.KindOf(res2.Err))
}

func TestReceive_HashDedup(t *testing.T) {
	s := New(acceptAll(), nil)
	ctx := context.Background()

	value := map[string]any{"v": 1}
	digest, err := canonicalize.CanonicalHash(value)
	require.NoError(t, err)
	u := "hash://sha256:" + digest

	res := s.Receive(ctx, record.Message{URI: u, Data: record.NewStruct(value)})
	require.True(t, res.Accepted)
	require.False(t, res.Duplicate)

	res2 := s.Receive(ctx, record.Message{URI: u, Data: record.NewStruct(value)})
	require.True(t, res2.Accepted)
	assert.True(t, res2.Duplicate)
}

func TestReadMulti(t *testing.T) {
	s := New(acceptAll(), nil)
	ctx := context.Background()
	s.Receive(ctx, record.Message{URI: "mutable://open/a", Data: record.NewStruct(1)})
	s.Receive(ctx, record.Message{URI: "mutable://open/b", Data: record.NewStruct(2)})

	rm := s.ReadMulti(ctx, []string{"mutable://open/a", "mutable://open/b", "mutable://open/missing"})
	assert.True(t, rm.Success)
	assert.Equal(t, 3, rm.Total)
	assert.Equal(t, 2, rm.Succeeded)
	assert.Equal(t, 1, rm.Failed)
}

func TestList_SortAndPaginate(t *testing.T) {
	s := New(acceptAll(), nil)
	ctx := context.Background()
	for _, u := range []string{"mutable://open/c", "mutable://open/a", "mutable://open/b"} {
		s.Receive(ctx, record.Message{URI: u, Data: record.NewStruct(1)})
	}

	lr := s.List(ctx, "mutable://open/", substrate.ListOptions{Limit: 2})
	require.True(t, lr.Success)
	assert.Equal(t, 3, lr.Pagination.Total)
	assert.Len(t, lr.Data, 2)
	assert.Equal(t, "mutable://open/a", lr.Data[0].URI)
	assert.Equal(t, "mutable://open/b", lr.Data[1].URI)
}

func TestDelete(t *testing.T) {
	s := New(acceptAll(), nil)
	ctx := context.Background()
	s.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})

	dr := s.Delete(ctx, "mutable://open/x")
	assert.True(t, dr.Success)

	dr2 := s.Delete(ctx, "mutable://open/x")
	assert.False(t, dr2.Success)
	assert.Equal(t, substrate.KindNotFound, substrate.KindOf(dr2.Err))
}

func TestCleanup_Idempotent(t *testing.T) {
	s := New(acceptAll(), nil)
	ctx := context.Background()
	s.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})
	require.NoError(t, s.Cleanup(ctx))
	require.NoError(t, s.Cleanup(ctx))
	rr := s.Read(ctx, "mutable://open/x")
	assert.False(t, rr.Success)
}

func TestHealth(t *testing.T) {
	s := New(acceptAll(), nil)
	hr := s.Health(context.Background())
	assert.Equal(t, substrate.HealthHealthy, hr.Status)
}
