package cacheback

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/validator"
)

// newTestStore requires a running Redis on localhost; we skip if
// connection fails, same as the kernel package's Redis integration test.
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	t.Cleanup(func() { _ = client.Close() })

	validate := validator.Schema(validator.NewRegistry(validator.Accept))
	store := New(client, time.Minute, "cacheback-test:"+t.Name()+":", validate, nil)
	t.Cleanup(func() { _ = store.Cleanup(context.Background()) })
	return store, ctx
}

func TestReceiveAndRead(t *testing.T) {
	store, ctx := newTestStore(t)

	res := store.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": 1})})
	require.True(t, res.Accepted)

	rr := store.Read(ctx, "mutable://open/x")
	require.True(t, rr.Success)
	m := rr.Record.Data.Value().(map[string]any)
	assert.EqualValues(t, 1, m["v"])
}

func TestReceive_RejectsNonMutableScheme(t *testing.T) {
	store, ctx := newTestStore(t)
	res := store.Receive(ctx, record.Message{URI: "immutable://open/x", Data: record.NewStruct(1)})
	assert.False(t, res.Accepted)
	assert.Equal(t, substrate.KindValidationFailed, substrate.KindOf(res.Err))
}

func TestList_FiltersByPrefix(t *testing.T) {
	store, ctx := newTestStore(t)

	store.Receive(ctx, record.Message{URI: "mutable://open/a", Data: record.NewStruct(1)})
	store.Receive(ctx, record.Message{URI: "mutable://open/b", Data: record.NewStruct(2)})

	lr := store.List(ctx, "mutable://open/", substrate.ListOptions{})
	require.True(t, lr.Success)
	assert.Equal(t, 2, lr.Pagination.Total)
}

func TestReadMulti(t *testing.T) {
	store, ctx := newTestStore(t)

	store.Receive(ctx, record.Message{URI: "mutable://open/a", Data: record.NewStruct(1)})
	store.Receive(ctx, record.Message{URI: "mutable://open/b", Data: record.NewStruct(2)})

	rm := store.ReadMulti(ctx, []string{"mutable://open/a", "mutable://open/b", "mutable://open/missing"})
	assert.Equal(t, 3, rm.Total)
	assert.Equal(t, 2, rm.Succeeded)
	assert.Equal(t, 1, rm.Failed)
}

func TestDelete(t *testing.T) {
	store, ctx := newTestStore(t)
	store.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})

	dr := store.Delete(ctx, "mutable://open/x")
	assert.True(t, dr.Success)

	dr2 := store.Delete(ctx, "mutable://open/x")
	assert.False(t, dr2.Success)
}

func TestHealth(t *testing.T) {
	store, ctx := newTestStore(t)
	hr := store.Health(ctx)
	assert.Equal(t, substrate.HealthHealthy, hr.Status)
}
