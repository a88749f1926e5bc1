package sqlstore

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/validator"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func acceptAll() validator.Func {
	return validator.Schema(validator.NewRegistry(validator.Accept))
}

func TestSQLite_ReceiveAndRead(t *testing.T) {
	db := openSQLite(t)
	store := New(db, DialectSQLite, acceptAll(), nil)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	res := store.Receive(ctx, record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": 1})})
	require.True(t, res.Accepted)

	rr := store.Read(ctx, "mutable://open/x")
	require.True(t, rr.Success)
	m := rr.Record.Data.Value().(map[string]any)
	assert.EqualValues(t, 1, m["v"])
}

func TestSQLite_ImmutableRejectsSecondWrite(t *testing.T) {
	db := openSQLite(t)
	store := New(db, DialectSQLite, acceptAll(), nil)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	res := store.Receive(ctx, record.Message{URI: "immutable://open/x", Data: record.NewStruct(1)})
	require.True(t, res.Accepted)

	res2 := store.Receive(ctx, record.Message{URI: "immutable://open/x", Data: record.NewStruct(2)})
	assert.False(t, res2.Accepted)
	assert.Equal(t, substrate.KindImmutable, substrate.KindOf(res2.Err))
}

func TestSQLite_ListAndDelete(t *testing.T) {
	db := openSQLite(t)
	store := New(db, DialectSQLite, acceptAll(), nil)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	for _, u := range []string{"mutable://open/a", "mutable://open/b"} {
		store.Receive(ctx, record.Message{URI: u, Data: record.NewStruct(1)})
	}

	lr := store.List(ctx, "mutable://open/", substrate.ListOptions{})
	require.True(t, lr.Success)
	assert.Equal(t, 2, lr.Pagination.Total)

	dr := store.Delete(ctx, "mutable://open/a")
	assert.True(t, dr.Success)

	dr2 := store.Delete(ctx, "mutable://open/a")
	assert.False(t, dr2.Success)
}

func TestSQLite_Health(t *testing.T) {
	db := openSQLite(t)
	store := New(db, DialectSQLite, acceptAll(), nil)
	hr := store.Health(context.Background())
	assert.Equal(t, substrate.HealthHealthy, hr.Status)
}
