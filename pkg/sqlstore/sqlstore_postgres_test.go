package sqlstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/record"
)

func TestPostgres_ReceiveImmutable_NotFoundThenInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectPostgres, acceptAll(), nil)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT ts FROM records WHERE uri = \$1`).
		WithArgs("immutable://open/x").
		WillReturnRows(sqlmock.NewRows([]string{"ts"}))

	mock.ExpectExec(`INSERT INTO records \(uri, data, ts\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("immutable://open/x", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	res := store.Receive(ctx, record.Message{URI: "immutable://open/x", Data: record.NewStruct(map[string]any{"v": 1})})
	assert.True(t, res.Accepted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Read_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectPostgres, acceptAll(), nil)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT data, ts FROM records WHERE uri = \$1`).
		WithArgs("mutable://open/missing").
		WillReturnRows(sqlmock.NewRows([]string{"data", "ts"}))

	rr := store.Read(ctx, "mutable://open/missing")
	assert.False(t, rr.Success)
	require.NoError(t, mock.ExpectationsWereMet())
}
