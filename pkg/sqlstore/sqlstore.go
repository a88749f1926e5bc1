// Package sqlstore implements a SQL-backed substrate.Backend against either
// Postgres (github.com/lib/pq) or an embedded SQLite database
// (modernc.org/sqlite), the two SQL dialects the substrate's "Lite Mode"
// fallback switches between.
//
// Grounded on the teacher's pkg/store/receipt_store.go (PostgresReceiptStore:
// database/sql, $N placeholders, INSERT ... ON CONFLICT DO NOTHING),
// generalized from a fixed receipts table to the uri/data/ts record shape,
// and on core/cmd/helm/main.go's DATABASE_URL-driven Postgres-vs-SQLite
// selection ("Lite Mode").
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
	"github.com/substratefabric/core/pkg/validator"
)

// Dialect selects the placeholder style and upsert syntax for the
// underlying driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store is a SQL-backed substrate.Backend.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	validate validator.Func
	schema   []string
}

// New wraps an already-opened *sql.DB. Call EnsureSchema once before use.
func New(db *sql.DB, dialect Dialect, validate validator.Func, schemaKeys []string) *Store {
	return &Store{db: db, dialect: dialect, validate: validate, schema: schemaKeys}
}

// EnsureSchema creates the records table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			uri  TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			ts   BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlstore: ensuring schema: %w", err)
	}
	return nil
}

// placeholder returns the nth (1-based) bind parameter in this dialect's
// syntax.
func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) readFunc(ctx context.Context, u string) substrate.ReadResult {
	return s.Read(ctx, u)
}

// Receive implements substrate.Backend.
func (s *Store) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	if msg.URI == "" {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "empty uri")}
	}
	parsed, err := uri.Parse(msg.URI)
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "%v", err)}
	}
	if s.validate != nil {
		if err := s.validate(ctx, parsed, msg.Data, s.readFunc); err != nil {
			return substrate.ReceiveResult{Accepted: false, Err: err}
		}
	}

	raw, err := jsonMarshal(msg.Data)
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "encoding payload: %v", err)}
	}

	existing, err := s.existsTs(ctx, msg.URI)
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}

	if uri.IsContentAddressed(parsed.Scheme) {
		if existing != nil {
			return substrate.ReceiveResult{Accepted: true, Duplicate: true}
		}
		if err := s.insert(ctx, msg.URI, raw, nowMs()); err != nil {
			return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
		}
		return substrate.ReceiveResult{Accepted: true}
	}

	if parsed.Scheme == string(uri.SchemeImmutable) {
		if existing != nil {
			return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindImmutable, "uri %q already exists", msg.URI)}
		}
		if err := s.insert(ctx, msg.URI, raw, nowMs()); err != nil {
			return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
		}
		return substrate.ReceiveResult{Accepted: true}
	}

	if err := s.upsert(ctx, msg.URI, raw, nowMs()); err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	return substrate.ReceiveResult{Accepted: true}
}

func (s *Store) existsTs(ctx context.Context, u string) (*int64, error) {
	query := "SELECT ts FROM records WHERE uri = " + s.placeholder(1)
	row := s.db.QueryRowContext(ctx, query, u)
	var ts int64
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ts, nil
}

func (s *Store) insert(ctx context.Context, u, data string, ts int64) error {
	query := fmt.Sprintf("INSERT INTO records (uri, data, ts) VALUES (%s, %s, %s)", s.placeholder(1), s.placeholder(2), s.placeholder(3))
	_, err := s.db.ExecContext(ctx, query, u, data, ts)
	return err
}

func (s *Store) upsert(ctx context.Context, u, data string, ts int64) error {
	var query string
	switch s.dialect {
	case DialectPostgres:
		query = fmt.Sprintf(
			"INSERT INTO records (uri, data, ts) VALUES (%s, %s, %s) ON CONFLICT (uri) DO UPDATE SET data = EXCLUDED.data, ts = EXCLUDED.ts",
			s.placeholder(1), s.placeholder(2), s.placeholder(3))
	default:
		query = "INSERT INTO records (uri, data, ts) VALUES (?, ?, ?) ON CONFLICT (uri) DO UPDATE SET data = excluded.data, ts = excluded.ts"
	}
	_, err := s.db.ExecContext(ctx, query, u, data, ts)
	return err
}

// Read implements substrate.Backend.
func (s *Store) Read(ctx context.Context, u string) substrate.ReadResult {
	query := "SELECT data, ts FROM records WHERE uri = " + s.placeholder(1)
	row := s.db.QueryRowContext(ctx, query, u)
	var data string
	var ts int64
	if err := row.Scan(&data, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
		}
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	var payload record.Payload
	if err := jsonUnmarshal(data, &payload); err != nil {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "decoding stored payload: %v", err)}
	}
	return substrate.ReadResult{Success: true, Record: &record.Record{Ts: ts, Data: payload}}
}

// ReadMulti implements substrate.Backend.
func (s *Store) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	if len(uris) > substrate.MaxReadMulti {
		uris = uris[:substrate.MaxReadMulti]
	}
	results := make(map[string]substrate.ReadResult, len(uris))
	succeeded, failed := 0, 0
	for _, u := range uris {
		r := s.Read(ctx, u)
		results[u] = r
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return substrate.ReadMultiResult{Success: succeeded > 0, Results: results, Total: len(uris), Succeeded: succeeded, Failed: failed}
}

// List implements substrate.Backend.
func (s *Store) List(ctx context.Context, prefix string, opts substrate.ListOptions) substrate.ListResult {
	opts = opts.Normalize()

	likePrefix := strings.ReplaceAll(prefix, "%", "\\%") + "%"
	query := "SELECT uri, ts FROM records WHERE uri LIKE " + s.placeholder(1)
	args := []any{likePrefix}
	if opts.Pattern != "" {
		query += " AND uri LIKE " + s.placeholder(2)
		args = append(args, "%"+strings.ReplaceAll(opts.Pattern, "%", "\\%")+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	defer func() { _ = rows.Close() }()

	var all []substrate.ListEntry
	for rows.Next() {
		var e substrate.ListEntry
		if err := rows.Scan(&e.URI, &e.Ts); err != nil {
			return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}

	sortEntries(all, opts)

	total := len(all)
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return substrate.ListResult{
		Success:    true,
		Data:       all[start:end],
		Pagination: substrate.Pagination{Page: opts.Page, Limit: opts.Limit, Total: total},
	}
}

// Delete implements substrate.Backend.
func (s *Store) Delete(ctx context.Context, u string) substrate.DeleteResult {
	existing, err := s.existsTs(ctx, u)
	if err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	if existing == nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
	}
	query := "DELETE FROM records WHERE uri = " + s.placeholder(1)
	if _, err := s.db.ExecContext(ctx, query, u); err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	return substrate.DeleteResult{Success: true}
}

// Health implements substrate.Backend via a ping.
func (s *Store) Health(ctx context.Context) substrate.HealthResult {
	if err := s.db.PingContext(ctx); err != nil {
		return substrate.HealthResult{Status: substrate.HealthUnhealthy, Message: err.Error()}
	}
	return substrate.HealthResult{Status: substrate.HealthHealthy}
}

// GetSchema implements substrate.Backend.
func (s *Store) GetSchema(ctx context.Context) []string { return s.schema }

// Cleanup closes the database handle. Safe to call multiple times; a
// second Close on an already-closed *sql.DB is a documented no-op error we
// swallow.
func (s *Store) Cleanup(ctx context.Context) error {
	_ = s.db.Close()
	return nil
}
