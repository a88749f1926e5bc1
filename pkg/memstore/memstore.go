// Package memstore implements the in-memory reference backend: the
// substrate.Backend realization that exercises every scheme invariant
// (mutable overwrite, immutable first-write-wins, hash/blob dedup) against
// a single map guarded by one RWMutex.
//
// Grounded on the teacher's pkg/store/audit_store.go (RWMutex-protected
// map + slice, hash-chained entries), generalized from an append-only audit
// log to the full receive/read/list/delete contract.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
	"github.com/substratefabric/core/pkg/validator"
)

// entry is the stored form: the record plus the raw URI string, kept
// alongside so list() can sort/filter without re-parsing every key.
type entry struct {
	uri string
	rec record.Record
}

// Store is the in-memory reference backend.
type Store struct {
	mu       sync.RWMutex
	data     map[string]entry
	validate validator.Func
	schema   []string
	now      func() int64
}

// New constructs a Store guarded by validate, a pre-built validator.Func
// (typically validator.Schema(registry) or validator.MsgSchema(registry)).
// schemaKeys is the list GetSchema reports.
func New(validate validator.Func, schemaKeys []string) *Store {
	return &Store{
		data:     make(map[string]entry),
		validate: validate,
		schema:   schemaKeys,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// Receive implements substrate.Backend. It runs the validator first (with a
// read closure bound to this store), then applies per-scheme idempotency:
// mutable overwrites, immutable rejects if present, hash/blob dedupes.
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

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.data[msg.URI]

	if uri.IsContentAddressed(parsed.Scheme) {
		if exists {
			// The validator already verified this write's digest matches the
			// URI, and the existing record got there the same way, so any
			// second write to the same content-addressed URI is necessarily
			// the same content: report it as a silent duplicate.
			return substrate.ReceiveResult{Accepted: true, Duplicate: true}
		}
		s.data[msg.URI] = entry{uri: msg.URI, rec: record.Record{Ts: s.now(), Data: msg.Data}}
		return substrate.ReceiveResult{Accepted: true}
	}

	if parsed.Scheme == string(uri.SchemeImmutable) {
		if exists {
			return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindImmutable, "uri %q already exists", msg.URI)}
		}
		s.data[msg.URI] = entry{uri: msg.URI, rec: record.Record{Ts: s.now(), Data: msg.Data}}
		return substrate.ReceiveResult{Accepted: true}
	}

	s.data[msg.URI] = entry{uri: msg.URI, rec: record.Record{Ts: s.now(), Data: msg.Data}}
	return substrate.ReceiveResult{Accepted: true}
}

// readFunc is the closure handed to validators; it must never observe the
// write currently in flight (validators run before the lock is taken, so
// this simply takes the shared lock like any other read).
func (s *Store) readFunc(ctx context.Context, u string) substrate.ReadResult {
	return s.Read(ctx, u)
}

// Read implements substrate.Backend.
func (s *Store) Read(ctx context.Context, u string) substrate.ReadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[u]
	if !ok {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
	}
	rec := e.rec
	return substrate.ReadResult{Success: true, Record: &rec}
}

// ReadMulti implements substrate.Backend, dispatching each URI through Read.
// At most substrate.MaxReadMulti URIs are accepted per call.
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
	return substrate.ReadMultiResult{
		Success:   succeeded > 0,
		Results:   results,
		Total:     len(uris),
		Succeeded: succeeded,
		Failed:    failed,
	}
}

// List implements substrate.Backend: enumerate every entry whose URI begins
// with the given prefix, filter by optional substring pattern, sort, and
// paginate over the filtered+sorted set.
func (s *Store) List(ctx context.Context, prefix string, opts substrate.ListOptions) substrate.ListResult {
	opts = opts.Normalize()

	s.mu.RLock()
	matches := make([]entry, 0)
	for u, e := range s.data {
		if !strings.HasPrefix(u, prefix) {
			continue
		}
		if opts.Pattern != "" && !strings.Contains(u, opts.Pattern) {
			continue
		}
		matches = append(matches, e)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		var less bool
		switch opts.SortBy {
		case substrate.SortByTimestamp:
			less = matches[i].rec.Ts < matches[j].rec.Ts
		default:
			less = matches[i].uri < matches[j].uri
		}
		if opts.SortOrder == substrate.SortDesc {
			return !less
		}
		return less
	})

	total := len(matches)
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	page := matches[start:end]
	data := make([]substrate.ListEntry, 0, len(page))
	for _, e := range page {
		data = append(data, substrate.ListEntry{URI: e.uri, Ts: e.rec.Ts})
	}

	return substrate.ListResult{
		Success:    true,
		Data:       data,
		Pagination: substrate.Pagination{Page: opts.Page, Limit: opts.Limit, Total: total},
	}
}

// Delete implements substrate.Backend.
func (s *Store) Delete(ctx context.Context, u string) substrate.DeleteResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[u]; !ok {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
	}
	delete(s.data, u)
	return substrate.DeleteResult{Success: true}
}

// Health implements substrate.Backend; the in-memory store is always
// healthy once constructed.
func (s *Store) Health(ctx context.Context) substrate.HealthResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return substrate.HealthResult{
		Status:  substrate.HealthHealthy,
		Details: map[string]any{"records": len(s.data)},
	}
}

// GetSchema implements substrate.Backend.
func (s *Store) GetSchema(ctx context.Context) []string {
	return s.schema
}

// Cleanup implements substrate.Backend: clears the map. Idempotent.
func (s *Store) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]entry)
	return nil
}
