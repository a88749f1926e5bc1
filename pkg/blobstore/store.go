package blobstore

import (
	"context"
	"errors"
	"strings"

	"github.com/substratefabric/core/pkg/canonicalize"
	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
	"github.com/substratefabric/core/pkg/validator"
)

// Store adapts a Driver into a substrate.Backend over the content-addressed
// URI family: blob://<authority>/<algo>:<hex> and hash://<algo>:<digest>/….
// Both name the same underlying content store, keyed by digest alone —
// the authority/path around it is cosmetic. Only the sha256 algorithm is
// accepted; the digest in the URI must match the SHA-256 of the submitted
// payload bytes.
type Store struct {
	driver   Driver
	validate validator.Func
	schema   []string
}

// New wraps driver as a substrate.Backend.
func New(driver Driver, validate validator.Func, schemaKeys []string) *Store {
	return &Store{driver: driver, validate: validate, schema: schemaKeys}
}

func (s *Store) readFunc(ctx context.Context, u string) substrate.ReadResult {
	return s.Read(ctx, u)
}

// Receive implements substrate.Backend. The payload must be a binary
// (record.Payload.IsBinary) value whose SHA-256 digest matches the URI's
// algo:hex segment.
func (s *Store) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	if msg.URI == "" {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "empty uri")}
	}
	parsed, err := uri.Parse(msg.URI)
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "%v", err)}
	}
	if !uri.IsContentAddressed(parsed.Scheme) {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "blobstore only serves blob:// and hash:// uris, got %q", parsed.Scheme)}
	}

	algo, digest, ok := uri.HashDigest(parsed)
	if !ok {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "blob uri missing algo:digest segment")}
	}
	if algo != "sha256" {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "unsupported digest algorithm %q", algo)}
	}
	if !msg.Data.IsBinary() {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "blob payload must be binary")}
	}

	if s.validate != nil {
		if err := s.validate(ctx, parsed, msg.Data, s.readFunc); err != nil {
			return substrate.ReceiveResult{Accepted: false, Err: err}
		}
	}

	data := msg.Data.Bytes
	if computed := canonicalize.HashBytes(data); !strings.EqualFold(computed, digest) {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindHashMismatch, "digest %q does not match content %q", digest, computed)}
	}

	dup, err := s.driver.Put(ctx, strings.ToLower(digest), data)
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	return substrate.ReceiveResult{Accepted: true, Duplicate: dup}
}

// Read implements substrate.Backend.
func (s *Store) Read(ctx context.Context, u string) substrate.ReadResult {
	parsed, err := uri.Parse(u)
	if err != nil {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindValidationFailed, "%v", err)}
	}
	algo, digest, ok := uri.HashDigest(parsed)
	if !ok || algo != "sha256" {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindValidationFailed, "invalid blob uri %q", u)}
	}
	data, err := s.driver.Get(ctx, strings.ToLower(digest))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
		}
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	return substrate.ReadResult{Success: true, Record: &record.Record{Data: record.NewBytes(data)}}
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

// List implements substrate.Backend. prefix is matched against the
// reconstructed blob://<authority>/sha256:<hex> form of each stored digest.
func (s *Store) List(ctx context.Context, prefix string, opts substrate.ListOptions) substrate.ListResult {
	opts = opts.Normalize()

	authority := "open"
	if parsed, err := uri.Parse(prefix); err == nil {
		authority = parsed.Authority
	}

	digests, err := s.driver.List(ctx, opts.Pattern)
	if err != nil {
		return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}

	var all []substrate.ListEntry
	for _, d := range digests {
		full := "blob://" + authority + "/sha256:" + d
		if !strings.HasPrefix(full, prefix) {
			continue
		}
		all = append(all, substrate.ListEntry{URI: full})
	}

	switch opts.SortOrder {
	case substrate.SortDesc:
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}

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
	parsed, err := uri.Parse(u)
	if err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindValidationFailed, "%v", err)}
	}
	_, digest, ok := uri.HashDigest(parsed)
	if !ok {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindValidationFailed, "invalid blob uri %q", u)}
	}
	exists, err := s.driver.Exists(ctx, strings.ToLower(digest))
	if err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	if !exists {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
	}
	if err := s.driver.Delete(ctx, strings.ToLower(digest)); err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	return substrate.DeleteResult{Success: true}
}

// Health implements substrate.Backend.
func (s *Store) Health(ctx context.Context) substrate.HealthResult {
	if err := s.driver.Health(ctx); err != nil {
		return substrate.HealthResult{Status: substrate.HealthUnhealthy, Message: err.Error()}
	}
	return substrate.HealthResult{Status: substrate.HealthHealthy}
}

// GetSchema implements substrate.Backend.
func (s *Store) GetSchema(ctx context.Context) []string { return s.schema }

// Cleanup is a no-op; stored blobs are left in place.
func (s *Store) Cleanup(ctx context.Context) error { return nil }
