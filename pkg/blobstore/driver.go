// Package blobstore implements the content-addressed blob:// backend: raw
// bytes keyed by their SHA-256 digest, behind a pluggable Driver
// (filesystem, S3, GCS).
//
// Grounded on the teacher's pkg/artifacts/store.go (FileStore: CAS by
// sha256 hash, atomic temp-then-rename write), pkg/artifacts/s3_store.go
// (S3Store: HeadObject-then-PutObject idempotent upload), and
// pkg/artifacts/gcs_store.go (GCSStore: Attrs-then-Writer idempotent
// upload) — generalized from a "digest in, digest out" Store interface to
// the full substrate.Backend contract over blob:// URIs (blob://open/sha256:<hex>).
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Driver when the requested digest is absent.
var ErrNotFound = errors.New("blobstore: digest not found")

// Driver is the minimal content-addressed storage contract each backing
// store (filesystem, S3, GCS) implements; Store composes a Driver into a
// full substrate.Backend.
type Driver interface {
	// Put writes data under hexDigest, returning (duplicate=true, nil) if an
	// identical object already exists rather than re-writing it.
	Put(ctx context.Context, hexDigest string, data []byte) (duplicate bool, err error)
	Get(ctx context.Context, hexDigest string) ([]byte, error)
	Exists(ctx context.Context, hexDigest string) (bool, error)
	Delete(ctx context.Context, hexDigest string) error
	// List enumerates every digest whose hex representation contains
	// pattern (empty pattern matches all).
	List(ctx context.Context, pattern string) ([]string, error)
	Health(ctx context.Context) error
}
