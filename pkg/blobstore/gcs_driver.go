//go:build gcp

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSDriver stores blobs in a Google Cloud Storage bucket, keyed by digest.
// Only built with -tags gcp, matching the teacher's convention of keeping
// the GCS SDK out of the default dependency closure.
//
// Grounded on the teacher's pkg/artifacts/gcs_store.go GCSStore:
// Attrs-before-Writer idempotent upload, storage.ErrObjectNotExist mapped
// to "not found".
type GCSDriver struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSDriverConfig configures a GCSDriver.
type GCSDriverConfig struct {
	Bucket string
	Prefix string
}

// NewGCSDriver creates a client using Application Default Credentials.
func NewGCSDriver(ctx context.Context, cfg GCSDriverConfig) (*GCSDriver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: creating gcs client: %w", err)
	}
	return &GCSDriver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (d *GCSDriver) object(hexDigest string) *storage.ObjectHandle {
	return d.client.Bucket(d.bucket).Object(d.prefix + hexDigest + ".blob")
}

// Put implements Driver.
func (d *GCSDriver) Put(ctx context.Context, hexDigest string, data []byte) (bool, error) {
	obj := d.object(hexDigest)
	if _, err := obj.Attrs(ctx); err == nil {
		return true, nil
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return false, fmt.Errorf("blobstore: gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return false, fmt.Errorf("blobstore: gcs close: %w", err)
	}
	return false, nil
}

// Get implements Driver.
func (d *GCSDriver) Get(ctx context.Context, hexDigest string) ([]byte, error) {
	reader, err := d.object(hexDigest).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: gcs get: %w", err)
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

// Exists implements Driver.
func (d *GCSDriver) Exists(ctx context.Context, hexDigest string) (bool, error) {
	_, err := d.object(hexDigest).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete implements Driver.
func (d *GCSDriver) Delete(ctx context.Context, hexDigest string) error {
	err := d.object(hexDigest).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

// List implements Driver.
func (d *GCSDriver) List(ctx context.Context, pattern string) ([]string, error) {
	it := d.client.Bucket(d.bucket).Objects(ctx, &storage.Query{Prefix: d.prefix})
	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("blobstore: gcs list: %w", err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(attrs.Name, d.prefix), ".blob")
		if pattern != "" && !strings.Contains(name, pattern) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// Health implements Driver.
func (d *GCSDriver) Health(ctx context.Context) error {
	_, err := d.client.Bucket(d.bucket).Attrs(ctx)
	return err
}
