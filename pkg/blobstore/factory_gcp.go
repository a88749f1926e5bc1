//go:build gcp

package blobstore

import (
	"context"
	"fmt"
	"os"
)

func newGCSDriverFromEnv(ctx context.Context) (Driver, error) {
	bucket := os.Getenv("BLOB_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("blobstore: BLOB_GCS_BUCKET is required for the gcs driver")
	}
	return NewGCSDriver(ctx, GCSDriverConfig{
		Bucket: bucket,
		Prefix: os.Getenv("BLOB_GCS_PREFIX"),
	})
}
