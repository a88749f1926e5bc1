package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DriverType selects which backing store a blob:// backend is mounted on.
type DriverType string

const (
	DriverTypeFS  DriverType = "fs"
	DriverTypeS3  DriverType = "s3"
	DriverTypeGCS DriverType = "gcs"
)

// NewDriverFromEnv builds a Driver from environment variables, mirroring the
// config.BackendSpec.Options a blob backend is configured with.
//
// Environment variables:
//   - BLOB_STORAGE_TYPE: "fs" (default), "s3", or "gcs"
//   - DATA_DIR: base directory for the fs driver (default: "data")
//   - BLOB_S3_BUCKET, BLOB_S3_REGION (or AWS_REGION), BLOB_S3_ENDPOINT, BLOB_S3_PREFIX
//   - BLOB_GCS_BUCKET, BLOB_GCS_PREFIX (only with the gcp build tag)
//
// Grounded on the teacher's pkg/artifacts/factory.go NewStoreFromEnv, which
// splits the GCS branch into factory_gcp.go/factory_nogcp.go behind a
// "gcp" build tag so the default build excludes cloud.google.com/go/storage.
func NewDriverFromEnv(ctx context.Context) (Driver, error) {
	driverType := DriverType(os.Getenv("BLOB_STORAGE_TYPE"))
	if driverType == "" {
		driverType = DriverTypeFS
	}

	switch driverType {
	case DriverTypeFS:
		return newFSDriverFromEnv()
	case DriverTypeS3:
		return newS3DriverFromEnv(ctx)
	case DriverTypeGCS:
		return newGCSDriverFromEnv(ctx)
	default:
		return nil, fmt.Errorf("blobstore: unsupported driver type %q", driverType)
	}
}

func newFSDriverFromEnv() (Driver, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	return NewFSDriver(filepath.Join(dataDir, "blobs"))
}

func newS3DriverFromEnv(ctx context.Context) (Driver, error) {
	bucket := os.Getenv("BLOB_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("blobstore: BLOB_S3_BUCKET is required for the s3 driver")
	}

	region := os.Getenv("BLOB_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return NewS3Driver(ctx, S3DriverConfig{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("BLOB_S3_ENDPOINT"),
		Prefix:   os.Getenv("BLOB_S3_PREFIX"),
	})
}
