//go:build !gcp

package blobstore

import (
	"context"
	"fmt"
)

func newGCSDriverFromEnv(ctx context.Context) (Driver, error) {
	return nil, fmt.Errorf("blobstore: gcs driver not enabled in this build (use -tags gcp)")
}
