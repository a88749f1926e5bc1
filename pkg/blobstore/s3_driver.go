package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Driver stores blobs in an S3 (or S3-compatible: MinIO, LocalStack)
// bucket, keyed by digest.
//
// Grounded on the teacher's pkg/artifacts/s3_store.go S3Store: HeadObject
// before PutObject for idempotent upload, optional custom endpoint with
// UsePathStyle for MinIO/LocalStack compatibility.
type S3Driver struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3DriverConfig configures an S3Driver.
type S3DriverConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// NewS3Driver creates a new S3-backed driver using ambient AWS credentials.
func NewS3Driver(ctx context.Context, cfg S3DriverConfig) (*S3Driver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("blobstore: loading aws config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}

	return &S3Driver{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (d *S3Driver) key(hexDigest string) string {
	return d.prefix + hexDigest + ".blob"
}

// Put implements Driver.
func (d *S3Driver) Put(ctx context.Context, hexDigest string, data []byte) (bool, error) {
	key := d.key(hexDigest)

	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return false, fmt.Errorf("blobstore: s3 put: %w", err)
	}
	return false, nil
}

// Get implements Driver.
func (d *S3Driver) Get(ctx context.Context, hexDigest string) ([]byte, error) {
	result, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(hexDigest)),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: s3 get: %w", err)
	}
	defer func() { _ = result.Body.Close() }()
	return io.ReadAll(result.Body)
}

// Exists implements Driver.
func (d *S3Driver) Exists(ctx context.Context, hexDigest string) (bool, error) {
	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(hexDigest)),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete implements Driver.
func (d *S3Driver) Delete(ctx context.Context, hexDigest string) error {
	exists, err := d.Exists(ctx, hexDigest)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	_, err = d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(hexDigest)),
	})
	if err != nil {
		return fmt.Errorf("blobstore: s3 delete: %w", err)
	}
	return nil
}

// List implements Driver via a paginated ListObjectsV2.
func (d *S3Driver) List(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	var token *string
	for {
		resp, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(d.bucket),
			Prefix:            aws.String(d.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("blobstore: s3 list: %w", err)
		}
		for _, obj := range resp.Contents {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(obj.Key), d.prefix), ".blob")
			if pattern != "" && !strings.Contains(name, pattern) {
				continue
			}
			out = append(out, name)
		}
		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

// Health implements Driver via a bucket-scoped HeadBucket.
func (d *S3Driver) Health(ctx context.Context) error {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucket)})
	return err
}

func isNotFoundErr(err error) bool {
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey")
}
