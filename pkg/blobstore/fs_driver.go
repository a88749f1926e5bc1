package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSDriver stores blobs as one file per digest under a base directory.
//
// Grounded on the teacher's pkg/artifacts/store.go FileStore: digest-named
// files under a base dir, atomic write via temp-file-then-os.Rename so a
// crash mid-write never leaves a partial blob visible under its final name.
type FSDriver struct {
	baseDir string
}

// NewFSDriver creates (if absent) baseDir and returns a driver rooted there.
func NewFSDriver(baseDir string) (*FSDriver, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: creating base dir: %w", err)
	}
	return &FSDriver{baseDir: baseDir}, nil
}

func (d *FSDriver) path(hexDigest string) string {
	return filepath.Join(d.baseDir, hexDigest+".blob")
}

// Put implements Driver.
func (d *FSDriver) Put(ctx context.Context, hexDigest string, data []byte) (bool, error) {
	dst := d.path(hexDigest)
	if _, err := os.Stat(dst); err == nil {
		return true, nil
	}

	tmp, err := os.CreateTemp(d.baseDir, hexDigest+".tmp-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return false, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return false, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return false, err
	}
	return false, nil
}

// Get implements Driver.
func (d *FSDriver) Get(ctx context.Context, hexDigest string) ([]byte, error) {
	data, err := os.ReadFile(d.path(hexDigest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Exists implements Driver.
func (d *FSDriver) Exists(ctx context.Context, hexDigest string) (bool, error) {
	_, err := os.Stat(d.path(hexDigest))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete implements Driver.
func (d *FSDriver) Delete(ctx context.Context, hexDigest string) error {
	if err := os.Remove(d.path(hexDigest)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// List implements Driver.
func (d *FSDriver) List(ctx context.Context, pattern string) ([]string, error) {
	entries, err := os.ReadDir(d.baseDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".blob") {
			continue
		}
		digest := strings.TrimSuffix(name, ".blob")
		if pattern != "" && !strings.Contains(digest, pattern) {
			continue
		}
		out = append(out, digest)
	}
	return out, nil
}

// Health implements Driver.
func (d *FSDriver) Health(ctx context.Context) error {
	_, err := os.Stat(d.baseDir)
	return err
}
