// Package canonicalize produces the deterministic byte representation used
// for content hashing and signature payloads: RFC 8785 JSON Canonicalization
// Scheme (JCS) via github.com/gowebpki/jcs.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the canonical JSON bytes for v: marshal, then transform
// through RFC 8785 (sorted object keys, fixed number formatting, no
// insignificant whitespace).
func JCS(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: transform: %w", err)
	}
	return canon, nil
}

// JCSString is JCS as a string, for embedding in signed messages or logs.
func JCSString(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HashBytes returns the hex-encoded SHA-256 digest of raw bytes, with no
// canonicalization step. Used for blob:// and hash:// content addressing
// where the stored value is already a byte sequence.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash JCS-canonicalizes v and returns its hex-encoded SHA-256
// digest. This is the digest embedded in hash:// URIs and the payload hash
// that signatures cover.
func CanonicalHash(v interface{}) (string, error) {
	canon, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canon), nil
}
