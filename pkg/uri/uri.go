// Package uri parses and classifies the URIs that name every record in the
// substrate: scheme://authority/path. It draws no distinction between
// "real" and "app-defined" schemes beyond the handful with built-in
// semantics (mutable, immutable, hash, link, blob).
package uri

import (
	"fmt"
	"strings"
)

// Scheme is the built-in vocabulary with substrate-level semantics.
// Any other scheme is accepted as an app-defined scheme with no built-in
// behavior beyond the uniform protocol.
type Scheme string

const (
	SchemeMutable   Scheme = "mutable"
	SchemeImmutable Scheme = "immutable"
	SchemeHash      Scheme = "hash"
	SchemeLink      Scheme = "link"
	SchemeBlob      Scheme = "blob"
	SchemeMsg       Scheme = "msg"
	SchemeTest      Scheme = "test"
)

// URI is a parsed scheme://authority/path identifier.
type URI struct {
	Raw       string
	Scheme    string
	Authority string
	Path      string
}

// Parse splits a raw URI string into its scheme, authority, and path.
// It rejects the empty string and anything missing the "://" separator.
func Parse(raw string) (URI, error) {
	if raw == "" {
		return URI{}, fmt.Errorf("uri: empty")
	}
	schemeSep := strings.Index(raw, "://")
	if schemeSep < 0 {
		return URI{}, fmt.Errorf("uri: missing scheme separator in %q", raw)
	}
	scheme := raw[:schemeSep]
	if scheme == "" {
		return URI{}, fmt.Errorf("uri: empty scheme in %q", raw)
	}
	rest := raw[schemeSep+3:]

	authority := rest
	path := ""
	if idx := strings.Index(rest, "/"); idx >= 0 {
		authority = rest[:idx]
		path = rest[idx:]
	}
	if authority == "" {
		return URI{}, fmt.Errorf("uri: empty authority in %q", raw)
	}

	return URI{Raw: raw, Scheme: scheme, Authority: authority, Path: path}, nil
}

// ProgramKey is the scheme://authority prefix that validators are keyed by.
func (u URI) ProgramKey() string {
	return u.Scheme + "://" + u.Authority
}

// String reconstructs the raw URI, which is always u.Raw for a successfully
// parsed value but is provided for callers that build a URI programmatically.
func (u URI) String() string {
	return u.Scheme + "://" + u.Authority + u.Path
}

// HasPrefix reports whether the raw URI candidate begins with prefix, the
// relationship list() uses to enumerate children of a directory-like URI.
func HasPrefix(candidate, prefix string) bool {
	return strings.HasPrefix(candidate, prefix)
}

// IsContentAddressed reports whether the scheme requires the stored data's
// digest to match a digest encoded in the URI itself (hash:// and blob://).
func IsContentAddressed(scheme string) bool {
	return scheme == string(SchemeHash) || scheme == string(SchemeBlob)
}

// IsImmutable reports whether the scheme is first-write-wins.
func IsImmutable(scheme string) bool {
	return scheme == string(SchemeImmutable) || IsContentAddressed(scheme)
}

// HashDigest splits a hash:// or blob:// path segment of the form
// "<algo>:<hex>" (e.g. "sha256:abc123...") out of the URI.
//
// For hash://<algo>:<digest>/... the algo:digest pair is the authority.
// For blob://open/sha256:<hex> it is the final path segment.
func HashDigest(u URI) (algo string, digest string, ok bool) {
	switch u.Scheme {
	case string(SchemeHash):
		return splitAlgoDigest(u.Authority)
	case string(SchemeBlob):
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) == 0 {
			return "", "", false
		}
		return splitAlgoDigest(segs[len(segs)-1])
	default:
		return "", "", false
	}
}

func splitAlgoDigest(s string) (algo, digest string, ok bool) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}
