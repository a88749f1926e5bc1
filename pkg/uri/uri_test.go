package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	u, err := Parse("mutable://open/profile/alice")
	require.NoError(t, err)
	assert.Equal(t, "mutable", u.Scheme)
	assert.Equal(t, "open", u.Authority)
	assert.Equal(t, "/profile/alice", u.Path)
	assert.Equal(t, "mutable://open", u.ProgramKey())
}

func TestParse_NoPath(t *testing.T) {
	u, err := Parse("immutable://accounts")
	require.NoError(t, err)
	assert.Equal(t, "accounts", u.Authority)
	assert.Equal(t, "", u.Path)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)

	_, err = Parse("not-a-uri")
	assert.Error(t, err)

	_, err = Parse("scheme://")
	assert.Error(t, err)
}

func TestHashDigest_HashScheme(t *testing.T) {
	u, err := Parse("hash://sha256:deadbeef/some/path")
	require.NoError(t, err)
	algo, digest, ok := HashDigest(u)
	require.True(t, ok)
	assert.Equal(t, "sha256", algo)
	assert.Equal(t, "deadbeef", digest)
}

func TestHashDigest_BlobScheme(t *testing.T) {
	u, err := Parse("blob://open/sha256:cafef00d")
	require.NoError(t, err)
	algo, digest, ok := HashDigest(u)
	require.True(t, ok)
	assert.Equal(t, "sha256", algo)
	assert.Equal(t, "cafef00d", digest)
}

func TestIsImmutable(t *testing.T) {
	assert.True(t, IsImmutable("immutable"))
	assert.True(t, IsImmutable("hash"))
	assert.True(t, IsImmutable("blob"))
	assert.False(t, IsImmutable("mutable"))
	assert.False(t, IsImmutable("msg"))
}
