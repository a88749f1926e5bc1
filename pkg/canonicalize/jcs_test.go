package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_SortsKeys(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2}
	out, err := JCS(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(out))
}

func TestJCS_NestedDeterministic(t *testing.T) {
	v := map[string]any{
		"outputs": []any{map[string]any{"uri": "mutable://open/x", "value": 3}},
		"inputs":  []any{"hash://sha256:abc"},
	}
	out1, err := JCS(v)
	require.NoError(t, err)
	out2, err := JCS(v)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestCanonicalHash_Stable(t *testing.T) {
	a := map[string]any{"x": 1, "y": 2}
	b := map[string]any{"y": 2, "x": 1}
	ha, err := CanonicalHash(a)
	require.NoError(t, err)
	hb, err := CanonicalHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestHashBytes(t *testing.T) {
	h := HashBytes([]byte("hello"))
	assert.Len(t, h, 64)
}
