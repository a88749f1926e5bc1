package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_StructRoundTrip(t *testing.T) {
	p := NewStruct(map[string]any{"name": "alice", "age": json.Number("30")})
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var out Payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.False(t, out.IsBinary())
	m, ok := out.Value().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", m["name"])
}

func TestPayload_BinaryRoundTrip(t *testing.T) {
	p := NewBytes([]byte{0x01, 0x02, 0xff, 0x00})
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"__binary":true`)

	var out Payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.IsBinary())
	assert.Equal(t, []byte{0x01, 0x02, 0xff, 0x00}, out.Value())
}

func TestPayload_UnsupportedEncoding(t *testing.T) {
	raw := []byte(`{"__binary":true,"encoding":"hex","data":"deadbeef"}`)
	var out Payload
	err := json.Unmarshal(raw, &out)
	assert.Error(t, err)
}

func TestRecord_Marshal(t *testing.T) {
	r := Record{Ts: 1700000000000, Data: NewStruct(map[string]any{"x": json.Number("1")})}
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ts":1700000000000`)
}
