// Package record defines the stored value shape (Record), the write unit
// (Message), and the transport envelope for binary payloads that JSON
// cannot carry natively.
//
// Grounded on the teacher's contracts-style plain struct records
// (github.com/Mindburn-Labs/helm/core/pkg/contracts) and its binary-safe
// transport convention, generalized from a single decision/receipt shape
// to an arbitrary payload.
package record

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Payload is the sum type every record's data takes: either a structured
// JSON-compatible tree or a raw byte sequence. Exactly one of the two is
// set; Struct and Bytes are mutually exclusive.
type Payload struct {
	Struct any
	Bytes  []byte
	isByte bool
}

// NewStruct wraps a JSON-compatible value as a structured payload.
func NewStruct(v any) Payload { return Payload{Struct: v} }

// NewBytes wraps a raw byte sequence as a binary payload.
func NewBytes(b []byte) Payload { return Payload{Bytes: b, isByte: true} }

// IsBinary reports whether the payload carries raw bytes rather than a
// structured value.
func (p Payload) IsBinary() bool { return p.isByte }

// Value returns the payload's native Go value: []byte for binary payloads,
// the wrapped value otherwise.
func (p Payload) Value() any {
	if p.isByte {
		return p.Bytes
	}
	return p.Struct
}

// Record is every stored value: a monotonic-ish millisecond timestamp
// assigned at write time, plus the payload.
type Record struct {
	Ts   int64   `json:"ts"`
	Data Payload `json:"data"`
}

// Message is a write unit: [uri, data].
type Message struct {
	URI  string
	Data Payload
}

// binaryEnvelope is the wire shape binary payloads take when crossing JSON
// transport: {"__binary": true, "encoding": "base64", "data": "<b64>"}.
type binaryEnvelope struct {
	Binary   bool   `json:"__binary"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// MarshalJSON implements the binary-envelope convention from spec §6: a
// binary payload round-trips through JSON as a base64 envelope; a
// structured payload marshals as itself.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.isByte {
		return json.Marshal(binaryEnvelope{
			Binary:   true,
			Encoding: "base64",
			Data:     base64.StdEncoding.EncodeToString(p.Bytes),
		})
	}
	return json.Marshal(p.Struct)
}

// UnmarshalJSON detects the binary envelope shape and unwraps it; anything
// else is kept as a structured value.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if isBin, ok := probe["__binary"]; ok {
			var flag bool
			if err := json.Unmarshal(isBin, &flag); err == nil && flag {
				var env binaryEnvelope
				if err := json.Unmarshal(data, &env); err != nil {
					return fmt.Errorf("record: invalid binary envelope: %w", err)
				}
				if env.Encoding != "base64" {
					return fmt.Errorf("record: unsupported binary encoding %q", env.Encoding)
				}
				raw, err := base64.StdEncoding.DecodeString(env.Data)
				if err != nil {
					return fmt.Errorf("record: invalid base64 payload: %w", err)
				}
				*p = NewBytes(raw)
				return nil
			}
		}
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return fmt.Errorf("record: invalid payload: %w", err)
	}
	*p = NewStruct(v)
	return nil
}
