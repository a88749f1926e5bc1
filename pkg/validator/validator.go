// Package validator implements the write-side validation pipeline: program
// schema dispatch, authenticated-envelope signature verification,
// content-hash integrity for hash:// and blob:// URIs, and transaction-data
// recursion.
//
// Grounded on the teacher's pkg/auth/middleware.go dispatch-table style
// (lookup by key, fail-closed default) and pkg/crypto/signer.go's Verify,
// generalized from JWT-claim validation to arbitrary program validators.
package validator

import (
	"context"
	"regexp"

	"github.com/substratefabric/core/pkg/canonicalize"
	"github.com/substratefabric/core/pkg/cryptoprim"
	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
)

// ReadFunc is the read closure a validator is given, bound to the backend
// it guards, so program validators can perform read-based checks without
// holding a reference to the whole Backend (and in particular cannot call
// Receive through it).
type ReadFunc func(ctx context.Context, u string) substrate.ReadResult

// Func is a program validator: given the parsed URI, the payload being
// written, and a read closure, it returns nil if the write is allowed or a
// *substrate.Error (conventionally KindValidationFailed) otherwise.
type Func func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error

// Registry maps program key (scheme://authority) to the validator that
// governs writes to it. Immutable once built, per spec: construct with
// NewRegistry and Register, then stop mutating before passing it to schema().
type Registry struct {
	byProgram map[string]Func
	// unknownPolicy is consulted for a program key absent from byProgram.
	unknownPolicy Func
}

// NewRegistry creates an empty registry. unknownPolicy governs any program
// key with no registered validator; pass Reject(...) for fail-closed or
// Accept for fail-open default-public schemes.
func NewRegistry(unknownPolicy Func) *Registry {
	if unknownPolicy == nil {
		unknownPolicy = Reject("unknown-program")
	}
	return &Registry{byProgram: make(map[string]Func), unknownPolicy: unknownPolicy}
}

// Register assigns the validator for a program key.
func (r *Registry) Register(programKey string, fn Func) {
	r.byProgram[programKey] = fn
}

// Lookup returns the validator for a program key, or the registry's
// unknown-program policy if none is registered.
func (r *Registry) Lookup(programKey string) Func {
	if fn, ok := r.byProgram[programKey]; ok {
		return fn
	}
	return r.unknownPolicy
}

// ProgramKeys lists every program key with an explicit validator, the
// value a backend's getSchema() reports.
func (r *Registry) ProgramKeys() []string {
	keys := make([]string, 0, len(r.byProgram))
	for k := range r.byProgram {
		keys = append(keys, k)
	}
	return keys
}

// authenticatedEnvelope is the {auth:[{pubkey,signature}], payload} shape.
type authenticatedEnvelope struct {
	Auth    []authEntry `json:"auth"`
	Payload any         `json:"payload"`
}

type authEntry struct {
	PubKey    string `json:"pubkey"`
	Signature string `json:"signature"`
}

// accountsAuthorityPattern matches the "accounts" authority of
// account-scoped URIs ("…://accounts/<pubkey>/…"); expectedSignerPubKey
// takes the pubkey from the first path segment.
var accountsAuthorityPattern = regexp.MustCompile(`^accounts$`)

// Schema builds a validator that dispatches to registry by program key,
// applying the cross-cutting hash-integrity and authenticated-envelope
// checks before handing off to the program-specific validator.
func Schema(registry *Registry) Func {
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		if err := crossCuttingChecks(u, payload); err != nil {
			return err
		}
		fn := registry.Lookup(u.ProgramKey())
		return fn(ctx, u, payload, read)
	}
}

// MsgSchema is Schema plus transaction-data recursion: if the payload is a
// {inputs, outputs} shape, it validates the envelope URI normally, then
// validates each output (uri, value) pair against the registry for that
// output's own program key.
func MsgSchema(registry *Registry) Func {
	base := Schema(registry)
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		if err := base(ctx, u, payload, read); err != nil {
			return err
		}
		tx, ok := asTransactionData(payload)
		if !ok {
			return nil
		}
		for _, out := range tx.Outputs {
			outURI, err := uri.Parse(out.URI)
			if err != nil {
				return substrate.NewError(substrate.KindValidationFailed, "transaction output: %v", err)
			}
			if err := crossCuttingChecks(outURI, out.Value); err != nil {
				return err
			}
			fn := registry.Lookup(outURI.ProgramKey())
			if err := fn(ctx, outURI, out.Value, read); err != nil {
				return err
			}
		}
		return nil
	}
}

type transactionData struct {
	Inputs  []string
	Outputs []transactionOutput
}

type transactionOutput struct {
	URI   string
	Value record.Payload
}

// asTransactionData detects the {inputs:[uri...], outputs:[[uri,value]...]}
// shape in a structured payload.
func asTransactionData(payload record.Payload) (transactionData, bool) {
	if payload.IsBinary() {
		return transactionData{}, false
	}
	m, ok := payload.Struct.(map[string]any)
	if !ok {
		return transactionData{}, false
	}
	rawOutputs, hasOutputs := m["outputs"]
	if !hasOutputs {
		return transactionData{}, false
	}
	outputsSlice, ok := rawOutputs.([]any)
	if !ok {
		return transactionData{}, false
	}

	var tx transactionData
	if rawInputs, ok := m["inputs"].([]any); ok {
		for _, in := range rawInputs {
			if s, ok := in.(string); ok {
				tx.Inputs = append(tx.Inputs, s)
			}
		}
	}
	for _, raw := range outputsSlice {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return transactionData{}, false
		}
		outURI, ok := pair[0].(string)
		if !ok {
			return transactionData{}, false
		}
		tx.Outputs = append(tx.Outputs, transactionOutput{URI: outURI, Value: record.NewStruct(pair[1])})
	}
	return tx, true
}

// crossCuttingChecks applies the hash-URI integrity check and the
// authenticated-envelope signature check, independent of program.
func crossCuttingChecks(u uri.URI, payload record.Payload) error {
	if uri.IsContentAddressed(u.Scheme) {
		if err := checkContentHash(u, payload); err != nil {
			return err
		}
	}
	if pubkey, ok := expectedSignerPubKey(u); ok {
		if err := checkAuthenticatedEnvelope(payload, pubkey); err != nil {
			return err
		}
	}
	return nil
}

func checkContentHash(u uri.URI, payload record.Payload) error {
	_, wantDigest, ok := uri.HashDigest(u)
	if !ok {
		return substrate.NewError(substrate.KindValidationFailed, "content-addressed uri %q missing digest", u.Raw)
	}
	var gotDigest string
	if payload.IsBinary() {
		gotDigest = canonicalize.HashBytes(payload.Bytes)
	} else {
		digest, err := canonicalize.CanonicalHash(payload.Struct)
		if err != nil {
			return substrate.NewError(substrate.KindValidationFailed, "canonicalizing payload: %v", err)
		}
		gotDigest = digest
	}
	if gotDigest != wantDigest {
		return substrate.NewError(substrate.KindHashMismatch, "want %s got %s", wantDigest, gotDigest)
	}
	return nil
}

// expectedSignerPubKey extracts the required signer public key from a
// "…://accounts/<pubkey>/…" authority-plus-path shape, per spec: the
// program key encodes a public key in its authority or leading path
// segment for account-scoped programs.
func expectedSignerPubKey(u uri.URI) (string, bool) {
	if !accountsAuthorityPattern.MatchString(u.Authority) {
		return "", false
	}
	segs := splitPath(u.Path)
	if len(segs) == 0 {
		return "", false
	}
	return segs[0], true
}

func splitPath(path string) []string {
	var segs []string
	cur := ""
	for _, r := range path {
		if r == '/' {
			if cur != "" {
				segs = append(segs, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		segs = append(segs, cur)
	}
	return segs
}

func checkAuthenticatedEnvelope(payload record.Payload, expectedPubKey string) error {
	if payload.IsBinary() {
		return substrate.NewError(substrate.KindSignatureFailed, "binary payload cannot carry an authenticated envelope")
	}
	m, ok := payload.Struct.(map[string]any)
	if !ok {
		return substrate.NewError(substrate.KindSignatureFailed, "payload is not an authenticated envelope")
	}
	rawAuth, ok := m["auth"]
	if !ok {
		return substrate.NewError(substrate.KindSignatureFailed, "missing auth entries")
	}
	authSlice, ok := rawAuth.([]any)
	if !ok {
		return substrate.NewError(substrate.KindSignatureFailed, "auth is not a list")
	}
	innerPayload, hasPayload := m["payload"]
	if !hasPayload {
		return substrate.NewError(substrate.KindSignatureFailed, "missing payload")
	}
	canon, err := canonicalize.JCS(innerPayload)
	if err != nil {
		return substrate.NewError(substrate.KindSignatureFailed, "canonicalizing payload: %v", err)
	}

	for _, raw := range authSlice {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		pubkey, _ := entry["pubkey"].(string)
		signature, _ := entry["signature"].(string)
		if pubkey != expectedPubKey {
			continue
		}
		ok, err := cryptoprim.Verify(pubkey, signature, canon)
		if err != nil {
			continue
		}
		if ok {
			return nil
		}
	}
	return substrate.NewError(substrate.KindSignatureFailed, "no auth entry for pubkey %s verifies", expectedPubKey)
}
