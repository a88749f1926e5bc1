// Package cryptoprim implements the substrate's two cryptographic
// primitives: Ed25519 signatures over authenticated envelopes, and X25519
// sealed-box encryption for values that should be opaque to anyone but the
// holder of a keypair.
//
// Grounded on the teacher's pkg/crypto/signer.go (Ed25519Signer, hex
// encoding of keys and signatures, standalone Verify helper), generalized
// from signing fixed DecisionRecord/Receipt shapes to signing arbitrary
// canonicalized payloads.
package cryptoprim

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer produces and verifies Ed25519 signatures over raw byte payloads.
// Callers canonicalize a value with pkg/canonicalize before signing it.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner generates a fresh Ed25519 keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoprim: key generation: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// NewSignerFromPrivateKey wraps an existing Ed25519 private key.
func NewSignerFromPrivateKey(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

// Sign returns the hex-encoded signature over data.
func (s *Signer) Sign(data []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.priv, data))
}

// PublicKeyHex is the hex-encoded public key, the value stored in an
// authenticated envelope's auth[].pubkey field.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.pub)
}

// PublicKey returns the raw public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Verify checks a hex-encoded signature against a hex-encoded public key
// and the raw data it covers.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("cryptoprim: invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("cryptoprim: invalid public key size %d", len(pubKey))
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("cryptoprim: invalid signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("cryptoprim: invalid signature size %d", len(sig))
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}
