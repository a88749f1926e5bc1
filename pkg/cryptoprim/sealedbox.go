package cryptoprim

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeyPair is an X25519 encryption keypair, distinct from the Ed25519
// signing keypair a Signer holds.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a fresh X25519 keypair for sealed-box encryption.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoprim: x25519 key generation: %w", err)
	}
	return &KeyPair{Public: *pub, Private: *priv}, nil
}

// Seal encrypts plaintext for recipientPublicKey using an ephemeral sender
// keypair, the NaCl "sealed box" construction: the ephemeral public key is
// prepended to the ciphertext so the recipient needs only its own private
// key to open it.
func Seal(plaintext []byte, recipientPublicKey [32]byte) ([]byte, error) {
	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoprim: ephemeral key generation: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("cryptoprim: nonce generation: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, &recipientPublicKey, ephPriv)

	out := make([]byte, 0, 32+24+len(sealed))
	out = append(out, ephPub[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

// Open decrypts a value produced by Seal using the recipient's private key.
func Open(sealed []byte, recipientPrivateKey [32]byte) ([]byte, error) {
	if len(sealed) < 32+24 {
		return nil, fmt.Errorf("cryptoprim: sealed payload too short")
	}
	var ephPub [32]byte
	copy(ephPub[:], sealed[:32])
	var nonce [24]byte
	copy(nonce[:], sealed[32:56])
	ciphertext := sealed[56:]

	plaintext, ok := box.Open(nil, ciphertext, &nonce, &ephPub, &recipientPrivateKey)
	if !ok {
		return nil, fmt.Errorf("cryptoprim: decryption failed")
	}
	return plaintext, nil
}

// PublicKeyFromPrivate derives the X25519 public key for a private key,
// used when only the private half was persisted.
func PublicKeyFromPrivate(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	out, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("cryptoprim: deriving public key: %w", err)
	}
	copy(pub[:], out)
	return pub, nil
}
