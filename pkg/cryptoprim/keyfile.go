package cryptoprim

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
)

// KeyFile is the parsed form of the substrate-adjacent key utility's output
// file: a PEM-encoded PKCS8 Ed25519 private key, plus the hex-encoded public
// keys the private key corresponds to.
type KeyFile struct {
	PrivateKey            ed25519.PrivateKey
	PublicKeyHex          string
	EncryptionPrivKeyHex  string
	EncryptionPublicKeyHex string
}

const (
	prefixPublicKeyHex    = "PUBLIC_KEY_HEX="
	prefixEncPrivKeyHex   = "ENCRYPTION_PRIVATE_KEY_HEX="
	prefixEncPublicKeyHex = "ENCRYPTION_PUBLIC_KEY_HEX="
)

// ParseKeyFile implements spec's key-file parsing rule: split by line;
// lines prefixed with one of the recognized keys assign the corresponding
// field; all other lines are concatenated with "\n" to form the PEM body.
// PUBLIC_KEY_HEX is mandatory.
func ParseKeyFile(content []byte) (*KeyFile, error) {
	lines := strings.Split(string(content), "\n")

	var pemLines []string
	kf := &KeyFile{}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, prefixPublicKeyHex):
			kf.PublicKeyHex = strings.TrimPrefix(line, prefixPublicKeyHex)
		case strings.HasPrefix(line, prefixEncPrivKeyHex):
			kf.EncryptionPrivKeyHex = strings.TrimPrefix(line, prefixEncPrivKeyHex)
		case strings.HasPrefix(line, prefixEncPublicKeyHex):
			kf.EncryptionPublicKeyHex = strings.TrimPrefix(line, prefixEncPublicKeyHex)
		default:
			pemLines = append(pemLines, line)
		}
	}

	if kf.PublicKeyHex == "" {
		return nil, fmt.Errorf("cryptoprim: key file missing PUBLIC_KEY_HEX")
	}

	pemBody := strings.Join(pemLines, "\n")
	block, _ := pem.Decode([]byte(pemBody))
	if block == nil {
		return nil, fmt.Errorf("cryptoprim: key file has no PEM block")
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptoprim: parsing PKCS8 private key: %w", err)
	}
	edPriv, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("cryptoprim: key file private key is not Ed25519")
	}
	kf.PrivateKey = edPriv

	if hex.EncodedLen(ed25519.PublicKeySize) != len(kf.PublicKeyHex) {
		return nil, fmt.Errorf("cryptoprim: PUBLIC_KEY_HEX has unexpected length %d", len(kf.PublicKeyHex))
	}

	return kf, nil
}

// EncodeKeyFile produces the inverse of ParseKeyFile: a PEM-encoded PKCS8
// private key followed by the recognized key/value lines.
func EncodeKeyFile(kf *KeyFile) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kf.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("cryptoprim: marshaling PKCS8 private key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	var sb strings.Builder
	sb.Write(pem.EncodeToMemory(block))
	sb.WriteString(prefixPublicKeyHex + kf.PublicKeyHex + "\n")
	if kf.EncryptionPrivKeyHex != "" {
		sb.WriteString(prefixEncPrivKeyHex + kf.EncryptionPrivKeyHex + "\n")
	}
	if kf.EncryptionPublicKeyHex != "" {
		sb.WriteString(prefixEncPublicKeyHex + kf.EncryptionPublicKeyHex + "\n")
	}
	return []byte(sb.String()), nil
}
