package trust

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrKeyFormat indicates key material that could not be parsed.
var ErrKeyFormat = errors.New("malformed key")

// ed25519PKIXPrefix is the ASN.1 DER prefix for Ed25519 public keys encoded
// with the PKIX SubjectPublicKeyInfo structure (OID 1.3.101.112).
// This avoids importing crypto/x509 for a single well-known prefix.
var ed25519PKIXPrefix = []byte{
	0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65,
	0x70, 0x03, 0x21, 0x00,
}

// ed25519PKCS8Prefix is the ASN.1 DER prefix for Ed25519 private keys in
// PKCS#8 form; the 32-byte seed follows it.
var ed25519PKCS8Prefix = []byte{
	0x30, 0x2e, 0x02, 0x01, 0x00, 0x30, 0x05, 0x06,
	0x03, 0x2b, 0x65, 0x70, 0x04, 0x22, 0x04, 0x20,
}

// GenerateKeypair creates a fresh Ed25519 keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating keypair: %w", err)
	}
	return pub, priv, nil
}

// ParsePublicKey parses a PEM-encoded Ed25519 public key. It supports both
// raw 32-byte keys (PEM type "ED25519 PUBLIC KEY") and standard PKIX/DER
// encoded keys (PEM type "PUBLIC KEY").
func ParsePublicKey(pemData []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrKeyFormat)
	}

	switch block.Type {
	case "ED25519 PUBLIC KEY":
		if len(block.Bytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: raw Ed25519 key: got %d bytes, want %d", ErrKeyFormat, len(block.Bytes), ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(block.Bytes), nil

	case "PUBLIC KEY":
		return parsePKIXEd25519(block.Bytes)

	default:
		return nil, fmt.Errorf("%w: unsupported PEM block type %q", ErrKeyFormat, block.Type)
	}
}

// parsePKIXEd25519 extracts an Ed25519 public key from a PKIX SubjectPublicKeyInfo
// DER encoding by stripping the known ASN.1 prefix.
func parsePKIXEd25519(der []byte) (ed25519.PublicKey, error) {
	expectedLen := len(ed25519PKIXPrefix) + ed25519.PublicKeySize
	if len(der) != expectedLen {
		return nil, fmt.Errorf("%w: PKIX Ed25519 key: got %d bytes, want %d", ErrKeyFormat, len(der), expectedLen)
	}
	if !bytes.HasPrefix(der, ed25519PKIXPrefix) {
		return nil, fmt.Errorf("%w: PKIX Ed25519 key: invalid ASN.1 prefix", ErrKeyFormat)
	}
	return ed25519.PublicKey(der[len(ed25519PKIXPrefix):]), nil
}

// ParsePrivateKey parses a PEM-encoded Ed25519 private key. It supports raw
// keys (PEM type "ED25519 PRIVATE KEY", either the 32-byte seed or the full
// 64-byte private key) and PKCS#8 encoded keys (PEM type "PRIVATE KEY").
func ParsePrivateKey(pemData []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrKeyFormat)
	}

	switch block.Type {
	case "ED25519 PRIVATE KEY":
		switch len(block.Bytes) {
		case ed25519.SeedSize:
			return ed25519.NewKeyFromSeed(block.Bytes), nil
		case ed25519.PrivateKeySize:
			return ed25519.PrivateKey(block.Bytes), nil
		default:
			return nil, fmt.Errorf("%w: raw Ed25519 private key: got %d bytes, want %d or %d", ErrKeyFormat, len(block.Bytes), ed25519.SeedSize, ed25519.PrivateKeySize)
		}

	case "PRIVATE KEY":
		expectedLen := len(ed25519PKCS8Prefix) + ed25519.SeedSize
		if len(block.Bytes) != expectedLen {
			return nil, fmt.Errorf("%w: PKCS#8 Ed25519 key: got %d bytes, want %d", ErrKeyFormat, len(block.Bytes), expectedLen)
		}
		if !bytes.HasPrefix(block.Bytes, ed25519PKCS8Prefix) {
			return nil, fmt.Errorf("%w: PKCS#8 Ed25519 key: invalid ASN.1 prefix", ErrKeyFormat)
		}
		return ed25519.NewKeyFromSeed(block.Bytes[len(ed25519PKCS8Prefix):]), nil

	default:
		return nil, fmt.Errorf("%w: unsupported PEM block type %q", ErrKeyFormat, block.Type)
	}
}

// PublicFromPrivate derives the Ed25519 public key from a private key.
func PublicFromPrivate(priv ed25519.PrivateKey) (ed25519.PublicKey, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key: got %d bytes, want %d", ErrKeyFormat, len(priv), ed25519.PrivateKeySize)
	}
	return priv.Public().(ed25519.PublicKey), nil
}

// KeyFingerprint computes the SHA-256 fingerprint of a raw Ed25519 public key.
func KeyFingerprint(pub ed25519.PublicKey) string {
	h := sha256.Sum256([]byte(pub))
	return hex.EncodeToString(h[:])
}

// ExportPublicPEM encodes an Ed25519 public key as a raw PEM block.
func ExportPublicPEM(pub ed25519.PublicKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "ED25519 PUBLIC KEY",
		Bytes: []byte(pub),
	})
}

// ExportPrivatePEM encodes an Ed25519 private key as a raw PEM block
// containing the full 64-byte private key.
func ExportPrivatePEM(priv ed25519.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "ED25519 PRIVATE KEY",
		Bytes: []byte(priv),
	})
}

// LoadPrivateKey reads and parses a PEM private key file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	return ParsePrivateKey(data)
}

// LoadPublicKey reads and parses a PEM public key file.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return ParsePublicKey(data)
}

// SaveKeypair writes a keypair as two PEM files, <name>.key and <name>.pub,
// using atomic writes (temp + rename). The private key file is created with
// owner-only permissions.
func SaveKeypair(dir, name string, pub ed25519.PublicKey, priv ed25519.PrivateKey) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating key dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, name+".key"), ExportPrivatePEM(priv), 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, name+".pub"), ExportPublicPEM(pub), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
