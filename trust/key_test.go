package trust

import (
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func generateTestKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return pub, priv
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	pub, _ := generateTestKeypair(t)

	parsed, err := ParsePublicKey(ExportPublicPEM(pub))
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if !parsed.Equal(pub) {
		t.Error("parsed public key differs from original")
	}
}

func TestParsePublicKeyPKIX(t *testing.T) {
	pub, _ := generateTestKeypair(t)

	der := append(append([]byte{}, ed25519PKIXPrefix...), pub...)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	parsed, err := ParsePublicKey(pemData)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if !parsed.Equal(pub) {
		t.Error("parsed PKIX key differs from original")
	}
}

func TestParsePublicKeyErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"no PEM block", []byte("garbage")},
		{"wrong block type", pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: make([]byte, 32)})},
		{"short raw key", pem.EncodeToMemory(&pem.Block{Type: "ED25519 PUBLIC KEY", Bytes: make([]byte, 16)})},
		{"bad PKIX prefix", pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: make([]byte, 44)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrKeyFormat) {
				t.Errorf("error = %v, want ErrKeyFormat", err)
			}
		})
	}
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	pub, priv := generateTestKeypair(t)

	parsed, err := ParsePrivateKey(ExportPrivatePEM(priv))
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if !parsed.Equal(priv) {
		t.Error("parsed private key differs from original")
	}

	derived, err := PublicFromPrivate(parsed)
	if err != nil {
		t.Fatalf("PublicFromPrivate: %v", err)
	}
	if !derived.Equal(pub) {
		t.Error("derived public key differs from original")
	}
}

func TestParsePrivateKeySeed(t *testing.T) {
	_, priv := generateTestKeypair(t)

	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "ED25519 PRIVATE KEY",
		Bytes: priv.Seed(),
	})
	parsed, err := ParsePrivateKey(pemData)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if !parsed.Equal(priv) {
		t.Error("seed-parsed private key differs from original")
	}
}

func TestParsePrivateKeyPKCS8(t *testing.T) {
	_, priv := generateTestKeypair(t)

	der := append(append([]byte{}, ed25519PKCS8Prefix...), priv.Seed()...)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := ParsePrivateKey(pemData)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if !parsed.Equal(priv) {
		t.Error("PKCS8-parsed private key differs from original")
	}
}

func TestParsePrivateKeyErrors(t *testing.T) {
	_, err := ParsePrivateKey([]byte("not pem"))
	if !errors.Is(err, ErrKeyFormat) {
		t.Errorf("error = %v, want ErrKeyFormat", err)
	}

	bad := pem.EncodeToMemory(&pem.Block{Type: "ED25519 PRIVATE KEY", Bytes: make([]byte, 10)})
	if _, err := ParsePrivateKey(bad); !errors.Is(err, ErrKeyFormat) {
		t.Errorf("error = %v, want ErrKeyFormat", err)
	}
}

func TestSaveAndLoadKeypair(t *testing.T) {
	pub, priv := generateTestKeypair(t)
	dir := t.TempDir()

	if err := SaveKeypair(dir, "release", pub, priv); err != nil {
		t.Fatalf("SaveKeypair: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "release.key"))
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("private key perm = %o, want 600", perm)
	}

	loadedPriv, err := LoadPrivateKey(filepath.Join(dir, "release.key"))
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if !loadedPriv.Equal(priv) {
		t.Error("loaded private key differs")
	}

	loadedPub, err := LoadPublicKey(filepath.Join(dir, "release.pub"))
	if err != nil {
		t.Fatalf("LoadPublicKey: %v", err)
	}
	if !loadedPub.Equal(pub) {
		t.Error("loaded public key differs")
	}
}

func TestKeyFingerprintStable(t *testing.T) {
	pub, _ := generateTestKeypair(t)

	fp1 := KeyFingerprint(pub)
	fp2 := KeyFingerprint(pub)
	if fp1 != fp2 {
		t.Error("fingerprint not stable")
	}
	if len(fp1) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(fp1))
	}

	other, _ := generateTestKeypair(t)
	if KeyFingerprint(other) == fp1 {
		t.Error("different keys share a fingerprint")
	}
}
