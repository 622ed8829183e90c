// Package trust provides the cryptographic primitives of the moor trust
// chain: content digests, Ed25519 key handling, and detached signatures.
// This package depends only on the Go standard library.
package trust

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// ErrSignatureInvalid indicates a signature that does not verify against the
// expected public key, or a signature that is absent where one is required.
var ErrSignatureInvalid = errors.New("signature invalid")

// Sign produces a detached Ed25519 signature over content.
func Sign(content []byte, priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key: got %d bytes, want %d", ErrKeyFormat, len(priv), ed25519.PrivateKeySize)
	}
	return ed25519.Sign(priv, content), nil
}

// Verify checks a detached Ed25519 signature over content. It returns
// ErrSignatureInvalid (possibly wrapped) on any mismatch; nil means the
// signature is valid for the given key.
func Verify(content, signature []byte, pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key: got %d bytes, want %d", ErrKeyFormat, len(pub), ed25519.PublicKeySize)
	}
	if len(signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature length %d, want %d", ErrSignatureInvalid, len(signature), ed25519.SignatureSize)
	}
	if !ed25519.Verify(pub, content, signature) {
		return ErrSignatureInvalid
	}
	return nil
}
