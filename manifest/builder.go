package manifest

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/moorhq/moor/trust"
)

// Build assembles an unsigned manifest from a set of named content blobs.
// Each blob is hashed and measured; the caller may attach delivery hints to
// individual entries afterwards without affecting the signed content.
func Build(version string, ts time.Time, blobs map[string][]byte) (*Manifest, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrMalformed)
	}
	if len(blobs) == 0 {
		return nil, fmt.Errorf("%w: no resources", ErrMalformed)
	}

	m := &Manifest{
		Version:   version,
		Timestamp: ts.UTC().Format(time.RFC3339),
		Resources: make(map[string]ResourceEntry, len(blobs)),
	}
	for path, data := range blobs {
		m.Resources[path] = ResourceEntry{
			Hash: trust.ComputeDigest(data).String(),
			Size: uint64(len(data)),
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Sign populates the manifest's signature with a detached Ed25519 signature
// over its canonical form.
func (m *Manifest) Sign(priv ed25519.PrivateKey) error {
	content, err := m.Canonical()
	if err != nil {
		return err
	}
	sig, err := trust.Sign(content, priv)
	if err != nil {
		return err
	}
	m.Signature = hex.EncodeToString(sig)
	return nil
}

// VerifySignature recomputes the canonical form and checks the manifest's
// signature against pub. The key must come from a trust boundary external to
// the manifest (the constant embedded in the bootstrap artifact): nothing
// inside the manifest can influence which key is used, since a manifest that
// names its own verification key is trivially forgeable.
func (m *Manifest) VerifySignature(pub ed25519.PublicKey) error {
	if m.Signature == "" {
		return fmt.Errorf("%w: manifest is unsigned", trust.ErrSignatureInvalid)
	}
	sig, err := hex.DecodeString(m.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex: %v", trust.ErrSignatureInvalid, err)
	}
	content, err := m.Canonical()
	if err != nil {
		return err
	}
	return trust.Verify(content, sig, pub)
}
