package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/moorhq/moor/trust"
)

// canonicalEntry is the signed subset of a ResourceEntry. Delivery URLs are
// excluded: they are unauthenticated hints a mirror operator may rewrite.
type canonicalEntry struct {
	Hash string `json:"hash"`
	Size uint64 `json:"size"`
}

// canonicalManifest is the signed subset of a Manifest. The signature itself
// is excluded, and no key material ever appears here.
type canonicalManifest struct {
	Version   string                    `json:"version"`
	Timestamp string                    `json:"timestamp"`
	Resources map[string]canonicalEntry `json:"resources"`
}

// Canonical returns the deterministic byte form of the manifest's signed
// fields: compact JSON of {version, timestamp, resources} with resource keys
// sorted by code point and each entry reduced to {hash, size}.
//
// This is the exact input to signing and to verification. Every verifier in
// the chain, including the browser-side bootstrap, must reproduce these bytes
// exactly; any divergence between the bytes signed at build time and the
// bytes checked at load time defeats the whole trust chain. HTML escaping is
// disabled so that '&', '<', '>', U+2028 and U+2029 stay literal, matching
// JSON.stringify output, and Validate rejects the characters the serializers
// escape differently.
func (m *Manifest) Canonical() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	c := canonicalManifest{
		Version:   m.Version,
		Timestamp: m.Timestamp,
		Resources: make(map[string]canonicalEntry, len(m.Resources)),
	}
	for path, entry := range m.Resources {
		c.Resources[path] = canonicalEntry{Hash: entry.Hash, Size: entry.Size}
	}

	// encoding/json marshals map keys in sorted byte order (equal to code
	// point order for valid UTF-8) and struct fields in declaration order,
	// which fixes the byte layout.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("canonicalizing manifest: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// canonicalSafe reports whether s serializes to identical bytes under every
// JSON serializer in the chain. Control characters and the replacement
// character are excluded: encoders disagree on their escape forms, and
// invalid UTF-8 (which Go replaces with U+FFFD) cannot round-trip at all.
func canonicalSafe(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == utf8.RuneError {
			return false
		}
	}
	return true
}

// CanonicalDigest computes the content digest of the manifest's canonical
// form, the value pinned by locked-mode trust anchors.
func (m *Manifest) CanonicalDigest() (trust.Digest, error) {
	data, err := m.Canonical()
	if err != nil {
		return trust.Digest{}, err
	}
	return trust.ComputeDigest(data), nil
}
