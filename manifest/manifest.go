// Package manifest defines the signed unit of trust for a moor deployment:
// a versioned map of resource paths to content digests, plus an optional
// detached Ed25519 signature over the manifest's canonical form.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/moorhq/moor/trust"
)

// ErrMalformed indicates a manifest that is missing required fields or
// carries entries that cannot be validated.
var ErrMalformed = errors.New("malformed manifest")

// ResourceEntry describes one resource protected by a manifest.
type ResourceEntry struct {
	// Hash is the algorithm-tagged content digest, e.g. "sha256-<hex>".
	Hash string `json:"hash"`
	// Size is the byte length of the resource, a cheap pre-check before
	// hashing.
	Size uint64 `json:"size"`
	// URLs are optional alternate delivery locations. They are
	// unauthenticated hints and are never part of the signed content.
	URLs []string `json:"urls,omitempty"`
}

// Manifest is the signed unit of trust. Version and Timestamp are
// informational: neither is used for security decisions beyond equality.
type Manifest struct {
	Version   string                   `json:"version"`
	Timestamp string                   `json:"timestamp"`
	Resources map[string]ResourceEntry `json:"resources"`
	// Signature is a hex-encoded detached Ed25519 signature over the
	// manifest's canonical form. Absent on development builds.
	Signature string `json:"signature,omitempty"`
}

// Parse decodes and validates manifest bytes. Unknown fields are ignored on
// decode; they can never influence verification because the canonical form
// is an allow-list of known fields.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that all required fields are present and well-formed.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("%w: missing version", ErrMalformed)
	}
	if !canonicalSafe(m.Version) {
		return fmt.Errorf("%w: version contains characters that do not canonicalize", ErrMalformed)
	}
	if m.Timestamp == "" {
		return fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	if !canonicalSafe(m.Timestamp) {
		return fmt.Errorf("%w: timestamp contains characters that do not canonicalize", ErrMalformed)
	}
	if len(m.Resources) == 0 {
		return fmt.Errorf("%w: no resources", ErrMalformed)
	}
	for path, entry := range m.Resources {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%w: resource path %q must start with /", ErrMalformed, path)
		}
		if !canonicalSafe(path) {
			return fmt.Errorf("%w: resource path %q contains characters that do not canonicalize", ErrMalformed, path)
		}
		if _, err := trust.ParseDigest(entry.Hash); err != nil {
			return fmt.Errorf("%w: resource %q: %v", ErrMalformed, path, err)
		}
	}
	return nil
}

// Encode serializes the manifest to its wire format.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}
