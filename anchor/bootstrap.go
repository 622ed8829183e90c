// Package anchor builds the two installable artifacts of the trust chain:
// the bootstrap script with the verification key baked in, and the immutable
// trust anchor that pins the bootstrap by content digest.
package anchor

import (
	"bytes"
	"crypto/ed25519"
	_ "embed"
	"encoding/base64"
	"fmt"

	"github.com/moorhq/moor/trust"
)

// PublicKeyPlaceholder is the token in a bootstrap template that is replaced
// by the base64-encoded raw Ed25519 public key.
const PublicKeyPlaceholder = "__MOOR_PUBLIC_KEY__"

// DefaultTemplate is the bootstrap script shipped with moor.
//
//go:embed bootstrap_template.js
var DefaultTemplate []byte

// Bootstrap substitutes the public-key placeholder into template and returns
// the final bootstrap bytes together with their content digest. The digest
// is computed over the substituted bytes, so it covers the key-bearing form
// that clients will integrity-pin.
//
// A nil public key produces an unsigned-mode bootstrap with an empty key
// constant; the caller is responsible for surfacing that loudly.
func Bootstrap(template []byte, pub ed25519.PublicKey) ([]byte, trust.Digest, error) {
	if len(template) == 0 {
		template = DefaultTemplate
	}
	if !bytes.Contains(template, []byte(PublicKeyPlaceholder)) {
		return nil, trust.Digest{}, fmt.Errorf("bootstrap template has no %s placeholder", PublicKeyPlaceholder)
	}

	var keyB64 string
	if pub != nil {
		if len(pub) != ed25519.PublicKeySize {
			return nil, trust.Digest{}, fmt.Errorf("%w: public key: got %d bytes, want %d", trust.ErrKeyFormat, len(pub), ed25519.PublicKeySize)
		}
		keyB64 = base64.StdEncoding.EncodeToString(pub)
	}

	out := bytes.ReplaceAll(template, []byte(PublicKeyPlaceholder), []byte(keyB64))
	return out, trust.ComputeDigest(out), nil
}

// BootstrapFilename returns the content-addressed filename for bootstrap
// bytes, derived from the digest of the final, key-bearing form.
func BootstrapFilename(d trust.Digest) string {
	return "bootstrap." + d.Hex[:16] + ".js"
}
