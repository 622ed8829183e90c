package anchor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/moorhq/moor/trust"
)

// Mode selects the update-trust policy of an installation.
type Mode string

const (
	// ModeLocked pins one exact canonical manifest digest; every other
	// manifest is rejected even when validly signed.
	ModeLocked Mode = "locked"
	// ModeAuto accepts any manifest bearing a valid signature from the
	// embedded key, regardless of version or digest.
	ModeAuto Mode = "auto"
)

// ParseMode parses an update mode string.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "locked":
		return ModeLocked, nil
	case "auto":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown update mode: %q", s)
	}
}

// Anchor is the client-held root of trust. It is generated once per
// installation and immutable thereafter. It never carries key material: the
// only key in the system is the public key inside the digest-pinned
// bootstrap.
type Anchor struct {
	Origin                string `json:"origin"`
	BootstrapURL          string `json:"bootstrapUrl"`
	BootstrapDigestBase64 string `json:"bootstrapDigestBase64"`
	UpdateMode            Mode   `json:"updateMode"`
	ManifestDigestHex     string `json:"manifestDigestHex,omitempty"`
}

// Assemble builds a trust anchor. The manifest digest is required in locked
// mode and must be absent in auto mode. Output is deterministic for
// identical inputs; nothing here is randomized.
func Assemble(origin, bootstrapURL string, bootstrapDigest trust.Digest, mode Mode, manifestDigest *trust.Digest) (*Anchor, error) {
	if _, err := url.ParseRequestURI(origin); err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}
	if _, err := url.ParseRequestURI(bootstrapURL); err != nil {
		return nil, fmt.Errorf("invalid bootstrap URL: %w", err)
	}
	if bootstrapDigest.Hex == "" {
		return nil, errors.New("missing bootstrap digest")
	}

	sri, err := bootstrapDigest.SRI()
	if err != nil {
		return nil, fmt.Errorf("encoding bootstrap digest: %w", err)
	}

	a := &Anchor{
		Origin:                origin,
		BootstrapURL:          bootstrapURL,
		BootstrapDigestBase64: sri,
		UpdateMode:            mode,
	}

	switch mode {
	case ModeLocked:
		if manifestDigest == nil || manifestDigest.Hex == "" {
			return nil, errors.New("locked mode requires a manifest digest")
		}
		a.ManifestDigestHex = manifestDigest.Hex
	case ModeAuto:
		if manifestDigest != nil {
			return nil, errors.New("auto mode must not pin a manifest digest")
		}
	default:
		return nil, fmt.Errorf("unknown update mode: %q", mode)
	}

	return a, nil
}

// EncodeJSON serializes the anchor deterministically.
func (a *Anchor) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding anchor: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeJSON parses a trust anchor from its JSON form.
func DecodeJSON(data []byte) (*Anchor, error) {
	var a Anchor
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding anchor: %w", err)
	}
	if a.UpdateMode != ModeLocked && a.UpdateMode != ModeAuto {
		return nil, fmt.Errorf("unknown update mode: %q", a.UpdateMode)
	}
	if a.UpdateMode == ModeLocked && a.ManifestDigestHex == "" {
		return nil, errors.New("locked mode anchor is missing its manifest digest")
	}
	return &a, nil
}

// Bookmarklet renders the anchor as a javascript: URL. Clicked while on the
// app's origin, the loader publishes the anchor parameters on the window
// (window globals survive a document.open swap) and replaces the current
// document with one that loads the bootstrap under an integrity attribute, so
// the platform itself enforces the digest pin. Clicked anywhere else it only
// navigates to the origin; a second click installs. The swap discards the
// host-served document entirely; execution-context isolation beyond that is a
// platform precondition. Deterministic for identical anchors.
func (a *Anchor) Bookmarklet() string {
	params := fmt.Sprintf("{updateMode:%q", a.UpdateMode)
	if a.ManifestDigestHex != "" {
		params += fmt.Sprintf(",manifestDigestHex:%q", a.ManifestDigestHex)
	}
	params += "}"

	origin := strings.TrimSuffix(a.Origin, "/")
	tag := fmt.Sprintf("<script src=%q integrity=%q crossorigin=\"anonymous\"><\\/script>",
		a.BootstrapURL, a.BootstrapDigestBase64)
	loader := fmt.Sprintf(
		"(function(){if(location.origin!==%q){location.href=%q;return;}"+
			"window.__MOOR_ANCHOR__=%s;"+
			"document.open();document.write('%s');document.close();})();",
		origin, origin, params, tag,
	)
	return "javascript:" + url.PathEscape(loader)
}
