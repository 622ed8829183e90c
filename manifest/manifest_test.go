package manifest

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/moorhq/moor/trust"
)

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := Build("1.0.0", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), map[string][]byte{
		"/a.js":  []byte("x"),
		"/b.css": []byte("y"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func TestParseValid(t *testing.T) {
	data, err := testManifest(t).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Version != "1.0.0" {
		t.Errorf("Version = %q, want %q", m.Version, "1.0.0")
	}
	if len(m.Resources) != 2 {
		t.Errorf("len(Resources) = %d, want 2", len(m.Resources))
	}
}

func TestParseMalformed(t *testing.T) {
	valid := `{"version":"1.0.0","timestamp":"2026-08-01T12:00:00Z",` +
		`"resources":{"/a.js":{"hash":"sha256-` + strings.Repeat("ab", 32) + `","size":1}}}`

	tests := []struct {
		name  string
		input string
	}{
		{"not json", "{{"},
		{"missing version", strings.Replace(valid, `"version":"1.0.0",`, "", 1)},
		{"missing timestamp", strings.Replace(valid, `"timestamp":"2026-08-01T12:00:00Z",`, "", 1)},
		{"empty resources", `{"version":"1.0.0","timestamp":"2026-08-01T12:00:00Z","resources":{}}`},
		{"bad hash", strings.Replace(valid, "sha256-", "md5-", 1)},
		{"relative path", strings.Replace(valid, "/a.js", "a.js", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
		})
	}

	// The baseline itself must parse.
	if _, err := Parse([]byte(valid)); err != nil {
		t.Fatalf("baseline failed to parse: %v", err)
	}
}

func TestValidateRejectsUnserializableStrings(t *testing.T) {
	hash := "sha256-" + strings.Repeat("ab", 32)
	base := func() *Manifest {
		return &Manifest{
			Version:   "1.0.0",
			Timestamp: "2026-08-01T12:00:00Z",
			Resources: map[string]ResourceEntry{"/a.js": {Hash: hash, Size: 1}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"control char in version", func(m *Manifest) { m.Version = "1.0\x01" }},
		{"newline in timestamp", func(m *Manifest) { m.Timestamp = "2026-08-01\n" }},
		{"control char in path", func(m *Manifest) {
			m.Resources["/a\x02.js"] = ResourceEntry{Hash: hash, Size: 1}
		}},
		{"replacement char in path", func(m *Manifest) {
			m.Resources["/�.js"] = ResourceEntry{Hash: hash, Size: 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			if err := m.Validate(); !errors.Is(err, ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseIgnoresUnknownFields(t *testing.T) {
	// An attacker-supplied key-like field decodes fine and changes nothing:
	// key selection comes only from the VerifySignature parameter.
	pub, priv, err := trust.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	m := testManifest(t)
	if err := m.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	wire, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	injected := bytes.Replace(wire, []byte(`"version"`),
		[]byte(`"publicKey": "attacker-chosen", "version"`), 1)
	parsed, err := Parse(injected)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := parsed.VerifySignature(pub); err != nil {
		t.Errorf("VerifySignature: %v", err)
	}

	c, err := parsed.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if bytes.Contains(c, []byte("attacker-chosen")) {
		t.Error("injected field reached the canonical form")
	}
}
