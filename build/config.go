package build

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the explicit configuration of a build. Every pipeline input
// flows through here; the pipeline reads no ambient globals and no
// environment variables.
type Config struct {
	// Version is the author-assigned manifest version string.
	Version string `yaml:"version"`
	// Origin is the canonical HTTPS origin the app is served from.
	Origin string `yaml:"origin"`
	// Entrypoints are files bundled as individual resources.
	Entrypoints []string `yaml:"entrypoints"`
	// StaticDir is an optional directory tree bundled recursively.
	StaticDir string `yaml:"static_dir"`
	// OutputDir receives the full artifact set.
	OutputDir string `yaml:"output_dir"`
	// PrivateKeyPath points at a PEM Ed25519 private key. Empty produces
	// an unsigned development build.
	PrivateKeyPath string `yaml:"private_key"`
	// PublicKeyPath optionally supplies the public key separately; when
	// empty it is derived from the private key.
	PublicKeyPath string `yaml:"public_key"`
	// UpdateMode is "locked" or "auto".
	UpdateMode string `yaml:"update_mode"`
	// Mirrors are alternate delivery bases recorded as per-resource URL
	// hints. Hints are unauthenticated and never signed.
	Mirrors []string `yaml:"mirrors"`
	// BootstrapTemplate overrides the embedded bootstrap template.
	BootstrapTemplate string `yaml:"bootstrap_template"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Version:    "0.0.0-dev",
		OutputDir:  "dist",
		UpdateMode: "auto",
	}
}

// LoadConfig reads a .moor.yaml configuration file. If the file does not
// exist, it returns DefaultConfig() without error. Returns an error only for
// malformed YAML or read failures.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields a build cannot proceed without.
func (c *Config) Validate() error {
	if c.Origin == "" {
		return errors.New("config: missing origin")
	}
	if len(c.Entrypoints) == 0 && c.StaticDir == "" {
		return errors.New("config: no entrypoints or static_dir")
	}
	if c.OutputDir == "" {
		return errors.New("config: missing output_dir")
	}
	if c.UpdateMode != "locked" && c.UpdateMode != "auto" {
		return fmt.Errorf("config: unknown update_mode %q", c.UpdateMode)
	}
	return nil
}
