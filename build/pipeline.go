// Package build implements the moor build pipeline. It runs a fixed sequence
// of steps, each feeding the next: bundle sources, load or derive keys,
// assemble the key-bearing bootstrap, hash resources, build and sign the
// manifest, and assemble the trust anchor. A failure at any step aborts the
// whole build; a partial artifact set is never published.
package build

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moorhq/moor/anchor"
	"github.com/moorhq/moor/manifest"
	"github.com/moorhq/moor/trust"
)

// StepError reports which pipeline step failed. The step name is stable and
// suitable for operator-facing output.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("build step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Artifacts is the complete output of one pipeline run.
type Artifacts struct {
	Manifest        *manifest.Manifest
	CanonicalDigest trust.Digest
	Bootstrap       []byte
	BootstrapDigest trust.Digest
	BootstrapName   string
	Anchor          *anchor.Anchor
	Resources       map[string][]byte
	// Unsigned is true for development builds with no private key.
	Unsigned bool
}

// Pipeline runs builds for a single configuration.
type Pipeline struct {
	cfg     *Config
	bundler Bundler
	logger  *slog.Logger
	now     func() time.Time
}

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*Pipeline)

// WithBundler replaces the default DirBundler.
func WithBundler(b Bundler) PipelineOption {
	return func(p *Pipeline) { p.bundler = b }
}

// WithLogger sets the logger for the pipeline.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the timestamp source, for reproducible builds.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline for cfg.
// Defaults: DirBundler from the config, slog.Default(), time.Now.
func NewPipeline(cfg *Config, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		bundler: &DirBundler{Entrypoints: cfg.Entrypoints, StaticDir: cfg.StaticDir},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func step(name string, err error) error {
	return &StepError{Step: name, Err: err}
}

// Run executes every pipeline step and writes the artifact set to the output
// directory. The write is all-or-nothing: artifacts are staged and swapped
// in only after every file has been written.
func (p *Pipeline) Run(ctx context.Context) (*Artifacts, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, step("config", err)
	}

	// Bundle application sources into named resources.
	blobs, err := p.bundler.Bundle(ctx)
	if err != nil {
		return nil, step("bundle", err)
	}
	p.logger.Info("bundled resources", "count", len(blobs))

	// Load the private key if configured; derive the public key from it
	// unless one was supplied separately.
	priv, pub, err := p.loadKeys()
	if err != nil {
		return nil, step("keys", err)
	}

	// Bootstrap: substitute the key into the template, then digest the
	// substituted bytes so the pin covers the key-bearing form.
	template, err := p.loadTemplate()
	if err != nil {
		return nil, step("bootstrap", err)
	}
	bootstrap, bootstrapDigest, err := anchor.Bootstrap(template, pub)
	if err != nil {
		return nil, step("bootstrap", err)
	}
	bootstrapName := anchor.BootstrapFilename(bootstrapDigest)

	// Manifest over the bundled resources. The bootstrap and the manifest
	// itself are excluded: the bootstrap is pinned by the anchor, and the
	// manifest cannot list itself.
	man, err := manifest.Build(p.cfg.Version, p.now(), blobs)
	if err != nil {
		return nil, step("manifest", err)
	}
	p.attachMirrorHints(man)

	arts := &Artifacts{
		Manifest:        man,
		Bootstrap:       bootstrap,
		BootstrapDigest: bootstrapDigest,
		BootstrapName:   bootstrapName,
		Resources:       blobs,
	}

	// Sign, or declare the build unsigned out loud.
	if priv != nil {
		if err := man.Sign(priv); err != nil {
			return nil, step("sign", err)
		}
	} else {
		p.logger.Warn("UNSIGNED BUILD: no private key configured, clients cannot authenticate this deployment")
		arts.Unsigned = true
	}

	// Canonical digest of the (possibly signed) manifest, for locked-mode
	// anchors. Signing does not change the canonical form.
	arts.CanonicalDigest, err = man.CanonicalDigest()
	if err != nil {
		return nil, step("manifest-digest", err)
	}

	// Trust anchor.
	mode := anchor.Mode(p.cfg.UpdateMode)
	var pin *trust.Digest
	if mode == anchor.ModeLocked {
		pin = &arts.CanonicalDigest
	}
	bootstrapURL := strings.TrimSuffix(p.cfg.Origin, "/") + "/" + bootstrapName
	arts.Anchor, err = anchor.Assemble(p.cfg.Origin, bootstrapURL, bootstrapDigest, mode, pin)
	if err != nil {
		return nil, step("anchor", err)
	}

	// Publish the full set atomically.
	if err := p.write(arts); err != nil {
		return nil, step("write", err)
	}

	p.logger.Info("build complete",
		"version", man.Version,
		"resources", len(man.Resources),
		"mode", mode,
		"signed", !arts.Unsigned,
		"output", p.cfg.OutputDir)
	return arts, nil
}

func (p *Pipeline) loadKeys() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if p.cfg.PrivateKeyPath == "" {
		if p.cfg.PublicKeyPath != "" {
			return nil, nil, fmt.Errorf("public key configured without a private key: cannot produce a verifiable build")
		}
		return nil, nil, nil
	}

	priv, err := trust.LoadPrivateKey(p.cfg.PrivateKeyPath)
	if err != nil {
		return nil, nil, err
	}

	if p.cfg.PublicKeyPath != "" {
		pub, err := trust.LoadPublicKey(p.cfg.PublicKeyPath)
		if err != nil {
			return nil, nil, err
		}
		derived, err := trust.PublicFromPrivate(priv)
		if err != nil {
			return nil, nil, err
		}
		if !derived.Equal(pub) {
			return nil, nil, fmt.Errorf("supplied public key does not match the private key")
		}
		return priv, pub, nil
	}

	pub, err := trust.PublicFromPrivate(priv)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func (p *Pipeline) loadTemplate() ([]byte, error) {
	if p.cfg.BootstrapTemplate == "" {
		return anchor.DefaultTemplate, nil
	}
	data, err := os.ReadFile(p.cfg.BootstrapTemplate)
	if err != nil {
		return nil, fmt.Errorf("reading bootstrap template: %w", err)
	}
	return data, nil
}

// attachMirrorHints records mirror delivery locations on each resource
// entry. Hints are outside the signed content, so this never touches the
// canonical form.
func (p *Pipeline) attachMirrorHints(man *manifest.Manifest) {
	if len(p.cfg.Mirrors) == 0 {
		return
	}
	for path, entry := range man.Resources {
		urls := make([]string, 0, len(p.cfg.Mirrors))
		for _, mirror := range p.cfg.Mirrors {
			urls = append(urls, strings.TrimSuffix(mirror, "/")+path)
		}
		entry.URLs = urls
		man.Resources[path] = entry
	}
}

// write stages the full artifact set next to the output directory and swaps
// it in with a rename, so a failed build never leaves a partial deploy.
func (p *Pipeline) write(arts *Artifacts) error {
	out := p.cfg.OutputDir
	stage := out + ".stage"

	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("clearing stage dir: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return fmt.Errorf("creating stage dir: %w", err)
	}
	defer os.RemoveAll(stage)

	writeFile := func(rel string, data []byte) error {
		dst := filepath.Join(stage, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644)
	}

	for path, data := range arts.Resources {
		if err := writeFile(path, data); err != nil {
			return fmt.Errorf("writing resource %s: %w", path, err)
		}
	}

	if err := writeFile("/"+arts.BootstrapName, arts.Bootstrap); err != nil {
		return fmt.Errorf("writing bootstrap: %w", err)
	}

	manData, err := arts.Manifest.Encode()
	if err != nil {
		return err
	}
	if err := writeFile("/manifest.json", manData); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	anchorData, err := arts.Anchor.EncodeJSON()
	if err != nil {
		return err
	}
	if err := writeFile("/anchor.json", anchorData); err != nil {
		return fmt.Errorf("writing anchor: %w", err)
	}

	// Set the previous deploy aside instead of deleting it, so a failed
	// swap can put it back.
	old := out + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clearing old dir: %w", err)
	}
	hadPrevious := false
	if _, err := os.Stat(out); err == nil {
		if err := os.Rename(out, old); err != nil {
			return fmt.Errorf("setting aside previous output: %w", err)
		}
		hadPrevious = true
	}
	if err := os.Rename(stage, out); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(old, out); restoreErr != nil {
				return fmt.Errorf("publishing output dir: %v (restoring previous output also failed: %v)", err, restoreErr)
			}
		}
		return fmt.Errorf("publishing output dir: %w", err)
	}
	if hadPrevious {
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("removing previous output: %w", err)
		}
	}
	return nil
}
