// Package verifier implements the bootstrap verification sequence: fetch the
// manifest, check its signature against the embedded key, enforce the
// locked-mode digest pin, fetch and hash-verify every listed resource, and
// only then render. Every stage fails closed; partially verified content
// never reaches the renderer.
//
// The machine assumes it runs in an isolated execution target; how that
// isolation is achieved is a platform concern outside this package.
package verifier

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"

	"github.com/moorhq/moor/anchor"
	"github.com/moorhq/moor/manifest"
)

// defaultConcurrency bounds parallel resource fetches within a run.
const defaultConcurrency = 4

// Renderer receives the fully verified resource set. Render is called at
// most once per run and never with a partial set.
type Renderer interface {
	Render(ctx context.Context, resources map[string][]byte) error
}

// Machine is a single-use bootstrap verification run. Each load of an
// installation is an independent machine against a freshly fetched manifest;
// no state is shared between runs and nothing is cached.
type Machine struct {
	manifestURL   string
	publicKey     ed25519.PublicKey
	allowUnsigned bool
	mode          anchor.Mode
	pinnedDigest  string // hex of the pinned canonical manifest digest, locked mode only
	fetcher       Fetcher
	renderer      Renderer
	logger        *slog.Logger
	onTransition  func(State)
	concurrency   int
}

// Option is a functional option for configuring a Machine.
type Option func(*Machine)

// WithPublicKey sets the embedded verification key. The machine sources its
// key from here and nowhere else; fields inside the fetched manifest have no
// influence on key selection.
func WithPublicKey(pub ed25519.PublicKey) Option {
	return func(m *Machine) { m.publicKey = pub }
}

// WithAllowUnsigned permits running without a verification key. This is the
// explicit development escape hatch: it is never implied, and the machine
// logs a loud warning every time it is exercised.
func WithAllowUnsigned() Option {
	return func(m *Machine) { m.allowUnsigned = true }
}

// WithLockedPin puts the machine in locked mode, pinned to the given
// canonical manifest digest (hex).
func WithLockedPin(digestHex string) Option {
	return func(m *Machine) {
		m.mode = anchor.ModeLocked
		m.pinnedDigest = digestHex
	}
}

// WithFetcher sets the transport used for manifest and resource fetches.
func WithFetcher(f Fetcher) Option {
	return func(m *Machine) { m.fetcher = f }
}

// WithRenderer sets the renderer that receives the verified resource set.
func WithRenderer(r Renderer) Option {
	return func(m *Machine) { m.renderer = r }
}

// WithLogger sets the logger for the machine.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithTransitions registers a callback invoked on every state entry, for
// surfacing progress to a UI layer.
func WithTransitions(fn func(State)) Option {
	return func(m *Machine) { m.onTransition = fn }
}

// WithConcurrency bounds parallel resource fetches.
func WithConcurrency(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// New creates a verification machine for the manifest at manifestURL.
// Defaults: auto mode, NewHTTPFetcher(), slog.Default(), no renderer.
func New(manifestURL string, opts ...Option) *Machine {
	m := &Machine{
		manifestURL: manifestURL,
		mode:        anchor.ModeAuto,
		fetcher:     NewHTTPFetcher(),
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Result is the outcome of a verification run.
type Result struct {
	State State
	// Reason carries the failure when State is StateFailed.
	Reason error
	// Manifest is the parsed manifest once signature verification (or the
	// explicit unsigned escape hatch) has passed.
	Manifest *manifest.Manifest
	// Resources holds the verified bytes of every listed resource. It is
	// populated only when all resources passed; there is no partial set.
	Resources map[string][]byte
	// Unsigned is true when the run proceeded without a verification key.
	Unsigned bool
}

// Run executes the verification sequence. It returns a Result in every case;
// the error is non-nil exactly when the machine reached StateFailed. There
// are no retries: a failed run is terminal, and callers wanting a retry
// start a fresh machine.
func (m *Machine) Run(ctx context.Context) (*Result, error) {
	res := &Result{State: StateInit}
	m.transition(res, StateInit)

	// Manifest fetch.
	m.transition(res, StateManifestFetching)
	raw, err := m.fetcher.Fetch(ctx, m.manifestURL)
	if err != nil {
		return m.fail(res, fmt.Errorf("%w: %v", ErrManifestUnreachable, err))
	}

	// Signature verification against the embedded key.
	m.transition(res, StateManifestVerifying)
	man, err := manifest.Parse(raw)
	if err != nil {
		return m.fail(res, err)
	}
	switch {
	case m.publicKey != nil:
		if err := man.VerifySignature(m.publicKey); err != nil {
			return m.fail(res, err)
		}
	case m.allowUnsigned:
		m.logger.Warn("NO VERIFICATION KEY: accepting unsigned manifest, content is NOT authenticated",
			"manifest", m.manifestURL)
		res.Unsigned = true
	default:
		return m.fail(res, ErrNoPublicKey)
	}
	res.Manifest = man

	// Locked-mode pin check. Auto mode accepts any signature-valid
	// manifest, so the state is skipped entirely.
	if m.mode == anchor.ModeLocked {
		m.transition(res, StateLockedPinCheck)
		digest, err := man.CanonicalDigest()
		if err != nil {
			return m.fail(res, err)
		}
		if digest.Hex != m.pinnedDigest {
			return m.fail(res, fmt.Errorf("%w: pinned %s, got %s", ErrPinMismatch, m.pinnedDigest, digest.Hex))
		}
	}

	// Resource fetch and hash verification.
	m.transition(res, StateResourcesFetching)
	fetched, err := m.fetchResources(ctx, man)
	if err != nil {
		return m.fail(res, err)
	}
	m.transition(res, StateResourcesVerifying)
	if err := m.verifyResources(ctx, man, fetched); err != nil {
		return m.fail(res, err)
	}
	res.Resources = fetched

	// Render. Failures surface but are not retried.
	m.transition(res, StateRendering)
	if m.renderer != nil {
		if err := m.renderer.Render(ctx, fetched); err != nil {
			return m.fail(res, fmt.Errorf("%w: %v", ErrRender, err))
		}
	}

	m.transition(res, StateDone)
	return res, nil
}

func (m *Machine) transition(res *Result, s State) {
	res.State = s
	m.logger.Debug("state", "state", s.String())
	if m.onTransition != nil {
		m.onTransition(s)
	}
}

func (m *Machine) fail(res *Result, reason error) (*Result, error) {
	res.State = StateFailed
	res.Reason = reason
	res.Resources = nil
	m.logger.Error("verification failed", "reason", reason)
	if m.onTransition != nil {
		m.onTransition(StateFailed)
	}
	return res, reason
}
