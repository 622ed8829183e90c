package verifier

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moorhq/moor/manifest"
	"github.com/moorhq/moor/trust"
)

// testDeploy is a signed deployment served over httptest, with mutable
// content so individual tests can tamper with it.
type testDeploy struct {
	srv   *httptest.Server
	pub   ed25519.PublicKey
	priv  ed25519.PrivateKey
	man   *manifest.Manifest
	mu    sync.Mutex
	files map[string][]byte
	seen  map[string]bool
}

func newTestDeploy(t *testing.T) *testDeploy {
	t.Helper()

	pub, priv, err := trust.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	d := &testDeploy{
		pub:  pub,
		priv: priv,
		files: map[string][]byte{
			"/a.js":  []byte("console.log('a')"),
			"/b.css": []byte("body{}"),
		},
		seen: make(map[string]bool),
	}

	man, err := manifest.Build("1.0.0", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), map[string][]byte{
		"/a.js":  d.files["/a.js"],
		"/b.css": d.files["/b.css"],
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := man.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	d.man = man
	d.publishManifest(t)

	d.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.seen[r.URL.Path] = true
		data, ok := d.files[r.URL.Path]
		d.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *testDeploy) publishManifest(t *testing.T) {
	t.Helper()
	data, err := d.man.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	d.mu.Lock()
	d.files["/manifest.json"] = data
	d.mu.Unlock()
}

func (d *testDeploy) manifestURL() string {
	return d.srv.URL + "/manifest.json"
}

func (d *testDeploy) requested(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[path]
}

// captureRenderer records what reaches the render stage.
type captureRenderer struct {
	mu        sync.Mutex
	resources map[string][]byte
	err       error
}

func (r *captureRenderer) Render(_ context.Context, resources map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = resources
	return r.err
}

func TestRunSucceedsAutoMode(t *testing.T) {
	d := newTestDeploy(t)
	renderer := &captureRenderer{}

	var transitions []State
	m := New(d.manifestURL(),
		WithPublicKey(d.pub),
		WithRenderer(renderer),
		WithTransitions(func(s State) { transitions = append(transitions, s) }),
	)

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("State = %v, want done", res.State)
	}
	if res.Unsigned {
		t.Error("signed run marked unsigned")
	}
	if len(res.Resources) != 2 {
		t.Errorf("len(Resources) = %d, want 2", len(res.Resources))
	}
	if string(renderer.resources["/a.js"]) != "console.log('a')" {
		t.Error("renderer did not receive verified resource bytes")
	}

	want := []State{
		StateInit, StateManifestFetching, StateManifestVerifying,
		StateResourcesFetching, StateResourcesVerifying, StateRendering, StateDone,
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestRunWrongKey(t *testing.T) {
	d := newTestDeploy(t)
	otherPub, _, err := trust.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	res, err := New(d.manifestURL(), WithPublicKey(otherPub)).Run(context.Background())
	if !errors.Is(err, trust.ErrSignatureInvalid) {
		t.Errorf("error = %v, want ErrSignatureInvalid", err)
	}
	if res.State != StateFailed {
		t.Errorf("State = %v, want failed", res.State)
	}
	if res.Resources != nil {
		t.Error("failed run must not expose resources")
	}
	if !IsIntegrityFailure(err) {
		t.Error("signature failure should classify as integrity failure")
	}
}

func TestRunLockedModeAcceptsPinnedManifest(t *testing.T) {
	d := newTestDeploy(t)
	pin, err := d.man.CanonicalDigest()
	if err != nil {
		t.Fatalf("CanonicalDigest: %v", err)
	}

	res, err := New(d.manifestURL(),
		WithPublicKey(d.pub),
		WithLockedPin(pin.Hex),
	).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("State = %v, want done", res.State)
	}
}

func TestRunLockedModeRejectsNewSignedManifest(t *testing.T) {
	d := newTestDeploy(t)
	pin, err := d.man.CanonicalDigest()
	if err != nil {
		t.Fatalf("CanonicalDigest: %v", err)
	}

	// Publish a new, validly signed release: different content, new digest.
	d.files["/a.js"] = []byte("console.log('a v2')")
	man2, err := manifest.Build("2.0.0", time.Now(), map[string][]byte{
		"/a.js":  d.files["/a.js"],
		"/b.css": d.files["/b.css"],
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := man2.Sign(d.priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	d.man = man2
	d.publishManifest(t)

	_, err = New(d.manifestURL(),
		WithPublicKey(d.pub),
		WithLockedPin(pin.Hex),
	).Run(context.Background())
	if !errors.Is(err, ErrPinMismatch) {
		t.Errorf("error = %v, want ErrPinMismatch", err)
	}

	// The same new manifest is fine in auto mode.
	res, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(context.Background())
	if err != nil {
		t.Fatalf("auto mode Run: %v", err)
	}
	if res.Manifest.Version != "2.0.0" {
		t.Errorf("Version = %q, want 2.0.0", res.Manifest.Version)
	}
}

func TestRunDetectsTamperedResource(t *testing.T) {
	d := newTestDeploy(t)

	// Tamper with served bytes after signing; same length so the size
	// pre-check passes and the digest comparison has to catch it.
	d.mu.Lock()
	d.files["/a.js"] = []byte("console.log('A')")
	d.mu.Unlock()

	_, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(context.Background())
	var hashErr *HashMismatchError
	if !errors.As(err, &hashErr) {
		t.Fatalf("error = %v, want HashMismatchError", err)
	}
	if hashErr.Path != "/a.js" {
		t.Errorf("Path = %q, want /a.js", hashErr.Path)
	}
	if hashErr.Expected == hashErr.Got {
		t.Error("expected and got digests should differ")
	}
	if !IsIntegrityFailure(err) {
		t.Error("hash mismatch should classify as integrity failure")
	}
}

func TestRunDetectsTruncatedResource(t *testing.T) {
	d := newTestDeploy(t)
	d.mu.Lock()
	d.files["/a.js"] = []byte("short")
	d.mu.Unlock()

	_, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(context.Background())
	var hashErr *HashMismatchError
	if !errors.As(err, &hashErr) {
		t.Fatalf("error = %v, want HashMismatchError", err)
	}
}

func TestRunMissingResource(t *testing.T) {
	d := newTestDeploy(t)
	d.mu.Lock()
	delete(d.files, "/b.css")
	d.mu.Unlock()

	_, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(context.Background())
	var missErr *MissingResourceError
	if !errors.As(err, &missErr) {
		t.Fatalf("error = %v, want MissingResourceError", err)
	}
	if missErr.Path != "/b.css" {
		t.Errorf("Path = %q, want /b.css", missErr.Path)
	}
	if IsIntegrityFailure(err) {
		t.Error("missing resource should not classify as integrity failure")
	}
}

func TestRunManifestUnreachable(t *testing.T) {
	d := newTestDeploy(t)

	_, err := New(d.srv.URL+"/nope.json", WithPublicKey(d.pub)).Run(context.Background())
	if !errors.Is(err, ErrManifestUnreachable) {
		t.Errorf("error = %v, want ErrManifestUnreachable", err)
	}
	if IsIntegrityFailure(err) {
		t.Error("unreachable manifest should not classify as integrity failure")
	}
}

func TestRunMalformedManifest(t *testing.T) {
	d := newTestDeploy(t)
	d.mu.Lock()
	d.files["/manifest.json"] = []byte(`{"version":""}`)
	d.mu.Unlock()

	_, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(context.Background())
	if !errors.Is(err, manifest.ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestRunNoKeyFailsClosed(t *testing.T) {
	d := newTestDeploy(t)

	_, err := New(d.manifestURL()).Run(context.Background())
	if !errors.Is(err, ErrNoPublicKey) {
		t.Errorf("error = %v, want ErrNoPublicKey", err)
	}
}

func TestRunAllowUnsigned(t *testing.T) {
	d := newTestDeploy(t)
	d.man.Signature = ""
	d.publishManifest(t)

	res, err := New(d.manifestURL(), WithAllowUnsigned()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Unsigned {
		t.Error("Result.Unsigned should be true")
	}
	if res.State != StateDone {
		t.Errorf("State = %v, want done", res.State)
	}
}

func TestRunNeverFetchesUnlistedResources(t *testing.T) {
	d := newTestDeploy(t)
	d.mu.Lock()
	d.files["/evil.js"] = []byte("alert(1)")
	d.mu.Unlock()

	if _, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.requested("/evil.js") {
		t.Error("verifier fetched a resource not listed in the manifest")
	}
}

func TestRunFallsBackAcrossDeliveryHints(t *testing.T) {
	d := newTestDeploy(t)

	// First hint is a dead mirror; the origin path must still satisfy the
	// fetch because the hash, not the location, is the trust input.
	entry := d.man.Resources["/a.js"]
	entry.URLs = []string{"http://127.0.0.1:1/a.js"}
	d.man.Resources["/a.js"] = entry
	d.publishManifest(t)

	res, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Resources["/a.js"]) != "console.log('a')" {
		t.Error("fallback fetch returned wrong bytes")
	}
}

func TestRunRenderError(t *testing.T) {
	d := newTestDeploy(t)
	renderer := &captureRenderer{err: errors.New("boom")}

	_, err := New(d.manifestURL(), WithPublicKey(d.pub), WithRenderer(renderer)).Run(context.Background())
	if !errors.Is(err, ErrRender) {
		t.Errorf("error = %v, want ErrRender", err)
	}
}

func TestRunCanceledContext(t *testing.T) {
	d := newTestDeploy(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(d.manifestURL(), WithPublicKey(d.pub)).Run(ctx)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if res.State != StateFailed {
		t.Errorf("State = %v, want failed", res.State)
	}
	if res.Resources != nil {
		t.Error("canceled run must not expose resources")
	}
}

func TestStateString(t *testing.T) {
	for s := StateInit; s <= StateFailed; s++ {
		if strings.HasPrefix(s.String(), "State(") {
			t.Errorf("state %d has no name", int(s))
		}
	}
}
