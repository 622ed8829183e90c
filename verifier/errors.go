package verifier

import (
	"errors"
	"fmt"

	"github.com/moorhq/moor/manifest"
	"github.com/moorhq/moor/trust"
)

// ErrManifestUnreachable indicates the manifest could not be fetched.
var ErrManifestUnreachable = errors.New("manifest unreachable")

// ErrPinMismatch indicates a locked-mode installation received a manifest
// whose canonical digest differs from the pinned value.
var ErrPinMismatch = errors.New("manifest digest does not match pinned digest")

// ErrRender indicates the renderer rejected a fully verified resource set.
var ErrRender = errors.New("render failed")

// ErrNoPublicKey indicates the machine has no verification key and unsigned
// mode was not explicitly enabled. Verification never silently degrades.
var ErrNoPublicKey = errors.New("no public key configured and unsigned mode not enabled")

// HashMismatchError reports a resource whose fetched bytes do not match the
// digest declared in the verified manifest.
type HashMismatchError struct {
	Path     string
	Expected string
	Got      string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("resource %s: hash mismatch: expected %s, got %s", e.Path, e.Expected, e.Got)
}

// MissingResourceError reports a resource that could not be fetched from any
// candidate location.
type MissingResourceError struct {
	Path string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("resource %s: unavailable from all delivery locations", e.Path)
}

// IsIntegrityFailure reports whether err indicates tampered or forged
// content, as opposed to mere unavailability. Callers use this to present
// integrity failures distinctly: they may indicate active compromise, while
// unreachability may be an outage.
func IsIntegrityFailure(err error) bool {
	var hashErr *HashMismatchError
	return errors.Is(err, trust.ErrSignatureInvalid) ||
		errors.Is(err, ErrPinMismatch) ||
		errors.Is(err, manifest.ErrMalformed) ||
		errors.As(err, &hashErr)
}
