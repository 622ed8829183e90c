package verifier

import "fmt"

// State identifies a stage of the bootstrap verification machine. States are
// entered strictly in order; Failed is terminal and reachable from every
// state.
type State int

const (
	StateInit State = iota
	StateManifestFetching
	StateManifestVerifying
	StateLockedPinCheck
	StateResourcesFetching
	StateResourcesVerifying
	StateRendering
	StateDone
	StateFailed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateManifestFetching:
		return "manifest-fetching"
	case StateManifestVerifying:
		return "manifest-verifying"
	case StateLockedPinCheck:
		return "locked-pin-check"
	case StateResourcesFetching:
		return "resources-fetching"
	case StateResourcesVerifying:
		return "resources-verifying"
	case StateRendering:
		return "rendering"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
