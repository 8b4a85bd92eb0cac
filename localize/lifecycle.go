package localize

import (
	"sync"

	"github.com/pkg/errors"
)

// State is the lifecycle gating when pose updates, scan intake, and map
// (re)loading are permitted. States advance one way; no state is revisited.
type State int

const (
	// StateAwaitingSeed means a prior-map localization was requested and the
	// pipeline is waiting for a seed pose placing the robot in the map.
	// Pose updates and scan intake are rejected.
	StateAwaitingSeed State = iota
	// StateAwaitingFirstPose means the pipeline is waiting for the first raw
	// pose, which fixes the initial correction. Scan intake is rejected.
	StateAwaitingFirstPose
	// StateTracking is terminal: poses and scans are processed normally and
	// seed or map-reload requests are rejected.
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateAwaitingSeed:
		return "awaiting_seed"
	case StateAwaitingFirstPose:
		return "awaiting_first_pose"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

var (
	// ErrAwaitingSeed is returned for inputs arriving before the seed pose is set.
	ErrAwaitingSeed = errors.New("seed pose in map not set; waiting for seed")
	// ErrSeedNotAllowed is returned for a seed pose arriving when none is expected.
	ErrSeedNotAllowed = errors.New("seed pose cannot be set in the current state")
	// ErrNotTracking is returned for scans arriving before the first raw pose.
	ErrNotTracking = errors.New("pose not initialized; waiting for pose prior")
)

// lifecycle is a small one-way state machine; all methods are safe for
// concurrent use.
type lifecycle struct {
	mu    sync.Mutex
	state State
}

// newLifecycle returns a lifecycle in StateAwaitingSeed when a prior-map
// localization was requested, and in StateAwaitingFirstPose otherwise.
func newLifecycle(awaitSeed bool) *lifecycle {
	state := StateAwaitingFirstPose
	if awaitSeed {
		state = StateAwaitingSeed
	}
	return &lifecycle{state: state}
}

func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// seed records the one allowed seed transition.
func (l *lifecycle) seed() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateAwaitingSeed {
		return ErrSeedNotAllowed
	}
	l.state = StateAwaitingFirstPose
	return nil
}

// poseReceived advances to StateTracking on the first accepted raw pose.
// The first return is true exactly once, for the update that triggered the
// transition.
func (l *lifecycle) poseReceived() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateAwaitingSeed:
		return false, ErrAwaitingSeed
	case StateAwaitingFirstPose:
		l.state = StateTracking
		return true, nil
	default:
		return false, nil
	}
}

// tracking reports whether scan intake is currently permitted.
func (l *lifecycle) tracking() bool {
	return l.State() == StateTracking
}
