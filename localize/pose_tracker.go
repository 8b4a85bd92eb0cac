package localize

import (
	"sync"
	"time"

	"github.com/crankler/aicp-mapping/spatialmath"
)

// PoseTracker maintains the current raw pose estimate and the running
// correction transform, composing them into a corrected pose on demand.
//
// One lock covers the raw pose, the motion baseline, and the running
// correction, so a corrected-pose read always observes a mutually consistent
// pair: never a raw pose combined with a correction from a different lock
// epoch.
type PoseTracker struct {
	mu sync.Mutex

	rawPose    spatialmath.Pose
	lastUpdate time.Time
	hasRaw     bool

	// acceptedBaseline is the raw pose of the most recently dispatched
	// batch; motion gating measures displacement against it.
	acceptedBaseline spatialmath.Pose

	// correction is always the single latest accepted alignment result, not
	// a running product: each batch's captured pose already encodes the full
	// raw trajectory, so a new correction replaces the old one outright.
	correction spatialmath.Pose
}

// NewPoseTracker returns a tracker holding identity poses and an identity
// running correction.
func NewPoseTracker() *PoseTracker {
	return &PoseTracker{
		rawPose:          spatialmath.NewZeroPose(),
		acceptedBaseline: spatialmath.NewZeroPose(),
		correction:       spatialmath.NewZeroPose(),
	}
}

// UpdateRawPose records the latest external pose estimate. The first update
// also fixes the motion baseline.
func (pt *PoseTracker) UpdateRawPose(pose spatialmath.Pose, t time.Time) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.rawPose = pose
	pt.lastUpdate = t
	if !pt.hasRaw {
		pt.acceptedBaseline = pose
		pt.hasRaw = true
	}
}

// RawPose returns the latest raw pose estimate.
func (pt *PoseTracker) RawPose() spatialmath.Pose {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.rawPose
}

// CorrectedPose returns correction ∘ rawPose, combined atomically.
func (pt *PoseTracker) CorrectedPose() spatialmath.Pose {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return spatialmath.Compose(pt.correction, pt.rawPose)
}

// ApplyCorrection atomically replaces the running correction. Called by the
// alignment worker after a successful alignment.
func (pt *PoseTracker) ApplyCorrection(correction spatialmath.Pose) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.correction = correction
}

// InitializeCorrection derives the one-time initial correction at first raw
// pose arrival. With a seed pose it is seed ∘ rawPose⁻¹, so the corrected
// pose starts exactly at the seed; with a nil seed it stays identity. It is
// fixed at that moment and thereafter only overwritten by ApplyCorrection.
func (pt *PoseTracker) InitializeCorrection(seed spatialmath.Pose) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if seed == nil {
		return
	}
	pt.correction = spatialmath.Compose(seed, spatialmath.PoseInverse(pt.rawPose))
}

// MotionSinceAccepted returns the displacement between the raw pose of the
// last dispatched batch and the current raw pose: the translation norm and
// the roll/pitch/yaw magnitudes of the relative motion.
func (pt *PoseTracker) MotionSinceAccepted() (float64, *spatialmath.EulerAngles) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	relative := spatialmath.PoseBetween(pt.acceptedBaseline, pt.rawPose)
	return relative.Point().Norm(), relative.Orientation().EulerAngles()
}

// AdvanceAccepted moves the motion baseline up to the current raw pose;
// called when a batch is dispatched.
func (pt *PoseTracker) AdvanceAccepted() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.acceptedBaseline = pt.rawPose
}
