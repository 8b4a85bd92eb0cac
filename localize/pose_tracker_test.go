package localize

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/crankler/aicp-mapping/spatialmath"
)

func TestPoseTrackerCorrectedPose(t *testing.T) {
	pt := NewPoseTracker()
	test.That(t, spatialmath.PoseAlmostEqual(pt.CorrectedPose(), spatialmath.NewZeroPose()), test.ShouldBeTrue)

	raw := spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	pt.UpdateRawPose(raw, time.Now())
	test.That(t, spatialmath.PoseAlmostEqual(pt.CorrectedPose(), raw), test.ShouldBeTrue)

	correction := spatialmath.NewPoseFromPoint(r3.Vector{X: 10, Y: 0, Z: 0})
	pt.ApplyCorrection(correction)
	want := spatialmath.Compose(correction, raw)
	test.That(t, spatialmath.PoseAlmostEqual(pt.CorrectedPose(), want), test.ShouldBeTrue)
}

func TestPoseTrackerCorrectionReplaces(t *testing.T) {
	pt := NewPoseTracker()
	raw := spatialmath.NewPoseFromPoint(r3.Vector{X: 5, Y: 0, Z: 0})
	pt.UpdateRawPose(raw, time.Now())

	first := spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})
	second := spatialmath.NewPoseFromPoint(r3.Vector{X: 0, Y: 2, Z: 0})
	pt.ApplyCorrection(first)
	pt.ApplyCorrection(second)

	// The second correction fully supersedes the first; the two never stack.
	want := spatialmath.Compose(second, raw)
	test.That(t, spatialmath.PoseAlmostEqual(pt.CorrectedPose(), want), test.ShouldBeTrue)
	test.That(t, pt.CorrectedPose().Point().X, test.ShouldAlmostEqual, 5)
	test.That(t, pt.CorrectedPose().Point().Y, test.ShouldAlmostEqual, 2)
}

func TestPoseTrackerInitializeCorrection(t *testing.T) {
	pt := NewPoseTracker()
	raw := spatialmath.NewPose(
		r3.Vector{X: 1, Y: 1, Z: 0},
		&spatialmath.EulerAngles{Yaw: math.Pi / 4},
	)
	pt.UpdateRawPose(raw, time.Now())

	seed := spatialmath.NewPose(
		r3.Vector{X: -3, Y: 7, Z: 0.5},
		&spatialmath.EulerAngles{Yaw: -math.Pi / 2},
	)
	pt.InitializeCorrection(seed)

	// The corrected pose starts exactly at the seed.
	test.That(t, spatialmath.PoseAlmostEqual(pt.CorrectedPose(), seed), test.ShouldBeTrue)
}

func TestPoseTrackerInitializeCorrectionNilSeed(t *testing.T) {
	pt := NewPoseTracker()
	raw := spatialmath.NewPoseFromPoint(r3.Vector{X: 2, Y: 0, Z: 0})
	pt.UpdateRawPose(raw, time.Now())
	pt.InitializeCorrection(nil)
	test.That(t, spatialmath.PoseAlmostEqual(pt.CorrectedPose(), raw), test.ShouldBeTrue)
}

func TestPoseTrackerMotionSinceAccepted(t *testing.T) {
	pt := NewPoseTracker()
	start := spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})
	pt.UpdateRawPose(start, time.Now())

	// The first update is its own baseline.
	dist, rot := pt.MotionSinceAccepted()
	test.That(t, dist, test.ShouldAlmostEqual, 0)
	test.That(t, rot.Yaw, test.ShouldAlmostEqual, 0)

	moved := spatialmath.NewPose(
		r3.Vector{X: 4, Y: 4, Z: 0},
		&spatialmath.EulerAngles{Yaw: math.Pi / 6},
	)
	pt.UpdateRawPose(moved, time.Now())
	dist, rot = pt.MotionSinceAccepted()
	test.That(t, dist, test.ShouldAlmostEqual, 5)
	test.That(t, rot.Yaw, test.ShouldAlmostEqual, math.Pi/6, 1e-9)

	pt.AdvanceAccepted()
	dist, rot = pt.MotionSinceAccepted()
	test.That(t, dist, test.ShouldAlmostEqual, 0)
	test.That(t, rot.Yaw, test.ShouldAlmostEqual, 0, 1e-9)
}
