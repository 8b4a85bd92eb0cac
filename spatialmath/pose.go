// Package spatialmath defines spatial mathematical operations for rigid 3D transforms.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Pose represents a rigid transform in 3D euclidean space: a rotation paired
// with a translation. Poses are immutable values; all operations return new
// poses. Composition is left-multiplication, so Compose(correction, raw)
// applies correction to raw.
type Pose interface {
	// Point returns the translation component.
	Point() r3.Vector
	// Orientation returns the rotation component.
	Orientation() Orientation
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return newDualQuaternion()
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}
	q := newDualQuaternionFromRotation(o)
	q.SetTranslation(p)
	return q
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
// It will have the same orientation as the zero orientation.
func NewPoseFromPoint(point r3.Vector) Pose {
	q := newDualQuaternion()
	q.SetTranslation(point)
	return q
}

// NewPoseFromOrientation takes in an orientation and returns a Pose with
// no translation.
func NewPoseFromOrientation(o Orientation) Pose {
	if o == nil {
		return NewZeroPose()
	}
	return newDualQuaternionFromRotation(o)
}

// Compose returns the composition a ∘ b, the pose produced by applying a
// to b. Composition does not commute.
func Compose(a, b Pose) Pose {
	return dualQuaternionFromPose(a).Transformation(dualQuaternionFromPose(b))
}

// PoseInverse returns the pose that undoes the given pose, so that
// Compose(PoseInverse(p), p) is the identity.
func PoseInverse(p Pose) Pose {
	return dualQuaternionFromPose(p).Invert()
}

// PoseBetween returns the difference between two poses: the pose that when
// applied to a yields b, i.e. a⁻¹ ∘ b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseAlmostEqual will return a bool describing whether 2 poses are
// approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostCoincidentEps(a, b, 1e-8) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// PoseAlmostCoincidentEps will return a bool describing whether 2 poses have
// approximately the same translation, within the given epsilon.
func PoseAlmostCoincidentEps(a, b Pose, epsilon float64) bool {
	ptA, ptB := a.Point(), b.Point()
	return math.Abs(ptA.X-ptB.X) < epsilon &&
		math.Abs(ptA.Y-ptB.Y) < epsilon &&
		math.Abs(ptA.Z-ptB.Z) < epsilon
}
