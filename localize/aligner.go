package localize

import (
	"context"

	"github.com/crankler/aicp-mapping/pointcloud"
	"github.com/crankler/aicp-mapping/spatialmath"
)

// Alignment is the result of registering an accumulated cloud against the
// aligner's reference data.
type Alignment struct {
	// Correction maps the captured raw pose into the aligned frame. It
	// replaces, not composes with, any previously held correction.
	Correction spatialmath.Pose

	// Overlap is the estimated overlap ratio between the batch and the
	// reference data, in percent.
	Overlap float64
	// Alignability and Risk are only produced by engines that run a risk
	// predictor; nil until first computed.
	Alignability *float64
	Risk         *float64
}

// Aligner is the external registration collaborator. Align is treated as a
// long, uninterruptible computation: the worker never cancels it mid-flight.
// A returned error means the engine could not converge or rejected the
// batch; it is never fatal to the pipeline.
type Aligner interface {
	Align(ctx context.Context, cloud pointcloud.PointCloud, capturedPose spatialmath.Pose) (*Alignment, error)

	// SetReferenceMap hands the aligner a prior map to localize against.
	// The aligner owns all accumulated map/graph state; this is the only
	// piece of it visible to the pipeline.
	SetReferenceMap(cloud pointcloud.PointCloud)
}
