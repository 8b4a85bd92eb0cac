package localize

import (
	"time"

	"github.com/crankler/aicp-mapping/pointcloud"
	"github.com/crankler/aicp-mapping/spatialmath"
)

// Scan is a single sensor sweep offered to the accumulator.
type Scan struct {
	Time  time.Time
	Cloud pointcloud.PointCloud
}

// Batch is one motion-gated unit of accumulated sensor data paired with the
// raw pose in effect at the moment accumulation finished. Batches are
// created once by the accumulation gate, consumed once by the alignment
// worker, and never mutated after creation.
type Batch struct {
	Time  time.Time
	Cloud pointcloud.PointCloud
	// Pose is the raw pose captured when the batch finished. It encodes the
	// full raw trajectory at capture time, which is what lets corrections
	// replace rather than compose with each other.
	Pose spatialmath.Pose
}

// Accumulator turns a stream of scans into finished 3D clouds. How scans
// become clouds is sensor specific and outside this package; implementations
// must be safe for use from a single producer goroutine.
type Accumulator interface {
	// Offer adds a scan to the accumulation in progress.
	Offer(scan Scan)
	// IsFinished reports whether a full batch has been accumulated.
	IsFinished() bool
	// FinishedAt returns the capture time of the finished batch.
	FinishedAt() time.Time
	// TakeCloud returns the accumulated cloud.
	TakeCloud() pointcloud.PointCloud
	// Count returns the number of scans accumulated so far.
	Count() int
	// Reset discards any accumulation in progress.
	Reset()
}
