// Package fake provides in-memory accumulator and aligner implementations
// for tests and simulation.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"github.com/crankler/aicp-mapping/localize"
	"github.com/crankler/aicp-mapping/pointcloud"
	"github.com/crankler/aicp-mapping/spatialmath"
)

// Accumulator merges scan clouds and reports a finished batch once a fixed
// number of scans has been offered.
type Accumulator struct {
	// BatchSize is how many scans make a finished batch.
	BatchSize int

	cloud      pointcloud.PointCloud
	count      int
	finishedAt time.Time
}

// NewAccumulator returns an accumulator finishing every batchSize scans.
func NewAccumulator(batchSize int) *Accumulator {
	return &Accumulator{BatchSize: batchSize, cloud: pointcloud.New()}
}

// Offer merges the scan's cloud into the accumulation in progress.
func (a *Accumulator) Offer(scan localize.Scan) {
	if scan.Cloud != nil {
		scan.Cloud.Iterate(func(p r3.Vector, d pointcloud.Data) bool {
			utils.UncheckedError(a.cloud.Set(p, d))
			return true
		})
	}
	a.count++
	a.finishedAt = scan.Time
}

// IsFinished reports whether enough scans have been accumulated.
func (a *Accumulator) IsFinished() bool {
	return a.count >= a.BatchSize
}

// FinishedAt returns the time of the last offered scan.
func (a *Accumulator) FinishedAt() time.Time {
	return a.finishedAt
}

// TakeCloud returns the accumulated cloud.
func (a *Accumulator) TakeCloud() pointcloud.PointCloud {
	return a.cloud
}

// Count returns the number of scans accumulated so far.
func (a *Accumulator) Count() int {
	return a.count
}

// Reset discards the accumulation in progress.
func (a *Accumulator) Reset() {
	a.cloud = pointcloud.New()
	a.count = 0
	a.finishedAt = time.Time{}
}

// Aligner returns canned alignment results and records what it was asked to
// align. Safe for concurrent use.
type Aligner struct {
	mu sync.Mutex

	// Correction is returned from every Align call; identity if nil.
	Correction spatialmath.Pose
	// Overlap, Alignability, and Risk populate the returned Alignment.
	Overlap      float64
	Alignability *float64
	Risk         *float64
	// Err, when set, makes Align fail.
	Err error
	// AlignFunc, when set, overrides the canned behavior entirely.
	AlignFunc func(ctx context.Context, cloud pointcloud.PointCloud, capturedPose spatialmath.Pose) (*localize.Alignment, error)

	alignCalls    int
	lastReference pointcloud.PointCloud
}

// Align returns the configured result.
func (a *Aligner) Align(
	ctx context.Context,
	cloud pointcloud.PointCloud,
	capturedPose spatialmath.Pose,
) (*localize.Alignment, error) {
	a.mu.Lock()
	a.alignCalls++
	fn := a.AlignFunc
	err := a.Err
	correction := a.Correction
	result := &localize.Alignment{
		Overlap:      a.Overlap,
		Alignability: a.Alignability,
		Risk:         a.Risk,
	}
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, cloud, capturedPose)
	}
	if err != nil {
		return nil, err
	}
	if correction == nil {
		correction = spatialmath.NewZeroPose()
	}
	result.Correction = correction
	return result, nil
}

// SetReferenceMap records the prior map.
func (a *Aligner) SetReferenceMap(cloud pointcloud.PointCloud) {
	a.mu.Lock()
	a.lastReference = cloud
	a.mu.Unlock()
}

// AlignCalls returns how many times Align was invoked.
func (a *Aligner) AlignCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alignCalls
}

// ReferenceMap returns the most recently set prior map, or nil.
func (a *Aligner) ReferenceMap() pointcloud.PointCloud {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastReference
}
