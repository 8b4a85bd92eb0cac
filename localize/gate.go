package localize

import (
	"math"
	"sync"

	"github.com/edaniels/golog"

	"github.com/crankler/aicp-mapping/spatialmath"
)

// AccumulationGate wraps the external accumulator, deciding whether each
// finished batch is worth dispatching. A batch is dispatched only if the
// robot moved enough since the last dispatched batch; near-duplicate batches
// from a stationary sensor carry no new information and are dropped.
//
// The suppression flag has its own narrow lock so that clearing requests from
// the alignment worker never block scan intake behind pose updates.
type AccumulationGate struct {
	accumulator Accumulator
	tracker     *PoseTracker
	queue       *BatchQueue
	logger      golog.Logger

	distThreshold  float64 // meters
	angleThreshold float64 // radians, per euler component

	clearMu      sync.Mutex
	clearPending bool
}

// NewAccumulationGate wires an accumulator to the queue under the given
// motion thresholds (translation meters, rotation radians).
func NewAccumulationGate(
	accumulator Accumulator,
	tracker *PoseTracker,
	queue *BatchQueue,
	distThreshold, angleThreshold float64,
	logger golog.Logger,
) *AccumulationGate {
	return &AccumulationGate{
		accumulator:    accumulator,
		tracker:        tracker,
		queue:          queue,
		logger:         logger,
		distThreshold:  distThreshold,
		angleThreshold: angleThreshold,
	}
}

// RequestClear arms a one-shot suppression consumed by the next OfferScan,
// so that accumulation restarts cleanly on the corrected frame instead of
// mixing pre- and post-correction scans. Called whenever a new correction
// lands.
func (g *AccumulationGate) RequestClear() {
	g.clearMu.Lock()
	g.clearPending = true
	g.clearMu.Unlock()
}

func (g *AccumulationGate) takeClearPending() bool {
	g.clearMu.Lock()
	defer g.clearMu.Unlock()
	pending := g.clearPending
	g.clearPending = false
	return pending
}

// OfferScan forwards a scan to the accumulator, or discards it and resets
// the accumulator if a clear was requested. When the accumulator reports a
// finished batch, the batch is motion-gated: dispatched to the queue if the
// displacement since the last dispatched batch exceeds either threshold,
// dropped otherwise. Either way accumulation restarts from empty and the
// consumer is woken.
func (g *AccumulationGate) OfferScan(scan Scan) {
	if g.takeClearPending() {
		if n := g.accumulator.Count(); n > 0 {
			g.logger.Debugw("clearing scan buffer after correction", "scans", n)
		}
		g.accumulator.Reset()
		return
	}
	g.accumulator.Offer(scan)

	if !g.accumulator.IsFinished() {
		return
	}
	// Wake the consumer even when nothing is enqueued, so a worker waiting
	// on the terminal batch is not left hanging.
	defer g.queue.Wake()

	dist, rot := g.tracker.MotionSinceAccepted()
	if dist > g.distThreshold ||
		math.Abs(rot.Roll) > g.angleThreshold ||
		math.Abs(rot.Pitch) > g.angleThreshold ||
		math.Abs(rot.Yaw) > g.angleThreshold {
		batch := &Batch{
			Time:  g.accumulator.FinishedAt(),
			Cloud: g.accumulator.TakeCloud(),
			Pose:  g.tracker.RawPose(),
		}
		g.tracker.AdvanceAccepted()
		g.logger.Debugw("dispatching batch",
			"points", batch.Cloud.Size(), "dist", dist, "captured", batch.Time)
		g.queue.Push(batch)
	} else {
		// Not enough motion: the accumulated data is discarded outright,
		// not extended toward a larger batch. A slowly moving robot can
		// keep finishing batches that never dispatch.
		g.logger.Debugw("discarding low-motion batch",
			"dist", dist,
			"roll_deg", spatialmath.RadToDeg(rot.Roll),
			"pitch_deg", spatialmath.RadToDeg(rot.Pitch),
			"yaw_deg", spatialmath.RadToDeg(rot.Yaw))
	}
	g.accumulator.Reset()
}
