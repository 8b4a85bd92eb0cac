package localize_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/crankler/aicp-mapping/localize"
	"github.com/crankler/aicp-mapping/localize/fake"
	"github.com/crankler/aicp-mapping/pointcloud"
	"github.com/crankler/aicp-mapping/spatialmath"
)

type workerHarness struct {
	tracker *localize.PoseTracker
	queue   *localize.BatchQueue
	acc     *fake.Accumulator
	gate    *localize.AccumulationGate
	aligner *fake.Aligner
	worker  *localize.AlignmentWorker
}

func newWorkerHarness(t *testing.T, aligner *fake.Aligner, onCorrection func(*localize.Alignment, *localize.Batch)) *workerHarness {
	t.Helper()
	logger := golog.NewTestLogger(t)
	tracker := localize.NewPoseTracker()
	queue := localize.NewBatchQueue(10, clock.New())
	acc := fake.NewAccumulator(1)
	gate := localize.NewAccumulationGate(acc, tracker, queue, 1.0, spatialmath.DegToRad(10), logger)
	worker := localize.NewAlignmentWorker(
		queue, tracker, gate, aligner, 50*time.Millisecond, onCorrection, logger)
	return &workerHarness{tracker, queue, acc, gate, aligner, worker}
}

func TestWorkerAppliesCorrection(t *testing.T) {
	correction := spatialmath.NewPoseFromPoint(r3.Vector{X: 0.5, Y: -1})
	aligner := &fake.Aligner{Correction: correction, Overlap: 80}

	var gotAlignment *localize.Alignment
	done := make(chan struct{})
	h := newWorkerHarness(t, aligner, func(a *localize.Alignment, b *localize.Batch) {
		gotAlignment = a
		close(done)
	})
	h.worker.Start()
	defer h.worker.Close()

	raw := spatialmath.NewPoseFromPoint(r3.Vector{X: 3})
	h.tracker.UpdateRawPose(raw, time.Now())
	h.queue.Push(&localize.Batch{Time: time.Now(), Cloud: pointcloud.New(), Pose: raw})

	<-done
	test.That(t, gotAlignment.Overlap, test.ShouldEqual, 80)
	want := spatialmath.Compose(correction, raw)
	test.That(t, spatialmath.PoseAlmostEqual(h.tracker.CorrectedPose(), want), test.ShouldBeTrue)
	test.That(t, h.worker.Failures(), test.ShouldEqual, 0)

	// A successful correction arms the gate clear: the next scan is dropped.
	h.gate.OfferScan(localize.Scan{Time: time.Now(), Cloud: pointcloud.New()})
	test.That(t, h.acc.Count(), test.ShouldEqual, 0)
	test.That(t, h.queue.Len(), test.ShouldEqual, 0)
}

func TestWorkerAlignmentFailure(t *testing.T) {
	aligner := &fake.Aligner{Err: errors.New("not enough overlap")}
	h := newWorkerHarness(t, aligner, nil)
	h.worker.Start()
	defer h.worker.Close()

	raw := spatialmath.NewPoseFromPoint(r3.Vector{X: 3})
	h.tracker.UpdateRawPose(raw, time.Now())
	h.queue.Push(&localize.Batch{Time: time.Now(), Cloud: pointcloud.New(), Pose: raw})

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, h.worker.Failures(), test.ShouldEqual, 1)
	})
	// The failed batch left the correction untouched.
	test.That(t, spatialmath.PoseAlmostEqual(h.tracker.CorrectedPose(), raw), test.ShouldBeTrue)
}

func TestWorkerDrainsBacklog(t *testing.T) {
	aligner := &fake.Aligner{}
	h := newWorkerHarness(t, aligner, nil)
	h.worker.Start()
	defer h.worker.Close()

	for i := 0; i < 5; i++ {
		h.queue.Push(&localize.Batch{
			Time:  time.Unix(int64(i), 0),
			Cloud: pointcloud.New(),
			Pose:  spatialmath.NewZeroPose(),
		})
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, aligner.AlignCalls(), test.ShouldEqual, 5)
		test.That(tb, h.queue.Len(), test.ShouldEqual, 0)
	})
}

func TestWorkerCloseIdlesCleanly(t *testing.T) {
	h := newWorkerHarness(t, &fake.Aligner{}, nil)
	h.worker.Start()
	// No batches were ever pushed; Close must still return.
	h.worker.Close()
}

func TestWorkerStartTwice(t *testing.T) {
	aligner := &fake.Aligner{}
	h := newWorkerHarness(t, aligner, nil)
	h.worker.Start()
	h.worker.Start()
	defer h.worker.Close()

	h.queue.Push(&localize.Batch{Time: time.Now(), Cloud: pointcloud.New(), Pose: spatialmath.NewZeroPose()})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, aligner.AlignCalls(), test.ShouldEqual, 1)
	})
}
