package localize

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"
)

// AlignmentWorker is the single background consumer of the batch queue. It
// blocks until a batch is available, submits it to the aligner with the pose
// captured at batch-finish time, and publishes the resulting correction back
// to the pose tracker.
type AlignmentWorker struct {
	queue   *BatchQueue
	tracker *PoseTracker
	gate    *AccumulationGate
	aligner Aligner
	logger  golog.Logger

	waitTimeout time.Duration
	// onCorrection is invoked after a correction has been applied; used by
	// the pipeline to record diagnostics and publish. May be nil.
	onCorrection func(*Alignment, *Batch)

	failures atomic.Int64

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
	startOnce               sync.Once
}

// NewAlignmentWorker returns a worker ready to be started.
func NewAlignmentWorker(
	queue *BatchQueue,
	tracker *PoseTracker,
	gate *AccumulationGate,
	aligner Aligner,
	waitTimeout time.Duration,
	onCorrection func(*Alignment, *Batch),
	logger golog.Logger,
) *AlignmentWorker {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &AlignmentWorker{
		queue:        queue,
		tracker:      tracker,
		gate:         gate,
		aligner:      aligner,
		logger:       logger,
		waitTimeout:  waitTimeout,
		onCorrection: onCorrection,
		cancelCtx:    cancelCtx,
		cancelFunc:   cancelFunc,
	}
}

// Start launches the background loop. Calling Start more than once has no
// further effect.
func (w *AlignmentWorker) Start() {
	w.startOnce.Do(func() {
		w.activeBackgroundWorkers.Add(1)
		goutils.ManagedGo(w.loop, w.activeBackgroundWorkers.Done)
	})
}

func (w *AlignmentWorker) loop() {
	for {
		if err := w.cancelCtx.Err(); err != nil {
			return
		}
		batch, err := w.queue.Pop(w.cancelCtx, w.waitTimeout)
		if err != nil {
			if errors.Is(err, ErrWaitTimeout) {
				continue
			}
			if !errors.Is(err, context.Canceled) {
				w.logger.Errorw("unexpected error waiting for batch", "error", err)
			}
			return
		}
		w.processBatch(batch)
	}
}

// processBatch runs one alignment. The aligner gets a background context:
// once started, an alignment is never cancelled mid-flight, even during
// shutdown.
func (w *AlignmentWorker) processBatch(batch *Batch) {
	alignment, err := w.aligner.Align(context.Background(), batch.Cloud, batch.Pose)
	if err != nil {
		w.failures.Inc()
		w.logger.Warnw("alignment failed; discarding batch", "captured", batch.Time, "error", err)
		return
	}

	w.tracker.ApplyCorrection(alignment.Correction)
	// Restart accumulation on the corrected frame rather than mixing pre-
	// and post-correction scans.
	w.gate.RequestClear()
	if w.onCorrection != nil {
		w.onCorrection(alignment, batch)
	}
}

// Failures returns the number of batches discarded due to alignment errors.
func (w *AlignmentWorker) Failures() int64 {
	return w.failures.Load()
}

// Close signals shutdown and waits for the loop to exit, letting any
// in-flight alignment run to completion first.
func (w *AlignmentWorker) Close() {
	w.cancelFunc()
	w.queue.Wake()
	w.activeBackgroundWorkers.Wait()
}
