package localize

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/crankler/aicp-mapping/pointcloud"
	"github.com/crankler/aicp-mapping/spatialmath"
)

// Publisher receives pipeline outputs. Implementations must tolerate being
// called from both the pose-update path and the background alignment worker.
type Publisher interface {
	PublishPose(pose spatialmath.Pose, t time.Time)
	PublishDiagnostics(d Diagnostics)
}

// Diagnostics is a snapshot of pipeline health, refreshed after each
// alignment. Pointer fields are nil until first computed.
type Diagnostics struct {
	Overlap      *float64
	Alignability *float64
	Risk         *float64

	QueueDropped      int64
	AlignmentFailures int64
}

// Pipeline wires the pose tracker, accumulation gate, batch queue, and
// alignment worker into one localization front end. It owns lifecycle
// gating: inputs arriving in the wrong state are rejected with an error
// rather than silently dropped.
type Pipeline struct {
	cfg       *Config
	lifecycle *lifecycle
	tracker   *PoseTracker
	queue     *BatchQueue
	gate      *AccumulationGate
	worker    *AlignmentWorker
	aligner   Aligner
	publisher Publisher
	logger    golog.Logger

	// seedMu covers the pending seed and map-loaded flag; the seed is read
	// once, on the first raw pose.
	seedMu    sync.Mutex
	seedPose  spatialmath.Pose
	mapLoaded bool

	diagMu sync.Mutex
	diag   Diagnostics
}

// NewPipeline assembles a pipeline from a validated config and its external
// collaborators. The publisher may be nil. If cfg.MapPath is set, the prior
// map is loaded before the pipeline is returned.
func NewPipeline(
	cfg *Config,
	accumulator Accumulator,
	aligner Aligner,
	publisher Publisher,
	logger golog.Logger,
) (*Pipeline, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	tracker := NewPoseTracker()
	queue := NewBatchQueue(cfg.maxQueueDepth(), clock.New())
	gate := NewAccumulationGate(
		accumulator,
		tracker,
		queue,
		cfg.distThreshold(),
		spatialmath.DegToRad(cfg.angleThresholdDeg()),
		logger,
	)
	p := &Pipeline{
		cfg:       cfg,
		lifecycle: newLifecycle(cfg.LocalizeAgainstMap),
		tracker:   tracker,
		queue:     queue,
		gate:      gate,
		aligner:   aligner,
		publisher: publisher,
		logger:    logger,
	}
	p.worker = NewAlignmentWorker(
		queue, tracker, gate, aligner, cfg.workerWait(), p.correctionApplied, logger)

	if cfg.MapPath != "" {
		if err := p.LoadMapFromFile(cfg.MapPath); err != nil {
			return nil, errors.Wrap(err, "loading prior map")
		}
	}
	return p, nil
}

// Start launches the alignment worker.
func (p *Pipeline) Start() {
	p.worker.Start()
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return p.lifecycle.State()
}

// UpdateRawPose feeds the latest external pose estimate into the pipeline.
// Rejected while a seed pose is still awaited. The first accepted pose fixes
// the initial correction from the pending seed, so the corrected trajectory
// starts at the seed. Every accepted update publishes the corrected pose.
func (p *Pipeline) UpdateRawPose(pose spatialmath.Pose, t time.Time) error {
	first, err := p.lifecycle.poseReceived()
	if err != nil {
		return err
	}
	p.tracker.UpdateRawPose(pose, t)
	if first {
		p.seedMu.Lock()
		seed := p.seedPose
		p.seedMu.Unlock()
		p.tracker.InitializeCorrection(seed)
		p.logger.Infow("tracking started", "seeded", seed != nil)
	}
	if p.publisher != nil {
		p.publisher.PublishPose(p.tracker.CorrectedPose(), t)
	}
	return nil
}

// OfferScan feeds a sensor sweep into the accumulation gate. Rejected until
// tracking has started, since a batch without a captured pose cannot be
// aligned.
func (p *Pipeline) OfferScan(scan Scan) error {
	if !p.lifecycle.tracking() {
		if p.lifecycle.State() == StateAwaitingSeed {
			return ErrAwaitingSeed
		}
		return ErrNotTracking
	}
	p.gate.OfferScan(scan)
	return nil
}

// SeedPose places the robot in the prior map before tracking starts. Only
// valid when localization against a prior map was requested, the map has
// been loaded, and tracking has not yet begun; it can be given once.
func (p *Pipeline) SeedPose(seed spatialmath.Pose) error {
	if !p.cfg.LocalizeAgainstMap {
		return ErrSeedNotAllowed
	}
	p.seedMu.Lock()
	loaded := p.mapLoaded
	p.seedMu.Unlock()
	if !loaded {
		return errors.New("prior map not loaded; cannot accept seed pose")
	}
	if err := p.lifecycle.seed(); err != nil {
		return err
	}
	p.seedMu.Lock()
	p.seedPose = seed
	p.seedMu.Unlock()
	pt := seed.Point()
	p.logger.Infow("seed pose set", "x", pt.X, "y", pt.Y, "z", pt.Z)
	return nil
}

// LoadMapFromFile reads a prior map and hands it to the aligner. Allowed
// only when localization against a prior map was requested and tracking has
// not started; re-loading before tracking replaces the previous map. On any
// error the previously loaded map stays in effect.
func (p *Pipeline) LoadMapFromFile(path string) error {
	if !p.cfg.LocalizeAgainstMap {
		return errors.New("prior-map localization not enabled")
	}
	if p.lifecycle.tracking() {
		return errors.New("cannot load a map after tracking has started")
	}
	cloud, err := pointcloud.NewFromFile(path, p.logger)
	if err != nil {
		return err
	}
	if cloud.Size() == 0 {
		return errors.Errorf("prior map %q is empty", path)
	}
	p.aligner.SetReferenceMap(cloud)
	p.seedMu.Lock()
	p.mapLoaded = true
	p.seedMu.Unlock()
	p.logger.Infow("prior map loaded", "path", path, "points", cloud.Size())
	return nil
}

// CorrectedPose returns the current best pose estimate.
func (p *Pipeline) CorrectedPose() spatialmath.Pose {
	return p.tracker.CorrectedPose()
}

// Diagnostics returns a snapshot of pipeline health counters and the latest
// alignment quality measures.
func (p *Pipeline) Diagnostics() Diagnostics {
	p.diagMu.Lock()
	d := p.diag
	p.diagMu.Unlock()
	d.QueueDropped = p.queue.Dropped()
	d.AlignmentFailures = p.worker.Failures()
	return d
}

// correctionApplied runs on the worker goroutine after each successful
// alignment.
func (p *Pipeline) correctionApplied(alignment *Alignment, batch *Batch) {
	p.diagMu.Lock()
	overlap := alignment.Overlap
	p.diag.Overlap = &overlap
	if alignment.Alignability != nil {
		p.diag.Alignability = alignment.Alignability
	}
	if alignment.Risk != nil {
		p.diag.Risk = alignment.Risk
	}
	p.diagMu.Unlock()

	if p.publisher != nil {
		p.publisher.PublishPose(p.tracker.CorrectedPose(), batch.Time)
		p.publisher.PublishDiagnostics(p.Diagnostics())
	}
}

// Close stops the alignment worker, waiting for any in-flight alignment.
func (p *Pipeline) Close() {
	p.worker.Close()
}
