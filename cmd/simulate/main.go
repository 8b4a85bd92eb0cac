// Package main runs the localization pipeline against a synthetic circular
// trajectory with a drifting odometry source, printing corrected poses as
// the alignment worker pulls the estimate back onto the true circle.
package main

import (
	"context"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"github.com/crankler/aicp-mapping/localize"
	"github.com/crankler/aicp-mapping/localize/fake"
	"github.com/crankler/aicp-mapping/pointcloud"
	"github.com/crankler/aicp-mapping/spatialmath"
)

var logger = golog.NewDevelopmentLogger("simulate")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	DurationSec int `flag:"duration,default=10,usage=how long to simulate in seconds"`
	RadiusM     int `flag:"radius,default=5,usage=trajectory radius in meters"`
	DriftMmSec  int `flag:"drift,default=50,usage=odometry drift in mm/s"`
	BatchSize   int `flag:"batch-size,default=10,usage=scans per alignment batch"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	return simulate(ctx, argsParsed, logger)
}

// driftingOdometry produces poses on a circle plus an error growing linearly
// with time, mimicking wheel-odometry drift.
type driftingOdometry struct {
	radius, speed, driftRate float64
	start                    time.Time
}

func (o *driftingOdometry) truePose(now time.Time) spatialmath.Pose {
	elapsed := now.Sub(o.start).Seconds()
	theta := o.speed * elapsed / o.radius
	pt := r3.Vector{X: o.radius * math.Cos(theta), Y: o.radius * math.Sin(theta)}
	return spatialmath.NewPose(pt, &spatialmath.EulerAngles{Yaw: theta + math.Pi/2})
}

func (o *driftingOdometry) rawPose(now time.Time) spatialmath.Pose {
	elapsed := now.Sub(o.start).Seconds()
	drift := spatialmath.NewPoseFromPoint(r3.Vector{X: o.driftRate * elapsed})
	return spatialmath.Compose(drift, o.truePose(now))
}

func simulate(ctx context.Context, args Arguments, logger golog.Logger) error {
	odom := &driftingOdometry{
		radius:    float64(args.RadiusM),
		speed:     1,
		driftRate: float64(args.DriftMmSec) / 1000,
		start:     time.Now(),
	}

	// The oracle aligner knows the true pose, so its correction exactly
	// cancels the drift accumulated up to the batch's capture time.
	aligner := &fake.Aligner{
		AlignFunc: func(
			ctx context.Context,
			cloud pointcloud.PointCloud,
			capturedPose spatialmath.Pose,
		) (*localize.Alignment, error) {
			time.Sleep(100 * time.Millisecond) // registration is not instant
			return &localize.Alignment{
				Correction: spatialmath.Compose(odom.truePose(time.Now()), spatialmath.PoseInverse(capturedPose)),
				Overlap:    85,
			}, nil
		},
	}

	cfg := &localize.Config{
		MotionDistThresholdM: 0.5,
		MaxQueueDepth:        10,
		WorkerWaitMs:         200,
	}
	pipeline, err := localize.NewPipeline(cfg, fake.NewAccumulator(args.BatchSize), aligner, nil, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()
	pipeline.Start()

	deadline := time.Now().Add(time.Duration(args.DurationSec) * time.Second)
	for time.Now().Before(deadline) {
		if !utils.SelectContextOrWait(ctx, 50*time.Millisecond) {
			return ctx.Err()
		}
		now := time.Now()
		if err := pipeline.UpdateRawPose(odom.rawPose(now), now); err != nil {
			return err
		}

		scanCloud := pointcloud.New()
		pt := odom.truePose(now).Point()
		if err := scanCloud.Set(pointcloud.NewVector(pt.X, pt.Y, pt.Z), pointcloud.NewBasicData()); err != nil {
			return err
		}
		if err := pipeline.OfferScan(localize.Scan{Time: now, Cloud: scanCloud}); err != nil {
			return err
		}

		corrected := pipeline.CorrectedPose().Point()
		truth := odom.truePose(now).Point()
		logger.Infow("pose",
			"x", corrected.X, "y", corrected.Y,
			"error_m", corrected.Sub(truth).Norm(),
		)
	}

	d := pipeline.Diagnostics()
	logger.Infow("simulation done",
		"queue_dropped", d.QueueDropped,
		"alignment_failures", d.AlignmentFailures,
	)
	if d.Overlap != nil {
		logger.Infow("last alignment", "overlap", *d.Overlap)
	}
	return nil
}
