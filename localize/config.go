package localize

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

const (
	defaultDistThresholdM    = 1.0
	defaultAngleThresholdDeg = 10.0
	defaultMaxQueueDepth     = 100
	defaultWorkerWait        = 500 * time.Millisecond
)

// Config describes how to configure the pipeline. Zero values for the
// numeric fields select the package defaults, so a literal zero threshold
// or wait cannot be configured.
type Config struct {
	// LocalizeAgainstMap requests localization against a prior map: the
	// pipeline then waits for a seed pose before tracking starts.
	LocalizeAgainstMap bool `json:"localize_against_prior_map"`
	// MapPath optionally names a prior map file to load at construction.
	MapPath string `json:"map_path"`

	// MotionDistThresholdM and MotionAngleThresholdDeg gate batch dispatch:
	// a finished batch is dispatched only if the displacement since the last
	// dispatched batch exceeds the distance threshold or any of
	// roll/pitch/yaw exceeds the angle threshold.
	MotionDistThresholdM    float64 `json:"motion_dist_threshold_m"`
	MotionAngleThresholdDeg float64 `json:"motion_angle_threshold_deg"`

	// MaxQueueDepth bounds the batch queue; overflow drops oldest first.
	MaxQueueDepth int `json:"max_queue_depth"`
	// WorkerWaitMs is how long the alignment worker waits for a batch
	// before re-checking for shutdown.
	WorkerWaitMs int `json:"worker_wait_ms"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.MotionDistThresholdM < 0 {
		return goutils.NewConfigValidationError(path, errors.New("motion_dist_threshold_m cannot be negative"))
	}
	if cfg.MotionAngleThresholdDeg < 0 {
		return goutils.NewConfigValidationError(path, errors.New("motion_angle_threshold_deg cannot be negative"))
	}
	if cfg.MaxQueueDepth < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_queue_depth cannot be negative"))
	}
	if cfg.WorkerWaitMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("worker_wait_ms cannot be negative"))
	}
	if cfg.MapPath != "" && !cfg.LocalizeAgainstMap {
		return goutils.NewConfigValidationError(path, errors.New("map_path requires localize_against_prior_map"))
	}
	return nil
}

// ConfigFromAttributes decodes a raw attribute map into a Config.
func ConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &cfg})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// distThreshold returns the motion distance threshold in meters.
func (cfg *Config) distThreshold() float64 {
	if cfg.MotionDistThresholdM == 0 {
		return defaultDistThresholdM
	}
	return cfg.MotionDistThresholdM
}

// angleThresholdDeg returns the motion angle threshold in degrees.
func (cfg *Config) angleThresholdDeg() float64 {
	if cfg.MotionAngleThresholdDeg == 0 {
		return defaultAngleThresholdDeg
	}
	return cfg.MotionAngleThresholdDeg
}

func (cfg *Config) maxQueueDepth() int {
	if cfg.MaxQueueDepth == 0 {
		return defaultMaxQueueDepth
	}
	return cfg.MaxQueueDepth
}

func (cfg *Config) workerWait() time.Duration {
	if cfg.WorkerWaitMs == 0 {
		return defaultWorkerWait
	}
	return time.Duration(cfg.WorkerWaitMs) * time.Millisecond
}
