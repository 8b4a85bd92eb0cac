// Package localize implements the orchestration core of a lidar-aided
// localization pipeline. It fuses a stream of noisy pose priors with batches
// of accumulated range-sensor data: scans are accumulated into 3D clouds,
// motion-gated, queued across a thread boundary to a background alignment
// worker, and the worker's corrections are composed back into the live pose
// stream.
//
// The alignment algorithm itself, sensor-specific scan accumulation, and all
// transport are external collaborators consumed through the Aligner and
// Accumulator interfaces.
package localize
