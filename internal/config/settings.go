// Package config defines the immutable per-tick configuration for the
// tracking pipeline. A Settings value is built once (defaults, then an
// optional overlay file or named profile) and passed explicitly into
// every component; nothing mutates it mid-tick.
package config

import (
	"fmt"
	"time"

	"github.com/kestrel-vision/followspot/internal/geom"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// Controller strategy names accepted by Settings.Controller.
const (
	ControllerProportional = "proportional"
	ControllerVector       = "vector"
)

// Settings holds every tunable parameter of the pipeline. Treat values
// as immutable: derive a new Settings via Overlay.Apply rather than
// editing fields on a shared value.
type Settings struct {
	// Capture geometry
	CaptureSize int // side length S of the square frame, pixels

	// Extraction
	MinTargetArea float64 // regions at or under this area are discarded
	MaxTargetArea float64 // area normalization ceiling for scoring and smoothing

	// Selection / lock
	LockWindow       time.Duration // how long a lock is honored without re-scoring
	LockRadius       float64       // positional match tolerance for lock continuity, pixels
	CenterWeight     float64
	SizeWeight       float64
	ContinuityWeight float64

	// Prediction
	PredictionEnabled     bool
	PredictionHorizon     time.Duration
	MaxPredictionDistance float64
	FalloffPower          float64 // > 1; power of the soft distance falloff

	// Smoothing (scalar law)
	BaseSmoothing     float64
	SizeSmoothing     float64
	DistanceSmoothing float64
	VelocitySmoothing float64
	SpeedNorm         float64 // speed magnitude mapping to factor 1.0
	MinCoefficient    float64
	MaxCoefficient    float64

	// Alternate vector law
	VectorSmoothing    float64 // low-pass factor on the step direction
	MaxAngleCorrection float64 // degrees; bounds the per-tick step magnitude
	VectorGain         float64 // device units per unit direction

	// Loop
	TickRate       float64 // ticks per second
	VerticalOffset float64 // added to the raw y offset before smoothing

	// Controller selects the smoothing strategy for the whole run.
	Controller string

	// TargetRanges are the HSV sub-ranges whose union segments the
	// target color. Two entries express a hue band that wraps zero.
	TargetRanges []vision.ColorRange
}

// Default returns the reference configuration: a 256 px capture
// tracking saturated red at 60 ticks per second.
func Default() Settings {
	return Settings{
		CaptureSize:           256,
		MinTargetArea:         50,
		MaxTargetArea:         2000,
		LockWindow:            300 * time.Millisecond,
		LockRadius:            3,
		CenterWeight:          0.4,
		SizeWeight:            0.3,
		ContinuityWeight:      0.3,
		PredictionEnabled:     true,
		PredictionHorizon:     100 * time.Millisecond,
		MaxPredictionDistance: 100,
		FalloffPower:          2,
		BaseSmoothing:         0.2,
		SizeSmoothing:         0.5,
		DistanceSmoothing:     0.3,
		VelocitySmoothing:     0.2,
		SpeedNorm:             1000,
		MinCoefficient:        0.1,
		MaxCoefficient:        1.0,
		VectorSmoothing:       0.3,
		MaxAngleCorrection:    30,
		VectorGain:            20,
		TickRate:              60,
		VerticalOffset:        30,
		Controller:            ControllerProportional,
		TargetRanges: []vision.ColorRange{
			{Lo: vision.HSV{H: 0, S: 150, V: 150}, Hi: vision.HSV{H: 10, S: 255, V: 255}},
			{Lo: vision.HSV{H: 160, S: 150, V: 150}, Hi: vision.HSV{H: 180, S: 255, V: 255}},
		},
	}
}

// Center returns the capture center point the corrective offset is
// measured from.
func (s Settings) Center() geom.Point {
	half := float64(s.CaptureSize) / 2
	return geom.Point{X: half, Y: half}
}

// TickBudget returns the wall-clock budget of one tick.
func (s Settings) TickBudget() time.Duration {
	if s.TickRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.TickRate)
}

// Validate checks invariants that would otherwise surface as silent
// misbehavior deep in the loop.
func (s Settings) Validate() error {
	if s.CaptureSize <= 0 {
		return fmt.Errorf("capture_size must be positive, got %d", s.CaptureSize)
	}
	if s.MinTargetArea < 0 {
		return fmt.Errorf("min_target_size must be non-negative, got %f", s.MinTargetArea)
	}
	if s.MaxTargetArea <= 0 {
		return fmt.Errorf("max_target_area must be positive, got %f", s.MaxTargetArea)
	}
	if s.LockWindow < 0 {
		return fmt.Errorf("lock_window_seconds must be non-negative, got %v", s.LockWindow)
	}
	if s.LockRadius < 0 {
		return fmt.Errorf("lock_radius must be non-negative, got %f", s.LockRadius)
	}
	for name, w := range map[string]float64{
		"center_weight":     s.CenterWeight,
		"size_weight":       s.SizeWeight,
		"continuity_weight": s.ContinuityWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, w)
		}
	}
	if s.MaxPredictionDistance < 0 {
		return fmt.Errorf("max_prediction_distance must be non-negative, got %f", s.MaxPredictionDistance)
	}
	if s.PredictionEnabled && s.FalloffPower <= 1 {
		return fmt.Errorf("falloff_power must be greater than 1, got %f", s.FalloffPower)
	}
	if s.SpeedNorm <= 0 {
		return fmt.Errorf("speed_norm must be positive, got %f", s.SpeedNorm)
	}
	if s.MinCoefficient < 0 || s.MaxCoefficient <= 0 || s.MinCoefficient > s.MaxCoefficient {
		return fmt.Errorf("coefficient bounds [%f, %f] are not ordered", s.MinCoefficient, s.MaxCoefficient)
	}
	if s.TickRate <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %f", s.TickRate)
	}
	switch s.Controller {
	case ControllerProportional, ControllerVector:
	default:
		return fmt.Errorf("controller must be %q or %q, got %q",
			ControllerProportional, ControllerVector, s.Controller)
	}
	if len(s.TargetRanges) == 0 {
		return fmt.Errorf("at least one color range is required")
	}
	return nil
}
