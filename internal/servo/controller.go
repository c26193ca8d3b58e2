// Package servo converts the raw corrective offset produced by the
// tracking stages into a damped actuation step in integer device
// units. Two control laws are available behind one interface; the
// strategy is fixed at construction and never switched mid-run.
package servo

import (
	"fmt"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/geom"
)

// Controller is the interface for all correction strategies.
type Controller interface {
	// Name returns the strategy name for logging and session records.
	Name() string

	// Correct damps the raw center-to-target offset and returns the
	// actuation step. area is the locked candidate's area in pixels,
	// speed the magnitude of its estimated velocity in px/s.
	Correct(offset geom.Vec, area, speed float64) (dx, dy int)

	// Reset clears internal filter state between engagements.
	Reset()
}

// CoefficientReporter is implemented by controllers whose damping
// reduces to a single scalar per tick. Callers that record tick
// telemetry check for it with a type assertion.
type CoefficientReporter interface {
	Coefficient(offset geom.Vec, area, speed float64) float64
}

// New returns the controller selected by cfg.Controller.
func New(cfg config.Settings) (Controller, error) {
	switch cfg.Controller {
	case config.ControllerProportional:
		return NewProportionalController(cfg), nil
	case config.ControllerVector:
		return NewVectorController(cfg), nil
	default:
		return nil, fmt.Errorf("unknown controller %q", cfg.Controller)
	}
}

// ProportionalController scales the offset by an adaptive coefficient.
// Large or fast targets get a responsive, lightly damped correction;
// small, far, slow targets get heavier damping to avoid overshoot.
// This is the primary control law.
type ProportionalController struct {
	cfg config.Settings
}

// NewProportionalController returns the scalar-coefficient strategy.
func NewProportionalController(cfg config.Settings) *ProportionalController {
	return &ProportionalController{cfg: cfg}
}

// Name implements Controller.
func (p *ProportionalController) Name() string {
	return config.ControllerProportional
}

// Correct implements Controller. The step is the offset scaled by the
// adaptive coefficient, truncated to whole device units.
func (p *ProportionalController) Correct(offset geom.Vec, area, speed float64) (int, int) {
	return offset.Scale(p.Coefficient(offset, area, speed)).Trunc()
}

// Coefficient computes the damping coefficient for the given inputs.
// Each factor is normalized and clamped to [0,1] before weighting, and
// the product is clamped to the configured coefficient bounds.
func (p *ProportionalController) Coefficient(offset geom.Vec, area, speed float64) float64 {
	size := clamp01(area / p.cfg.MaxTargetArea)
	distance := clamp01(offset.Len() / float64(p.cfg.CaptureSize))
	velocity := clamp01(speed / p.cfg.SpeedNorm)

	coeff := p.cfg.BaseSmoothing
	coeff *= 1 - p.cfg.SizeSmoothing*size
	coeff *= 1 + p.cfg.DistanceSmoothing*distance
	coeff *= 1 + p.cfg.VelocitySmoothing*velocity

	return clamp(coeff, p.cfg.MinCoefficient, p.cfg.MaxCoefficient)
}

// Reset implements Controller. The proportional law carries no state.
func (p *ProportionalController) Reset() {}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
