package servo

import (
	"math"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/geom"
)

// VectorController is the alternate control law: it low-passes the
// normalized step direction across ticks and bounds the step magnitude
// by the tangent of a maximum correction angle, then scales to device
// units by a fixed gain. Unlike the proportional law it carries filter
// state, so a run must stick to one strategy.
type VectorController struct {
	cfg   config.Settings
	state geom.Vec // low-passed unit direction
}

// NewVectorController returns the direction low-pass strategy.
func NewVectorController(cfg config.Settings) *VectorController {
	return &VectorController{cfg: cfg}
}

// Name implements Controller.
func (v *VectorController) Name() string {
	return config.ControllerVector
}

// Correct implements Controller. Target size and speed do not enter
// this law; damping comes entirely from the direction filter.
func (v *VectorController) Correct(offset geom.Vec, area, speed float64) (int, int) {
	dir := offset.Unit()

	// A live direction is pulled in a notch softer than the decay
	// toward zero, so a flickering target cannot whip the filter.
	sm := v.cfg.VectorSmoothing
	if dir.Len() > 0.5 {
		sm *= 0.8
	}
	v.state.X += (dir.X - v.state.X) * sm
	v.state.Y += (dir.Y - v.state.Y) * sm

	step := v.state
	maxStep := math.Tan(v.cfg.MaxAngleCorrection * math.Pi / 180)
	if l := step.Len(); l > maxStep {
		step = step.Scale(maxStep / l)
	}

	return step.Scale(v.cfg.VectorGain).Trunc()
}

// Reset implements Controller.
func (v *VectorController) Reset() {
	v.state = geom.Vec{}
}
