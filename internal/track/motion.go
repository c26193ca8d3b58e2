package track

import (
	"time"

	"github.com/kestrel-vision/followspot/internal/geom"
)

// Estimator derives instantaneous velocity from successive observations
// of the selected target. It is first order: only the most recent
// position and timestamp are kept, no history buffer. Observations are
// positional only; a re-selection that lands on the same moving target
// keeps differencing against the last seen position, so lock identity
// churn cannot zero the estimate mid-track. The loop resets the
// estimator whenever a tick ends with no target, which is the only
// point the position history goes stale.
type Estimator struct {
	last     geom.Point
	lastAt   time.Time
	seen     bool
	velocity geom.Vec
}

// NewEstimator returns an estimator with no observations.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Observe records the target position at now and returns the updated
// velocity in pixels per second. Velocity is zero until two positions
// have been observed. A zero or negative dt also yields zero, so a
// stalled loop cannot divide by zero or report an absurd speed on
// resume.
func (e *Estimator) Observe(pos geom.Point, now time.Time) geom.Vec {
	if !e.seen {
		e.last = pos
		e.lastAt = now
		e.seen = true
		e.velocity = geom.Vec{}
		return e.velocity
	}

	dt := now.Sub(e.lastAt).Seconds()
	if dt <= 0 {
		e.velocity = geom.Vec{}
	} else {
		e.velocity = pos.Sub(e.last).Scale(1 / dt)
	}
	e.last = pos
	e.lastAt = now
	return e.velocity
}

// Velocity returns the most recent estimate.
func (e *Estimator) Velocity() geom.Vec {
	return e.velocity
}

// Reset forgets all observations. The next Observe reports zero.
func (e *Estimator) Reset() {
	*e = Estimator{}
}
