package track

import (
	"math"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/geom"
)

// Predict projects pos along v over the configured lookahead horizon.
// With prediction disabled or a non-positive horizon the input position
// is returned unchanged.
//
// When the extrapolated offset is longer than the max prediction
// distance, the offset is scaled by (max/d)^p instead of being clipped
// to the boundary. A hard clip puts a step into the corrective path as
// a fast target crosses the threshold; the power falloff keeps the path
// continuous and still never reaches past the limit.
func Predict(cfg config.Settings, pos geom.Point, v geom.Vec) geom.Point {
	if !cfg.PredictionEnabled || cfg.PredictionHorizon <= 0 {
		return pos
	}

	offset := v.Scale(cfg.PredictionHorizon.Seconds())
	d := offset.Len()
	if max := cfg.MaxPredictionDistance; d > max {
		offset = offset.Scale(math.Pow(max/d, cfg.FalloffPower))
	}
	return pos.Add(offset)
}
