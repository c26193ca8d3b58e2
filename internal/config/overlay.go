package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kestrel-vision/followspot/internal/vision"
)

// Overlay is a partial settings document. Every field is a pointer so
// that a JSON file can override any subset of Settings and leave the
// rest untouched. The same schema is used for startup tuning files and
// for saved profiles.
type Overlay struct {
	// Capture and extraction params
	CaptureSize   *int     `json:"capture_size,omitempty"`
	MinTargetSize *float64 `json:"min_target_size,omitempty"`
	MaxTargetArea *float64 `json:"max_target_area,omitempty"`

	// Lock params
	LockWindowSeconds *float64 `json:"lock_window_seconds,omitempty"`
	LockRadius        *float64 `json:"lock_radius,omitempty"`
	CenterWeight      *float64 `json:"center_weight,omitempty"`
	SizeWeight        *float64 `json:"size_weight,omitempty"`
	ContinuityWeight  *float64 `json:"continuity_weight,omitempty"`

	// Prediction params
	PredictionEnabled        *bool    `json:"prediction_enabled,omitempty"`
	PredictionHorizonSeconds *float64 `json:"prediction_horizon_seconds,omitempty"`
	MaxPredictionDistance    *float64 `json:"max_prediction_distance,omitempty"`
	FalloffPower             *float64 `json:"falloff_power,omitempty"`

	// Smoothing params
	BaseSmoothing           *float64 `json:"base_smoothing,omitempty"`
	SizeSmoothingWeight     *float64 `json:"size_smoothing_weight,omitempty"`
	DistanceSmoothingWeight *float64 `json:"distance_smoothing_weight,omitempty"`
	VelocitySmoothingWeight *float64 `json:"velocity_smoothing_weight,omitempty"`
	SpeedNorm               *float64 `json:"speed_norm,omitempty"`
	MinCoefficient          *float64 `json:"min_coefficient,omitempty"`
	MaxCoefficient          *float64 `json:"max_coefficient,omitempty"`

	// Controller params
	Controller         *string  `json:"controller,omitempty"`
	VectorSmoothing    *float64 `json:"vector_smoothing,omitempty"`
	MaxAngleCorrection *float64 `json:"max_angle_correction,omitempty"`
	VectorGain         *float64 `json:"vector_gain,omitempty"`

	// Pipeline params
	TickRateHz     *float64 `json:"tick_rate_hz,omitempty"`
	VerticalOffset *float64 `json:"vertical_offset,omitempty"`

	// Segmentation params. A nil slice means "keep the current ranges";
	// a non-nil slice replaces them wholesale.
	ColorRanges []vision.ColorRange `json:"color_ranges,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// FromSettings captures every field of s into a fully populated Overlay.
// Applying the result over any base reproduces s exactly, which is what
// saved profiles rely on.
func FromSettings(s Settings) *Overlay {
	o := &Overlay{
		CaptureSize:              ptrInt(s.CaptureSize),
		MinTargetSize:            ptrFloat64(s.MinTargetArea),
		MaxTargetArea:            ptrFloat64(s.MaxTargetArea),
		LockWindowSeconds:        ptrFloat64(s.LockWindow.Seconds()),
		LockRadius:               ptrFloat64(s.LockRadius),
		CenterWeight:             ptrFloat64(s.CenterWeight),
		SizeWeight:               ptrFloat64(s.SizeWeight),
		ContinuityWeight:         ptrFloat64(s.ContinuityWeight),
		PredictionEnabled:        ptrBool(s.PredictionEnabled),
		PredictionHorizonSeconds: ptrFloat64(s.PredictionHorizon.Seconds()),
		MaxPredictionDistance:    ptrFloat64(s.MaxPredictionDistance),
		FalloffPower:             ptrFloat64(s.FalloffPower),
		BaseSmoothing:            ptrFloat64(s.BaseSmoothing),
		SizeSmoothingWeight:      ptrFloat64(s.SizeSmoothing),
		DistanceSmoothingWeight:  ptrFloat64(s.DistanceSmoothing),
		VelocitySmoothingWeight:  ptrFloat64(s.VelocitySmoothing),
		SpeedNorm:                ptrFloat64(s.SpeedNorm),
		MinCoefficient:           ptrFloat64(s.MinCoefficient),
		MaxCoefficient:           ptrFloat64(s.MaxCoefficient),
		Controller:               ptrString(s.Controller),
		VectorSmoothing:          ptrFloat64(s.VectorSmoothing),
		MaxAngleCorrection:       ptrFloat64(s.MaxAngleCorrection),
		VectorGain:               ptrFloat64(s.VectorGain),
		TickRateHz:               ptrFloat64(s.TickRate),
		VerticalOffset:           ptrFloat64(s.VerticalOffset),
	}
	if s.TargetRanges != nil {
		o.ColorRanges = append([]vision.ColorRange(nil), s.TargetRanges...)
	}
	return o
}

// Apply returns a copy of base with every non-nil overlay field applied.
// The base value is never mutated, so a failed validation downstream
// cannot leave the caller with a half-updated config.
func (o *Overlay) Apply(base Settings) Settings {
	s := base
	if o.CaptureSize != nil {
		s.CaptureSize = *o.CaptureSize
	}
	if o.MinTargetSize != nil {
		s.MinTargetArea = *o.MinTargetSize
	}
	if o.MaxTargetArea != nil {
		s.MaxTargetArea = *o.MaxTargetArea
	}
	if o.LockWindowSeconds != nil {
		s.LockWindow = time.Duration(*o.LockWindowSeconds * float64(time.Second))
	}
	if o.LockRadius != nil {
		s.LockRadius = *o.LockRadius
	}
	if o.CenterWeight != nil {
		s.CenterWeight = *o.CenterWeight
	}
	if o.SizeWeight != nil {
		s.SizeWeight = *o.SizeWeight
	}
	if o.ContinuityWeight != nil {
		s.ContinuityWeight = *o.ContinuityWeight
	}
	if o.PredictionEnabled != nil {
		s.PredictionEnabled = *o.PredictionEnabled
	}
	if o.PredictionHorizonSeconds != nil {
		s.PredictionHorizon = time.Duration(*o.PredictionHorizonSeconds * float64(time.Second))
	}
	if o.MaxPredictionDistance != nil {
		s.MaxPredictionDistance = *o.MaxPredictionDistance
	}
	if o.FalloffPower != nil {
		s.FalloffPower = *o.FalloffPower
	}
	if o.BaseSmoothing != nil {
		s.BaseSmoothing = *o.BaseSmoothing
	}
	if o.SizeSmoothingWeight != nil {
		s.SizeSmoothing = *o.SizeSmoothingWeight
	}
	if o.DistanceSmoothingWeight != nil {
		s.DistanceSmoothing = *o.DistanceSmoothingWeight
	}
	if o.VelocitySmoothingWeight != nil {
		s.VelocitySmoothing = *o.VelocitySmoothingWeight
	}
	if o.SpeedNorm != nil {
		s.SpeedNorm = *o.SpeedNorm
	}
	if o.MinCoefficient != nil {
		s.MinCoefficient = *o.MinCoefficient
	}
	if o.MaxCoefficient != nil {
		s.MaxCoefficient = *o.MaxCoefficient
	}
	if o.Controller != nil {
		s.Controller = *o.Controller
	}
	if o.VectorSmoothing != nil {
		s.VectorSmoothing = *o.VectorSmoothing
	}
	if o.MaxAngleCorrection != nil {
		s.MaxAngleCorrection = *o.MaxAngleCorrection
	}
	if o.VectorGain != nil {
		s.VectorGain = *o.VectorGain
	}
	if o.TickRateHz != nil {
		s.TickRate = *o.TickRateHz
	}
	if o.VerticalOffset != nil {
		s.VerticalOffset = *o.VerticalOffset
	}
	if o.ColorRanges != nil {
		s.TargetRanges = append([]vision.ColorRange(nil), o.ColorRanges...)
	}
	return s
}

// Validate checks the overlay fields that can be judged in isolation.
// Cross-field constraints are caught by Settings.Validate after Apply.
func (o *Overlay) Validate() error {
	if o.CaptureSize != nil && *o.CaptureSize <= 0 {
		return fmt.Errorf("capture_size must be positive, got %d", *o.CaptureSize)
	}
	if o.LockWindowSeconds != nil && *o.LockWindowSeconds < 0 {
		return fmt.Errorf("lock_window_seconds must be non-negative, got %f", *o.LockWindowSeconds)
	}
	if o.PredictionHorizonSeconds != nil && *o.PredictionHorizonSeconds < 0 {
		return fmt.Errorf("prediction_horizon_seconds must be non-negative, got %f", *o.PredictionHorizonSeconds)
	}
	if o.TickRateHz != nil && *o.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %f", *o.TickRateHz)
	}
	if o.Controller != nil {
		switch *o.Controller {
		case ControllerProportional, ControllerVector:
		default:
			return fmt.Errorf("unknown controller %q", *o.Controller)
		}
	}
	return nil
}

// LoadOverlay loads an Overlay from a JSON file. The file must have a
// .json extension and stay under the max file size. Fields omitted from
// the JSON keep their current values, so partial files are safe; keys
// the schema does not know are ignored.
func LoadOverlay(path string) (*Overlay, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("overlay file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat overlay file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("overlay file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay file: %w", err)
	}

	o := &Overlay{}
	if err := json.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("failed to parse overlay JSON: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid overlay: %w", err)
	}
	return o, nil
}
