package session

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Status strings recorded in the ticks table. The pipeline maps its
// tick results onto these before appending.
const (
	StatusIdle     = "idle"
	StatusNoFrame  = "no_frame"
	StatusNoTarget = "no_target"
	StatusHold     = "hold"
	StatusMove     = "move"
)

// Summary holds aggregate statistics for one session. Step statistics
// cover move ticks only; durations cover every recorded tick.
type Summary struct {
	SessionID       string         `json:"session_id"`
	Ticks           int            `json:"ticks"`
	Statuses        map[string]int `json:"statuses"`
	StepMean        float64        `json:"step_mean"`
	StepStdDev      float64        `json:"step_std_dev"`
	StepP50         float64        `json:"step_p50"`
	StepP85         float64        `json:"step_p85"`
	StepP95         float64        `json:"step_p95"`
	CoefficientMean float64        `json:"coefficient_mean"`
	DurationMeanMS  float64        `json:"duration_mean_ms"`
	DurationP95MS   float64        `json:"duration_p95_ms"`
}

// Summarize computes the aggregate statistics for a session.
func (s *Store) Summarize(sessionID string) (*Summary, error) {
	if _, err := s.Session(sessionID); err != nil {
		return nil, err
	}
	ticks, err := s.Ticks(sessionID, 0)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		SessionID: sessionID,
		Ticks:     len(ticks),
		Statuses:  make(map[string]int),
	}

	var steps, coeffs, durations []float64
	for _, t := range ticks {
		sum.Statuses[t.Status]++
		durations = append(durations, t.DurationMS)
		if t.Status == StatusMove {
			steps = append(steps, math.Hypot(float64(t.DX), float64(t.DY)))
			coeffs = append(coeffs, t.Coefficient)
		}
	}

	if len(steps) > 0 {
		sum.StepMean = stat.Mean(steps, nil)
		if len(steps) > 1 {
			sum.StepStdDev = stat.StdDev(steps, nil)
		}
		sort.Float64s(steps)
		sum.StepP50 = stat.Quantile(0.5, stat.Empirical, steps, nil)
		sum.StepP85 = stat.Quantile(0.85, stat.Empirical, steps, nil)
		sum.StepP95 = stat.Quantile(0.95, stat.Empirical, steps, nil)
	}
	if len(coeffs) > 0 {
		sum.CoefficientMean = stat.Mean(coeffs, nil)
	}
	if len(durations) > 0 {
		sum.DurationMeanMS = stat.Mean(durations, nil)
		sort.Float64s(durations)
		sum.DurationP95MS = stat.Quantile(0.95, stat.Empirical, durations, nil)
	}

	return sum, nil
}
