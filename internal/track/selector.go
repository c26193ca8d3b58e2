// Package track owns the per-tick target state: which candidate is
// locked, how fast it is moving, and where it is expected to be a short
// horizon from now. All state here is mutated exactly once per tick by
// the pipeline loop; there is no internal locking.
package track

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/geom"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// Lock is the currently tracked candidate. The ID is stable for as long
// as the lock is retained; a fresh ID marks a re-selection.
type Lock struct {
	ID         string
	Position   geom.Point
	Area       float64
	AcquiredAt time.Time
}

// Selector chooses at most one candidate per tick, favoring continuity
// of an existing lock over re-optimizing every frame.
type Selector struct {
	cfg  config.Settings
	lock *Lock
}

// NewSelector returns a selector with no lock held.
func NewSelector(cfg config.Settings) *Selector {
	return &Selector{cfg: cfg}
}

// Select decides which candidate to track this tick. Candidates must be
// in extractor order (area descending); ties in score break toward the
// earlier entry. Returns nil when candidates is empty.
//
// A held lock is kept, regardless of other candidates' scores, when a
// candidate sits within the match radius of its last position and the
// lock is younger than the lock window. The acquisition timestamp moves
// only when a new candidate is selected, never on retention.
func (s *Selector) Select(candidates []vision.Candidate, now time.Time) *Lock {
	if len(candidates) == 0 {
		// The lock survives empty frames until the retention window
		// runs out, so a brief dropout does not force a re-selection.
		if s.lock != nil && now.Sub(s.lock.AcquiredAt) >= s.cfg.LockWindow {
			s.lock = nil
		}
		return nil
	}

	if s.lock != nil && now.Sub(s.lock.AcquiredAt) < s.cfg.LockWindow {
		if i, ok := s.match(candidates); ok {
			s.lock.Position = candidates[i].Position
			s.lock.Area = candidates[i].Area
			return s.snapshot()
		}
	}

	best := 0
	bestScore := s.score(candidates[0])
	for i := 1; i < len(candidates); i++ {
		if sc := s.score(candidates[i]); sc > bestScore {
			best, bestScore = i, sc
		}
	}

	s.lock = &Lock{
		ID:         fmt.Sprintf("lock_%s", uuid.NewString()),
		Position:   candidates[best].Position,
		Area:       candidates[best].Area,
		AcquiredAt: now,
	}
	return s.snapshot()
}

// match finds the candidate nearest the lock's last position within the
// match radius. Exact list membership would break the lock on a single
// pixel of centroid drift between ticks.
func (s *Selector) match(candidates []vision.Candidate) (int, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range candidates {
		d := geom.Distance(c.Position, s.lock.Position)
		if d <= s.cfg.LockRadius && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

// score rates a candidate by proximity to the capture center, size, and
// proximity to the last locked position. The continuity term is zero
// when no lock has been held.
func (s *Selector) score(c vision.Candidate) float64 {
	centerScore := 1 / (1 + geom.Distance(c.Position, s.cfg.Center()))
	sizeScore := math.Min(c.Area/s.cfg.MaxTargetArea, 1)

	continuityScore := 0.0
	if s.lock != nil {
		continuityScore = 1 / (1 + geom.Distance(c.Position, s.lock.Position))
	}

	return s.cfg.CenterWeight*centerScore +
		s.cfg.SizeWeight*sizeScore +
		s.cfg.ContinuityWeight*continuityScore
}

// Current returns a copy of the held lock, or nil if none is held.
func (s *Selector) Current() *Lock {
	if s.lock == nil {
		return nil
	}
	return s.snapshot()
}

// Reset drops the held lock.
func (s *Selector) Reset() {
	s.lock = nil
}

func (s *Selector) snapshot() *Lock {
	l := *s.lock
	return &l
}
