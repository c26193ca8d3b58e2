// Package device holds the capability interfaces the pipeline talks to
// and their implementations: synthetic and file-backed frame sources
// for development and replay, a UDP source for a remote capture agent,
// and serial or logging actuators. The pipeline itself never touches a
// screen, a pointer, or a socket directly.
package device

import (
	"context"
	"errors"

	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// ErrNoFrame signals that no frame is available this tick. The tick is
// skipped; the condition is transient, not fatal.
var ErrNoFrame = errors.New("device: no frame available")

// ErrExhausted signals that a finite source has played out completely.
var ErrExhausted = errors.New("device: source exhausted")

// FrameSource produces square BGR frames anchored by the source itself.
type FrameSource interface {
	Grab(ctx context.Context) (*vision.Frame, error)
}

// Actuator accepts a relative move in integer device units. Fire and
// forget: there is no acknowledgment channel.
type Actuator interface {
	Move(dx, dy int) error
}

// ActivationSource reports whether the operator wants the loop engaged.
// Polled once per tick.
type ActivationSource interface {
	Engaged() bool
}

// StaticActivation is an ActivationSource pinned to one value.
type StaticActivation bool

// Engaged implements ActivationSource.
func (s StaticActivation) Engaged() bool { return bool(s) }

// ActivationFunc adapts a plain function to an ActivationSource.
type ActivationFunc func() bool

// Engaged implements ActivationSource.
func (f ActivationFunc) Engaged() bool { return f() }

// LogActuator writes each step to the package log instead of moving
// hardware. Useful for dry runs against a live frame source.
type LogActuator struct {
	moves int
}

// Move implements Actuator.
func (a *LogActuator) Move(dx, dy int) error {
	a.moves++
	monitoring.Logf("actuator: move dx=%d dy=%d (n=%d)", dx, dy, a.moves)
	return nil
}

// Moves returns how many steps have been issued.
func (a *LogActuator) Moves() int { return a.moves }

// QueueSource serves a fixed sequence of frames and then reports
// ErrExhausted. Replay tooling and tests feed it directly.
type QueueSource struct {
	frames []*vision.Frame
	idx    int
}

// NewQueueSource returns a source over the given frames.
func NewQueueSource(frames ...*vision.Frame) *QueueSource {
	return &QueueSource{frames: frames}
}

// Push appends a frame to the sequence.
func (q *QueueSource) Push(f *vision.Frame) {
	q.frames = append(q.frames, f)
}

// Grab implements FrameSource.
func (q *QueueSource) Grab(ctx context.Context) (*vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.idx >= len(q.frames) {
		return nil, ErrExhausted
	}
	f := q.frames[q.idx]
	q.idx++
	return f, nil
}
