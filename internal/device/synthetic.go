package device

import (
	"context"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/noise"

	"github.com/kestrel-vision/followspot/internal/geom"
	"github.com/kestrel-vision/followspot/internal/timeutil"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// Blob is one scripted target in a synthetic scene: a filled square in
// world coordinates moving at a constant velocity, bouncing off the
// world bounds.
type Blob struct {
	Pos  geom.Point // center, world px
	Vel  geom.Vec   // world px/s
	Side float64    // square side length, px
	B    uint8
	G    uint8
	R    uint8
}

// RedBlob returns a stationary saturated-red blob, the color the
// default segmentation ranges are tuned for.
func RedBlob(x, y, side float64) Blob {
	return Blob{
		Pos:  geom.Point{X: x, Y: y},
		Side: side,
		B:    40, G: 40, R: 230,
	}
}

// SyntheticOptions configures a SyntheticRig.
type SyntheticOptions struct {
	CaptureSize int
	WorldSize   int            // world side length; defaults to 4x capture
	Pointer     geom.Point     // initial window anchor; defaults to world center
	Blobs       []Blob
	Clock       timeutil.Clock // defaults to the real clock
	Noise       float64        // 0 disables; 1 is full-range gaussian pixel noise
	Engaged     bool
}

// SyntheticRig is an in-process stand-in for the capture and actuation
// devices: a flat world of scripted blobs, a pointer that the actuator
// drags around, and a capture window centered on the pointer. It closes
// the control loop without any hardware, which is what the end-to-end
// tests and the dev mode of the daemon run against.
//
// SyntheticRig implements FrameSource, Actuator, and ActivationSource.
type SyntheticRig struct {
	mu sync.Mutex

	size    int
	world   int
	pointer geom.Point
	blobs   []Blob
	clock   timeutil.Clock
	noise   float64
	engaged bool

	lastGrab  time.Time
	grabbed   bool
	moves     int
	failGrabs int
}

// NewSyntheticRig builds a rig from opts, applying defaults for any
// zero field.
func NewSyntheticRig(opts SyntheticOptions) *SyntheticRig {
	size := opts.CaptureSize
	if size <= 0 {
		size = 256
	}
	world := opts.WorldSize
	if world <= 0 {
		world = 4 * size
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	pointer := opts.Pointer
	if pointer == (geom.Point{}) {
		pointer = geom.Point{X: float64(world) / 2, Y: float64(world) / 2}
	}

	return &SyntheticRig{
		size:    size,
		world:   world,
		pointer: pointer,
		blobs:   append([]Blob(nil), opts.Blobs...),
		clock:   clock,
		noise:   opts.Noise,
		engaged: opts.Engaged,
	}
}

// Grab implements FrameSource: advance the scene by the elapsed wall
// time, then render the capture window centered on the pointer.
func (r *SyntheticRig) Grab(ctx context.Context) (*vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failGrabs > 0 {
		r.failGrabs--
		return nil, ErrNoFrame
	}

	now := r.clock.Now()
	if r.grabbed {
		r.advance(now.Sub(r.lastGrab).Seconds())
	}
	r.lastGrab = now
	r.grabbed = true

	return r.render(), nil
}

// advance moves every blob by dt seconds, bouncing at the world edges.
func (r *SyntheticRig) advance(dt float64) {
	if dt <= 0 {
		return
	}
	limit := float64(r.world)
	for i := range r.blobs {
		b := &r.blobs[i]
		b.Pos = b.Pos.Add(b.Vel.Scale(dt))
		if b.Pos.X < 0 {
			b.Pos.X, b.Vel.X = -b.Pos.X, -b.Vel.X
		}
		if b.Pos.X > limit {
			b.Pos.X, b.Vel.X = 2*limit-b.Pos.X, -b.Vel.X
		}
		if b.Pos.Y < 0 {
			b.Pos.Y, b.Vel.Y = -b.Pos.Y, -b.Vel.Y
		}
		if b.Pos.Y > limit {
			b.Pos.Y, b.Vel.Y = 2*limit-b.Pos.Y, -b.Vel.Y
		}
	}
}

// render paints the window anchored at the pointer. Background is dark
// gray so the segmenter sees no false positives from it.
func (r *SyntheticRig) render() *vision.Frame {
	f := vision.NewFrame(r.size)
	for y := 0; y < r.size; y++ {
		for x := 0; x < r.size; x++ {
			f.Set(x, y, 30, 30, 30)
		}
	}

	half := float64(r.size) / 2
	topLeftX := r.pointer.X - half
	topLeftY := r.pointer.Y - half

	for _, b := range r.blobs {
		h := b.Side / 2
		x0 := int(b.Pos.X - h - topLeftX)
		y0 := int(b.Pos.Y - h - topLeftY)
		for dy := 0; dy < int(b.Side); dy++ {
			for dx := 0; dx < int(b.Side); dx++ {
				x, y := x0+dx, y0+dy
				if x < 0 || x >= r.size || y < 0 || y >= r.size {
					continue
				}
				f.Set(x, y, b.B, b.G, b.R)
			}
		}
	}

	if r.noise > 0 {
		r.addNoise(f)
	}
	return f
}

// addNoise mixes monochrome gaussian noise into the frame, scaled by
// the configured amplitude.
func (r *SyntheticRig) addNoise(f *vision.Frame) {
	n := noise.Generate(r.size, r.size, &noise.Options{
		NoiseFn:    noise.Gaussian,
		Monochrome: true,
	})
	for y := 0; y < r.size; y++ {
		for x := 0; x < r.size; x++ {
			d := int(float64(int(n.RGBAAt(x, y).R)-128) * r.noise)
			b, g, rr := f.At(x, y)
			f.Set(x, y, clampU8(int(b)+d), clampU8(int(g)+d), clampU8(int(rr)+d))
		}
	}
}

func clampU8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Move implements Actuator: the pointer drags by (dx, dy), pinned to
// the world bounds.
func (r *SyntheticRig) Move(dx, dy int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.moves++
	r.pointer.X = clampF(r.pointer.X+float64(dx), 0, float64(r.world))
	r.pointer.Y = clampF(r.pointer.Y+float64(dy), 0, float64(r.world))
	return nil
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Engaged implements ActivationSource.
func (r *SyntheticRig) Engaged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engaged
}

// SetEngaged flips the simulated activation input.
func (r *SyntheticRig) SetEngaged(engaged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engaged = engaged
}

// Pointer returns the current window anchor in world coordinates.
func (r *SyntheticRig) Pointer() geom.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pointer
}

// Blobs returns a copy of the current blob states.
func (r *SyntheticRig) Blobs() []Blob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Blob(nil), r.blobs...)
}

// Moves returns how many actuation steps have been applied.
func (r *SyntheticRig) Moves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moves
}

// FailGrabs makes the next n Grab calls report ErrNoFrame, simulating
// a flaky capture device.
func (r *SyntheticRig) FailGrabs(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failGrabs = n
}
