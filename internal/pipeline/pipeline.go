// Package pipeline runs the closed tracking loop: poll activation, grab
// a frame, segment, extract, select, estimate, predict, smooth, actuate.
// The stages run strictly in sequence; all tracker state is owned by the
// loop goroutine and mutated exactly once per tick. Other goroutines
// (the monitor web server) only read snapshots through Last and Frames.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/device"
	"github.com/kestrel-vision/followspot/internal/geom"
	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/internal/servo"
	"github.com/kestrel-vision/followspot/internal/session"
	"github.com/kestrel-vision/followspot/internal/timeutil"
	"github.com/kestrel-vision/followspot/internal/track"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// Status classifies how a tick ended.
type Status int

const (
	// TickIdle: the activation source reports disengaged; nothing was
	// captured and no state advanced.
	TickIdle Status = iota

	// TickNoFrame: the frame source had nothing this tick. Treated as
	// an empty candidate set; the lock ages toward its window.
	TickNoFrame

	// TickNoTarget: a frame was processed but no candidate survived
	// extraction and selection.
	TickNoTarget

	// TickHold: a target is locked but the damped step truncated to
	// (0,0), so no move was issued.
	TickHold

	// TickMove: a corrective step was sent to the actuator.
	TickMove
)

// String returns the status name used in session records and the
// monitor API.
func (s Status) String() string {
	switch s {
	case TickIdle:
		return session.StatusIdle
	case TickNoFrame:
		return session.StatusNoFrame
	case TickNoTarget:
		return session.StatusNoTarget
	case TickHold:
		return session.StatusHold
	case TickMove:
		return session.StatusMove
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// TickResult reports everything one tick did. Zero-valued fields are
// meaningful only for statuses that reach the corresponding stage: Lock
// is nil until a target is selected, DX/DY are zero unless the status
// is TickMove.
type TickResult struct {
	Seq         int64
	At          time.Time
	Status      Status
	Candidates  int
	Extract     vision.ExtractStats
	Lock        *track.Lock
	Velocity    geom.Vec
	Predicted   geom.Point
	Coefficient float64
	DX, DY      int
	Duration    time.Duration
}

// Config wires a pipeline. Source and Actuator are required. A nil
// Activation runs permanently engaged, a nil Clock uses the wall clock,
// a nil Store disables session recording.
type Config struct {
	Settings   config.Settings
	Source     device.FrameSource
	Actuator   device.Actuator
	Activation device.ActivationSource
	Clock      timeutil.Clock
	Store      *session.Store

	// SourceLabel names the frame source in the session row
	// ("synthetic", "udp", "images", ...).
	SourceLabel string

	// OnTick, when set, observes every completed tick result. It runs
	// on the loop goroutine, so it must not block.
	OnTick func(TickResult)
}

// Pipeline is the per-tick orchestrator. Construct with New, then
// either drive it tick by tick (replay) or let Run pace it.
type Pipeline struct {
	cfg         config.Settings
	source      device.FrameSource
	actuator    device.Actuator
	activation  device.ActivationSource
	clock       timeutil.Clock
	store       *session.Store
	sourceLabel string
	onTick      func(TickResult)

	selector   *track.Selector
	estimator  *track.Estimator
	controller servo.Controller

	seq     int64
	engaged bool

	mu        sync.Mutex
	sessionID string
	last      TickResult
	lastFrame *vision.Frame
	lastMask  *vision.Mask
}

// New validates the configuration and assembles a pipeline.
func New(c Config) (*Pipeline, error) {
	if err := c.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if c.Source == nil {
		return nil, fmt.Errorf("frame source is required")
	}
	if c.Actuator == nil {
		return nil, fmt.Errorf("actuator is required")
	}
	controller, err := servo.New(c.Settings)
	if err != nil {
		return nil, err
	}

	activation := c.Activation
	if activation == nil {
		activation = device.StaticActivation(true)
	}
	clock := c.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &Pipeline{
		cfg:         c.Settings,
		source:      c.Source,
		actuator:    c.Actuator,
		activation:  activation,
		clock:       clock,
		store:       c.Store,
		sourceLabel: c.SourceLabel,
		onTick:      c.OnTick,
		selector:    track.NewSelector(c.Settings),
		estimator:   track.NewEstimator(),
		controller:  controller,
	}, nil
}

// Tick runs one full cycle and returns its result. Failures inside a
// tick are logged and reflected in the status; they never propagate.
// Tick does not pace itself, Run does.
func (p *Pipeline) Tick(ctx context.Context) TickResult {
	start := p.clock.Now()
	res := TickResult{Seq: p.seq, At: start}
	p.seq++

	if !p.activation.Engaged() {
		if p.engaged {
			// Engagement ended; clear filter state so the next
			// engagement does not resume a stale step direction.
			p.controller.Reset()
			p.engaged = false
		}
		res.Status = TickIdle
		return p.finish(res, nil, nil, start)
	}
	p.engaged = true

	frame, err := p.source.Grab(ctx)
	if err != nil {
		monitoring.Logf("pipeline: capture failed: %v", err)
		res.Status = TickNoFrame
		// An absent frame is an empty candidate set: the lock is
		// carried until the retention window expires it.
		p.selector.Select(nil, start)
		p.estimator.Reset()
		return p.finish(res, nil, nil, start)
	}

	mask := vision.Segment(frame, p.cfg.TargetRanges)
	cands, stats := vision.ExtractCandidates(mask, p.cfg.MinTargetArea)
	res.Candidates = len(cands)
	res.Extract = stats

	lock := p.selector.Select(cands, start)
	if lock == nil {
		res.Status = TickNoTarget
		// The position history is stale once a tick ends without a
		// target; velocity restarts from zero on reacquisition.
		p.estimator.Reset()
		return p.finish(res, frame, mask, start)
	}
	res.Lock = lock

	vel := p.estimator.Observe(lock.Position, start)
	res.Velocity = vel
	res.Predicted = track.Predict(p.cfg, lock.Position, vel)

	offset := res.Predicted.Sub(p.cfg.Center())
	offset.Y += p.cfg.VerticalOffset

	speed := vel.Len()
	if rep, ok := p.controller.(servo.CoefficientReporter); ok {
		res.Coefficient = rep.Coefficient(offset, lock.Area, speed)
	}
	res.DX, res.DY = p.controller.Correct(offset, lock.Area, speed)

	if res.DX == 0 && res.DY == 0 {
		res.Status = TickHold
		return p.finish(res, frame, mask, start)
	}

	res.Status = TickMove
	if err := p.actuator.Move(res.DX, res.DY); err != nil {
		// Fire and forget: a delivery failure still counts as a move.
		monitoring.Logf("pipeline: actuator move failed: %v", err)
	}
	return p.finish(res, frame, mask, start)
}

// finish stamps the duration, publishes the snapshot for the monitor,
// and appends the tick to the session.
func (p *Pipeline) finish(res TickResult, frame *vision.Frame, mask *vision.Mask, start time.Time) TickResult {
	res.Duration = p.clock.Since(start)

	p.mu.Lock()
	p.last = res
	if frame != nil {
		p.lastFrame = frame
		p.lastMask = mask
	}
	sessionID := p.sessionID
	p.mu.Unlock()

	if p.store != nil && sessionID != "" && res.Status != TickIdle {
		p.record(sessionID, res)
	}
	if p.onTick != nil {
		p.onTick(res)
	}
	return res
}

func (p *Pipeline) record(sessionID string, res TickResult) {
	tick := &session.Tick{
		SessionID:   sessionID,
		Seq:         res.Seq,
		AtUnix:      unixSeconds(res.At),
		Status:      res.Status.String(),
		Candidates:  res.Candidates,
		Coefficient: res.Coefficient,
		DX:          res.DX,
		DY:          res.DY,
		DurationMS:  res.Duration.Seconds() * 1000,
	}
	if res.Lock != nil {
		tick.LockID = res.Lock.ID
		tick.PosX = res.Lock.Position.X
		tick.PosY = res.Lock.Position.Y
		tick.Area = res.Lock.Area
		tick.VelX = res.Velocity.X
		tick.VelY = res.Velocity.Y
		tick.PredX = res.Predicted.X
		tick.PredY = res.Predicted.Y
	}
	if err := p.store.AppendTick(tick); err != nil {
		monitoring.Logf("pipeline: failed to record tick %d: %v", res.Seq, err)
	}
}

// Run paces Tick at the configured rate until ctx is cancelled. Each
// cycle measures its own duration and sleeps away the rest of the tick
// budget; a tick that overruns is followed immediately by the next.
// When a session store is configured, Run opens a session row before
// the first tick and closes it on the way out. Returns nil on clean
// shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.store != nil {
		if err := p.beginSession(); err != nil {
			return err
		}
		defer p.endSession()
	}

	budget := p.cfg.TickBudget()
	monitoring.Logf("pipeline: loop started: rate=%.0f Hz budget=%v controller=%s source=%s",
		p.cfg.TickRate, budget, p.controller.Name(), p.sourceLabel)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("pipeline: loop stopped after %d ticks", p.seq)
			return nil
		default:
		}

		res := p.Tick(ctx)
		if budget > 0 && res.Duration < budget {
			p.clock.Sleep(budget - res.Duration)
		}
	}
}

func (p *Pipeline) beginSession() error {
	settings, err := json.Marshal(config.FromSettings(p.cfg))
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	sess := &session.Session{
		StartedUnix:  unixSeconds(p.clock.Now()),
		Source:       p.sourceLabel,
		Controller:   p.controller.Name(),
		SettingsJSON: string(settings),
	}
	if err := p.store.BeginSession(sess); err != nil {
		return fmt.Errorf("failed to begin session: %w", err)
	}
	p.mu.Lock()
	p.sessionID = sess.ID
	p.mu.Unlock()
	monitoring.Logf("pipeline: recording session %s", sess.ID)
	return nil
}

func (p *Pipeline) endSession() {
	p.mu.Lock()
	sessionID := p.sessionID
	p.mu.Unlock()
	if sessionID == "" {
		return
	}
	if err := p.store.EndSession(sessionID, unixSeconds(p.clock.Now())); err != nil {
		monitoring.Logf("pipeline: failed to close session %s: %v", sessionID, err)
	}
}

// Last returns the most recent tick result.
func (p *Pipeline) Last() TickResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Frames returns the most recently processed frame and mask. Both are
// nil until the first engaged tick grabs successfully. The returned
// buffers are never written again by the loop.
func (p *Pipeline) Frames() (*vision.Frame, *vision.Mask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame, p.lastMask
}

// SessionID returns the id of the session Run opened, or "" when no
// store is configured or Run has not started.
func (p *Pipeline) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// Settings returns the immutable settings the pipeline runs with.
func (p *Pipeline) Settings() config.Settings {
	return p.cfg
}

// ControllerName returns the active smoothing strategy name.
func (p *Pipeline) ControllerName() string {
	return p.controller.Name()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
