package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/geom"
	"github.com/kestrel-vision/followspot/internal/timeutil"
	"github.com/kestrel-vision/followspot/internal/vision"
)

func grabCandidates(t *testing.T, rig *SyntheticRig) []vision.Candidate {
	t.Helper()
	f, err := rig.Grab(context.Background())
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}
	cfg := config.Default()
	mask := vision.Segment(f, cfg.TargetRanges)
	cands, _ := vision.ExtractCandidates(mask, cfg.MinTargetArea)
	return cands
}

func TestSyntheticGrabFindsRedBlob(t *testing.T) {
	rig := NewSyntheticRig(SyntheticOptions{
		CaptureSize: 128,
		Blobs:       []Blob{RedBlob(256, 256, 12)},
	})

	cands := grabCandidates(t, rig)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	if cands[0].Area != 144 {
		t.Errorf("area = %v, want 144", cands[0].Area)
	}
	// World center sits at window pixel 63/63 once the 12px square is
	// truncated to integer pixel coordinates.
	want := geom.Point{X: 63, Y: 63}
	if cands[0].Position != want {
		t.Errorf("position = %v, want %v", cands[0].Position, want)
	}
}

func TestSyntheticMoveRecentersBlob(t *testing.T) {
	rig := NewSyntheticRig(SyntheticOptions{
		CaptureSize: 128,
		Blobs:       []Blob{RedBlob(286, 256, 12)},
	})

	cands := grabCandidates(t, rig)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	got := cands[0].Position
	if got.X != 93 || got.Y != 63 {
		t.Fatalf("position before move = %v, want (93, 63)", got)
	}

	// Step the pointer by the offset from the window center. The blob
	// should land on the center in the next capture.
	if err := rig.Move(93-64, 63-64); err != nil {
		t.Fatalf("Move: %v", err)
	}

	cands = grabCandidates(t, rig)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates after move, want 1", len(cands))
	}
	got = cands[0].Position
	if got.X != 64 || got.Y != 64 {
		t.Errorf("position after move = %v, want (64, 64)", got)
	}
}

func TestSyntheticAdvance(t *testing.T) {
	clk := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	blob := RedBlob(100, 100, 8)
	blob.Vel = geom.Vec{X: 10, Y: -5}
	rig := NewSyntheticRig(SyntheticOptions{
		CaptureSize: 64,
		Blobs:       []Blob{blob},
		Clock:       clk,
	})

	// First grab only arms the scene clock.
	if _, err := rig.Grab(context.Background()); err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if pos := rig.Blobs()[0].Pos; pos != (geom.Point{X: 100, Y: 100}) {
		t.Fatalf("blob moved on first grab: %v", pos)
	}

	clk.Advance(time.Second)
	if _, err := rig.Grab(context.Background()); err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if pos := rig.Blobs()[0].Pos; pos != (geom.Point{X: 110, Y: 95}) {
		t.Errorf("blob after 1s = %v, want (110, 95)", pos)
	}

	clk.Advance(2 * time.Second)
	if _, err := rig.Grab(context.Background()); err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if pos := rig.Blobs()[0].Pos; pos != (geom.Point{X: 130, Y: 85}) {
		t.Errorf("blob after 3s = %v, want (130, 85)", pos)
	}
}

func TestSyntheticBounce(t *testing.T) {
	clk := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	blob := RedBlob(250, 128, 8)
	blob.Vel = geom.Vec{X: 20}
	rig := NewSyntheticRig(SyntheticOptions{
		CaptureSize: 64, // world defaults to 256
		Blobs:       []Blob{blob},
		Clock:       clk,
	})

	if _, err := rig.Grab(context.Background()); err != nil {
		t.Fatalf("Grab: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := rig.Grab(context.Background()); err != nil {
		t.Fatalf("Grab: %v", err)
	}

	b := rig.Blobs()[0]
	if b.Pos.X != 242 {
		t.Errorf("bounced X = %v, want 242", b.Pos.X)
	}
	if b.Vel.X != -20 {
		t.Errorf("bounced velocity = %v, want -20", b.Vel.X)
	}
}

func TestSyntheticMoveClampsToWorld(t *testing.T) {
	rig := NewSyntheticRig(SyntheticOptions{CaptureSize: 64})

	if err := rig.Move(-1000, 50); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if p := rig.Pointer(); p.X != 0 || p.Y != 178 {
		t.Errorf("pointer = %v, want (0, 178)", p)
	}

	if err := rig.Move(10000, 10000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if p := rig.Pointer(); p.X != 256 || p.Y != 256 {
		t.Errorf("pointer = %v, want (256, 256)", p)
	}

	if rig.Moves() != 2 {
		t.Errorf("moves = %d, want 2", rig.Moves())
	}
}

func TestSyntheticFailGrabs(t *testing.T) {
	rig := NewSyntheticRig(SyntheticOptions{
		CaptureSize: 64,
		Blobs:       []Blob{RedBlob(128, 128, 8)},
	})
	rig.FailGrabs(2)

	for i := 0; i < 2; i++ {
		if _, err := rig.Grab(context.Background()); !errors.Is(err, ErrNoFrame) {
			t.Fatalf("grab %d error = %v, want ErrNoFrame", i, err)
		}
	}
	if _, err := rig.Grab(context.Background()); err != nil {
		t.Fatalf("grab after failures: %v", err)
	}
}

func TestSyntheticEngagedToggle(t *testing.T) {
	rig := NewSyntheticRig(SyntheticOptions{CaptureSize: 64})
	if rig.Engaged() {
		t.Fatal("rig engaged by default")
	}
	rig.SetEngaged(true)
	if !rig.Engaged() {
		t.Fatal("rig not engaged after SetEngaged(true)")
	}
}

func TestSyntheticNoiseKeepsBlobSegmentable(t *testing.T) {
	// Monochrome noise shifts all three channels together, so the
	// channel spread that drives saturation survives intact and the
	// blob still segments exactly.
	rig := NewSyntheticRig(SyntheticOptions{
		CaptureSize: 128,
		Blobs:       []Blob{RedBlob(256, 256, 12)},
		Noise:       0.15,
	})

	cands := grabCandidates(t, rig)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates with noise, want 1", len(cands))
	}
	if cands[0].Area != 144 {
		t.Errorf("area = %v, want 144", cands[0].Area)
	}
}
