package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/internal/vision"
)

func TestQueueSource(t *testing.T) {
	a := vision.NewFrame(4)
	b := vision.NewFrame(4)
	q := NewQueueSource(a, b)

	got, err := q.Grab(context.Background())
	if err != nil || got != a {
		t.Fatalf("first grab = %v, %v, want frame a", got, err)
	}
	got, err = q.Grab(context.Background())
	if err != nil || got != b {
		t.Fatalf("second grab = %v, %v, want frame b", got, err)
	}
	if _, err := q.Grab(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Fatalf("drained grab error = %v, want ErrExhausted", err)
	}

	q.Push(vision.NewFrame(4))
	if _, err := q.Grab(context.Background()); err != nil {
		t.Fatalf("grab after push: %v", err)
	}
}

func TestQueueSourceCancelledContext(t *testing.T) {
	q := NewQueueSource(vision.NewFrame(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Grab(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("grab error = %v, want context.Canceled", err)
	}
}

func TestActivationSources(t *testing.T) {
	if !StaticActivation(true).Engaged() {
		t.Error("StaticActivation(true) not engaged")
	}
	if StaticActivation(false).Engaged() {
		t.Error("StaticActivation(false) engaged")
	}

	on := false
	f := ActivationFunc(func() bool { return on })
	if f.Engaged() {
		t.Error("ActivationFunc engaged before toggle")
	}
	on = true
	if !f.Engaged() {
		t.Error("ActivationFunc not engaged after toggle")
	}
}

func TestLogActuator(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	a := &LogActuator{}
	if err := a.Move(3, -2); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if a.Moves() != 1 {
		t.Errorf("moves = %d, want 1", a.Moves())
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "dx=3 dy=-2") {
		t.Errorf("log lines = %q, want one line with dx=3 dy=-2", lines)
	}
}
