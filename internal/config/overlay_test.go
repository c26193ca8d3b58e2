package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kestrel-vision/followspot/internal/vision"
)

func TestOverlayApplyPartial(t *testing.T) {
	tmpDir := t.TempDir()
	overlayPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "base_smoothing": 0.35,
  "lock_window_seconds": 0.5,
  "prediction_enabled": false,
  "controller": "vector"
}`
	if err := os.WriteFile(overlayPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write overlay: %v", err)
	}

	o, err := LoadOverlay(overlayPath)
	if err != nil {
		t.Fatalf("Failed to load overlay: %v", err)
	}

	s := o.Apply(Default())

	// Overridden values
	if s.BaseSmoothing != 0.35 {
		t.Errorf("BaseSmoothing = %f, want 0.35", s.BaseSmoothing)
	}
	if s.LockWindow != 500*time.Millisecond {
		t.Errorf("LockWindow = %v, want 500ms", s.LockWindow)
	}
	if s.PredictionEnabled {
		t.Error("PredictionEnabled = true, want false")
	}
	if s.Controller != ControllerVector {
		t.Errorf("Controller = %q, want %q", s.Controller, ControllerVector)
	}

	// Untouched fields keep their defaults
	if s.CaptureSize != 256 {
		t.Errorf("CaptureSize = %d, want default 256", s.CaptureSize)
	}
	if s.SpeedNorm != 1000 {
		t.Errorf("SpeedNorm = %f, want default 1000", s.SpeedNorm)
	}
	if len(s.TargetRanges) != 2 {
		t.Errorf("len(TargetRanges) = %d, want default 2", len(s.TargetRanges))
	}
}

func TestOverlayApplyEmpty(t *testing.T) {
	base := Default()
	got := (&Overlay{}).Apply(base)
	if diff := cmp.Diff(base, got); diff != "" {
		t.Errorf("empty overlay changed settings (-want +got):\n%s", diff)
	}
}

func TestOverlayApplyDoesNotMutateBase(t *testing.T) {
	base := Default()
	o := &Overlay{
		CaptureSize: ptrInt(128),
		ColorRanges: []vision.ColorRange{
			{Lo: vision.HSV{H: 40, S: 100, V: 100}, Hi: vision.HSV{H: 80, S: 255, V: 255}},
		},
	}

	got := o.Apply(base)
	if got.CaptureSize != 128 || len(got.TargetRanges) != 1 {
		t.Fatalf("Apply() = capture %d, %d ranges; want 128, 1 range",
			got.CaptureSize, len(got.TargetRanges))
	}
	if base.CaptureSize != 256 || len(base.TargetRanges) != 2 {
		t.Errorf("Apply() mutated base: capture %d, %d ranges", base.CaptureSize, len(base.TargetRanges))
	}

	// The applied ranges must not alias the overlay slice.
	got.TargetRanges[0].Lo.H = 99
	if o.ColorRanges[0].Lo.H != 40 {
		t.Error("applied settings alias the overlay color ranges")
	}
}

func TestFromSettingsRoundTrip(t *testing.T) {
	want := Default()
	want.CaptureSize = 192
	want.BaseSmoothing = 0.25
	want.LockWindow = 250 * time.Millisecond
	want.Controller = ControllerVector
	want.TargetRanges = []vision.ColorRange{
		{Lo: vision.HSV{H: 100, S: 120, V: 90}, Hi: vision.HSV{H: 130, S: 255, V: 255}},
	}

	data, err := json.Marshal(FromSettings(want))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var o Overlay
	if err := json.Unmarshal(data, &o); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	// A fully populated overlay reproduces the source settings from any base.
	got := o.Apply(Settings{})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverlayIgnoresUnknownKeys(t *testing.T) {
	tmpDir := t.TempDir()
	overlayPath := filepath.Join(tmpDir, "extra.json")

	extraJSON := `{
  "base_smoothing": 0.3,
  "sensitivity": 5,
  "theme": "dark"
}`
	if err := os.WriteFile(overlayPath, []byte(extraJSON), 0644); err != nil {
		t.Fatalf("Failed to write overlay: %v", err)
	}

	o, err := LoadOverlay(overlayPath)
	if err != nil {
		t.Fatalf("LoadOverlay() = %v, want unknown keys ignored", err)
	}
	if o.BaseSmoothing == nil || *o.BaseSmoothing != 0.3 {
		t.Errorf("BaseSmoothing = %v, want 0.3", o.BaseSmoothing)
	}
}

func TestLoadOverlayColorRanges(t *testing.T) {
	tmpDir := t.TempDir()
	overlayPath := filepath.Join(tmpDir, "ranges.json")

	rangesJSON := `{
  "color_ranges": [
    {"lo": {"h": 40, "s": 100, "v": 100}, "hi": {"h": 80, "s": 255, "v": 255}}
  ]
}`
	if err := os.WriteFile(overlayPath, []byte(rangesJSON), 0644); err != nil {
		t.Fatalf("Failed to write overlay: %v", err)
	}

	o, err := LoadOverlay(overlayPath)
	if err != nil {
		t.Fatalf("Failed to load overlay: %v", err)
	}

	s := o.Apply(Default())
	if len(s.TargetRanges) != 1 {
		t.Fatalf("len(TargetRanges) = %d, want 1 (wholesale replacement)", len(s.TargetRanges))
	}
	want := vision.ColorRange{
		Lo: vision.HSV{H: 40, S: 100, V: 100},
		Hi: vision.HSV{H: 80, S: 255, V: 255},
	}
	if s.TargetRanges[0] != want {
		t.Errorf("TargetRanges[0] = %+v, want %+v", s.TargetRanges[0], want)
	}
}

func TestLoadOverlayMissing(t *testing.T) {
	_, err := LoadOverlay("/nonexistent/path/to/overlay.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadOverlayRejectsNonJSON(t *testing.T) {
	_, err := LoadOverlay("/some/path/overlay.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadOverlayRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	overlayPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(overlayPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadOverlay(overlayPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestLoadOverlayInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	overlayPath := filepath.Join(tmpDir, "invalid.json")

	invalidJSON := `{
  "base_smoothing": "fast"
`
	if err := os.WriteFile(overlayPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write overlay: %v", err)
	}

	_, err := LoadOverlay(overlayPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestOverlayValidate(t *testing.T) {
	tests := []struct {
		name    string
		overlay *Overlay
		wantErr bool
	}{
		{
			name:    "empty overlay is valid",
			overlay: &Overlay{},
			wantErr: false,
		},
		{
			name:    "full overlay from defaults is valid",
			overlay: FromSettings(Default()),
			wantErr: false,
		},
		{
			name:    "zero capture size",
			overlay: &Overlay{CaptureSize: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "negative lock window",
			overlay: &Overlay{LockWindowSeconds: ptrFloat64(-0.5)},
			wantErr: true,
		},
		{
			name:    "negative prediction horizon",
			overlay: &Overlay{PredictionHorizonSeconds: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "zero tick rate",
			overlay: &Overlay{TickRateHz: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "unknown controller",
			overlay: &Overlay{Controller: ptrString("pid")},
			wantErr: true,
		},
		{
			name:    "known controllers",
			overlay: &Overlay{Controller: ptrString(ControllerVector)},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.overlay.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
