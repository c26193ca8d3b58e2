package monitor

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kestrel-vision/followspot/internal/pipeline"
)

// TrackPlotter records per-tick pipeline results for visualization
// after a run. Sample it once per tick during a replay or live run,
// then call GeneratePlots to write the PNG series.
type TrackPlotter struct {
	mu          sync.Mutex
	enabled     bool
	outputDir   string
	captureSize int
	samples     []TrackSample
	startTime   time.Time
}

// TrackSample is one tick reduced to the plotted quantities.
type TrackSample struct {
	Seq    int64
	Status string
	Locked bool
	// Lock position and prediction, capture coordinates. Valid only
	// when Locked.
	X, Y         float64
	PredX, PredY float64
	Step         float64 // magnitude of the issued step, device units
	DX, DY       int
	Coefficient  float64
	Speed        float64 // velocity magnitude, px/s
}

// NewTrackPlotter creates a plotter for captures of the given side
// length.
func NewTrackPlotter(captureSize int) *TrackPlotter {
	return &TrackPlotter{captureSize: captureSize}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g., "plots/run-001/20260107_173129")
func (tp *TrackPlotter) Start(outputDir string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tp.outputDir = outputDir
	tp.enabled = true
	tp.startTime = time.Time{}
	tp.samples = tp.samples[:0]
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (tp *TrackPlotter) Stop() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (tp *TrackPlotter) IsEnabled() bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.enabled
}

// GetOutputDir returns the current output directory for plots.
func (tp *TrackPlotter) GetOutputDir() string {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.outputDir
}

// GetSampleCount returns the number of samples collected.
func (tp *TrackPlotter) GetSampleCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.samples)
}

// Sample records one tick result. Idle ticks are skipped; they carry no
// tracking state.
func (tp *TrackPlotter) Sample(res pipeline.TickResult) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if !tp.enabled || res.Status == pipeline.TickIdle {
		return
	}

	if tp.startTime.IsZero() {
		tp.startTime = res.At
	}

	s := TrackSample{
		Seq:         res.Seq,
		Status:      res.Status.String(),
		Step:        math.Hypot(float64(res.DX), float64(res.DY)),
		DX:          res.DX,
		DY:          res.DY,
		Coefficient: res.Coefficient,
		Speed:       res.Velocity.Len(),
	}
	if res.Lock != nil {
		s.Locked = true
		s.X = res.Lock.Position.X
		s.Y = res.Lock.Position.Y
		s.PredX = res.Predicted.X
		s.PredY = res.Predicted.Y
	}

	tp.samples = append(tp.samples, s)
}

// GeneratePlots writes the path, step, coefficient, and speed plots.
// Returns the number of files written and any error.
func (tp *TrackPlotter) GeneratePlots() (int, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	if len(tp.samples) == 0 {
		return 0, nil
	}

	count := 0
	if err := tp.generatePathPlot(); err != nil {
		return count, fmt.Errorf("path plot: %w", err)
	}
	count++

	series := []struct {
		file  string
		title string
		yAxis string
		value func(TrackSample) float64
	}{
		{"step.png", "Corrective Step", "Step (device units)", func(s TrackSample) float64 { return s.Step }},
		{"coefficient.png", "Smoothing Coefficient", "Coefficient", func(s TrackSample) float64 { return s.Coefficient }},
		{"speed.png", "Target Speed", "Speed (px/s)", func(s TrackSample) float64 { return s.Speed }},
	}
	for _, sp := range series {
		if err := tp.generateSeriesPlot(sp.file, sp.title, sp.yAxis, sp.value); err != nil {
			return count, fmt.Errorf("%s: %w", sp.file, err)
		}
		count++
	}

	return count, nil
}

// generatePathPlot draws the lock and predicted positions across the
// capture, y flipped so the plot matches the scene orientation.
func (tp *TrackPlotter) generatePathPlot() error {
	p := plot.New()
	p.Title.Text = "Lock Path"
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	size := float64(tp.captureSize)
	p.X.Min, p.X.Max = 0, size
	p.Y.Min, p.Y.Max = 0, size

	lockPts := make(plotter.XYs, 0, len(tp.samples))
	predPts := make(plotter.XYs, 0, len(tp.samples))
	for _, s := range tp.samples {
		if !s.Locked {
			continue
		}
		lockPts = append(lockPts, plotter.XY{X: s.X, Y: size - s.Y})
		predPts = append(predPts, plotter.XY{X: s.PredX, Y: size - s.PredY})
	}

	colors := generateColors(2)

	if len(lockPts) > 0 {
		lockLine, err := plotter.NewLine(lockPts)
		if err != nil {
			return err
		}
		lockLine.Color = colors[0]
		lockLine.Width = vg.Points(1)
		p.Add(lockLine)
		p.Legend.Add("lock", lockLine)
	}

	if len(predPts) > 0 {
		predLine, err := plotter.NewLine(predPts)
		if err != nil {
			return err
		}
		predLine.Color = colors[1]
		predLine.Width = vg.Points(1)
		p.Add(predLine)
		p.Legend.Add("predicted", predLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(tp.outputDir, "path.png")
	if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
		return fmt.Errorf("save path plot: %w", err)
	}
	return nil
}

// generateSeriesPlot draws one per-tick quantity against the tick
// sequence number.
func (tp *TrackPlotter) generateSeriesPlot(file, title, yAxis string, value func(TrackSample) float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = yAxis

	pts := make(plotter.XYs, 0, len(tp.samples))
	for _, s := range tp.samples {
		pts = append(pts, plotter.XY{X: float64(s.Seq), Y: value(s)})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = generateColors(1)[0]
	line.Width = vg.Points(1)
	p.Add(line)

	out := filepath.Join(tp.outputDir, file)
	if err := p.Save(14*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// generateColors creates a palette of distinct colors for lines and
// overlay markers. The hue walk starts at green, clear of the red band
// the default segmentation targets.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := math.Mod(120+float64(i)*360.0/float64(n), 360)
		colors[i] = colorful.Hsv(hue, 0.7, 0.9)
	}
	return colors
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for
// plots.
// For replayed recordings: plots/<recording_basename>/<timestamp>
// For live runs: plots/live_<timestamp>
func MakePlotOutputDir(baseDir, recording string) string {
	ts := FormatTimestamp(time.Now())
	if recording != "" {
		// Use the recording basename without extension
		base := filepath.Base(recording)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
