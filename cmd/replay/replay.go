package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/device"
	"github.com/kestrel-vision/followspot/internal/monitor"
	"github.com/kestrel-vision/followspot/internal/pipeline"
	"github.com/kestrel-vision/followspot/internal/session"
	"github.com/kestrel-vision/followspot/internal/timeutil"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// stopOnExhaust wraps a frame source and cancels the replay context
// once the source reports exhaustion, which ends the run loop at the
// next tick boundary.
type stopOnExhaust struct {
	inner  device.FrameSource
	cancel context.CancelFunc
}

func (s *stopOnExhaust) Grab(ctx context.Context) (*vision.Frame, error) {
	f, err := s.inner.Grab(ctx)
	if errors.Is(err, device.ErrExhausted) {
		s.cancel()
	}
	return f, err
}

// countActuator swallows move commands; replayed steps land in the
// session rows, not on a device.
type countActuator struct {
	moves int
}

func (a *countActuator) Move(dx, dy int) error {
	a.moves++
	return nil
}

func main() {
	var imagesDir string
	var pcapFile string
	var overlayPath string
	var dbPath string
	var plotsDir string
	var udpPort int

	flag.StringVar(&imagesDir, "images", "", "directory of frame images to replay in name order")
	flag.StringVar(&pcapFile, "pcap", "", "pcap capture of frame packets to replay (needs the pcap build tag)")
	flag.IntVar(&udpPort, "udp-port", 7440, "UDP port the pcap frames were captured on")
	flag.StringVar(&overlayPath, "settings", "", "JSON settings overlay to apply over the defaults")
	flag.StringVar(&dbPath, "db", "followspot.db", "path to the sqlite session db (empty disables recording)")
	flag.StringVar(&plotsDir, "plots", "plots", "base directory for output plots (empty disables plotting)")
	flag.Parse()

	if (imagesDir == "") == (pcapFile == "") {
		log.Fatalf("exactly one of -images or -pcap must be provided")
	}

	settings := config.Default()
	if overlayPath != "" {
		ov, err := config.LoadOverlay(overlayPath)
		if err != nil {
			log.Fatalf("failed to load settings overlay: %v", err)
		}
		settings = ov.Apply(settings)
		if err := settings.Validate(); err != nil {
			log.Fatalf("invalid settings: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var source device.FrameSource
	var recording, label string
	if imagesDir != "" {
		src, err := device.NewImageSequenceSource(imagesDir, settings.CaptureSize, false)
		if err != nil {
			log.Fatalf("failed to open image sequence: %v", err)
		}
		fmt.Printf("replaying %d images from %s\n", src.Len(), imagesDir)
		source = src
		recording = imagesDir
		label = "images"
	} else {
		frames, err := device.ReplayPCAPFrames(ctx, pcapFile, udpPort, settings.CaptureSize)
		if err != nil {
			log.Fatalf("failed to decode pcap: %v", err)
		}
		if len(frames) == 0 {
			log.Fatalf("no complete frames found in %s", pcapFile)
		}
		fmt.Printf("replaying %d frames from %s\n", len(frames), pcapFile)
		source = device.NewQueueSource(frames...)
		recording = pcapFile
		label = "pcap"
	}

	var store *session.Store
	if dbPath != "" {
		var err error
		store, err = session.Open(dbPath)
		if err != nil {
			log.Fatalf("failed to open session database: %v", err)
		}
		defer store.Close()
		if err := store.MigrateUp(); err != nil {
			log.Fatalf("failed to migrate session database: %v", err)
		}
	}

	var plotter *monitor.TrackPlotter
	var onTick func(pipeline.TickResult)
	if plotsDir != "" {
		plotter = monitor.NewTrackPlotter(settings.CaptureSize)
		outDir := monitor.MakePlotOutputDir(plotsDir, recording)
		if err := plotter.Start(outDir); err != nil {
			log.Fatalf("failed to start plotter: %v", err)
		}
		onTick = plotter.Sample
	}

	// Sleeping on the mock clock is instant, so the replay runs at full
	// speed while the recorded timestamps keep the configured tick
	// spacing.
	clock := timeutil.NewMockClock(time.Now())
	clock.AdvanceOnSleep = true

	act := &countActuator{}
	pipe, err := pipeline.New(pipeline.Config{
		Settings:    settings,
		Source:      &stopOnExhaust{inner: source, cancel: cancel},
		Actuator:    act,
		Clock:       clock,
		Store:       store,
		SourceLabel: label,
		OnTick:      onTick,
	})
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	if err := pipe.Run(ctx); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	fmt.Printf("replay finished: %d moves issued\n", act.moves)

	if store != nil {
		printSummary(store, pipe.SessionID())
	}

	if plotter != nil {
		count, err := plotter.GeneratePlots()
		if err != nil {
			log.Fatalf("failed to generate plots: %v", err)
		}
		fmt.Printf("wrote %d plots to %s\n", count, plotter.GetOutputDir())
	}
}

func printSummary(store *session.Store, sessionID string) {
	sum, err := store.Summarize(sessionID)
	if err != nil {
		log.Printf("failed to summarize session: %v", err)
		return
	}

	fmt.Printf("session %s: %d ticks (move=%d hold=%d no_target=%d no_frame=%d)\n",
		sum.SessionID, sum.Ticks,
		sum.Statuses[session.StatusMove], sum.Statuses[session.StatusHold],
		sum.Statuses[session.StatusNoTarget], sum.Statuses[session.StatusNoFrame])
	fmt.Printf("step: mean=%.2f stddev=%.2f p50=%.2f p85=%.2f p95=%.2f\n",
		sum.StepMean, sum.StepStdDev, sum.StepP50, sum.StepP85, sum.StepP95)
	fmt.Printf("coefficient: mean=%.3f  tick duration ms: mean=%.3f p95=%.3f\n",
		sum.CoefficientMean, sum.DurationMeanMS, sum.DurationP95MS)
}
