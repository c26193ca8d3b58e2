package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/device"
	"github.com/kestrel-vision/followspot/internal/geom"
	"github.com/kestrel-vision/followspot/internal/monitor"
	"github.com/kestrel-vision/followspot/internal/pipeline"
	"github.com/kestrel-vision/followspot/internal/profile"
	"github.com/kestrel-vision/followspot/internal/session"
	"github.com/kestrel-vision/followspot/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	devMode     = flag.Bool("dev", false, "Run against the synthetic rig instead of real devices")
	udpPort     = flag.Int("udp-port", 7440, "UDP port to listen on for frame packets")
	udpAddress  = flag.String("udp-addr", "", "UDP bind address (default: listen on all interfaces)")
	rcvBuf      = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes (default 4MB)")
	serialPort  = flag.String("serial", "", "Serial device for the actuator (default: log moves only)")
	serialBaud  = flag.Int("baud", 115200, "Serial baud rate")
	dbFile      = flag.String("db", "followspot.db", "Path to the SQLite session database (empty disables recording)")
	profilesDir = flag.String("profiles-dir", "profiles", "Directory holding named settings profiles")
	profileName = flag.String("profile", "", "Named settings profile to load")
	overlayFile = flag.String("settings", "", "Path to a JSON settings overlay applied after the profile")
	plotsDir    = flag.String("plots", "", "Base directory for shutdown plots (empty disables plotting)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadSettings resolves the effective settings: defaults, then the named
// profile, then the overlay file on top.
func loadSettings() (config.Settings, error) {
	settings := config.Default()

	if *profileName != "" {
		mgr, err := profile.NewManager(*profilesDir)
		if err != nil {
			return settings, fmt.Errorf("failed to open profile store: %w", err)
		}
		settings, err = mgr.Load(*profileName)
		if err != nil {
			return settings, fmt.Errorf("failed to load profile: %w", err)
		}
	}

	if *overlayFile != "" {
		ov, err := config.LoadOverlay(*overlayFile)
		if err != nil {
			return settings, fmt.Errorf("failed to load settings overlay: %w", err)
		}
		settings = ov.Apply(settings)
	}

	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("followspot %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	settings, err := loadSettings()
	if err != nil {
		log.Fatalf("Failed to resolve settings: %v", err)
	}

	// Wire the devices. Dev mode closes the loop in-process with the
	// synthetic rig; otherwise frames arrive over UDP and steps go to
	// serial when a port is configured.
	var (
		source     device.FrameSource
		actuator   device.Actuator
		activation device.ActivationSource = device.StaticActivation(true)
		udpSource  *device.UDPFrameSource
		sourceName string
	)
	if *devMode {
		world := float64(4 * settings.CaptureSize)
		blob := device.RedBlob(world/2+40, world/2+40, 24)
		blob.Vel = geom.Vec{X: 35, Y: -25}
		rig := device.NewSyntheticRig(device.SyntheticOptions{
			CaptureSize: settings.CaptureSize,
			Blobs:       []device.Blob{blob},
			Noise:       0.05,
			Engaged:     true,
		})
		source = rig
		actuator = rig
		activation = rig
		sourceName = "synthetic"
		log.Println("Dev mode: tracking a scripted blob on the synthetic rig")
	} else {
		var udpListenAddr string
		if *udpAddress == "" {
			udpListenAddr = fmt.Sprintf(":%d", *udpPort)
		} else {
			udpListenAddr = fmt.Sprintf("%s:%d", *udpAddress, *udpPort)
		}
		udpSource = device.NewUDPFrameSource(device.UDPSourceConfig{
			Address:   udpListenAddr,
			FrameSize: settings.CaptureSize,
			RcvBuf:    *rcvBuf,
		})
		source = udpSource
		sourceName = "udp"

		if *serialPort != "" {
			sa, err := device.OpenSerialActuator(*serialPort, *serialBaud)
			if err != nil {
				log.Fatalf("Failed to open serial actuator: %v", err)
			}
			defer sa.Close()
			actuator = sa
			log.Printf("Serial actuator on %s at %d baud", *serialPort, *serialBaud)
		} else {
			actuator = &device.LogActuator{}
			log.Println("No serial port configured; logging moves instead")
		}
	}

	// Session store is optional; an empty -db runs without recording.
	var store *session.Store
	if *dbFile != "" {
		store, err = session.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open session database: %v", err)
		}
		defer store.Close()
		if err := store.MigrateUp(); err != nil {
			log.Fatalf("Failed to migrate session database: %v", err)
		}
	} else {
		log.Println("Session recording disabled (empty -db)")
	}

	// Optional live plotter, flushed to PNG files on shutdown.
	var plotter *monitor.TrackPlotter
	var onTick func(pipeline.TickResult)
	if *plotsDir != "" {
		plotter = monitor.NewTrackPlotter(settings.CaptureSize)
		if err := plotter.Start(monitor.MakePlotOutputDir(*plotsDir, "")); err != nil {
			log.Fatalf("Failed to start plotter: %v", err)
		}
		onTick = plotter.Sample
	}

	pipe, err := pipeline.New(pipeline.Config{
		Settings:    settings,
		Source:      source,
		Actuator:    actuator,
		Activation:  activation,
		Store:       store,
		SourceLabel: sourceName,
		OnTick:      onTick,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:  *listen,
		Pipeline: pipe,
		Store:    store,
		DBPath:   *dbFile,
	})

	log.Printf("followspot starting: source=%s controller=%s capture=%d tick=%g Hz",
		sourceName, settings.Controller, settings.CaptureSize, settings.TickRate)

	// Create a wait group for the frame listener, tick loop, and HTTP
	// server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Frame listener routine (UDP sources only)
	if udpSource != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := udpSource.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("Frame listener error: %v", err)
			}
			log.Print("frame listener routine terminated")
		}()
	}

	// Tick loop routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx); err != nil {
			log.Printf("Pipeline error: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	// HTTP server routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
		log.Print("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if plotter != nil {
		count, err := plotter.GeneratePlots()
		if err != nil {
			log.Printf("Failed to generate plots: %v", err)
		} else if count > 0 {
			log.Printf("Wrote %d plots to %s", count, plotter.GetOutputDir())
		}
	}

	log.Printf("Graceful shutdown complete")
}
