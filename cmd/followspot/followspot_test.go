package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kestrel-vision/followspot/internal/config"
	"github.com/kestrel-vision/followspot/internal/profile"
)

// setFlags points the settings flags at test values and restores the
// previous values on cleanup.
func setFlags(t *testing.T, dir, name, overlay string) {
	t.Helper()
	oldDir, oldName, oldOverlay := *profilesDir, *profileName, *overlayFile
	*profilesDir, *profileName, *overlayFile = dir, name, overlay
	t.Cleanup(func() {
		*profilesDir, *profileName, *overlayFile = oldDir, oldName, oldOverlay
	})
}

func TestLoadSettingsDefaults(t *testing.T) {
	setFlags(t, "profiles", "", "")

	got, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if diff := cmp.Diff(config.Default(), got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSettingsProfileAndOverlay(t *testing.T) {
	dir := t.TempDir()
	mgr, err := profile.NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	stage := config.Default()
	stage.CaptureSize = 128
	if err := mgr.Save("stage", stage); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	overlayPath := filepath.Join(t.TempDir(), "override.json")
	if err := os.WriteFile(overlayPath, []byte(`{"tick_rate_hz": 30}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	setFlags(t, dir, "stage", overlayPath)

	got, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if got.CaptureSize != 128 {
		t.Errorf("expected profile capture size 128, got %d", got.CaptureSize)
	}
	if got.TickRate != 30 {
		t.Errorf("expected overlay tick rate 30, got %g", got.TickRate)
	}
}

func TestLoadSettingsMissingProfile(t *testing.T) {
	setFlags(t, t.TempDir(), "absent", "")

	if _, err := loadSettings(); err == nil {
		t.Error("expected error for a missing profile")
	}
}

func TestLoadSettingsBadOverlay(t *testing.T) {
	overlayPath := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(overlayPath, []byte(`{"tick_rate_hz": -5}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	setFlags(t, "profiles", "", overlayPath)

	if _, err := loadSettings(); err == nil {
		t.Error("expected error for an invalid overlay")
	}
}
