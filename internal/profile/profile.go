// Package profile persists named tuning profiles as JSON documents in
// a single directory. A profile is a full settings snapshot encoded
// through the config overlay, so partial hand-edited files load too.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kestrel-vision/followspot/internal/config"
)

// ErrInvalidName rejects profile names that are empty or could escape
// the profile directory. Name validation runs before any I/O.
var ErrInvalidName = errors.New("invalid profile name")

// ErrNotFound reports a profile that does not exist.
var ErrNotFound = errors.New("profile not found")

const profileExt = ".json"

// ValidateName checks that name is usable as a profile name: non-empty,
// no path delimiters, no traversal components, not hidden.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains path components", ErrInvalidName, name)
	}
	if name != filepath.Base(filepath.Clean(name)) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	}
	return nil
}

// Manager stores profiles as <name>.json files under one directory.
type Manager struct {
	dir string
}

// NewManager creates the profile directory if needed and returns a
// manager over it.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the directory profiles are stored in.
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+profileExt)
}

// Save writes a full settings snapshot under name. The write goes
// through a temp file and a rename so a crash never leaves a
// half-written profile behind.
func (m *Manager) Save(name string, s config.Settings) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config.FromSettings(s), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(m.dir, ".profile-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmpName, m.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}

// Load reads the named profile and returns the settings it encodes,
// applied over the defaults and validated. A missing or corrupt profile
// returns an error without producing settings, so the caller's live
// configuration stays untouched.
func (m *Manager) Load(name string) (config.Settings, error) {
	if err := ValidateName(name); err != nil {
		return config.Settings{}, err
	}
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return config.Settings{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return config.Settings{}, fmt.Errorf("failed to read profile %s: %w", name, err)
	}

	var ov config.Overlay
	if err := json.Unmarshal(data, &ov); err != nil {
		return config.Settings{}, fmt.Errorf("failed to parse profile %s: %w", name, err)
	}
	if err := ov.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("invalid profile %s: %w", name, err)
	}
	s := ov.Apply(config.Default())
	if err := s.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("invalid profile %s: %w", name, err)
	}
	return s, nil
}

// List returns the stored profile names in sorted order.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if filepath.Ext(e.Name()) != profileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), profileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named profile.
func (m *Manager) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(m.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete profile %s: %w", name, err)
	}
	return nil
}
