package config

import (
	"fmt"
	"path/filepath"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/normalize"
	"github.com/spf13/viper"
)

// RunConfig holds settings that are not tied to one adapter.
type RunConfig struct {
	// Mode is "full" or "tail"; empty means ask.
	Mode         string
	DatabasePath string
	LockDir      string
	ProfilePath  string
	Snapshots    bool
}

// DefaultRunConfig returns the default run settings.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		DatabasePath: "~/.local/share/jobsync/jobsync.db",
		LockDir:      "~/.local/state/jobsync",
		Snapshots:    true,
	}
}

// LoadRunConfig loads run settings from viper.
func LoadRunConfig() (*RunConfig, error) {
	config := DefaultRunConfig()

	config.Mode = viper.GetString("sync.mode")
	if v := viper.GetString("database.path"); v != "" {
		config.DatabasePath = v
	}
	if v := viper.GetString("sync.lock_dir"); v != "" {
		config.LockDir = v
	}
	config.ProfilePath = viper.GetString("profile.path")
	if viper.IsSet("sync.snapshots") {
		config.Snapshots = viper.GetBool("sync.snapshots")
	}

	config.DatabasePath = ExpandPath(config.DatabasePath)
	config.LockDir = ExpandPath(config.LockDir)
	config.ProfilePath = ExpandPath(config.ProfilePath)

	switch config.Mode {
	case "", "full", "tail":
	default:
		return nil, fmt.Errorf("%w: sync.mode must be full or tail, got %q", common.ErrInvalidConfig, config.Mode)
	}

	return &config, nil
}

// LockPath returns the lock file guarding runs against spreadsheetID.
func (c *RunConfig) LockPath(spreadsheetID string) string {
	return filepath.Join(c.LockDir, "sync-"+spreadsheetID+".lock")
}

// LoadProfile loads the tracker profile named by the run config, or the default.
func (c *RunConfig) LoadProfile() (normalize.Profile, error) {
	profile, err := normalize.LoadProfile(c.ProfilePath)
	if err != nil {
		return profile, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return profile, nil
}
