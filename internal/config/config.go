package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rkuchma96/rcoffee/internal/domain"
)

// Default values for the tunable durations
const (
	DefaultPollInterval  = time.Second
	DefaultBatchCooldown = time.Second
	DefaultModifyWindow  = "1s"
)

// Config holds the complete daemon configuration
type Config struct {
	// RemotePath is the fully-qualified remote like "gdrive:Sync".
	// Opaque to the daemon, passed through to the engine.
	RemotePath string `mapstructure:"remote_path"`

	// LocalPath is the local directory of the sync pair
	LocalPath string `mapstructure:"local_path"`

	// PollInterval is the period between remote listings
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// ModifyWindow is the timestamp tolerance passed to the engine as-is
	ModifyWindow string `mapstructure:"modify_window"`

	// BatchCooldown is the quiet period required before a batched sync runs
	BatchCooldown time.Duration `mapstructure:"batch_cooldown"`

	// RcloneBinary names the engine executable, looked up on PATH
	RcloneBinary string `mapstructure:"rclone_binary"`

	// DataDir holds the lock file, PID file and cycle history
	DataDir string `mapstructure:"data_dir"`

	// Log configures logging
	Log LogConfig `mapstructure:"log"`
}

// LogConfig is the logging section of the config
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures the rotating log file
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Validate checks the configuration for completeness and consistency
func (c *Config) Validate() error {
	if c.RemotePath == "" {
		return fmt.Errorf("%w: remote path cannot be empty", domain.ErrConfigInvalid)
	}
	if c.LocalPath == "" {
		return fmt.Errorf("%w: local path cannot be empty", domain.ErrConfigInvalid)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %v", domain.ErrConfigInvalid, c.PollInterval)
	}
	if c.BatchCooldown <= 0 {
		return fmt.Errorf("%w: batch cooldown must be positive, got %v", domain.ErrConfigInvalid, c.BatchCooldown)
	}
	if c.ModifyWindow == "" {
		return fmt.Errorf("%w: modify window cannot be empty", domain.ErrConfigInvalid)
	}
	return nil
}

// GetDataDir returns the configured data directory, defaulting to the user
// config directory
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		return ExpandPath(c.DataDir)
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".rcoffee"
	}
	return filepath.Join(configDir, "rcoffee")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
