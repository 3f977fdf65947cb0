package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rkuchma96/rcoffee/internal/domain"
)

func validConfig() *Config {
	return &Config{
		RemotePath:    "remote:Sync",
		LocalPath:     "/home/bob/sync",
		PollInterval:  time.Second,
		ModifyWindow:  "1s",
		BatchCooldown: time.Second,
		RcloneBinary:  "rclone",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing remote path", func(c *Config) { c.RemotePath = "" }},
		{"missing local path", func(c *Config) { c.LocalPath = "" }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"negative poll interval", func(c *Config) { c.PollInterval = -time.Second }},
		{"zero batch cooldown", func(c *Config) { c.BatchCooldown = 0 }},
		{"empty modify window", func(c *Config) { c.ModifyWindow = "" }},
	}

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("got %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestLoadFromStringDefaults(t *testing.T) {
	cfg, err := LoadFromString("")
	if err != nil {
		t.Fatalf("failed to load empty config: %v", err)
	}

	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("got poll interval %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.BatchCooldown != DefaultBatchCooldown {
		t.Errorf("got batch cooldown %v, want %v", cfg.BatchCooldown, DefaultBatchCooldown)
	}
	if cfg.ModifyWindow != DefaultModifyWindow {
		t.Errorf("got modify window %q, want %q", cfg.ModifyWindow, DefaultModifyWindow)
	}
	if cfg.RcloneBinary != "rclone" {
		t.Errorf("got binary %q, want rclone", cfg.RcloneBinary)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadFromStringFullConfig(t *testing.T) {
	yaml := `
remote_path: "gdrive:Sync"
local_path: "/data/sync"
poll_interval: 5s
modify_window: "2s"
batch_cooldown: 3s
rclone_binary: /opt/bin/rclone
data_dir: /var/lib/rcoffee
log:
  level: debug
  format: json
  file:
    enabled: true
    path: /var/log/rcoffee.log
    max_size_mb: 50
    max_age_days: 14
    max_backups: 3
    compress: true
`
	cfg, err := LoadFromString(yaml)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.RemotePath != "gdrive:Sync" {
		t.Errorf("got remote path %q", cfg.RemotePath)
	}
	if cfg.LocalPath != "/data/sync" {
		t.Errorf("got local path %q", cfg.LocalPath)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("got poll interval %v", cfg.PollInterval)
	}
	if cfg.ModifyWindow != "2s" {
		t.Errorf("got modify window %q", cfg.ModifyWindow)
	}
	if cfg.BatchCooldown != 3*time.Second {
		t.Errorf("got batch cooldown %v", cfg.BatchCooldown)
	}
	if cfg.DataDir != "/var/lib/rcoffee" {
		t.Errorf("got data dir %q", cfg.DataDir)
	}
	if !cfg.Log.File.Enabled || cfg.Log.File.MaxSizeMB != 50 || !cfg.Log.File.Compress {
		t.Errorf("unexpected log file config: %+v", cfg.Log.File)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("full config should validate: %v", err)
	}
}

func TestLoadFromStringInvalidYAML(t *testing.T) {
	_, err := LoadFromString("remote_path: [unclosed")
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("got %v, want ErrConfigInvalid", err)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "remote_path: \"box:Backup\"\nlocal_path: /srv/backup\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.RemotePath != "box:Backup" {
		t.Errorf("got remote path %q, want box:Backup", cfg.RemotePath)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Error("defaults should fill fields the file omits")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("got %v, want ErrConfigNotFound", err)
	}
}

func TestLocalPathIsExpanded(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	cfg, err := LoadFromString("local_path: ~/sync\n")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if want := filepath.Join(home, "sync"); cfg.LocalPath != want {
		t.Errorf("got local path %q, want %q", cfg.LocalPath, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, homeErr := os.UserHomeDir()

	t.Setenv("RCOFFEE_TEST_DIR", "/opt/data")

	tests := []struct {
		name string
		in   string
		want string
		skip bool
	}{
		{"plain path", "/var/lib/rcoffee", "/var/lib/rcoffee", false},
		{"cleans redundant parts", "/var//lib/./rcoffee", "/var/lib/rcoffee", false},
		{"env var", "$RCOFFEE_TEST_DIR/sync", "/opt/data/sync", false},
		{"tilde", "~/sync", filepath.Join(home, "sync"), homeErr != nil},
		{"bare tilde", "~", home, homeErr != nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.skip {
				t.Skip("no home directory available")
			}
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = "/var/lib/rcoffee"
	if got := cfg.GetDataDir(); got != "/var/lib/rcoffee" {
		t.Errorf("got %q, want the configured dir", got)
	}

	cfg.DataDir = ""
	got := cfg.GetDataDir()
	if got == "" {
		t.Error("default data dir should never be empty")
	}
	if filepath.Base(got) != "rcoffee" && got != ".rcoffee" {
		t.Errorf("default data dir %q should end in rcoffee", got)
	}
}
