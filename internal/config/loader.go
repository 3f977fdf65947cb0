package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rkuchma96/rcoffee/internal/domain"
)

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{"."}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "rcoffee"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "rcoffee"))
		paths = append(paths, filepath.Join(homeDir, ".rcoffee"))
	}

	return paths
}

// newViper builds a viper instance with defaults and env binding applied
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("batch_cooldown", DefaultBatchCooldown)
	v.SetDefault("modify_window", DefaultModifyWindow)
	v.SetDefault("rclone_binary", "rclone")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetEnvPrefix("RCOFFEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads and parses a configuration file. If path is empty, default
// locations are searched; a missing file is not an error then, since the
// whole configuration can come from flags and environment.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
		// No config file anywhere: run on defaults
	}

	return unmarshal(v)
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	if cfg.LocalPath != "" {
		cfg.LocalPath = ExpandPath(cfg.LocalPath)
	}

	return &cfg, nil
}
