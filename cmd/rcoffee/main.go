package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkuchma96/rcoffee/internal/config"
	"github.com/rkuchma96/rcoffee/internal/logger"
	"github.com/rkuchma96/rcoffee/internal/service"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	flagConfig        string
	flagPollInterval  time.Duration
	flagModifyWindow  string
	flagBatchCooldown time.Duration
	flagRcloneBinary  string
	flagDataDir       string
	flagLogLevel      string
	flagLogFormat     string
	flagLogFile       string
)

var rootCmd = &cobra.Command{
	Use:   "rcoffee <remote:path> <local-path>",
	Short: "Yet another rclone offline folder implementation",
	Long: `Stateless rclone-based daemon that cross-copies remote and local content on
start, then watches local and polls remote for changes, and reactively syncs
them. Rclone itself has to be installed (see https://rclone.org/install/)
and a remote set up first (see https://rclone.org/remote_setup/).`,
	Version: Version,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd, args)
		if err != nil {
			return err
		}

		if err := initLogger(cfg); err != nil {
			return err
		}
		defer logger.Shutdown()

		cmd.SilenceUsage = true

		d, err := service.NewDaemon(cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		defer logger.Get().Info("bye")
		return d.Run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().DurationVar(&flagPollInterval, "poll-interval", config.DefaultPollInterval,
		"Interval to poll the remote for changes")
	rootCmd.Flags().StringVar(&flagModifyWindow, "modify-window", config.DefaultModifyWindow,
		"Max time diff to be considered the same, passed to rclone as is")
	rootCmd.Flags().DurationVar(&flagBatchCooldown, "batch-cooldown", config.DefaultBatchCooldown,
		"Minimum time between the last detected change and actual sync")
	rootCmd.Flags().StringVar(&flagRcloneBinary, "rclone", "rclone", "Rclone binary to invoke")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Directory for lock, PID and history files")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "Log format (console|text|json)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Also log to this file (rotated)")
}

// buildConfig loads the optional config file and overlays command-line
// arguments and flags on top of it.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	cfg.RemotePath = args[0]
	cfg.LocalPath = config.ExpandPath(args[1])

	if cmd.Flags().Changed("poll-interval") || cfg.PollInterval == 0 {
		cfg.PollInterval = flagPollInterval
	}
	if cmd.Flags().Changed("modify-window") || cfg.ModifyWindow == "" {
		cfg.ModifyWindow = flagModifyWindow
	}
	if cmd.Flags().Changed("batch-cooldown") || cfg.BatchCooldown == 0 {
		cfg.BatchCooldown = flagBatchCooldown
	}
	if cmd.Flags().Changed("rclone") || cfg.RcloneBinary == "" {
		cfg.RcloneBinary = flagRcloneBinary
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if cmd.Flags().Changed("log-level") || cfg.Log.Level == "" {
		cfg.Log.Level = flagLogLevel
	}
	if cmd.Flags().Changed("log-format") || cfg.Log.Format == "" {
		cfg.Log.Format = flagLogFormat
	}
	if flagLogFile != "" {
		cfg.Log.File.Enabled = true
		cfg.Log.File.Path = config.ExpandPath(flagLogFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogger initializes the global logger from config
func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		File: logger.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			MaxBackups: cfg.Log.File.MaxBackups,
			Compress:   cfg.Log.File.Compress,
		},
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
