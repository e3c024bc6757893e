// Package cli implements the thermodash client commands. The bare
// command launches the dashboard TUI; subcommands cover scripted use.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvolf/thermodash/internal/config"
	"github.com/mvolf/thermodash/internal/dashboard"
	"github.com/mvolf/thermodash/internal/logging"
	"github.com/mvolf/thermodash/internal/refresh"
)

var (
	flagConfigFile string
	flagServerURL  string
	flagTimezone   string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "thermodash",
	Short: "Terminal dashboard for thermodash sensor history",
	Long: `thermodash browses aggregated sensor history served by a thermodashd
daemon: drill from monthly averages down to raw samples, watch the
latest reading, and control actuators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// The TUI owns the terminal; logs go to a file instead of
		// stderr.
		logging.Init(logging.Config{
			Level:  cfg.Logging.Level,
			Format: "json",
			Output: clientLogWriter(cfg),
		})

		var loc *time.Location
		if cfg.TUI.Timezone != "" {
			loc, err = time.LoadLocation(cfg.TUI.Timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", cfg.TUI.Timezone, err)
			}
		}

		c := newAPIClient(cfg)
		return dashboard.Run(dashboard.Config{
			Refresh: refresh.Config{
				Interval:        cfg.Refresh.Interval,
				LogTailInterval: cfg.Refresh.LogTailInterval,
			},
			Timezone: loc,
		}, c, c)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "config file (default is $HOME/.config/thermodash/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "daemon base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagTimezone, "timezone", "", "IANA timezone for navigation keys (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override logging level (debug, info, warn, error)")
}

// Execute runs the CLI.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if flagConfigFile != "" {
		loader.SetConfigFile(flagConfigFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if flagServerURL != "" {
		cfg.TUI.ServerURL = flagServerURL
	}
	if flagTimezone != "" {
		cfg.TUI.Timezone = flagTimezone
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

func clientLogWriter(cfg *config.Config) io.Writer {
	if err := cfg.EnsureDirectories(); err != nil {
		return io.Discard
	}
	f, err := os.OpenFile(filepath.Join(cfg.Global.DataDir, "thermodash.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return io.Discard
	}
	return f
}
