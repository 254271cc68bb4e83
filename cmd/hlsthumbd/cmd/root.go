// Package cmd implements the CLI commands for hlsthumbd.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hlsthumb/internal/config"
	"github.com/jmylchreest/hlsthumb/internal/observability"
	"github.com/jmylchreest/hlsthumb/internal/version"
)

var (
	cfgFile      string
	logLevelFlag string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:     "hlsthumbd",
	Short:   "Live thumbnail generator for HLS streams",
	Version: version.Short(),
	Long: `hlsthumbd polls HLS media playlists, extracts periodic thumbnail
frames from their segments with ffmpeg, and maintains a rolling manifest
of the thumbnails currently available on disk for each configured stream.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./hlsthumbd.yaml, /etc/hlsthumbd, $HOME/.hlsthumbd)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override logging.level from the config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging.format from the config file")
}

// loadConfig reads configuration from cfgFile (or the default search path)
// and environment variables, then applies any --log-level/--log-format
// overrides supplied on the command line.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

// newLogger builds the process-wide structured logger from a loaded config.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)
	return logger
}
