package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hlsthumb/internal/service"
	"github.com/jmylchreest/hlsthumb/internal/startup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the configured streams until interrupted",
	Long: `Load the configured streams and start one thumbnail generator per
stream. Each generator polls its playlist, extracts thumbnails, and
maintains its manifest until the process receives SIGINT/SIGTERM, at
which point every generator is destroyed (without deleting its output).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg)

	if removed, err := startup.CleanupSystemTempDirs(logger); err != nil {
		logger.Warn("failed to clean orphaned temp directories", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("cleaned orphaned temp directories on startup", slog.Int("removed_count", removed))
	}

	if len(cfg.Streams) == 0 {
		logger.Warn("no streams configured, nothing to do")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	svc := service.New(logger)
	logger.Info("starting hlsthumbd", slog.Int("streams", len(cfg.Streams)))
	if err := svc.Start(ctx, cfg); err != nil {
		return fmt.Errorf("starting streams: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	svc.Shutdown(true)
	return nil
}
