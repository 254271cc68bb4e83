// Package startup provides utilities for application startup tasks.
package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TempDirPrefix is the name prefix that marks a directory as an hlsthumbd
// scratch directory; the cleanup sweep only ever removes directories
// carrying it, so unrelated files are left alone.
const TempDirPrefix = "hlsthumbd-"

// DefaultCleanupAge is the default maximum age for orphaned temp directories.
const DefaultCleanupAge = 1 * time.Hour

// CleanupOrphanedTempDirs removes directories under baseDir named
// "hlsthumbd-*" whose modification time is older than maxAge, so such
// directories left behind by an earlier run do not accumulate. Frame
// extraction scratch files live in a sandbox's "temp" subdirectory instead
// and are not covered by this sweep.
//
// Returns the number of directories removed and any error encountered.
func CleanupOrphanedTempDirs(logger *slog.Logger, baseDir string, maxAge time.Duration) (int, error) {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		logger.Debug("base directory does not exist, skipping cleanup", slog.String("path", baseDir))
		return 0, nil
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		logger.Error("failed to read directory for cleanup", slog.String("path", baseDir), slog.String("error", err.Error()))
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !strings.HasPrefix(entry.Name(), TempDirPrefix) {
			continue
		}

		dirPath := filepath.Join(baseDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get directory info", slog.String("path", dirPath), slog.String("error", err.Error()))
			continue
		}

		if info.ModTime().After(cutoff) {
			logger.Debug("preserving recent temp directory",
				slog.String("path", dirPath),
				slog.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
			)
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			logger.Warn("failed to remove orphaned temp directory", slog.String("path", dirPath), slog.String("error", err.Error()))
			continue
		}

		logger.Info("removed orphaned temp directory",
			slog.String("path", dirPath),
			slog.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
		)
		removed++
	}

	return removed, nil
}

// CleanupSystemTempDirs sweeps os.TempDir() using DefaultCleanupAge, the
// entry point hlsthumbd calls once at boot before starting any generator.
func CleanupSystemTempDirs(logger *slog.Logger) (int, error) {
	return CleanupOrphanedTempDirs(logger, os.TempDir(), DefaultCleanupAge)
}
