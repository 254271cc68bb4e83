// Package service supervises one generator per configured stream, wiring
// each to the shared ffmpeg/placeholder extractor and logging its events
// under a per-stream logger.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/hlsthumb/internal/config"
	"github.com/jmylchreest/hlsthumb/internal/generator"
	"github.com/jmylchreest/hlsthumb/internal/observability"
	"github.com/jmylchreest/hlsthumb/internal/storage"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
	"github.com/jmylchreest/hlsthumb/pkg/frameextract"
)

// Service owns every running generator for the process's lifetime.
type Service struct {
	logger *slog.Logger

	mu         sync.Mutex
	generators map[string]*generator.Generator
}

// New constructs a Service. It does not start any generator; call Start.
func New(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, generators: make(map[string]*generator.Generator)}
}

// Start launches one generator per StreamConfig, all sharing a single
// FrameExtractor. If cfg.FFmpeg.UsePlaceholder is true, a Placeholder
// extractor is used and ffmpeg is never looked up; otherwise a missing
// ffmpeg binary makes Start return an error before any stream starts.
//
// Start returns once every generator has either started successfully or
// failed to construct; it does not block for the generators' lifetimes,
// which run in their own goroutines until Shutdown.
func (s *Service) Start(ctx context.Context, cfg *config.Config) error {
	extractor, err := s.buildExtractor(cfg)
	if err != nil {
		return fmt.Errorf("building frame extractor: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, streamCfg := range cfg.Streams {
		streamCfg := streamCfg
		g.Go(func() error {
			return s.startOne(streamCfg, extractor)
		})
	}
	return g.Wait()
}

func (s *Service) buildExtractor(cfg *config.Config) (thumbnail.FrameExtractor, error) {
	scratchDir := cfg.FFmpeg.BinaryPath
	_ = scratchDir // unused; NewLocal below resolves the ffmpeg path itself

	if cfg.FFmpeg.UsePlaceholder {
		sandbox, err := storage.NewSandbox(".")
		if err != nil {
			return nil, err
		}
		return frameextract.NewPlaceholder(sandbox), nil
	}

	sandbox, err := storage.NewSandbox(".")
	if err != nil {
		return nil, err
	}
	local, err := frameextract.NewLocal(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.Timeout.Duration(), sandbox, nil, s.logger)
	if err != nil {
		return nil, err
	}
	return local, nil
}

func (s *Service) startOne(streamCfg config.StreamConfig, extractor thumbnail.FrameExtractor) error {
	logger := observability.WithComponent(s.logger, "generator").With(slog.String("playlist", streamCfg.PlaylistURL))

	opts := generator.Options{
		PlaylistURL:           streamCfg.PlaylistURL,
		OutputDir:             streamCfg.OutputDir,
		TempDir:               streamCfg.TempDir,
		Interval:              streamCfg.Interval,
		TargetThumbnailCount:  streamCfg.TargetThumbnailCount,
		InitialThumbnailCount: streamCfg.InitialThumbnailCount,
		ExpireTime:            streamCfg.ExpireTime.Duration(),
		NeverDelete:           streamCfg.NeverDelete,
		IgnorePlaylist404:     streamCfg.IgnorePlaylist404,
		PlaylistRetryCount:    streamCfg.PlaylistRetryCount,
		OutputNamePrefix:      streamCfg.OutputNamePrefix,
		ManifestFileName:      streamCfg.ManifestFileName,
	}
	if streamCfg.Width != nil {
		opts.Width = *streamCfg.Width
	}
	if streamCfg.Height != nil {
		opts.Height = *streamCfg.Height
	}

	gen, err := generator.NewWithDefaultFetcher(opts, extractor, logger)
	if err != nil {
		return fmt.Errorf("starting generator for %s: %w", streamCfg.PlaylistURL, err)
	}

	gen.Subscribe(func(ev generator.Event) {
		logEvent(logger, ev)
	})

	s.mu.Lock()
	s.generators[streamCfg.PlaylistURL] = gen
	s.mu.Unlock()
	return nil
}

func logEvent(logger *slog.Logger, ev generator.Event) {
	switch ev.Type {
	case generator.EventNewThumbnail:
		logger.Debug("new thumbnail", slog.Uint64("sn", ev.Thumbnail.SN), slog.String("name", ev.Thumbnail.Name))
	case generator.EventThumbnailRemoved:
		logger.Debug("thumbnail removed", slog.Uint64("sn", ev.Removed.SN), slog.String("name", ev.Removed.Filename))
	case generator.EventThumbnailsChanged:
		logger.Debug("thumbnails changed")
	case generator.EventPlaylistEnded:
		logger.Info("playlist ended")
	case generator.EventFinished:
		logger.Info("generator finished")
	case generator.EventError:
		logger.Error("generator error", slog.String("error", ev.Err.Error()))
	}
}

// Shutdown destroys every running generator, optionally preserving their
// output files.
func (s *Service) Shutdown(doNotDeleteFiles bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, gen := range s.generators {
		gen.Destroy(doNotDeleteFiles)
	}
}
