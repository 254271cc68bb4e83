// Package frameextract provides concrete FrameExtractor implementations:
// Local, which shells out to ffmpeg, and Placeholder, a dependency-free
// fallback that renders a stand-in image instead of decoding media.
package frameextract

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	gopsutilprocess "github.com/shirou/gopsutil/v4/process"

	"github.com/jmylchreest/hlsthumb/internal/ffmpeg"
	"github.com/jmylchreest/hlsthumb/internal/storage"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
	"github.com/jmylchreest/hlsthumb/internal/util"
)

const defaultWidth = 150

// Local extracts frames by invoking an ffmpeg subprocess once per offset,
// seeking directly into the (possibly remote) segment URI. Every produced
// file is published atomically into the request's OutputDir.
type Local struct {
	binaryPath  string
	timeout     time.Duration
	sandbox     *storage.Sandbox // publish target when a request has no OutputDir
	tempSandbox *storage.Sandbox // scratch space; may be shared across generators
	logger      *slog.Logger
}

// NewLocal creates a Local extractor. If binaryPath is empty, ffmpeg is
// located via the FFMPEG_PATH environment variable, then ./ffmpeg, then
// PATH. tempSandbox may
// be nil, in which case sandbox's own temp subdirectory is used.
func NewLocal(binaryPath string, timeout time.Duration, sandbox, tempSandbox *storage.Sandbox, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if binaryPath == "" {
		found, err := util.FindBinary("ffmpeg", "FFMPEG_PATH")
		if err != nil {
			return nil, fmt.Errorf("locating ffmpeg: %w", err)
		}
		binaryPath = found
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if tempSandbox == nil {
		tempSandbox = sandbox
	}
	logBinaryCapabilities(binaryPath, logger)
	return &Local{binaryPath: binaryPath, timeout: timeout, sandbox: sandbox, tempSandbox: tempSandbox, logger: logger}, nil
}

// Extract implements thumbnail.FrameExtractor.
func (l *Local) Extract(ctx context.Context, req thumbnail.ExtractRequest) ([]thumbnail.FrameOutcome, error) {
	width, height := resolveDimensions(req.Width, req.Height)

	outcomes := make([]thumbnail.FrameOutcome, len(req.Offsets))
	for i, offset := range req.Offsets {
		outcomes[i] = l.extractOne(ctx, req, i, offset, width, height)
	}
	return outcomes, nil
}

func (l *Local) extractOne(ctx context.Context, req thumbnail.ExtractRequest, index int, offset float64, width, height int) thumbnail.FrameOutcome {
	outcome := thumbnail.FrameOutcome{Index: index, Offset: roundMillis(offset)}

	tempDir, err := l.tempSandbox.TempDir()
	if err != nil {
		outcome.Err = fmt.Errorf("resolving temp dir: %w", err)
		return outcome
	}
	tempName := fmt.Sprintf(".%s-%d.%s.jpg.tmp", req.Basename, index, ulid.Make())
	tempPath := filepath.Join(tempDir, tempName)
	defer os.Remove(tempPath)

	cmdCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	builder := ffmpeg.NewCommandBuilder(l.binaryPath).
		HideBanner().
		Overwrite().
		InputArgs("-ss", formatSeconds(offset)).
		Input(req.SegmentURI).
		OutputArgs("-frames:v", "1", "-vf", fmt.Sprintf("scale=%d:%d", width, height)).
		Output(tempPath)

	cmd := builder.Build()
	if err := cmd.Start(cmdCtx); err != nil {
		outcome.Err = fmt.Errorf("starting ffmpeg extraction at offset %.3fs: %w", offset, err)
		return outcome
	}

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		l.sampleResourceUsage(cmd.PID(), req.SegmentURI, offset)
	}()

	waitErr := cmd.Wait()
	<-monitorDone

	if waitErr != nil {
		outcome.Err = fmt.Errorf("ffmpeg extraction at offset %.3fs: %w", offset, waitErr)
		l.logger.Error("frame extraction failed",
			slog.String("segment", req.SegmentURI),
			slog.Float64("offset", offset),
			slog.String("error", waitErr.Error()))
		return outcome
	}

	if _, err := os.Stat(tempPath); err != nil {
		// ffmpeg exited cleanly but produced nothing, typically because the
		// requested offset landed past the segment's real decoded duration.
		outcome.Produced = false
		return outcome
	}

	filename := fmt.Sprintf("%s-%d.jpg", req.Basename, index)
	publish := l.sandbox
	if req.OutputDir != "" {
		sb, err := storage.NewSandbox(req.OutputDir)
		if err != nil {
			outcome.Err = fmt.Errorf("opening output dir: %w", err)
			return outcome
		}
		publish = sb
	}
	if err := publish.AtomicPublish(tempPath, filename); err != nil {
		outcome.Err = fmt.Errorf("publishing frame: %w", err)
		return outcome
	}

	outcome.Produced = true
	outcome.Filename = filename
	return outcome
}

// sampleResourceUsage logs one CPU/memory sample of the running ffmpeg
// subprocess shortly after it starts. A single-frame extraction typically
// finishes in well under a second, so this is a best-effort snapshot rather
// than a time series; it exits silently if the process has already ended
// by the time the sample is taken.
func (l *Local) sampleResourceUsage(pid int, segmentURI string, offset float64) {
	if pid == 0 {
		return
	}
	time.Sleep(50 * time.Millisecond)

	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil || memInfo == nil {
		return
	}
	l.logger.Debug("ffmpeg resource sample",
		slog.Int("pid", pid),
		slog.String("segment", segmentURI),
		slog.Float64("offset", offset),
		slog.Float64("cpu_percent", cpuPercent),
		slog.Uint64("rss_bytes", memInfo.RSS))
}

// logBinaryCapabilities probes the ffmpeg binary once at construction time
// and logs what it found. Detection failure is never fatal: a generator
// should still start (and fail loudly per-extraction) even if capability
// probing itself can't run, e.g. because ffmpeg lacks exec permission in
// some sandboxed environment the detector doesn't expect.
func logBinaryCapabilities(binaryPath string, logger *slog.Logger) {
	detector := ffmpeg.NewBinaryDetector()
	info, err := detector.Detect(context.Background())
	if err != nil {
		logger.Warn("ffmpeg capability detection failed",
			slog.String("binary", binaryPath),
			slog.String("error", err.Error()))
		return
	}

	logger.Info("ffmpeg binary detected",
		slog.String("path", info.FFmpegPath),
		slog.String("version", info.Version),
		slog.Bool("ffprobe_available", info.FFprobePath != ""))
}

func resolveDimensions(width, height int) (int, int) {
	if width == 0 && height == 0 {
		return defaultWidth, -1
	}
	if width == 0 {
		return -1, height
	}
	if height == 0 {
		return width, -1
	}
	return width, height
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", roundMillis(s))
}

func roundMillis(s float64) float64 {
	return math.Round(s*1000) / 1000
}
