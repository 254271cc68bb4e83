package generator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/hlsthumb/internal/httpclient"
	"github.com/jmylchreest/hlsthumb/internal/lifecycle"
	"github.com/jmylchreest/hlsthumb/internal/manifest"
	"github.com/jmylchreest/hlsthumb/internal/playlist"
	"github.com/jmylchreest/hlsthumb/internal/storage"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
)

const gcCronSpec = "@every 30s"

// Generator drives one playlist's poll -> schedule -> extract -> write
// manifest pipeline. At most one of those four steps is ever in flight at
// a time (the cooperative pipeline the concurrency model requires);
// multiple Generators run independently.
type Generator struct {
	opts Options

	poller    *playlist.Poller
	scheduler *thumbnail.Scheduler
	lifecycle *lifecycle.Manager
	manifestW *manifest.Writer
	sandbox   *storage.Sandbox

	emitter emitter
	logger  *slog.Logger

	cronSched *cron.Cron
	gcRunning atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	destroyed atomic.Bool
	doneCh    chan struct{}

	mu             sync.Mutex
	playlistEnded  bool
	finishedFired  bool
	lastPlaylist   *playlist.Playlist
}

// New constructs and starts a Generator. fetcher supplies playlist bytes
// (an HTTPFetcher in production, a stub in tests); extractor supplies
// thumbnail frames (a frameextract.Local or frameextract.Placeholder).
func New(opts Options, fetcher playlist.Fetcher, extractor thumbnail.FrameExtractor, logger *slog.Logger) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	sandbox, err := storage.NewSandbox(opts.OutputDir)
	if err != nil {
		return nil, err
	}

	prefix := opts.OutputNamePrefix
	poller := playlist.NewPoller(fetcher, opts.PlaylistURL, opts.PlaylistRetryCount, opts.IgnorePlaylist404, logger)
	if prefix == "" {
		prefix = defaultPrefix(poller.EffectiveURL())
	}

	schedOpts := thumbnail.Options{
		FixedInterval:         opts.Interval,
		TargetCount:           opts.TargetThumbnailCount,
		InitialThumbnailCount: opts.InitialThumbnailCount,
		Width:                 opts.Width,
		Height:                opts.Height,
		OutputDir:             opts.OutputDir,
		Prefix:                prefix,
	}
	if err := schedOpts.Validate(); err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	lm := lifecycle.NewManager(sandbox, opts.ExpireTime, opts.NeverDelete, logger)
	mw := manifest.NewWriter(sandbox, opts.ManifestFileName, logger)

	ctx, cancel := context.WithCancel(context.Background())
	g := &Generator{
		opts:      opts,
		poller:    poller,
		scheduler: thumbnail.NewScheduler(schedOpts, extractor),
		lifecycle: lm,
		manifestW: mw,
		sandbox:   sandbox,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
	}

	g.cronSched = cron.New()
	if !opts.NeverDelete {
		if _, err := g.cronSched.AddFunc(gcCronSpec, g.runGC); err != nil {
			cancel()
			return nil, err
		}
		g.cronSched.Start()
	}

	go g.run()
	return g, nil
}

// NewWithDefaultFetcher wires an HTTPFetcher over httpclient.NewWithDefaults,
// the path ordinary callers (not tests) use.
func NewWithDefaultFetcher(opts Options, extractor thumbnail.FrameExtractor, logger *slog.Logger) (*Generator, error) {
	client := httpclient.NewWithDefaults()
	return New(opts, playlist.NewHTTPFetcher(client), extractor, logger)
}

// Subscribe registers a listener for every event this generator emits,
// starting from the next event produced.
func (g *Generator) Subscribe(l Listener) {
	g.emitter.Subscribe(l)
}

// GetThumbnails returns a snapshot of every currently known SegmentRecord,
// ordered by sn ascending.
func (g *Generator) GetThumbnails() []lifecycle.SegmentRecord {
	return g.lifecycle.Records()
}

// HasPlaylistEnded reports whether an EXT-X-ENDLIST has been observed.
func (g *Generator) HasPlaylistEnded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playlistEnded
}

// Destroy terminates the generator: it cancels the poll loop and GC timer,
// aborts any in-flight work best-effort, and unless neverDelete or
// doNotDeleteFiles unlinks every thumbnail file and the manifest.
func (g *Generator) Destroy(doNotDeleteFiles bool) {
	if !g.destroyed.CompareAndSwap(false, true) {
		return
	}
	g.cancel()
	<-g.doneCh
	g.cronSched.Stop()

	g.lifecycle.Destroy(doNotDeleteFiles)
	g.manifestW.Destroy(g.opts.NeverDelete || doNotDeleteFiles)
}

func (g *Generator) run() {
	defer close(g.doneCh)
	for {
		if g.ctx.Err() != nil {
			return
		}
		delay := g.tick()
		if g.destroyed.Load() {
			return
		}
		select {
		case <-g.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// tick performs one poll -> schedule -> extract -> write-manifest
// iteration and returns the delay to wait before the next one.
func (g *Generator) tick() time.Duration {
	result := g.poller.Poll(g.ctx)

	switch result.Status {
	case playlist.Gone:
		g.mu.Lock()
		last := g.lastPlaylist
		g.mu.Unlock()
		now := time.Now()
		if last != nil {
			g.lifecycle.OnPlaylistGone(len(last.Segments), last.MediaSequence, now)
		} else {
			g.lifecycle.OnPlaylistGone(0, 0, now)
		}
		g.writeManifest()
		// Gone ends polling. Finished fires here only when no records
		// remain; otherwise GC reports it once the last record is reaped.
		g.cancel()
		if len(g.lifecycle.Records()) == 0 {
			g.maybeEmitFinished()
		}
		return result.NextPollDelay

	case playlist.Unchanged:
		return result.NextPollDelay

	case playlist.Changed:
		g.handleChanged(result.Playlist)
		return result.NextPollDelay
	}

	return result.NextPollDelay
}

func (g *Generator) handleChanged(pl *playlist.Playlist) {
	now := time.Now()
	g.lifecycle.OnPlaylistChanged(pl.MediaSequence, now)

	g.mu.Lock()
	g.lastPlaylist = pl
	g.mu.Unlock()

	produced, err := g.scheduler.Schedule(g.ctx, pl)
	if err != nil {
		g.emitter.emit(Event{Type: EventError, Err: err})
	}

	for i := range produced {
		g.lifecycle.RecordThumbnail(produced[i])
		th := produced[i]
		g.emitter.emit(Event{Type: EventNewThumbnail, Thumbnail: &th})
	}
	if len(produced) > 0 {
		g.emitter.emit(Event{Type: EventThumbnailsChanged})
	}

	g.writeManifest()

	if g.scheduler.Ended() {
		g.mu.Lock()
		alreadyEnded := g.playlistEnded
		g.playlistEnded = true
		g.mu.Unlock()
		if !alreadyEnded {
			g.emitter.emit(Event{Type: EventPlaylistEnded})
		}
	}
}

func (g *Generator) writeManifest() {
	ended := g.HasPlaylistEnded()
	if err := g.manifestW.Write(g.lifecycle.Records(), ended); err != nil {
		g.emitter.emit(Event{Type: EventError, Err: err})
	}
}

// runGC is invoked by the cron scheduler; it serializes overlapping runs
// behind gcRunning rather than letting cron's own recover-and-skip handle
// it, since a run may still be mid-flight when the next @every fires.
func (g *Generator) runGC() {
	if !g.gcRunning.CompareAndSwap(false, true) {
		return
	}
	defer g.gcRunning.Store(false)

	removed, finished, err := g.lifecycle.GC(time.Now())
	if err != nil {
		g.emitter.emit(Event{Type: EventError, Err: err})
	}
	for i := range removed {
		r := removed[i]
		g.emitter.emit(Event{Type: EventThumbnailRemoved, Removed: &r})
	}
	if len(removed) > 0 {
		g.writeManifest()
	}
	if finished {
		g.maybeEmitFinished()
	}
}

func (g *Generator) maybeEmitFinished() {
	g.mu.Lock()
	if g.finishedFired {
		g.mu.Unlock()
		return
	}
	g.finishedFired = true
	g.mu.Unlock()

	g.emitter.emit(Event{Type: EventFinished})
	go g.Destroy(false)
}
