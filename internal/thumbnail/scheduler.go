package thumbnail

import (
	"context"
	"fmt"

	"github.com/jmylchreest/hlsthumb/internal/playlist"
)

// Options configures a Scheduler. FixedInterval and TargetCount are
// mutually exclusive; the zero value of both means "use TargetCount=30".
type Options struct {
	FixedInterval *float64
	TargetCount   *int

	InitialThumbnailCount *int

	Width, Height int

	OutputDir string
	Prefix    string // filename prefix; "<prefix>-<sn>-<index>.jpg"
}

const defaultTargetCount = 30

// Validate checks construction-time invariants, returning a
// ConfigurationError-class error on violation. Width/Height defaulting
// (W=150 when both are unset) is the caller's responsibility, since it
// depends on the full generator configuration surface.
func (o Options) Validate() error {
	if o.FixedInterval != nil && o.TargetCount != nil {
		return fmt.Errorf("interval and targetThumbnailCount are mutually exclusive")
	}
	return nil
}

// Scheduler implements the thumbnail scheduling algorithm: given a changed
// playlist snapshot and the last thumbnail location, it walks forward
// emitting frame-extraction work and producing GeneratedThumbnails.
//
// Not safe for concurrent use; a generator drives it from its single
// cooperative pipeline.
type Scheduler struct {
	opts      Options
	extractor FrameExtractor

	lastLocation *Location
	ended        bool
}

// NewScheduler creates a Scheduler. opts must have already passed Validate.
func NewScheduler(opts Options, extractor FrameExtractor) *Scheduler {
	return &Scheduler{opts: opts, extractor: extractor}
}

// LastLocation returns the cursor of the most recently emitted thumbnail,
// or nil if none has been emitted yet.
func (s *Scheduler) LastLocation() *Location {
	return s.lastLocation
}

// Ended reports whether an endList=true playlist has been observed, the
// condition under which the orchestrator emits playlistEnded exactly once.
func (s *Scheduler) Ended() bool {
	return s.ended
}

// Schedule processes one Changed playlist snapshot, returning the
// thumbnails produced this tick in emission order.
func (s *Scheduler) Schedule(ctx context.Context, pl *playlist.Playlist) ([]Generated, error) {
	interval, ok := s.computeInterval(pl)
	if !ok {
		// totalDuration=0 with a targetThumbnailCount: skip this tick
		// rather than divide by zero or emit an unbounded burst.
		return nil, nil
	}

	starts := segmentStartTimes(pl)
	nextTime := s.nextThumbnailTime(pl, starts, interval)

	var produced []Generated

	idx, startTime, ok := findSegmentFrom(pl, starts, nextTime, 0)
	for ok {
		seg := pl.Segments[idx]
		sn := pl.SequenceNumber(idx)

		offset := nextTime - startTime
		var offsets []float64
		for offset < seg.Duration {
			offsets = append(offsets, offset)
			offset += interval
		}

		if len(offsets) == 0 {
			break
		}

		basename := fmt.Sprintf("%s-%d", s.opts.Prefix, sn)
		outcomes, err := s.extractor.Extract(ctx, ExtractRequest{
			SegmentURI:      seg.URI,
			SegmentDuration: seg.Duration,
			Offsets:         offsets,
			Width:           s.opts.Width,
			Height:          s.opts.Height,
			OutputDir:       s.opts.OutputDir,
			Basename:        basename,
		})
		if err != nil {
			// SegmentFetchError/ExtractionError: log upstream, stop this
			// tick's walk at this segment, leave lastLocation untouched so the
			// same offset is reattempted next tick if the segment is still in
			// the window.
			return produced, err
		}

		anyProduced := false
		for _, outcome := range outcomes {
			if !outcome.Produced {
				continue
			}
			anyProduced = true
			gt := Generated{SN: sn, Name: outcome.Filename, Time: outcome.Offset}
			produced = append(produced, gt)
			s.lastLocation = &Location{SN: sn, Time: outcome.Offset}
			nextTime = startTime + outcome.Offset + interval
		}

		if !anyProduced {
			// Nothing in this segment could be produced (e.g. every
			// offset fell afoul of end-of-segment rounding); push past it
			// so the walk cannot stall on the same segment forever.
			nextTime = startTime + seg.Duration
		}

		idx, startTime, ok = findSegmentFrom(pl, starts, nextTime, idx+1)
	}

	if pl.EndList {
		s.ended = true
	}

	return produced, nil
}

// computeInterval resolves the effective interval for this tick.
func (s *Scheduler) computeInterval(pl *playlist.Playlist) (float64, bool) {
	if s.opts.FixedInterval != nil {
		return *s.opts.FixedInterval, true
	}

	targetCount := defaultTargetCount
	if s.opts.TargetCount != nil {
		targetCount = *s.opts.TargetCount
	}
	if targetCount <= 0 {
		return 0, false
	}

	total := pl.TotalDuration()
	if total <= 0 {
		return 0, false
	}
	return total / float64(targetCount), true
}

// nextThumbnailTime computes the next intra-playlist time to grab, per the
// formula in the scheduling algorithm: resume just past the last location
// if it is still in the window, otherwise backfill from T=0 or from
// initialThumbnailCount segments before the end.
func (s *Scheduler) nextThumbnailTime(pl *playlist.Playlist, starts []float64, interval float64) float64 {
	if s.lastLocation != nil {
		for i := range pl.Segments {
			if pl.SequenceNumber(i) == s.lastLocation.SN {
				return starts[i] + s.lastLocation.Time + interval
			}
		}
		// lastLocation's segment has already left the window. The
		// invariant says this should not happen on a densely-polled
		// stream; if it does (e.g. a large gap between polls), fall
		// through and re-backfill from the start of the new window
		// rather than replaying stale state.
	}

	if s.opts.InitialThumbnailCount == nil {
		return 0
	}

	total := pl.TotalDuration()
	nextTime := total - float64(*s.opts.InitialThumbnailCount)*interval
	if nextTime < 0 {
		nextTime = 0
	}
	return nextTime
}

// segmentStartTimes returns, for each segment index, its start time on the
// playlist's internal timeline (T=0 at the first currently-present segment).
func segmentStartTimes(pl *playlist.Playlist) []float64 {
	starts := make([]float64, len(pl.Segments))
	var acc float64
	for i, seg := range pl.Segments {
		starts[i] = acc
		acc += seg.Duration
	}
	return starts
}

// findSegmentFrom searches forward from fromIdx for the first segment i
// with starts[i] <= t < starts[i]+duration.
func findSegmentFrom(pl *playlist.Playlist, starts []float64, t float64, fromIdx int) (int, float64, bool) {
	for i := fromIdx; i < len(pl.Segments); i++ {
		s := starts[i]
		if s <= t && t < s+pl.Segments[i].Duration {
			return i, s, true
		}
	}
	return 0, 0, false
}
