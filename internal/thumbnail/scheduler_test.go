package thumbnail

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmylchreest/hlsthumb/internal/playlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingExtractor produces a frame for every offset it is asked for,
// recording every request it receives.
type recordingExtractor struct {
	requests []ExtractRequest
	// failOffsets, keyed by segment URI, marks offsets to report as not
	// produced (simulating end-of-segment rounding misses).
	failOffsets map[string]map[float64]bool
}

func (e *recordingExtractor) Extract(_ context.Context, req ExtractRequest) ([]FrameOutcome, error) {
	e.requests = append(e.requests, req)
	outcomes := make([]FrameOutcome, len(req.Offsets))
	for i, off := range req.Offsets {
		produced := true
		if fails, ok := e.failOffsets[req.SegmentURI]; ok && fails[off] {
			produced = false
		}
		o := FrameOutcome{Index: i, Offset: off}
		if produced {
			o.Produced = true
			o.Filename = fmt.Sprintf("%s-%d.jpg", req.Basename, i)
		}
		outcomes[i] = o
	}
	return outcomes, nil
}

func bipbopPlaylist(segCount int, segDuration float64, endList bool) *playlist.Playlist {
	segs := make([]playlist.Segment, segCount)
	for i := range segs {
		segs[i] = playlist.Segment{URI: fmt.Sprintf("segment%d.ts", i), Duration: segDuration}
	}
	return &playlist.Playlist{MediaSequence: 0, TargetDuration: segDuration, EndList: endList, Segments: segs}
}

func TestScheduler_BipbopVODLike(t *testing.T) {
	pl := bipbopPlaylist(10, 6.0, true)
	extractor := &recordingExtractor{}
	target := 5
	sched := NewScheduler(Options{TargetCount: &target, OutputDir: "/out", Prefix: "gen"}, extractor)

	thumbs, err := sched.Schedule(context.Background(), pl)
	require.NoError(t, err)
	require.Len(t, thumbs, 5)

	expectedSN := []uint64{0, 2, 4, 6, 8}
	for i, th := range thumbs {
		assert.Equal(t, expectedSN[i], th.SN)
		assert.Equal(t, 0.0, th.Time)
	}
	assert.True(t, sched.Ended())
}

func TestScheduler_InitialCountBackfill(t *testing.T) {
	pl := bipbopPlaylist(10, 6.0, true)
	extractor := &recordingExtractor{}
	interval := 6.0
	initial := 3
	sched := NewScheduler(Options{FixedInterval: &interval, InitialThumbnailCount: &initial, OutputDir: "/out", Prefix: "gen"}, extractor)

	thumbs, err := sched.Schedule(context.Background(), pl)
	require.NoError(t, err)
	require.Len(t, thumbs, 3)

	expectedSN := []uint64{7, 8, 9}
	for i, th := range thumbs {
		assert.Equal(t, expectedSN[i], th.SN)
		assert.Equal(t, 0.0, th.Time)
	}
}

func TestScheduler_IdempotentOnUnchangedRepoll(t *testing.T) {
	pl := bipbopPlaylist(10, 6.0, true)
	extractor := &recordingExtractor{}
	target := 5
	sched := NewScheduler(Options{TargetCount: &target, OutputDir: "/out", Prefix: "gen"}, extractor)

	first, err := sched.Schedule(context.Background(), pl)
	require.NoError(t, err)
	require.Len(t, first, 5)

	second, err := sched.Schedule(context.Background(), pl)
	require.NoError(t, err)
	assert.Empty(t, second, "re-running against the same snapshot must not re-emit")
}

func TestScheduler_SlidingWindow(t *testing.T) {
	extractor := &recordingExtractor{}
	interval := 6.0
	sched := NewScheduler(Options{FixedInterval: &interval, OutputDir: "/out", Prefix: "gen"}, extractor)

	segsA := make([]playlist.Segment, 6)
	for i := range segsA {
		segsA[i] = playlist.Segment{URI: fmt.Sprintf("segment%d.ts", 100+i), Duration: 6.0}
	}
	plA := &playlist.Playlist{MediaSequence: 100, TargetDuration: 6, Segments: segsA}

	thumbsA, err := sched.Schedule(context.Background(), plA)
	require.NoError(t, err)
	require.Len(t, thumbsA, 6)
	for i, th := range thumbsA {
		assert.EqualValues(t, 100+i, th.SN)
	}

	segsB := make([]playlist.Segment, 6)
	for i := range segsB {
		segsB[i] = playlist.Segment{URI: fmt.Sprintf("segment%d.ts", 101+i), Duration: 6.0}
	}
	plB := &playlist.Playlist{MediaSequence: 101, TargetDuration: 6, Segments: segsB}

	thumbsB, err := sched.Schedule(context.Background(), plB)
	require.NoError(t, err)
	require.Len(t, thumbsB, 1)
	assert.EqualValues(t, 106, thumbsB[0].SN)
	assert.Equal(t, 0.0, thumbsB[0].Time)
}

func TestScheduler_NextTimeBeyondDuration_NoThumbnails(t *testing.T) {
	pl := bipbopPlaylist(2, 6.0, false)
	extractor := &recordingExtractor{}
	interval := 100.0
	sched := NewScheduler(Options{FixedInterval: &interval, OutputDir: "/out", Prefix: "gen"}, extractor)
	sched.lastLocation = &Location{SN: 1, Time: 0}

	thumbs, err := sched.Schedule(context.Background(), pl)
	require.NoError(t, err)
	assert.Empty(t, thumbs)
}

func TestScheduler_ZeroDurationWithTargetCount_SkipsTick(t *testing.T) {
	pl := &playlist.Playlist{MediaSequence: 0, Segments: nil}
	extractor := &recordingExtractor{}
	target := 5
	sched := NewScheduler(Options{TargetCount: &target, OutputDir: "/out", Prefix: "gen"}, extractor)

	thumbs, err := sched.Schedule(context.Background(), pl)
	require.NoError(t, err)
	assert.Empty(t, thumbs)
	assert.Nil(t, sched.LastLocation())
	assert.Len(t, extractor.requests, 0)
}

func TestScheduler_MissingFrameIsDropped(t *testing.T) {
	pl := bipbopPlaylist(1, 6.0, false)
	extractor := &recordingExtractor{failOffsets: map[string]map[float64]bool{
		"segment0.ts": {0: true},
	}}
	interval := 3.0
	sched := NewScheduler(Options{FixedInterval: &interval, OutputDir: "/out", Prefix: "gen"}, extractor)

	thumbs, err := sched.Schedule(context.Background(), pl)
	require.NoError(t, err)
	// offset 0 dropped, offset 3 still produced.
	require.Len(t, thumbs, 1)
	assert.Equal(t, 3.0, thumbs[0].Time)
}

func TestOptions_Validate_MutualExclusion(t *testing.T) {
	interval := 6.0
	target := 5
	opts := Options{FixedInterval: &interval, TargetCount: &target}
	assert.Error(t, opts.Validate())
}
