package thumbnail

import "context"

// ExtractRequest asks a FrameExtractor to produce frames from one segment
// at a set of offsets, all already clamped to be < SegmentDuration by the
// caller based on the playlist's declared EXTINF duration. The extractor
// may still fail to produce a frame at a trailing offset if the segment's
// real decoded duration is shorter than declared.
type ExtractRequest struct {
	SegmentURI      string
	SegmentDuration float64
	Offsets         []float64 // seconds into the segment, ascending

	Width, Height int // 0 means "let the extractor choose"

	OutputDir string
	Basename  string // file basename, without the "-<index>.jpg" suffix
}

// FrameOutcome reports the result of attempting to produce one frame.
type FrameOutcome struct {
	Index    int // position within ExtractRequest.Offsets
	Offset   float64
	Produced bool
	Filename string // set iff Produced; relative to OutputDir
	Err      error
}

// FrameExtractor is the opaque capability that downloads a segment's bytes
// and produces JPEG frames from it. It is injected into the Scheduler so
// the scheduling logic never depends on how frames are actually rendered.
type FrameExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]FrameOutcome, error)
}
