// Package playlist parses and polls HLS media playlists.
package playlist

// Segment is one media segment listed in a parsed playlist.
type Segment struct {
	URI      string
	Duration float64 // seconds
}

// Playlist is an immutable parsed snapshot of a media playlist.
type Playlist struct {
	MediaSequence  uint64
	TargetDuration float64
	EndList        bool
	Segments       []Segment
}

// SequenceNumber returns the sequence number of the segment at the given
// index, namely mediaSequence + index.
func (p *Playlist) SequenceNumber(index int) uint64 {
	return p.MediaSequence + uint64(index)
}

// TotalDuration returns the sum of all segment durations.
func (p *Playlist) TotalDuration() float64 {
	var total float64
	for _, s := range p.Segments {
		total += s.Duration
	}
	return total
}

// Equal reports whether two snapshots agree on the lossy equality the
// poller uses for change detection: segment count and media sequence.
func (p *Playlist) Equal(other *Playlist) bool {
	if other == nil {
		return false
	}
	return len(p.Segments) == len(other.Segments) && p.MediaSequence == other.MediaSequence
}
