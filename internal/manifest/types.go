// Package manifest serializes the externally-visible thumbnail manifest:
// the JSON file consumers poll to discover newly produced and removed
// thumbnails without tracking generator events themselves.
package manifest

// ThumbnailEntry is one thumbnail's entry within a segment's listing.
type ThumbnailEntry struct {
	Time float64 `json:"time"`
	Name string  `json:"name"`
}

// SegmentEntry is one segment's listing within a manifest.
type SegmentEntry struct {
	SN          uint64           `json:"sn"`
	RemovalTime *int64           `json:"removalTime"`
	Thumbnails  []ThumbnailEntry `json:"thumbnails"`
}

// Manifest is the full externally-visible document.
type Manifest struct {
	Ended    bool           `json:"ended"`
	Segments []SegmentEntry `json:"segments"`
}
