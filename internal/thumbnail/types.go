// Package thumbnail schedules and tracks per-segment thumbnail extraction.
package thumbnail

// Location is a cursor marking where the last thumbnail was grabbed.
type Location struct {
	SN   uint64
	Time float64 // seconds into the segment
}

// Generated is an immutable record of one extracted thumbnail.
type Generated struct {
	SN   uint64
	Name string
	Time float64 // seconds into the segment
}
