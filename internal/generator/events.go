// Package generator orchestrates one playlist's poll/schedule/extract/
// manifest-write pipeline end to end, the public surface other code
// consumes.
package generator

import (
	"sync"

	"github.com/jmylchreest/hlsthumb/internal/lifecycle"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
)

// EventType names one of the six events a generator emits.
type EventType string

const (
	EventNewThumbnail      EventType = "newThumbnail"
	EventThumbnailRemoved  EventType = "thumbnailRemoved"
	EventThumbnailsChanged EventType = "thumbnailsChanged"
	EventPlaylistEnded     EventType = "playlistEnded"
	EventFinished          EventType = "finished"
	EventError             EventType = "error"
)

// Event is the single payload type delivered to listeners; only the field
// relevant to Type is populated.
type Event struct {
	Type      EventType
	Thumbnail *thumbnail.Generated
	Removed   *lifecycle.RemovedFile
	Err       error
}

// Listener receives events in emission order. It must not block; slow
// consumers should buffer on their own side.
type Listener func(Event)

// emitter fans an event out to every subscribed listener. Both the poll
// pipeline and the GC cron goroutine call emit, so events from the two may
// interleave; the mutex here only guards concurrent Subscribe/emit, not
// ordering between those two sources.
type emitter struct {
	mu        sync.Mutex
	listeners []Listener
}

func (e *emitter) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}
