package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/hlsthumb/internal/lifecycle"
	"github.com/jmylchreest/hlsthumb/internal/storage"
)

// Writer serializes {ended, segments[]} to a single file within a sandbox,
// always via write-temp-then-rename so a reader never observes a partial
// write. A single Writer must not be shared across generators writing
// different files, but concurrent calls to Write on the same Writer are
// safe and apply last-writer-wins.
type Writer struct {
	sandbox  *storage.Sandbox
	filename string
	logger   *slog.Logger

	mu sync.Mutex
}

// NewWriter creates a Writer that publishes to filename within sandbox.
func NewWriter(sandbox *storage.Sandbox, filename string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{sandbox: sandbox, filename: filename, logger: logger}
}

// Write renders records and ended into the manifest document and publishes
// it atomically. A failed write is logged here and also returned, so the
// generator can decide whether the failure is fatal (it is not, per the
// write contract: log and continue).
func (w *Writer) Write(records []lifecycle.SegmentRecord, ended bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc := Manifest{Ended: ended, Segments: make([]SegmentEntry, 0, len(records))}
	for _, rec := range records {
		entry := SegmentEntry{SN: rec.SN, Thumbnails: make([]ThumbnailEntry, 0, len(rec.Thumbnails))}
		if rec.RemovalTime != nil {
			ms := rec.RemovalTime.UnixMilli()
			entry.RemovalTime = &ms
		}
		for _, th := range rec.Thumbnails {
			entry.Thumbnails = append(entry.Thumbnails, ThumbnailEntry{Time: th.Time, Name: th.Name})
		}
		doc.Segments = append(doc.Segments, entry)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	if err := w.sandbox.AtomicWrite(w.filename, data); err != nil {
		w.logger.Error("manifest write failed", slog.String("file", w.filename), slog.String("error", err.Error()))
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Destroy unlinks the manifest file unless neverDelete is set. Errors are
// logged, not fatal.
func (w *Writer) Destroy(neverDelete bool) {
	if neverDelete {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.sandbox.Remove(w.filename); err != nil {
		w.logger.Error("manifest removal failed", slog.String("file", w.filename), slog.String("error", err.Error()))
	}
}
