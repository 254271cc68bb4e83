package lifecycle

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/hlsthumb/internal/storage"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
)

// SegmentRecord accumulates the thumbnails known for one sequence number.
// Thumbnails are kept strictly ordered by Time ascending.
type SegmentRecord struct {
	SN          uint64
	RemovalTime *time.Time
	Thumbnails  []thumbnail.Generated
}

func (r *SegmentRecord) insert(g thumbnail.Generated) {
	idx := sort.Search(len(r.Thumbnails), func(i int) bool {
		return r.Thumbnails[i].Time >= g.Time
	})
	r.Thumbnails = append(r.Thumbnails, thumbnail.Generated{})
	copy(r.Thumbnails[idx+1:], r.Thumbnails[idx:])
	r.Thumbnails[idx] = g
}

// RemovedFile describes one thumbnail file deleted by a GC pass, the unit
// a generator turns into a ThumbnailRemoved event.
type RemovedFile struct {
	SN       uint64
	Filename string
}

// Manager tracks every SegmentRecord currently known, the RemovalTimeline
// of sequence numbers that have left the playlist window, and reaps both
// once entries age past expireTime. Safe for concurrent use: a generator
// drives it from its single cooperative pipeline, but GC may run from a
// separate cron goroutine, so every method holds an internal mutex.
type Manager struct {
	mu sync.Mutex

	timeline    RemovalTimeline
	records     map[uint64]*SegmentRecord
	neverDelete bool
	expireTime  time.Duration
	sandbox     *storage.Sandbox
	logger      *slog.Logger

	gone bool
}

// NewManager creates a Manager. sandbox scopes where thumbnail files live
// so GC can unlink them; it may be nil only if neverDelete is also true
// and no extraction will ever occur (e.g. tests of timeline bookkeeping).
func NewManager(sandbox *storage.Sandbox, expireTime time.Duration, neverDelete bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		records:     make(map[uint64]*SegmentRecord),
		sandbox:     sandbox,
		expireTime:  expireTime,
		neverDelete: neverDelete,
		logger:      logger,
	}
}

// RecordThumbnail registers a newly produced thumbnail against its segment.
func (m *Manager) RecordThumbnail(g thumbnail.Generated) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[g.SN]
	if !ok {
		rec = &SegmentRecord{SN: g.SN}
		m.records[g.SN] = rec
	}
	rec.insert(g)
}

// OnPlaylistChanged marks every sequence number below firstPresent that has
// not already been recorded as removed, at instant now.
func (m *Manager) OnPlaylistChanged(firstPresent uint64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markBelow(firstPresent, now)
}

// OnPlaylistGone marks every still-tracked sequence number as removed and
// flags the stream as terminally gone, the precondition for Finished.
func (m *Manager) OnPlaylistGone(lastKnownSegmentCount int, lastKnownFirstSN uint64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gone = true
	m.markBelow(lastKnownFirstSN+uint64(lastKnownSegmentCount), now)
}

func (m *Manager) markBelow(exclusiveUpperBound uint64, now time.Time) {
	for sn, rec := range m.records {
		if sn >= exclusiveUpperBound {
			continue
		}
		if rec.RemovalTime != nil {
			continue
		}
		if m.timeline.Contains(sn) {
			continue
		}
		t := now
		rec.RemovalTime = &t
		m.timeline.MarkRemoved(sn, now)
	}
}

// GC runs one garbage-collection pass: it reaps the removal timeline for
// entries older than expireTime, deletes every SegmentRecord at or below
// the highest reaped sequence number, unlinks their thumbnail files, and
// reports which files were removed plus whether the generator is now
// Finished (Gone was observed and no records remain).
func (m *Manager) GC(now time.Time) (removed []RemovedFile, finished bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.neverDelete {
		finished = m.gone && len(m.records) == 0
		return nil, finished, nil
	}

	highest, ok := m.timeline.Reap(now, m.expireTime)
	if !ok {
		finished = m.gone && len(m.records) == 0
		return nil, finished, nil
	}

	var firstErr error
	for sn, rec := range m.records {
		if sn > highest {
			continue
		}
		for _, th := range rec.Thumbnails {
			if m.sandbox != nil {
				if delErr := m.sandbox.Remove(th.Name); delErr != nil && firstErr == nil {
					firstErr = fmt.Errorf("removing thumbnail %s: %w", th.Name, delErr)
					m.logger.Error("failed to remove expired thumbnail",
						slog.String("file", th.Name), slog.String("error", delErr.Error()))
					continue
				}
			}
			removed = append(removed, RemovedFile{SN: sn, Filename: th.Name})
		}
		delete(m.records, sn)
	}

	finished = m.gone && len(m.records) == 0
	return removed, finished, firstErr
}

// Records returns a snapshot of current SegmentRecords ordered by sn,
// the shape ManifestWriter needs.
func (m *Manager) Records() []SegmentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SegmentRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SN < out[j].SN })
	return out
}

// Destroy unlinks every remaining thumbnail file unless neverDelete or
// doNotDeleteFiles was requested. Errors are logged, not fatal.
func (m *Manager) Destroy(doNotDeleteFiles bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.neverDelete || doNotDeleteFiles || m.sandbox == nil {
		return
	}
	for _, rec := range m.records {
		for _, th := range rec.Thumbnails {
			if err := m.sandbox.Remove(th.Name); err != nil {
				m.logger.Error("failed to remove thumbnail on destroy",
					slog.String("file", th.Name), slog.String("error", err.Error()))
			}
		}
	}
}
