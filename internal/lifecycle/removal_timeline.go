// Package lifecycle tracks when segments leave the live window and reaps
// their thumbnails once they have aged past the configured expiry.
package lifecycle

import "time"

// RemovalTimeline is a compact sliding window over consecutive removed
// sequence numbers: times[i] is the wall-clock instant at which sequence
// number offset+i left the playlist. Entries are appended densely and
// never re-added once recorded.
type RemovalTimeline struct {
	offset *uint64
	times  []time.Time
}

// Contains reports whether sn has already been recorded as removed.
func (rt *RemovalTimeline) Contains(sn uint64) bool {
	if rt.offset == nil || sn < *rt.offset {
		return false
	}
	return sn < *rt.offset+uint64(len(rt.times))
}

// MarkRemoved records sn as having left the window at instant at. Marking
// is a no-op if sn is already recorded or if sn does not densely extend
// the timeline (the caller is expected to mark in non-decreasing sn order).
func (rt *RemovalTimeline) MarkRemoved(sn uint64, at time.Time) {
	if rt.offset == nil {
		o := sn
		rt.offset = &o
	}
	expected := *rt.offset + uint64(len(rt.times))
	if sn < expected {
		return
	}
	if sn > expected {
		// A gap: backfill with `at` so the timeline stays dense. This can
		// happen if a sequence number is reaped without ever being polled
		// individually (e.g. a large jump in mediaSequence between polls).
		for expected < sn {
			rt.times = append(rt.times, at)
			expected++
		}
	}
	rt.times = append(rt.times, at)
}

// Reap drops every entry whose removal instant is at or before
// now-expireTime, advancing offset past them. It returns the highest
// sequence number reaped and whether anything was reaped at all.
func (rt *RemovalTimeline) Reap(now time.Time, expireTime time.Duration) (highest uint64, ok bool) {
	if rt.offset == nil {
		return 0, false
	}
	threshold := now.Add(-expireTime)
	n := 0
	for n < len(rt.times) && !rt.times[n].After(threshold) {
		n++
	}
	if n == 0 {
		return 0, false
	}
	highest = *rt.offset + uint64(n-1)
	*rt.offset += uint64(n)
	rt.times = rt.times[n:]
	return highest, true
}

// Len reports how many sequence numbers are currently tracked as removed
// but not yet reaped.
func (rt *RemovalTimeline) Len() int {
	return len(rt.times)
}
