package playlist

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Status classifies the outcome of one Poll.
type Status int

const (
	// Unchanged means the fetch succeeded but the snapshot is equal to the
	// previous one by the lossy (segment count, media sequence) comparison.
	Unchanged Status = iota
	// Changed means a new, distinct snapshot was parsed.
	Changed
	// Gone means the playlist could not be fetched after exhausting retries,
	// or returned 404 without ignorePlaylist404.
	Gone
)

const (
	attemptTimeout   = 15 * time.Second
	goneCadence      = 30 * time.Second
	unknownTDCadence = 2 * time.Second
	minCadence       = 1 * time.Second
)

// retryBackoff is the fixed delay between playlist fetch retries. It is a
// var rather than a const so tests can shrink it.
var retryBackoff = 5 * time.Second

// Result is the outcome of one Poll call.
type Result struct {
	Status        Status
	Playlist      *Playlist // set iff Status == Changed
	NextPollDelay time.Duration
}

// Poller fetches and parses a live HLS media playlist, classifying
// transitions across successive polls. It is not safe for concurrent use;
// a generator calls Poll from its single cooperative pipeline.
type Poller struct {
	fetcher     Fetcher
	originalURL string

	effectiveURL   string
	masterResolved bool

	retryCount        int // -1 = unlimited
	ignorePlaylist404 bool

	last *Playlist
	logger *slog.Logger
}

// NewPoller creates a Poller for the given playlist URL.
func NewPoller(fetcher Fetcher, playlistURL string, retryCount int, ignorePlaylist404 bool, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:           fetcher,
		originalURL:       playlistURL,
		effectiveURL:      playlistURL,
		retryCount:        retryCount,
		ignorePlaylist404: ignorePlaylist404,
		logger:            logger,
	}
}

// EffectiveURL returns the URL currently being polled: the original URL
// until a master playlist's first variant has been resolved, after which
// it is the variant's absolute URL.
func (p *Poller) EffectiveURL() string {
	return p.effectiveURL
}

// Poll performs one fetch-and-classify cycle.
func (p *Poller) Poll(ctx context.Context) Result {
	pl, gone := p.fetchMediaPlaylist(ctx, p.effectiveURL, 0)
	if gone {
		return Result{Status: Gone}
	}

	status := Changed
	if p.last != nil && p.last.Equal(pl) {
		status = Unchanged
	}
	p.last = pl

	result := Result{
		Status:        status,
		NextPollDelay: nextPollDelay(pl),
	}
	if status == Changed {
		result.Playlist = pl
	}
	return result
}

// fetchMediaPlaylist fetches url, following at most one level of master
// playlist indirection (depth guards against a pathological variant that
// itself points at a master). It applies the full retry/backoff policy
// and returns gone=true once retries are exhausted or a hard 404 is hit.
func (p *Poller) fetchMediaPlaylist(ctx context.Context, url string, depth int) (*Playlist, bool) {
	if depth > 1 {
		p.logger.Error("master playlist variant chain too deep", slog.String("url", url))
		return nil, true
	}

	body, ok := p.fetchWithRetry(ctx, url)
	if !ok {
		return nil, true
	}

	parsed, err := Parse(body, url)
	if err != nil {
		p.logger.Error("parsing playlist failed", slog.String("error", err.Error()))
		return nil, true
	}

	if parsed.IsMaster {
		p.effectiveURL = parsed.VariantURI
		p.masterResolved = true
		return p.fetchMediaPlaylist(ctx, parsed.VariantURI, depth+1)
	}

	return parsed.Playlist, false
}

// fetchWithRetry applies the poller's retry/backoff/404 policy for a
// single URL and returns the successfully fetched body, or ok=false once
// the attempt budget (or caller cancellation) is exhausted.
func (p *Poller) fetchWithRetry(ctx context.Context, url string) ([]byte, bool) {
	maxAttempts := p.retryCount + 1 // retryCount=-1 => maxAttempts=0 => unlimited sentinel

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, false
		}

		if p.retryCount >= 0 && attempt >= maxAttempts {
			return nil, false
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		status, body, err := p.fetcher.FetchOnce(attemptCtx, url)
		cancel()

		if err == nil && status == http.StatusOK {
			return body, true
		}

		if err == nil && status == http.StatusNotFound && !p.ignorePlaylist404 {
			p.logger.Warn("playlist 404", slog.String("url", url))
			return nil, false
		}

		if err != nil {
			p.logger.Warn("playlist fetch failed", slog.String("url", url), slog.String("error", err.Error()))
		} else {
			p.logger.Warn("playlist fetch non-OK status", slog.String("url", url), slog.Int("status", status))
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(retryBackoff):
		}
	}
}

// nextPollDelay computes the poller's advisory cadence for the next poll.
func nextPollDelay(pl *Playlist) time.Duration {
	if pl.EndList {
		return goneCadence
	}
	if pl.TargetDuration <= 0 {
		return unknownTDCadence
	}
	d := time.Duration(pl.TargetDuration/2*1000) * time.Millisecond
	if d < minCadence {
		return minCadence
	}
	return d
}
