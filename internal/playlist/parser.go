package playlist

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseResult is the outcome of parsing one playlist response body. A
// master playlist yields VariantURI and no segments; a media playlist
// yields a Playlist.
type ParseResult struct {
	IsMaster   bool
	VariantURI string
	Playlist   *Playlist
}

// Parse parses an HLS M3U8 document. baseURL is used to resolve relative
// segment and variant URIs against.
func Parse(data []byte, baseURL string) (*ParseResult, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		segments          []Segment
		currentDuration   float64
		haveDuration      bool
		mediaSequence     uint64
		targetDuration    float64
		endList           bool
		isMaster          bool
		isStreamInfNext   bool
		sawExtM3U         bool
		firstVariantURI   string
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "#EXTM3U" {
			sawExtM3U = true
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			isMaster = true
			isStreamInfNext = true
			continue
		}

		if line == "#EXT-X-ENDLIST" {
			endList = true
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:") {
			seqStr := strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:")
			seq, err := strconv.ParseUint(seqStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing media sequence %q: %w", seqStr, err)
			}
			mediaSequence = seq
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-TARGETDURATION:") {
			durStr := strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")
			dur, err := strconv.ParseFloat(durStr, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing target duration %q: %w", durStr, err)
			}
			targetDuration = dur
			continue
		}

		if strings.HasPrefix(line, "#EXTINF:") {
			durStr := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durStr, ","); idx >= 0 {
				durStr = durStr[:idx]
			}
			dur, err := strconv.ParseFloat(durStr, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing segment duration %q: %w", durStr, err)
			}
			currentDuration = dur
			haveDuration = true
			continue
		}

		if strings.HasPrefix(line, "#") {
			// Unrecognized tag (byte-range, key, discontinuity, etc.); not
			// modeled, per the segment/playlist shapes this parser targets.
			continue
		}

		// URI line.
		if isStreamInfNext {
			if firstVariantURI == "" {
				firstVariantURI = resolveURL(baseURL, line)
			}
			isStreamInfNext = false
			continue
		}
		if haveDuration {
			segments = append(segments, Segment{
				URI:      resolveURL(baseURL, line),
				Duration: currentDuration,
			})
			haveDuration = false
			continue
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning playlist: %w", err)
	}

	if !sawExtM3U {
		return nil, fmt.Errorf("not an HLS playlist: missing #EXTM3U")
	}

	if isMaster {
		if firstVariantURI == "" {
			return nil, fmt.Errorf("master playlist has no variants")
		}
		return &ParseResult{IsMaster: true, VariantURI: firstVariantURI}, nil
	}

	return &ParseResult{
		Playlist: &Playlist{
			MediaSequence:  mediaSequence,
			TargetDuration: targetDuration,
			EndList:        endList,
			Segments:       segments,
		},
	}, nil
}

// resolveURL resolves a possibly-relative URI against baseURL. If baseURL
// fails to parse, the raw URI is returned as a best-effort fallback.
func resolveURL(baseURL, uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}
