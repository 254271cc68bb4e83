package generator

import (
	"fmt"
	"time"
)

// ConfigurationError wraps a construction-time validation failure, the
// class of error that is fatal rather than retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Options is the full configuration surface a caller supplies to
// construct one generator.
type Options struct {
	PlaylistURL string

	OutputDir string
	TempDir   string // optional; defaults to OutputDir

	Interval              *float64
	TargetThumbnailCount  *int
	InitialThumbnailCount *int

	Width, Height int

	ExpireTime  time.Duration
	NeverDelete bool

	IgnorePlaylist404  bool
	PlaylistRetryCount int // -1 = unlimited

	OutputNamePrefix string
	ManifestFileName string

	FFmpegTimeout time.Duration
}

// Validate checks every construction-time invariant the spec calls out as
// a ConfigurationError, and fills in the defaults that only make sense
// once validated (manifest filename, retry count, width).
func (o *Options) Validate() error {
	if o.PlaylistURL == "" {
		return &ConfigurationError{Reason: "playlistUrl is required"}
	}
	if o.OutputDir == "" {
		return &ConfigurationError{Reason: "outputDir is required"}
	}
	if o.Interval != nil && o.TargetThumbnailCount != nil {
		return &ConfigurationError{Reason: "interval and targetThumbnailCount are mutually exclusive"}
	}
	if o.Width == 0 && o.Height == 0 {
		o.Width = 150
	}
	if o.NeverDelete && o.ExpireTime != 0 {
		return &ConfigurationError{Reason: "expireTime must be unset when neverDelete is set"}
	}
	if o.PlaylistRetryCount == 0 {
		o.PlaylistRetryCount = 2
	}
	if o.PlaylistRetryCount < -1 {
		return &ConfigurationError{Reason: fmt.Sprintf("playlistRetryCount must be >= -1, got %d", o.PlaylistRetryCount)}
	}
	if o.ManifestFileName == "" {
		o.ManifestFileName = "thumbnails.json"
	}
	if o.TempDir == "" {
		o.TempDir = o.OutputDir
	}
	return nil
}
