package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hlsthumbd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
streams:
  - playlist_url: "https://example.com/live.m3u8"
`), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "30s", cfg.FFmpeg.Timeout.String())
	require.Len(t, cfg.Streams, 1)
	assert.Equal(t, "https://example.com/live.m3u8", cfg.Streams[0].PlaylistURL)
}

func TestLoad_MissingPlaylistURL(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hlsthumbd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
streams:
  - output_dir: "/tmp/out"
`), 0o644))

	_, err := Load(cfgPath)
	assert.Error(t, err)
}

func TestLoad_InvalidLoggingLevel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hlsthumbd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
logging:
  level: "verbose"
streams:
  - playlist_url: "https://example.com/live.m3u8"
`), 0o644))

	_, err := Load(cfgPath)
	assert.Error(t, err)
}

func TestLoad_StreamFields(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hlsthumbd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
streams:
  - playlist_url: "https://example.com/live.m3u8"
    output_dir: "/var/thumbs/live"
    target_thumbnail_count: 10
    initial_thumbnail_count: 3
    width: 320
    height: 180
    expire_time: "2m"
    never_delete: false
    ignore_playlist404: true
    playlist_retry_count: 2
    output_name_prefix: "live"
`), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Len(t, cfg.Streams, 1)

	s := cfg.Streams[0]
	require.NotNil(t, s.TargetThumbnailCount)
	assert.Equal(t, 10, *s.TargetThumbnailCount)
	require.NotNil(t, s.InitialThumbnailCount)
	assert.Equal(t, 3, *s.InitialThumbnailCount)
	require.NotNil(t, s.Width)
	assert.Equal(t, 320, *s.Width)
	require.NotNil(t, s.Height)
	assert.Equal(t, 180, *s.Height)
	assert.Equal(t, "2m0s", s.ExpireTime.String())
	assert.True(t, s.IgnorePlaylist404)
	assert.Equal(t, 2, s.PlaylistRetryCount)
	assert.Equal(t, "live", s.OutputNamePrefix)
}

func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "does-not-exist.yaml")

	cfg, err := Load(cfgPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Streams: []StreamConfig{{PlaylistURL: "https://example.com/a.m3u8"}},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}
