package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bipbopPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:6.000,
segment0.ts
#EXTINF:6.000,
segment1.ts
#EXTINF:6.000,
segment2.ts
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1280x720
variant_720p.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
variant_360p.m3u8
`

func TestParse_MediaPlaylist(t *testing.T) {
	result, err := Parse([]byte(bipbopPlaylist), "https://example.com/live/index.m3u8")
	require.NoError(t, err)
	require.False(t, result.IsMaster)
	require.NotNil(t, result.Playlist)

	pl := result.Playlist
	assert.EqualValues(t, 0, pl.MediaSequence)
	assert.Equal(t, 6.0, pl.TargetDuration)
	assert.True(t, pl.EndList)
	require.Len(t, pl.Segments, 3)
	assert.Equal(t, "https://example.com/live/segment0.ts", pl.Segments[0].URI)
	assert.Equal(t, 6.0, pl.Segments[0].Duration)
	assert.Equal(t, 18.0, pl.TotalDuration())
}

func TestParse_MasterPlaylist_PicksFirstVariant(t *testing.T) {
	result, err := Parse([]byte(masterPlaylist), "https://example.com/live/master.m3u8")
	require.NoError(t, err)
	require.True(t, result.IsMaster)
	assert.Equal(t, "https://example.com/live/variant_720p.m3u8", result.VariantURI)
}

func TestParse_MissingExtM3U(t *testing.T) {
	_, err := Parse([]byte("not a playlist\n"), "https://example.com/live.m3u8")
	assert.Error(t, err)
}

func TestParse_AbsoluteSegmentURI(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nhttps://cdn.example.com/seg0.ts\n#EXT-X-ENDLIST\n"
	result, err := Parse([]byte(body), "https://example.com/live/index.m3u8")
	require.NoError(t, err)
	require.Len(t, result.Playlist.Segments, 1)
	assert.Equal(t, "https://cdn.example.com/seg0.ts", result.Playlist.Segments[0].URI)
}

func TestPlaylist_SequenceNumber(t *testing.T) {
	pl := &Playlist{MediaSequence: 100}
	assert.EqualValues(t, 100, pl.SequenceNumber(0))
	assert.EqualValues(t, 105, pl.SequenceNumber(5))
}

func TestPlaylist_Equal(t *testing.T) {
	a := &Playlist{MediaSequence: 100, Segments: make([]Segment, 6)}
	b := &Playlist{MediaSequence: 100, Segments: make([]Segment, 6)}
	c := &Playlist{MediaSequence: 101, Segments: make([]Segment, 6)}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}
