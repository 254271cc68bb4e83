package lifecycle

import (
	"testing"
	"time"

	"github.com/jmylchreest/hlsthumb/internal/storage"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, expireTime time.Duration, neverDelete bool) (*Manager, *storage.Sandbox) {
	t.Helper()
	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	return NewManager(sandbox, expireTime, neverDelete, nil), sandbox
}

func TestManager_OnPlaylistChanged_MarksDroppedSegments(t *testing.T) {
	m, _ := newTestManager(t, 10*time.Second, false)
	m.RecordThumbnail(thumbnail.Generated{SN: 100, Name: "a.jpg", Time: 0})
	m.RecordThumbnail(thumbnail.Generated{SN: 101, Name: "b.jpg", Time: 0})

	now := time.Now()
	m.OnPlaylistChanged(101, now)

	recs := m.Records()
	require.Len(t, recs, 2)
	for _, r := range recs {
		if r.SN == 100 {
			require.NotNil(t, r.RemovalTime)
		}
		if r.SN == 101 {
			assert.Nil(t, r.RemovalTime)
		}
	}
}

func TestManager_GC_ReapsExpiredAndUnlinksFiles(t *testing.T) {
	m, sandbox := newTestManager(t, 10*time.Second, false)
	require.NoError(t, sandbox.WriteFile("a.jpg", []byte("x")))
	m.RecordThumbnail(thumbnail.Generated{SN: 100, Name: "a.jpg", Time: 0})

	base := time.Now()
	m.OnPlaylistChanged(101, base)

	removed, finished, err := m.GC(base.Add(20 * time.Second))
	require.NoError(t, err)
	assert.False(t, finished)
	require.Len(t, removed, 1)
	assert.Equal(t, uint64(100), removed[0].SN)
	assert.Equal(t, "a.jpg", removed[0].Filename)

	exists, err := sandbox.Exists("a.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, m.Records())
}

func TestManager_GC_NotYetExpired_DoesNothing(t *testing.T) {
	m, sandbox := newTestManager(t, time.Minute, false)
	require.NoError(t, sandbox.WriteFile("a.jpg", []byte("x")))
	m.RecordThumbnail(thumbnail.Generated{SN: 100, Name: "a.jpg", Time: 0})

	base := time.Now()
	m.OnPlaylistChanged(101, base)

	removed, finished, err := m.GC(base.Add(5 * time.Second))
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Empty(t, removed)
	assert.Len(t, m.Records(), 1)
}

func TestManager_NeverDelete_SkipsGC(t *testing.T) {
	m, sandbox := newTestManager(t, 0, true)
	require.NoError(t, sandbox.WriteFile("a.jpg", []byte("x")))
	m.RecordThumbnail(thumbnail.Generated{SN: 100, Name: "a.jpg", Time: 0})
	m.OnPlaylistChanged(101, time.Now())

	removed, _, err := m.GC(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Len(t, m.Records(), 1)

	exists, err := sandbox.Exists("a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestManager_OnPlaylistGone_ThenGC_ReportsFinished(t *testing.T) {
	m, sandbox := newTestManager(t, time.Second, false)
	require.NoError(t, sandbox.WriteFile("a.jpg", []byte("x")))
	m.RecordThumbnail(thumbnail.Generated{SN: 100, Name: "a.jpg", Time: 0})

	base := time.Now()
	m.OnPlaylistGone(1, 100, base)

	_, finished, err := m.GC(base.Add(5 * time.Second))
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Empty(t, m.Records())
}

func TestManager_Destroy_UnlinksUnlessDoNotDelete(t *testing.T) {
	m, sandbox := newTestManager(t, time.Second, false)
	require.NoError(t, sandbox.WriteFile("a.jpg", []byte("x")))
	m.RecordThumbnail(thumbnail.Generated{SN: 100, Name: "a.jpg", Time: 0})

	m.Destroy(false)
	exists, err := sandbox.Exists("a.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManager_Destroy_DoNotDeleteFilesPreservesThem(t *testing.T) {
	m, sandbox := newTestManager(t, time.Second, false)
	require.NoError(t, sandbox.WriteFile("a.jpg", []byte("x")))
	m.RecordThumbnail(thumbnail.Generated{SN: 100, Name: "a.jpg", Time: 0})

	m.Destroy(true)
	exists, err := sandbox.Exists("a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}
