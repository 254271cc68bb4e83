package frameextract

import (
	"context"
	"testing"

	"github.com/jmylchreest/hlsthumb/internal/storage"
	"github.com/jmylchreest/hlsthumb/internal/thumbnail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholder_Extract_ProducesOneFilePerOffset(t *testing.T) {
	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)

	p := NewPlaceholder(sandbox)
	outcomes, err := p.Extract(context.Background(), thumbnail.ExtractRequest{
		SegmentURI: "segment0.ts",
		Offsets:    []float64{0, 3, 6},
		Width:      150,
		Basename:   "gen-0",
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for i, o := range outcomes {
		assert.True(t, o.Produced)
		assert.Equal(t, i, o.Index)
		assert.NotEmpty(t, o.Filename)
		exists, err := sandbox.Exists(o.Filename)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestPlaceholder_Extract_DefaultsDimensions(t *testing.T) {
	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)

	p := NewPlaceholder(sandbox)
	outcomes, err := p.Extract(context.Background(), thumbnail.ExtractRequest{
		SegmentURI: "segment0.ts",
		Offsets:    []float64{0},
		Basename:   "gen-0",
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Produced)
}
