package colormap

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIndexZeroIsBlack(t *testing.T) {
	table := Generate(DefaultSize)
	require.Len(t, table, DefaultSize)
	assert.Equal(t, color.RGBA{A: 0xff}, table[0])
}

func TestGenerateEndpointAttenuation(t *testing.T) {
	table := Generate(DefaultSize)
	last := table[len(table)-1]

	// At p = 1 the blue falloff has fully closed and the green wave is at
	// its zero crossing; only the red wave remains, at half amplitude.
	assert.Equal(t, uint8(0), last.B)
	assert.Equal(t, uint8(0), last.G)
	assert.InDelta(t, 128, float64(last.R), 1)
	assert.Equal(t, uint8(0xff), last.A)
}

func TestGenerateOpaqueAndRolledOff(t *testing.T) {
	table := Generate(256)

	for i, c := range table {
		assert.Equal(t, uint8(0xff), c.A, "index %d must be opaque", i)
	}

	// The raised-cosine window keeps the spectrum from opening or closing
	// on a hard discontinuity: the entries adjacent to the ends stay dim.
	assert.Less(t, int(table[1].R), 32)
	assert.Less(t, int(table[254].B), 32)
}

func TestGenerateGreenPeaksMidTable(t *testing.T) {
	table := Generate(DefaultSize)
	mid := table[len(table)/2]
	assert.InDelta(t, 255, float64(mid.G), 1)
}

func TestGenerateDegenerateSize(t *testing.T) {
	for _, size := range []int{-1, 0, 1} {
		table := Generate(size)
		require.Len(t, table, 1, "size %d", size)
		assert.Equal(t, color.RGBA{A: 0xff}, table[0])
	}
}
