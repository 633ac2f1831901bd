package source

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthjet/internal/frame"
)

func TestNextProducesCompletePairsInRange(t *testing.T) {
	opts := Options{
		Width: 32, Height: 24,
		FrameInterval: time.Millisecond,
		MinDepth:      0.1, MaxDepth: 0.9,
	}
	cam, err := NewCamera(opts, nil)
	require.NoError(t, err)

	pair, err := cam.Next()
	require.NoError(t, err)
	require.True(t, pair.Complete())
	assert.Equal(t, frame.FormatDepth32F, pair.Format)
	assert.Equal(t, 32, pair.Depth.Width())
	assert.Equal(t, 24, pair.Depth.Height())

	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			d := float64(pair.Depth.At(x, y))
			require.False(t, math.IsNaN(d))
			require.GreaterOrEqual(t, d, float64(opts.MinDepth)-1e-6)
			require.LessOrEqual(t, d, float64(opts.MaxDepth)+1e-6)
		}
	}
}

func TestNextAnimates(t *testing.T) {
	cam, err := NewCamera(Options{
		Width: 16, Height: 16,
		FrameInterval: time.Millisecond,
		MinDepth:      0.1, MaxDepth: 0.9,
	}, nil)
	require.NoError(t, err)

	a, err := cam.Next()
	require.NoError(t, err)
	b, err := cam.Next()
	require.NoError(t, err)

	different := false
	for x := 0; x < 16 && !different; x++ {
		if a.Depth.At(x, 3) != b.Depth.At(x, 3) {
			different = true
		}
	}
	assert.True(t, different, "consecutive frames should differ")
}

func TestRunStopsOnCancel(t *testing.T) {
	cam, err := NewCamera(Options{
		Width: 8, Height: 8,
		FrameInterval: time.Millisecond,
		MinDepth:      0.1, MaxDepth: 0.9,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan frame.Pair, 1)
	done := make(chan error, 1)
	go func() { done <- cam.Run(ctx, out) }()

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("no frame produced")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestOptionsValidation(t *testing.T) {
	bad := []Options{
		{Width: 0, Height: 8, FrameInterval: time.Millisecond, MinDepth: 0.1, MaxDepth: 0.9},
		{Width: 8, Height: 8, FrameInterval: 0, MinDepth: 0.1, MaxDepth: 0.9},
		{Width: 8, Height: 8, FrameInterval: time.Millisecond, MinDepth: 0.9, MaxDepth: 0.1},
	}
	for _, o := range bad {
		_, err := NewCamera(o, nil)
		assert.Error(t, err)
	}
}
