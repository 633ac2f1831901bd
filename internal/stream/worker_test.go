package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthjet/internal/convert"
	"depthjet/internal/equalize"
	"depthjet/internal/frame"
	"depthjet/internal/logger"
	"depthjet/internal/pointcloud"
)

type testBuffer struct {
	pix  []byte
	w, h int
	pool *testPool
}

func (b *testBuffer) Pix() []byte { return b.pix }
func (b *testBuffer) Width() int  { return b.w }
func (b *testBuffer) Height() int { return b.h }
func (b *testBuffer) Stride() int { return b.w * 4 }
func (b *testBuffer) Release()    { b.pool.free++ }

type testPool struct {
	w, h, free int
}

func (p *testPool) Acquire() (convert.Buffer, error) {
	if p.free == 0 {
		return nil, errors.New("output buffer pool exhausted")
	}
	p.free--
	return &testBuffer{pix: make([]byte, p.w*p.h*4), w: p.w, h: p.h, pool: p}, nil
}

func (p *testPool) Close() {}

func preparedConverter(t *testing.T, pool *testPool) *convert.Converter {
	t.Helper()
	cfg := convert.Config{
		Equalization: equalize.Options{
			BinCount: 16, BinScale: 10, MaxDepth: 1, ColorCount: 4,
		},
		OutputBuffers: 4,
		NewPool: func(w, h, capacity int) (convert.BufferPool, error) {
			pool.w, pool.h, pool.free = w, h, capacity
			return pool, nil
		},
	}
	conv := convert.NewConverter(cfg, logger.Nop{})
	require.NoError(t, conv.Prepare(convert.InputDescription{Width: 2, Height: 2, Format: frame.FormatDepth32F}))
	return conv
}

func testPair(t *testing.T, depths []float32) frame.Pair {
	t.Helper()
	df, err := frame.NewDepthFrame(depths, 2, 2, 2)
	require.NoError(t, err)
	video, err := frame.NewVideoFrame(make([]byte, 2*2*4), 2, 2, 8)
	require.NoError(t, err)
	return frame.Pair{
		Depth:      df,
		Video:      video,
		Intrinsics: frame.Intrinsics{Fx: 100, Fy: 100, Cx: 1, Cy: 1},
		Format:     frame.FormatDepth32F,
		Timestamp:  time.Now(),
	}
}

func TestWorkerRendersInArrivalOrder(t *testing.T) {
	pool := &testPool{}
	var outputs []*convert.Output

	w, err := NewWorker(Config{
		Converter: preparedConverter(t, pool),
		Projector: pointcloud.NewProjector(pointcloud.DefaultOptions()),
		OnImage:   func(o *convert.Output) { outputs = append(outputs, o) },
	})
	require.NoError(t, err)

	pairs := make(chan frame.Pair, 3)
	pairs <- testPair(t, []float32{0.1, 0.2, 0.3, 0.4})
	pairs <- testPair(t, []float32{0.5, 0.5, 0.5, 0.5})
	pairs <- testPair(t, []float32{0.9, 0.8, 0.7, 0.6})
	close(pairs)

	w.Run(context.Background(), pairs)

	require.Len(t, outputs, 3)
	for _, o := range outputs {
		require.NoError(t, o.Done.Wait(context.Background()))
		o.Release()
	}
	processed, dropped := w.Stats()
	assert.Equal(t, int64(3), processed)
	assert.Zero(t, dropped)
}

func TestWorkerSwitchesModePerFrame(t *testing.T) {
	pool := &testPool{}
	mode := ModeFalseColor
	var images, clouds int

	w, err := NewWorker(Config{
		Converter:    preparedConverter(t, pool),
		Projector:    pointcloud.NewProjector(pointcloud.DefaultOptions()),
		Mode:         func() Mode { return mode },
		OnImage:      func(o *convert.Output) { images++; o.Release() },
		OnPointCloud: func([]pointcloud.Vertex) { clouds++ },
	})
	require.NoError(t, err)

	ctx := context.Background()
	w.Process(ctx, testPair(t, []float32{0.1, 0.2, 0.3, 0.4}))
	mode = ModePointCloud
	w.Process(ctx, testPair(t, []float32{0.1, 0.2, 0.3, 0.4}))

	assert.Equal(t, 1, images)
	assert.Equal(t, 1, clouds)
}

func TestWorkerDropsPartialPairs(t *testing.T) {
	pool := &testPool{}
	w, err := NewWorker(Config{
		Converter: preparedConverter(t, pool),
		Projector: pointcloud.NewProjector(pointcloud.DefaultOptions()),
		OnImage:   func(o *convert.Output) { t.Error("partial pair must not render"); o.Release() },
	})
	require.NoError(t, err)

	pair := testPair(t, []float32{0.1, 0.2, 0.3, 0.4})
	pair.VideoDropped = true
	w.Process(context.Background(), pair)

	processed, dropped := w.Stats()
	assert.Zero(t, processed)
	assert.Equal(t, int64(1), dropped)
}

func TestWorkerContinuesAfterFailedFrame(t *testing.T) {
	pool := &testPool{}
	var held []*convert.Output
	w, err := NewWorker(Config{
		Converter: preparedConverter(t, pool),
		Projector: pointcloud.NewProjector(pointcloud.DefaultOptions()),
		OnImage:   func(o *convert.Output) { held = append(held, o) },
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Hold every output so the pool drains and the fifth frame fails its
	// buffer acquisition.
	for i := 0; i < 4; i++ {
		w.Process(ctx, testPair(t, []float32{0.1, 0.2, 0.3, 0.4}))
	}
	require.Len(t, held, 4)

	w.Process(ctx, testPair(t, []float32{0.1, 0.2, 0.3, 0.4}))
	processed, dropped := w.Stats()
	assert.Equal(t, int64(4), processed)
	assert.Equal(t, int64(1), dropped)

	// Returning capacity lets the stream recover.
	require.NoError(t, held[0].Done.Wait(ctx))
	held[0].Release()
	w.Process(ctx, testPair(t, []float32{0.1, 0.2, 0.3, 0.4}))
	processed, _ = w.Stats()
	assert.Equal(t, int64(5), processed)

	for _, o := range held[1:] {
		require.NoError(t, o.Done.Wait(ctx))
		o.Release()
	}
}

func TestNewWorkerValidation(t *testing.T) {
	_, err := NewWorker(Config{Projector: pointcloud.NewProjector(pointcloud.DefaultOptions())})
	assert.Error(t, err)

	pool := &testPool{}
	_, err = NewWorker(Config{Converter: preparedConverter(t, pool)})
	assert.Error(t, err)
}
