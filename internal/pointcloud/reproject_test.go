package pointcloud

import (
	"context"
	"image/color"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthjet/internal/frame"
)

func uniformVideo(t *testing.T, w, h int, c color.RGBA) *frame.VideoFrame {
	t.Helper()
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	v, err := frame.NewVideoFrame(pix, w, h, w*4)
	require.NoError(t, err)
	return v
}

func depthOf(t *testing.T, pix []float32, w, h int) *frame.DepthFrame {
	t.Helper()
	f, err := frame.NewDepthFrame(pix, w, h, w)
	require.NoError(t, err)
	return f
}

func TestProjectPinholeReprojectionExact(t *testing.T) {
	const w, h = 16, 8
	pix := make([]float32, w*h)
	pix[5*w+10] = 2.0 // depth 2.0 at pixel (10, 5)

	depth := depthOf(t, pix, w, h)
	video := uniformVideo(t, w, h, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	p := NewProjector(Options{
		MinDepth:   0.5,
		DepthScale: 1, // keep the sample in its own unit for exactness
		PointSize:  5,
	})

	verts, err := p.Project(context.Background(), depth, video, frame.Intrinsics{Fx: 1, Fy: 1, Cx: 0, Cy: 0})
	require.NoError(t, err)
	require.Len(t, verts, 1)

	assert.Equal(t, mgl32.Vec3{20, 10, 2}, verts[0].Position)
	assert.Equal(t, float32(2), verts[0].Depth)
	assert.Equal(t, float32(5), verts[0].Size)
	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, verts[0].Color)
}

func TestProjectScalesIntrinsicallyConsistentUnits(t *testing.T) {
	const w, h = 16, 8
	pix := make([]float32, w*h)
	pix[5*w+10] = 2.0

	depth := depthOf(t, pix, w, h)
	video := uniformVideo(t, w, h, color.RGBA{A: 255})

	// In millimeters against fx = fy = 100 px the same sample lands at
	// (200, 100, 2000).
	p := NewProjector(Options{MinDepth: 1, DepthScale: 1000, PointSize: 1})
	verts, err := p.Project(context.Background(), depth, video, frame.Intrinsics{Fx: 100, Fy: 100, Cx: 0, Cy: 0})
	require.NoError(t, err)
	require.Len(t, verts, 1)
	assert.Equal(t, mgl32.Vec3{200, 100, 2000}, verts[0].Position)
}

func TestProjectDiscardsBelowThresholdAndNaN(t *testing.T) {
	nan := float32(math.NaN())
	pix := []float32{
		0.5, nan,
		0.0004, 0.8,
	}
	depth := depthOf(t, pix, 2, 2)
	video := uniformVideo(t, 2, 2, color.RGBA{A: 255})

	p := NewProjector(Options{MinDepth: 1, DepthScale: 1000, PointSize: 1})
	verts, err := p.Project(context.Background(), depth, video, frame.Intrinsics{Fx: 100, Fy: 100, Cx: 1, Cy: 1})
	require.NoError(t, err)

	// 0.0004 m scales to 0.4 mm, below the 1 mm no-return threshold; the
	// NaN sample never satisfies the comparison. Survivors arrive in
	// row-major order.
	require.Len(t, verts, 2)
	assert.Equal(t, float32(500), verts[0].Depth)
	assert.Equal(t, float32(800), verts[1].Depth)
}

func TestProjectAppliesExternalTransform(t *testing.T) {
	pix := []float32{2.0}
	depth := depthOf(t, pix, 1, 1)
	video := uniformVideo(t, 1, 1, color.RGBA{A: 255})

	opts := Options{MinDepth: 0.5, DepthScale: 1, PointSize: 1}
	opts.Transform = mgl32.Translate3D(1, -2, 3)
	p := NewProjector(opts)

	verts, err := p.Project(context.Background(), depth, video, frame.Intrinsics{Fx: 1, Fy: 1, Cx: 0, Cy: 0})
	require.NoError(t, err)
	require.Len(t, verts, 1)
	assert.Equal(t, mgl32.Vec3{1, -2, 5}, verts[0].Position)
}

func TestProjectBilinearColorSampling(t *testing.T) {
	// A 2x1 video: black left texel, white right texel. The middle pixel
	// of a 3-wide depth row samples u = 0.5 and must blend to mid-gray.
	videoPix := []byte{
		0, 0, 0, 255,
		255, 255, 255, 255,
	}
	video, err := frame.NewVideoFrame(videoPix, 2, 1, 8)
	require.NoError(t, err)

	depth := depthOf(t, []float32{1, 1, 1}, 3, 1)

	p := NewProjector(Options{MinDepth: 0.5, DepthScale: 1, PointSize: 1})
	verts, err := p.Project(context.Background(), depth, video, frame.Intrinsics{Fx: 1, Fy: 1, Cx: 0, Cy: 0})
	require.NoError(t, err)
	require.Len(t, verts, 3)

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, verts[0].Color)
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, verts[1].Color)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, verts[2].Color)
}

func TestProjectRejectsBadInputs(t *testing.T) {
	depth := depthOf(t, []float32{1}, 1, 1)
	video := uniformVideo(t, 1, 1, color.RGBA{A: 255})

	p := NewProjector(DefaultOptions())

	_, err := p.Project(context.Background(), depth, video, frame.Intrinsics{Fx: 0, Fy: 1})
	assert.ErrorContains(t, err, "intrinsics")

	_, err = p.Project(context.Background(), depth, nil, frame.Intrinsics{Fx: 1, Fy: 1})
	assert.ErrorContains(t, err, "video frame")
}

func TestViewTransformRoundTrip(t *testing.T) {
	v := NewView(mgl32.Vec3{0, 0, 100})

	v.Yaw(math.Pi / 2)
	m := v.Matrix()

	// A point at the center is a fixed point of center rotations.
	center := mgl32.TransformCoordinate(mgl32.Vec3{0, 0, 100}, m)
	assert.InDelta(t, 0, float64(center.X()), 1e-4)
	assert.InDelta(t, 0, float64(center.Y()), 1e-4)
	assert.InDelta(t, 100, float64(center.Z()), 1e-4)

	// A quarter yaw about the center swings +X toward -Z.
	p := mgl32.TransformCoordinate(mgl32.Vec3{10, 0, 100}, m)
	assert.InDelta(t, 0, float64(p.X()), 1e-4)
	assert.InDelta(t, 90, float64(p.Z()), 1e-4)

	v.Reset()
	assert.Equal(t, mgl32.Ident4(), v.Matrix())
}

// Input handlers mutate the view on the UI goroutine while the stream
// worker reads it per frame; both must be able to run concurrently.
func TestViewConcurrentMutationAndRead(t *testing.T) {
	v := NewView(mgl32.Vec3{0, 0, 100})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			v.Yaw(0.01)
			v.Pitch(-0.01)
			v.MoveTowardCenter(0.001)
		}
	}()

	for i := 0; i < 200; i++ {
		m := v.Matrix()
		for j := 0; j < 16; j++ {
			require.False(t, math.IsNaN(float64(m[j])))
		}
	}
	<-done

	v.Reset()
	assert.Equal(t, mgl32.Ident4(), v.Matrix())
}

func TestViewMoveTowardCenter(t *testing.T) {
	v := NewView(mgl32.Vec3{0, 0, 100})
	v.MoveTowardCenter(0.1)

	p := mgl32.TransformCoordinate(mgl32.Vec3{0, 0, 100}, v.Matrix())
	assert.InDelta(t, 90, float64(p.Z()), 1e-4)
}
