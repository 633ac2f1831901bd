// Package pointcloud turns depth frames plus camera intrinsics into colored
// 3D vertices, one per depth pixel, colored by bilinear sampling of the
// paired video frame. Vertices are ephemeral: they exist for one render
// pass and are never retained.
package pointcloud

import (
	"context"
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"depthjet/internal/frame"
	"depthjet/internal/kernel"
)

// Vertex is one reprojected depth sample in camera space.
type Vertex struct {
	Position mgl32.Vec3
	Size     float32
	Color    color.RGBA
	Depth    float32
}

// Options fixes the reprojection parameters for a projector's lifetime.
type Options struct {
	// MinDepth is the discard threshold in working units. Samples below it
	// (including NaN no-returns) are dropped after their position and
	// color have been computed.
	MinDepth float32
	// DepthScale converts meter samples into the working unit the
	// intrinsics are expressed against; 1000 yields millimeters.
	DepthScale float32
	// PointSize is the fixed rendered size per vertex. There is no
	// depth-based attenuation.
	PointSize float32
	// Transform is the external view transform applied to every position
	// after reprojection. The zero value is replaced with identity.
	Transform mgl32.Mat4
}

// DefaultOptions reprojects into millimeters with a small fixed point size
// and no view transform.
func DefaultOptions() Options {
	return Options{
		MinDepth:   1,
		DepthScale: 1000,
		PointSize:  5,
		Transform:  mgl32.Ident4(),
	}
}

// Projector reprojects depth frames on the data-parallel execution unit.
type Projector struct {
	opts       Options
	dispatcher *kernel.Dispatcher
}

func NewProjector(opts Options) *Projector {
	if opts.Transform == (mgl32.Mat4{}) {
		opts.Transform = mgl32.Ident4()
	}
	if opts.DepthScale == 0 {
		opts.DepthScale = 1000
	}
	return &Projector{opts: opts, dispatcher: kernel.NewDispatcher()}
}

// SetTransform replaces the external view transform used by subsequent
// Project calls. The projector must not be mid-Project when called.
func (p *Projector) SetTransform(m mgl32.Mat4) { p.opts.Transform = m }

// Project computes one vertex per depth pixel and returns the surviving
// vertices in row-major order. Every vertex is computed before the discard
// decision is applied; vertices whose working depth falls below MinDepth
// are excluded from the result.
func (p *Projector) Project(ctx context.Context, depth *frame.DepthFrame, video *frame.VideoFrame, intr frame.Intrinsics) ([]Vertex, error) {
	if err := intr.Validate(); err != nil {
		return nil, fmt.Errorf("camera intrinsics: %w", err)
	}
	if video == nil {
		return nil, fmt.Errorf("point cloud mode requires a paired video frame")
	}

	w, h := depth.Width(), depth.Height()
	verts := make([]Vertex, w*h)
	keep := make([]bool, w*h)

	done := p.dispatcher.Dispatch(kernel.Extent{Width: w, Height: h}, func(x, y int) {
		if x >= w || y >= h {
			return
		}
		i := y*w + x

		d := depth.At(x, y) * p.opts.DepthScale
		pos := mgl32.Vec3{
			(float32(x) - float32(intr.Cx)) * d / float32(intr.Fx),
			(float32(y) - float32(intr.Cy)) * d / float32(intr.Fy),
			d,
		}
		c := sampleBilinear(video, normalize(x, w), normalize(y, h))

		verts[i] = Vertex{
			Position: mgl32.TransformCoordinate(pos, p.opts.Transform),
			Size:     p.opts.PointSize,
			Color:    c,
			Depth:    d,
		}
		// Conditional discard, after the computation: NaN compares false
		// and is dropped along with below-threshold returns.
		keep[i] = d >= p.opts.MinDepth
	})

	if err := done.Wait(ctx); err != nil {
		return nil, err
	}

	out := verts[:0]
	for i, ok := range keep {
		if ok {
			out = append(out, verts[i])
		}
	}
	return out, nil
}

// normalize maps a pixel coordinate onto [0, 1] over the frame extent.
func normalize(v, extent int) float32 {
	if extent <= 1 {
		return 0
	}
	return float32(v) / float32(extent-1)
}

// sampleBilinear samples the video frame at normalized (u, v) with
// bilinear filtering across the four surrounding texels.
func sampleBilinear(video *frame.VideoFrame, u, v float32) color.RGBA {
	fx := float64(u) * float64(video.Width-1)
	fy := float64(v) * float64(video.Height-1)

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	c00 := video.RGBAAt(x0, y0)
	c10 := video.RGBAAt(x0+1, y0)
	c01 := video.RGBAAt(x0, y0+1)
	c11 := video.RGBAAt(x0+1, y0+1)

	lerp2 := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-tx) + float64(b)*tx
		bot := float64(c)*(1-tx) + float64(d)*tx
		return uint8(math.Round(top*(1-ty) + bot*ty))
	}

	return color.RGBA{
		R: lerp2(c00.R, c10.R, c01.R, c11.R),
		G: lerp2(c00.G, c10.G, c01.G, c11.G),
		B: lerp2(c00.B, c10.B, c01.B, c11.B),
		A: lerp2(c00.A, c10.A, c01.A, c11.A),
	}
}
