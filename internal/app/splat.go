package app

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"depthjet/internal/pointcloud"
)

// Splatter rasterizes one frame's vertices into an RGBA image: fixed-size
// square splats, nearest-depth wins. It reuses its image and depth buffer
// across frames; callers copy the result before the next Render.
type Splatter struct {
	img   *image.RGBA
	zbuf  []float32
	focal float32
	cx    float32
	cy    float32
}

func NewSplatter(width, height int) *Splatter {
	return &Splatter{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		zbuf:  make([]float32, width*height),
		focal: float32(width),
		cx:    float32(width-1) / 2,
		cy:    float32(height-1) / 2,
	}
}

// Render projects the vertices through the view transform onto the image
// plane. The camera sits at the origin looking down +Z.
func (s *Splatter) Render(verts []pointcloud.Vertex, view mgl32.Mat4) *image.RGBA {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
	for i := range s.zbuf {
		s.zbuf[i] = float32(math.Inf(1))
	}

	w := s.img.Bounds().Dx()
	h := s.img.Bounds().Dy()

	for i := range verts {
		v := &verts[i]
		p := mgl32.TransformCoordinate(v.Position, view)
		z := p.Z()
		if z <= 0 {
			continue
		}
		px := int(s.cx + s.focal*p.X()/z)
		py := int(s.cy + s.focal*p.Y()/z)

		half := int(v.Size / 2)
		for y := py - half; y <= py+half; y++ {
			if y < 0 || y >= h {
				continue
			}
			for x := px - half; x <= px+half; x++ {
				if x < 0 || x >= w {
					continue
				}
				zi := y*w + x
				if z >= s.zbuf[zi] {
					continue
				}
				s.zbuf[zi] = z
				s.img.SetRGBA(x, y, v.Color)
			}
		}
	}
	return s.img
}
