package frame

import (
	"fmt"
	"image"
	"image/color"
)

// VideoFrame is the RGBA image paired with a depth frame. Stride is in
// bytes. Frames delivered as BGRA are converted at ingest (see cv/bridge).
type VideoFrame struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// NewVideoFrame wraps an RGBA byte buffer. The slice is not copied.
func NewVideoFrame(pix []byte, width, height, stride int) (*VideoFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid video frame dimensions %dx%d", width, height)
	}
	if stride < width*4 {
		return nil, fmt.Errorf("row stride %d smaller than %d", stride, width*4)
	}
	if need := stride*(height-1) + width*4; len(pix) < need {
		return nil, fmt.Errorf("video buffer holds %d bytes, need at least %d", len(pix), need)
	}
	return &VideoFrame{Pix: pix, Width: width, Height: height, Stride: stride}, nil
}

// VideoFrameFromImage copies an image.RGBA into a VideoFrame.
func VideoFrameFromImage(img *image.RGBA) (*VideoFrame, error) {
	b := img.Bounds()
	pix := make([]byte, len(img.Pix))
	copy(pix, img.Pix)
	return NewVideoFrame(pix, b.Dx(), b.Dy(), img.Stride)
}

// RGBAAt returns the pixel at (x, y), clamping coordinates to the frame
// extent. Clamping rather than erroring keeps edge texels addressable by
// the bilinear sampler.
func (v *VideoFrame) RGBAAt(x, y int) color.RGBA {
	if x < 0 {
		x = 0
	} else if x >= v.Width {
		x = v.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= v.Height {
		y = v.Height - 1
	}
	off := y*v.Stride + x*4
	return color.RGBA{R: v.Pix[off], G: v.Pix[off+1], B: v.Pix[off+2], A: v.Pix[off+3]}
}
