// Package frame defines the data types exchanged with the camera
// collaborator: strided depth views, paired video frames, and camera
// intrinsics. Frames are immutable once constructed.
package frame

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// PixelFormat tags the sample layout a frame was delivered in.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	// FormatDepth32F is single-channel IEEE-754 single precision depth in meters.
	FormatDepth32F
	// FormatDepth16F is single-channel half precision depth in meters.
	// Samples are widened to float32 at ingest.
	FormatDepth16F
)

func (f PixelFormat) String() string {
	switch f {
	case FormatDepth32F:
		return "depth32f"
	case FormatDepth16F:
		return "depth16f"
	default:
		return "unknown"
	}
}

// DepthFrame is a read-only strided view over per-pixel depth samples in
// meters. Stride is in samples and may exceed Width when rows carry
// alignment padding. Samples may be NaN (no return from the sensor).
type DepthFrame struct {
	pix    []float32
	width  int
	height int
	stride int
}

// NewDepthFrame wraps pix as a width×height view with the given row stride.
// The slice is not copied; callers must not mutate it afterwards.
func NewDepthFrame(pix []float32, width, height, stride int) (*DepthFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid depth frame dimensions %dx%d", width, height)
	}
	if stride < width {
		return nil, fmt.Errorf("row stride %d smaller than width %d", stride, width)
	}
	if need := stride*(height-1) + width; len(pix) < need {
		return nil, fmt.Errorf("depth buffer holds %d samples, need at least %d", len(pix), need)
	}
	return &DepthFrame{pix: pix, width: width, height: height, stride: stride}, nil
}

// DepthFrameFromFloat16 widens half-precision samples to float32 and wraps
// them. NaN bit patterns survive the conversion.
func DepthFrameFromFloat16(raw []uint16, width, height, stride int) (*DepthFrame, error) {
	if stride < width {
		return nil, fmt.Errorf("row stride %d smaller than width %d", stride, width)
	}
	if need := stride*(height-1) + width; len(raw) < need {
		return nil, fmt.Errorf("depth buffer holds %d samples, need at least %d", len(raw), need)
	}
	pix := make([]float32, len(raw))
	for i, bits := range raw {
		pix[i] = float16.Frombits(bits).Float32()
	}
	return NewDepthFrame(pix, width, height, stride)
}

func (f *DepthFrame) Width() int  { return f.width }
func (f *DepthFrame) Height() int { return f.height }

// Stride is the distance between rows, in samples.
func (f *DepthFrame) Stride() int { return f.stride }

// At returns the depth sample at (x, y). Coordinates outside the frame
// extent return NaN rather than panicking, matching the bounds-check
// policy of the mapping kernel.
func (f *DepthFrame) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return float32(math.NaN())
	}
	return f.pix[y*f.stride+x]
}

// Row returns the samples of row y, excluding any stride padding.
func (f *DepthFrame) Row(y int) []float32 {
	off := y * f.stride
	return f.pix[off : off+f.width : off+f.width]
}
