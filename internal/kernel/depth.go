package kernel

import (
	"depthjet/internal/colormap"
	"depthjet/internal/equalize"
	"depthjet/internal/frame"
)

// RGBAView is a mutable view over a pre-cleared RGBA output buffer. Stride
// is in bytes. Pixels the kernel skips keep whatever the caller cleared
// them to.
type RGBAView struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// DepthToColor is the fused per-pixel mapping: raw depth sample through the
// equalization table into the colormap. It holds no mutable state of its
// own, so every pixel may run in parallel.
type DepthToColor struct {
	Depth    *frame.DepthFrame
	Table    equalize.Table
	Colors   colormap.Table
	BinScale float64
	Out      RGBAView
}

// MapPixel maps one pixel. Coordinates beyond the frame extent and depths
// whose bin index falls outside the table are skipped without touching the
// output; NaN and negative depths cannot form a bin index and skip too.
func (k *DepthToColor) MapPixel(x, y int) {
	if x < 0 || y < 0 || x >= k.Out.Width || y >= k.Out.Height {
		return
	}

	d := float64(k.Depth.At(x, y))
	if !(d >= 0) { // NaN or negative
		return
	}
	histIndex := int(d * k.BinScale)
	if histIndex >= len(k.Table) {
		return
	}

	colorIndex := int(k.Table[histIndex])
	if colorIndex < 0 {
		colorIndex = 0
	} else if colorIndex >= len(k.Colors) {
		// The table range is [0, colorCount]; the top value clamps onto
		// the last palette entry.
		colorIndex = len(k.Colors) - 1
	}

	c := k.Colors[colorIndex]
	off := y*k.Out.Stride + x*4
	k.Out.Pix[off] = c.R
	k.Out.Pix[off+1] = c.G
	k.Out.Pix[off+2] = c.B
	k.Out.Pix[off+3] = 0xff
}
