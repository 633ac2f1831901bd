// Package colormap builds the fixed perceptual color table the mapping
// kernel samples. The table is generated once per converter lifetime and
// must never change afterwards: it is read concurrently, unsynchronized,
// by every in-flight frame.
package colormap

import (
	"image/color"
	"math"
)

// DefaultSize is the number of entries generated when no size is configured.
const DefaultSize = 512

// Table is an ordered run of opaque colors indexed by equalized depth.
type Table []color.RGBA

// Generate builds a JET-style warm-cold spectrum of the given size. Index 0
// is forced to pure black; the red and blue ends are rolled off with a
// raised-cosine window so the spectrum does not truncate to a hard edge the
// way classic JET does. A size below 2 yields a single black entry.
func Generate(size int) Table {
	if size < 2 {
		return Table{{A: 0xff}}
	}

	table := make(Table, size)
	for i := range table {
		p := float64(i) / float64(size-1)

		r := wave(p, -0.25)
		g := wave(p, 0)
		b := wave(p, 0.25)

		if p < 1.0/8.0 {
			r *= falloff(p)
		}
		if p > 7.0/8.0 {
			b *= falloff(1 - p)
		}

		table[i] = color.RGBA{
			R: uint8(math.Round(r * 255)),
			G: uint8(math.Round(g * 255)),
			B: uint8(math.Round(b * 255)),
			A: 0xff,
		}
	}

	table[0] = color.RGBA{A: 0xff}
	return table
}

// wave is a phase-shifted sin² pulse over the normalized position p.
// Red runs at phase -1/4, green at 0, blue at +1/4.
func wave(p, phase float64) float64 {
	s := math.Sin(math.Pi/2 *
		(math.Sin(2*math.Pi*(p+phase-0.25)) + 1) / 2)
	return s * s
}

// falloff is the eighth-power raised-cosine attenuation applied inside the
// outer 1/8 of the table. It is 1 at p = 1/8 and reaches 0 at p = 0.
func falloff(p float64) float64 {
	c := (1 - math.Cos(8*math.Pi*p)) / 2
	return math.Pow(c, 8)
}
