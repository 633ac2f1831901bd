// Package equalize implements the per-frame CPU statistics pass: a depth
// histogram, its cumulative distribution, and the monotonic depth-bin to
// color-index mapping consumed by the mapping kernel. Nothing here carries
// state between frames; every table is rebuilt from scratch.
package equalize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"depthjet/internal/frame"
)

// Defaults for the configuration surface fixed at prepare time.
const (
	DefaultBinCount = 65536
	// DefaultBinScale converts meters to bin index, one bin per 1/8000 m.
	DefaultBinScale = 8000.0
	DefaultMinDepth = 0.0
	DefaultMaxDepth = 1.0
)

// Options parameterizes one equalization pass.
type Options struct {
	BinCount   int
	BinScale   float64
	MinDepth   float64
	MaxDepth   float64
	ColorCount int
}

// DefaultOptions returns the stock configuration for a size-entry colormap.
func DefaultOptions(colorCount int) Options {
	return Options{
		BinCount:   DefaultBinCount,
		BinScale:   DefaultBinScale,
		MinDepth:   DefaultMinDepth,
		MaxDepth:   DefaultMaxDepth,
		ColorCount: colorCount,
	}
}

// Validate rejects option sets the passes cannot honor. The bin count must
// cover the largest reachable bin index, maxDepth*binScale.
func (o Options) Validate() error {
	if o.BinCount <= 1 {
		return fmt.Errorf("bin count %d too small", o.BinCount)
	}
	if o.BinScale <= 0 {
		return fmt.Errorf("bin scale %v must be positive", o.BinScale)
	}
	// Negative depths would produce negative bin indices in the scan.
	if o.MinDepth < 0 {
		return fmt.Errorf("min depth %v must be non-negative", o.MinDepth)
	}
	if o.MaxDepth <= o.MinDepth {
		return fmt.Errorf("depth range [%v, %v] is empty", o.MinDepth, o.MaxDepth)
	}
	if o.ColorCount <= 0 {
		return fmt.Errorf("color count %d must be positive", o.ColorCount)
	}
	if maxBin := int(o.MaxDepth * o.BinScale); maxBin >= o.BinCount {
		return fmt.Errorf("bin count %d cannot hold max bin index %d", o.BinCount, maxBin)
	}
	return nil
}

// Table maps a depth bin index to a color index in [0, ColorCount]. Entries
// are float-valued like the histogram they derive from; the kernel truncates
// and clamps when it samples the color table.
type Table []float64

// Equalize runs the full pass over a depth frame and returns a fresh table.
func Equalize(f *frame.DepthFrame, opts Options) (Table, error) {
	table := make(Table, opts.BinCount)
	if err := EqualizeInto(table, f, opts); err != nil {
		return nil, err
	}
	return table, nil
}

// EqualizeInto reuses table as both the histogram accumulator and the
// output mapping. The steps, in order:
//
//  1. zero the accumulator and count valid samples into bins,
//  2. prefix-sum bins 1..binCount-1 (bin 0 stays a raw count),
//  3. normalize those bins to [0, colorCount],
//  4. invert so near depths land at the high end of the colormap.
//
// A frame with zero valid samples skips normalization entirely and leaves
// the table all zeros, mapping the whole frame to black; dividing by the
// zero valid count would otherwise poison the table with NaN.
func EqualizeInto(table Table, f *frame.DepthFrame, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if len(table) != opts.BinCount {
		return fmt.Errorf("table length %d does not match bin count %d", len(table), opts.BinCount)
	}

	for i := range table {
		table[i] = 0
	}

	valid := 0
	for y := 0; y < f.Height(); y++ {
		for _, d := range f.Row(y) {
			depth := float64(d)
			if math.IsNaN(depth) || depth <= opts.MinDepth || depth >= opts.MaxDepth {
				continue
			}
			table[int(depth*opts.BinScale)]++
			valid++
		}
	}

	// Bin 0 is excluded from the cumulative, normalization, and inversion
	// passes: zero-depth samples stay clamped to black (colormap index 0).
	body := table[1:]
	floats.CumSum(body, body)

	if valid == 0 {
		return nil
	}

	floats.Scale(float64(opts.ColorCount)/float64(valid), body)
	floats.Scale(-1, body)
	floats.AddConst(float64(opts.ColorCount), body)

	table[0] = 0
	return nil
}
