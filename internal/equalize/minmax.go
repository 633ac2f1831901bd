package equalize

import (
	"math"

	"depthjet/internal/frame"
)

// MinMax scans a depth frame for its smallest and largest finite samples,
// skipping NaN no-return pixels. ok is false when the frame holds no finite
// sample at all.
func MinMax(f *frame.DepthFrame) (min, max float32, ok bool) {
	min = float32(math.Inf(1))
	max = float32(math.Inf(-1))
	for y := 0; y < f.Height(); y++ {
		for _, d := range f.Row(y) {
			if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) {
				continue
			}
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
			ok = true
		}
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}
