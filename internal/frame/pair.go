package frame

import "time"

// Pair is one synchronized depth+video capture. Pairs where either half
// was dropped upstream carry the corresponding flag and are filtered by
// the frame source before the pipeline sees them.
type Pair struct {
	Depth      *DepthFrame
	Video      *VideoFrame
	Intrinsics Intrinsics
	Format     PixelFormat
	Timestamp  time.Time

	DepthDropped bool
	VideoDropped bool
}

// Complete reports whether both halves of the pair arrived.
func (p *Pair) Complete() bool {
	return !p.DepthDropped && !p.VideoDropped && p.Depth != nil
}
