// Package source provides the demo camera: a synthetic depth+video pair
// generator standing in for real capture hardware. It implements the same
// contract a device-backed source would, so the viewer and the stream
// worker are wired identically either way.
package source

import (
	"context"
	"fmt"
	"math"
	"time"

	"depthjet/internal/frame"
	"depthjet/internal/logger"
)

// Options fixes the synthetic stream geometry and cadence.
type Options struct {
	Width  int
	Height int
	// FrameInterval is the period between generated pairs.
	FrameInterval time.Duration
	// MinDepth and MaxDepth bound the generated wave, in meters.
	MinDepth float32
	MaxDepth float32
}

// DefaultOptions matches a typical close-range depth stream: 640x480 at
// 30 fps inside the (0, 1) m working range.
func DefaultOptions() Options {
	return Options{
		Width:         640,
		Height:        480,
		FrameInterval: time.Second / 30,
		MinDepth:      0.1,
		MaxDepth:      0.9,
	}
}

func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid synthetic extent %dx%d", o.Width, o.Height)
	}
	if o.FrameInterval <= 0 {
		return fmt.Errorf("frame interval %v must be positive", o.FrameInterval)
	}
	if !(o.MinDepth >= 0) || !(o.MaxDepth > o.MinDepth) {
		return fmt.Errorf("depth range [%g, %g] must be ordered and non-negative", o.MinDepth, o.MaxDepth)
	}
	return nil
}

// Camera generates an animated radial depth wave with a matching color
// gradient video frame.
type Camera struct {
	opts   Options
	log    logger.Logger
	intr   frame.Intrinsics
	phase  float64
	frames int64
}

func NewCamera(opts Options, log logger.Logger) (*Camera, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	// A plausible pinhole for the synthetic extent: focal length of one
	// frame width, principal point at the center.
	intr := frame.Intrinsics{
		Fx: float64(opts.Width),
		Fy: float64(opts.Width),
		Cx: float64(opts.Width-1) / 2,
		Cy: float64(opts.Height-1) / 2,
	}
	return &Camera{opts: opts, log: log, intr: intr}, nil
}

// Intrinsics reports the synthetic pinhole model.
func (c *Camera) Intrinsics() frame.Intrinsics { return c.intr }

// Description reports the stream geometry the converter should prepare for.
func (c *Camera) Description() (width, height int, format frame.PixelFormat) {
	return c.opts.Width, c.opts.Height, frame.FormatDepth32F
}

// Run generates pairs on the configured cadence until ctx is cancelled.
// Sends never block: when the consumer lags, the pair is dropped, matching
// how a capture device overwrites stale frames.
func (c *Camera) Run(ctx context.Context, out chan<- frame.Pair) error {
	c.log.Info("SyntheticCamera", "stream started", map[string]interface{}{
		"width":    c.opts.Width,
		"height":   c.opts.Height,
		"interval": c.opts.FrameInterval.String(),
	})

	ticker := time.NewTicker(c.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("SyntheticCamera", "stream stopped", map[string]interface{}{
				"frames": c.frames,
			})
			return ctx.Err()
		case <-ticker.C:
			pair, err := c.Next()
			if err != nil {
				return err
			}
			select {
			case out <- pair:
			default:
				c.log.Debug("SyntheticCamera", "consumer busy, frame dropped", nil)
			}
		}
	}
}

// Next generates one pair immediately, advancing the animation phase.
func (c *Camera) Next() (frame.Pair, error) {
	w, h := c.opts.Width, c.opts.Height
	depth := make([]float32, w*h)
	video := make([]byte, w*h*4)

	cx := float64(w-1) / 2
	cy := float64(h-1) / 2
	maxR := math.Hypot(cx, cy)
	mid := float64(c.opts.MinDepth+c.opts.MaxDepth) / 2
	amp := float64(c.opts.MaxDepth-c.opts.MinDepth) / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := math.Hypot(float64(x)-cx, float64(y)-cy) / maxR
			d := mid + amp*math.Sin(2*math.Pi*(r*2-c.phase))
			i := y*w + x
			depth[i] = float32(d)

			// Simple UV gradient so reprojected points carry distinct
			// colors per pixel.
			o := i * 4
			video[o] = byte(255 * x / w)
			video[o+1] = byte(255 * y / h)
			video[o+2] = 128
			video[o+3] = 255
		}
	}

	df, err := frame.NewDepthFrame(depth, w, h, w)
	if err != nil {
		return frame.Pair{}, fmt.Errorf("generating depth frame: %w", err)
	}
	vf, err := frame.NewVideoFrame(video, w, h, w*4)
	if err != nil {
		return frame.Pair{}, fmt.Errorf("generating video frame: %w", err)
	}

	c.phase += 0.02
	c.frames++

	return frame.Pair{
		Depth:      df,
		Video:      vf,
		Intrinsics: c.intr,
		Format:     frame.FormatDepth32F,
		Timestamp:  time.Now(),
	}, nil
}
