// Package stream runs the per-frame scheduling model: one dedicated serial
// worker consuming synchronized depth+video pairs strictly in arrival
// order, handing each to the false-color converter or the point-cloud
// reprojector. A failed frame is logged and dropped; the stream never
// stops on a per-frame defect.
package stream

import (
	"context"
	"fmt"
	"sync/atomic"

	"depthjet/internal/convert"
	"depthjet/internal/frame"
	"depthjet/internal/logger"
	"depthjet/internal/pointcloud"
)

// Mode selects the render output for one frame. It is a parameter at the
// render-call boundary, owned by the caller (typically UI state).
type Mode int32

const (
	ModeFalseColor Mode = iota
	ModePointCloud
)

func (m Mode) String() string {
	switch m {
	case ModeFalseColor:
		return "false-color"
	case ModePointCloud:
		return "point-cloud"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// Config wires a worker. Converter and Projector must be non-nil; the
// sinks matching the modes in use must be set.
type Config struct {
	Converter *convert.Converter
	Projector *pointcloud.Projector
	// Mode is sampled once per frame before rendering.
	Mode func() Mode
	// OnImage receives false-color outputs. The sink takes ownership and
	// must Release the output when done with it.
	OnImage func(*convert.Output)
	// OnPointCloud receives the surviving vertices of one frame.
	OnPointCloud func([]pointcloud.Vertex)
	Logger       logger.Logger
}

// Worker processes one frame stream. The counters are atomics so Stats can
// be read from other goroutines (shutdown reporting) mid-Process.
type Worker struct {
	cfg Config
	log logger.Logger

	processed atomic.Int64
	dropped   atomic.Int64
}

func NewWorker(cfg Config) (*Worker, error) {
	if cfg.Converter == nil {
		return nil, fmt.Errorf("stream worker requires a converter")
	}
	if cfg.Projector == nil {
		return nil, fmt.Errorf("stream worker requires a projector")
	}
	if cfg.Mode == nil {
		mode := ModeFalseColor
		cfg.Mode = func() Mode { return mode }
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop{}
	}
	return &Worker{cfg: cfg, log: log}, nil
}

// Run consumes pairs until the channel closes or ctx is cancelled. Frames
// are processed strictly in arrival order on this single goroutine.
func (w *Worker) Run(ctx context.Context, pairs <-chan frame.Pair) {
	for {
		select {
		case <-ctx.Done():
			return
		case pair, ok := <-pairs:
			if !ok {
				return
			}
			w.Process(ctx, pair)
		}
	}
}

// Process renders one pair in the currently selected mode. Errors are
// reported and swallowed so subsequent frames keep flowing.
func (w *Worker) Process(ctx context.Context, pair frame.Pair) {
	if !pair.Complete() {
		// The collaborator filters partial pairs before this core; one
		// slipping through is dropped, not rendered.
		w.dropped.Add(1)
		w.log.Warning("StreamWorker", "partial pair reached the pipeline", map[string]interface{}{
			"depth_dropped": pair.DepthDropped,
			"video_dropped": pair.VideoDropped,
		})
		return
	}

	mode := w.cfg.Mode()
	var err error
	switch mode {
	case ModePointCloud:
		err = w.renderPointCloud(ctx, pair)
	default:
		err = w.renderFalseColor(pair)
	}

	if err != nil {
		w.dropped.Add(1)
		w.log.Error("StreamWorker", err, map[string]interface{}{
			"mode":      mode.String(),
			"timestamp": pair.Timestamp,
		})
		return
	}
	w.processed.Add(1)
}

// Stats reports lifetime processed and dropped frame counts.
func (w *Worker) Stats() (processed, dropped int64) {
	return w.processed.Load(), w.dropped.Load()
}

func (w *Worker) renderFalseColor(pair frame.Pair) error {
	out, err := w.cfg.Converter.Render(pair.Depth)
	if err != nil {
		return fmt.Errorf("false-color render: %w", err)
	}
	if w.cfg.OnImage == nil {
		out.Release()
		return nil
	}
	w.cfg.OnImage(out)
	return nil
}

func (w *Worker) renderPointCloud(ctx context.Context, pair frame.Pair) error {
	verts, err := w.cfg.Projector.Project(ctx, pair.Depth, pair.Video, pair.Intrinsics)
	if err != nil {
		return fmt.Errorf("point cloud render: %w", err)
	}
	if w.cfg.OnPointCloud != nil {
		w.cfg.OnPointCloud(verts)
	}
	return nil
}
