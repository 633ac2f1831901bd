// Package convert owns the per-frame depth-to-false-color pipeline: the
// colormap and output-buffer lifetimes, the synchronous CPU equalization
// pass, and the asynchronous kernel dispatch. It is driven by one serial
// worker per stream; the converter itself serializes state transitions.
package convert

import (
	"fmt"
	"sync"
	"sync/atomic"

	"depthjet/internal/colormap"
	"depthjet/internal/equalize"
	"depthjet/internal/frame"
	"depthjet/internal/kernel"
	"depthjet/internal/logger"
)

// Buffer is one output image acquired from the bounded pool. Ownership
// transfers to the Render caller, who must Release it when done displaying
// or encoding.
type Buffer interface {
	Pix() []byte
	Width() int
	Height() int
	Stride() int
	Release()
}

// BufferPool hands out pre-allocated output buffers without blocking.
type BufferPool interface {
	Acquire() (Buffer, error)
	Close()
}

// PoolFactory builds the output pool at Prepare time.
type PoolFactory func(width, height, capacity int) (BufferPool, error)

// InputDescription is the fixed geometry and format of the incoming depth
// stream, declared once at Prepare time.
type InputDescription struct {
	Width  int
	Height int
	Format frame.PixelFormat
}

// Config is the converter's configuration surface. It is fixed at Prepare
// time and not hot-reloadable.
type Config struct {
	Equalization equalize.Options
	// OutputBuffers is the number of rendered frames the downstream
	// consumer may retain concurrently. Undersizing causes dropped frames
	// under load, not corruption.
	OutputBuffers int
	// NewPool overrides the output pool construction, primarily for tests.
	// Nil is rejected by Validate; production wiring passes the cv pool.
	NewPool PoolFactory
}

// DefaultConfig returns the stock pipeline configuration: a 512-entry
// colormap, 65536 bins at 1/8000 m resolution over (0, 1) m, and room for
// three in-flight output frames.
func DefaultConfig() Config {
	return Config{
		Equalization:  equalize.DefaultOptions(colormap.DefaultSize),
		OutputBuffers: 3,
	}
}

// Validate rejects configurations Prepare cannot honor.
func (c Config) Validate() error {
	if err := c.Equalization.Validate(); err != nil {
		return err
	}
	if c.OutputBuffers < 1 {
		return fmt.Errorf("output buffer count %d must be at least 1", c.OutputBuffers)
	}
	if c.NewPool == nil {
		return fmt.Errorf("no buffer pool factory configured")
	}
	return nil
}

// Output is one rendered false-color frame. The pixels are complete once
// Done resolves.
type Output struct {
	Buffer
	Done *kernel.Completion
}

// Release returns the buffer to the pool once the kernel writing it has
// finished, so an early release can never hand a buffer still being
// written back to the pool. Callers that already waited on Done pay
// nothing extra.
func (o *Output) Release() {
	<-o.Done.Done()
	o.Buffer.Release()
}

type state int32

const (
	stateUnprepared state = iota
	statePrepared
)

// Converter runs the depth visualization pipeline for one stream.
type Converter struct {
	mu         sync.Mutex
	log        logger.Logger
	cfg        Config
	dispatcher *kernel.Dispatcher
	colors     colormap.Table
	pool       BufferPool
	input      InputDescription
	state      state
	// generation guards late kernel completions against a pipeline that
	// has been reset underneath them.
	generation atomic.Uint64
	tables     sync.Pool
}

// NewConverter builds an Unprepared converter. The configuration is
// validated at Prepare, not here, so a converter can be constructed before
// the stream geometry is known.
func NewConverter(cfg Config, log logger.Logger) *Converter {
	c := &Converter{
		log:        log,
		cfg:        cfg,
		dispatcher: kernel.NewDispatcher(),
	}
	c.tables.New = func() interface{} {
		return make(equalize.Table, cfg.Equalization.BinCount)
	}
	return c
}

// Prepare validates the input description, allocates the output pool, and
// generates the colormap. On failure the converter stays Unprepared and
// Prepare may be retried.
func (c *Converter) Prepare(desc InputDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == statePrepared {
		return &ConfigError{Reason: "already prepared; Reset first"}
	}
	if err := c.cfg.Validate(); err != nil {
		return &ConfigError{Reason: "invalid configuration", Err: err}
	}
	if desc.Format != frame.FormatDepth32F && desc.Format != frame.FormatDepth16F {
		return &ConfigError{Reason: fmt.Sprintf("unsupported pixel format %s; need single-channel floating depth", desc.Format)}
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("invalid input extent %dx%d", desc.Width, desc.Height)}
	}

	// The color table is generated once per converter lifetime and shared
	// read-only across every in-flight frame thereafter.
	if len(c.colors) != c.cfg.Equalization.ColorCount {
		c.colors = colormap.Generate(c.cfg.Equalization.ColorCount)
	}

	pool, err := c.cfg.NewPool(desc.Width, desc.Height, c.cfg.OutputBuffers)
	if err != nil {
		return &ConfigError{Reason: "output buffer pool allocation failed", Err: err}
	}

	c.pool = pool
	c.input = desc
	c.state = statePrepared

	c.log.Info("Converter", "prepared", map[string]interface{}{
		"width":          desc.Width,
		"height":         desc.Height,
		"format":         desc.Format.String(),
		"bin_count":      c.cfg.Equalization.BinCount,
		"color_count":    c.cfg.Equalization.ColorCount,
		"output_buffers": c.cfg.OutputBuffers,
	})
	return nil
}

// Render converts one depth frame. The equalization pass runs synchronously
// on the calling goroutine; the mapping kernel is dispatched asynchronously
// and the returned Output carries its completion. Ownership of the output
// buffer transfers to the caller on success.
func (c *Converter) Render(df *frame.DepthFrame) (*Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != statePrepared {
		return nil, ErrNotPrepared
	}
	if df.Width() != c.input.Width || df.Height() != c.input.Height {
		return nil, fmt.Errorf("frame extent %dx%d does not match prepared %dx%d",
			df.Width(), df.Height(), c.input.Width, c.input.Height)
	}

	buf, err := c.pool.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquiring output buffer: %w", err)
	}

	table := c.acquireTable()
	if err := equalize.EqualizeInto(table, df, c.cfg.Equalization); err != nil {
		buf.Release()
		c.tables.Put(table)
		return nil, fmt.Errorf("equalization pass: %w", err)
	}

	// Out-of-range depths are never written by the kernel; the buffer is
	// cleared so those pixels read as transparent black.
	clear(buf.Pix())

	k := &kernel.DepthToColor{
		Depth:    df,
		Table:    table,
		Colors:   c.colors,
		BinScale: c.cfg.Equalization.BinScale,
		Out: kernel.RGBAView{
			Pix:    buf.Pix(),
			Width:  buf.Width(),
			Height: buf.Height(),
			Stride: buf.Stride(),
		},
	}

	gen := c.generation.Load()
	done := c.dispatcher.Dispatch(kernel.Extent{Width: buf.Width(), Height: buf.Height()}, k.MapPixel)

	// The table is read by the kernel until the dispatch resolves; recycle
	// it then, unless the pipeline was reset in the meantime.
	go func() {
		<-done.Done()
		if c.generation.Load() == gen {
			c.tables.Put(table)
		}
	}()

	return &Output{Buffer: buf, Done: done}, nil
}

// Reset tears the pipeline back to Unprepared. In-flight kernels finish
// against their own buffers and tables; their late completions are dropped
// silently rather than delivered into the torn-down state. Idempotent.
func (c *Converter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateUnprepared && c.pool == nil {
		return
	}

	c.generation.Add(1)
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	c.input = InputDescription{}
	c.state = stateUnprepared

	c.log.Debug("Converter", "reset", nil)
}

func (c *Converter) acquireTable() equalize.Table {
	table := c.tables.Get().(equalize.Table)
	if len(table) != c.cfg.Equalization.BinCount {
		table = make(equalize.Table, c.cfg.Equalization.BinCount)
	}
	return table
}
