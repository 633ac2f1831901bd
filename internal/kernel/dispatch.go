// Package kernel models the data-parallel execution unit of the pipeline:
// pure per-pixel functions dispatched over a grid of fixed-size thread
// groups. Submission is asynchronous; callers hold a Completion and must
// not reuse buffers a kernel reads until it reports done.
package kernel

import (
	"context"
	"runtime"
	"sync"
)

// Group capacity mirrors the execution-hardware derivation: a preferred
// execution width and a ceiling on threads per group. Group height is
// capacity divided by width.
const (
	executionWidth     = 32
	maxThreadsPerGroup = 256
)

// GroupSize is the fixed extent of one thread group.
type GroupSize struct {
	Width  int
	Height int
}

// PreferredGroupSize derives group dimensions from the execution width and
// the per-group thread ceiling.
func PreferredGroupSize() GroupSize {
	return GroupSize{
		Width:  executionWidth,
		Height: maxThreadsPerGroup / executionWidth,
	}
}

// Extent is the pixel extent of a dispatch grid.
type Extent struct {
	Width  int
	Height int
}

// PixelFunc is invoked once per grid coordinate. Over-provisioned edge
// groups deliver coordinates beyond the extent of the underlying data; the
// function must bounds-check before any read or write.
type PixelFunc func(x, y int)

// Completion is the explicit future for one submitted dispatch. The zero
// value is not usable; Dispatch returns a live one.
type Completion struct {
	done chan struct{}
}

// Done is closed once every thread group has executed.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Wait blocks until the dispatch completes or ctx is cancelled.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatcher schedules thread groups onto the available execution
// hardware. It is safe for concurrent use; each dispatch is independent.
type Dispatcher struct {
	group   GroupSize
	workers int
}

// NewDispatcher sizes thread groups to the preferred hardware geometry and
// bounds parallelism to the core count.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		group:   PreferredGroupSize(),
		workers: runtime.NumCPU(),
	}
}

// GroupSize reports the fixed group geometry used for every dispatch.
func (d *Dispatcher) GroupSize() GroupSize { return d.group }

// Dispatch submits fn over the full extent, partitioned into
// ceil(width/groupW) x ceil(height/groupH) groups, and returns immediately.
// The returned Completion resolves once the last group finishes.
func (d *Dispatcher) Dispatch(extent Extent, fn PixelFunc) *Completion {
	c := &Completion{done: make(chan struct{})}
	if extent.Width <= 0 || extent.Height <= 0 {
		close(c.done)
		return c
	}

	groupsX := (extent.Width + d.group.Width - 1) / d.group.Width
	groupsY := (extent.Height + d.group.Height - 1) / d.group.Height
	total := groupsX * groupsY

	groups := make(chan int, total)
	for g := 0; g < total; g++ {
		groups <- g
	}
	close(groups)

	workers := d.workers
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for g := range groups {
				d.runGroup(g%groupsX, g/groupsX, fn)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(c.done)
	}()

	return c
}

// runGroup executes every thread of one group, including the coordinates an
// edge group over-provisions past the data extent.
func (d *Dispatcher) runGroup(gx, gy int, fn PixelFunc) {
	baseX := gx * d.group.Width
	baseY := gy * d.group.Height
	for ty := 0; ty < d.group.Height; ty++ {
		for tx := 0; tx < d.group.Width; tx++ {
			fn(baseX+tx, baseY+ty)
		}
	}
}
