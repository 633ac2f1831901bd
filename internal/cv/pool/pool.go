// Package pool provides the bounded pool of RGBA output Mats the frame
// converter draws from. The fixed capacity is the pipeline's backpressure:
// when every buffer is retained downstream, acquisition fails instead of
// allocating, and the frame is dropped.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"depthjet/internal/cv/safe"
	"depthjet/internal/logger"
)

// ErrExhausted reports a non-blocking acquire against an empty pool.
var ErrExhausted = errors.New("output buffer pool exhausted")

// monitorInterval paces the long-held-buffer diagnostics.
const monitorInterval = 30 * time.Second

// Buffer is one pooled RGBA output image. Ownership transfers on Acquire
// and returns on Release; the byte view must not be touched after Release.
type Buffer struct {
	mat    *safe.Mat
	pix    []byte
	width  int
	height int
	pool   *Pool
}

func (b *Buffer) Pix() []byte { return b.pix }
func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Stride is the distance between rows in bytes. Pool Mats are allocated
// contiguous, so the stride is exactly four bytes per pixel.
func (b *Buffer) Stride() int { return b.width * 4 }

// Mat exposes the backing Mat for cv interop (encoding, display bridges).
func (b *Buffer) Mat() *safe.Mat { return b.mat }

// Release returns the buffer to its pool. A release after the pool closed
// frees the Mat instead; releasing twice is a no-op.
func (b *Buffer) Release() {
	if b.pool != nil {
		b.pool.release(b)
	}
}

type inFlightInfo struct {
	acquiredAt time.Time
}

// Pool preallocates capacity output Mats of a fixed geometry.
type Pool struct {
	mu       sync.Mutex
	log      logger.Logger
	free     []*Buffer
	inFlight map[uint64]inFlightInfo
	width    int
	height   int
	capacity int
	acquires int64
	releases int64
	closed   bool
	stop     chan struct{}
}

// New allocates the pool up front so render-time acquisition never stalls
// on the allocator. Capacity must be at least one.
func New(log logger.Logger, width, height, capacity int) (*Pool, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("pool capacity %d must be at least 1", capacity)
	}

	p := &Pool{
		log:      log,
		inFlight: make(map[uint64]inFlightInfo),
		width:    width,
		height:   height,
		capacity: capacity,
		stop:     make(chan struct{}),
	}

	for i := 0; i < capacity; i++ {
		mat, err := safe.NewMat(height, width, gocv.MatTypeCV8UC4, fmt.Sprintf("output_%d", i))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("allocating output buffer %d: %w", i, err)
		}
		pix, err := mat.ByteView()
		if err != nil {
			mat.Close()
			p.Close()
			return nil, fmt.Errorf("mapping output buffer %d: %w", i, err)
		}
		p.free = append(p.free, &Buffer{mat: mat, pix: pix, width: width, height: height, pool: p})
	}

	go p.monitor()

	log.Debug("BufferPool", "pool allocated", map[string]interface{}{
		"width":    width,
		"height":   height,
		"capacity": capacity,
	})
	return p, nil
}

// Acquire hands out a free buffer without blocking. ErrExhausted means every
// buffer is still retained downstream.
func (p *Pool) Acquire() (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("buffer pool is closed")
	}
	if len(p.free) == 0 {
		return nil, ErrExhausted
	}

	b := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inFlight[b.mat.ID()] = inFlightInfo{acquiredAt: time.Now()}
	p.acquires++
	return b, nil
}

func (p *Pool) release(b *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inFlight[b.mat.ID()]; !ok {
		return
	}
	delete(p.inFlight, b.mat.ID())
	p.releases++

	if p.closed {
		b.mat.Close()
		return
	}
	p.free = append(p.free, b)
}

// Stats reports lifetime acquire/release counts and current in-flight size.
func (p *Pool) Stats() (acquires, releases int64, inFlight int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires, p.releases, len(p.inFlight)
}

// Close frees every idle buffer. Buffers still in flight are freed when
// their holders release them. Idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	free := p.free
	p.free = nil
	remaining := len(p.inFlight)
	p.mu.Unlock()

	close(p.stop)
	for _, b := range free {
		b.mat.Close()
	}

	if remaining > 0 {
		p.log.Warning("BufferPool", "closed with buffers in flight", map[string]interface{}{
			"in_flight": remaining,
		})
	}
}

func (p *Pool) monitor() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reportHeldBuffers()
		case <-p.stop:
			return
		}
	}
}

// reportHeldBuffers flags buffers retained far longer than a frame period,
// which usually means a consumer forgot to release its output.
func (p *Pool) reportHeldBuffers() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, info := range p.inFlight {
		if age := now.Sub(info.acquiredAt); age > monitorInterval {
			p.log.Warning("BufferPool", "long-lived output buffer", map[string]interface{}{
				"buffer_id": id,
				"age":       age.String(),
			})
		}
	}
}
