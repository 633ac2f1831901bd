// Package safe wraps gocv.Mat with validity tracking so a Mat freed by one
// stage cannot be read by another. Only the operations the depth pipeline
// needs are exposed.
package safe

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

type Mat struct {
	mat     gocv.Mat
	isValid int32
	mu      sync.RWMutex
	id      uint64
	tag     string
}

var nextMatID uint64

// NewMat allocates a rows x cols Mat of the given type. The tag labels the
// allocation in pool diagnostics.
func NewMat(rows, cols int, matType gocv.MatType, tag string) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", cols, rows)
	}
	if rows > 32768 || cols > 32768 {
		return nil, fmt.Errorf("dimensions %dx%d exceed maximum size", cols, rows)
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create %dx%d Mat", cols, rows)
	}

	return &Mat{
		mat:     mat,
		isValid: 1,
		id:      atomic.AddUint64(&nextMatID, 1),
		tag:     tag,
	}, nil
}

// FromMat clones an existing gocv.Mat into a tracked wrapper.
func FromMat(src gocv.Mat, tag string) (*Mat, error) {
	if src.Empty() {
		return nil, fmt.Errorf("source Mat is empty")
	}
	cloned := src.Clone()
	if cloned.Empty() {
		cloned.Close()
		return nil, fmt.Errorf("failed to clone Mat")
	}
	return &Mat{
		mat:     cloned,
		isValid: 1,
		id:      atomic.AddUint64(&nextMatID, 1),
		tag:     tag,
	}, nil
}

func (sm *Mat) IsValid() bool { return atomic.LoadInt32(&sm.isValid) == 1 }

func (sm *Mat) ID() uint64  { return sm.id }
func (sm *Mat) Tag() string { return sm.tag }

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Cols()
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}
	return sm.mat.Type()
}

// ByteView returns the Mat's backing bytes. The view stays valid only while
// the Mat does; callers writing through it own the Mat for that duration.
func (sm *Mat) ByteView() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.IsValid() {
		return nil, fmt.Errorf("Mat %q is invalid", sm.tag)
	}
	data, err := sm.mat.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("Mat %q has no contiguous byte view: %w", sm.tag, err)
	}
	return data, nil
}

// GetMat exposes the underlying gocv.Mat for cv calls that need it. The
// wrapper retains ownership.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat
}

// Close releases the native buffer. Idempotent.
func (sm *Mat) Close() {
	if !atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.mat.Empty() {
		sm.mat.Close()
	}
	sm.mat = gocv.Mat{}
}

// Validate rejects a Mat an operation cannot use.
func Validate(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}
	if !mat.IsValid() {
		return fmt.Errorf("Mat is invalid for operation: %s", operation)
	}
	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}
	return nil
}
