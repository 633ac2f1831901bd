package pointcloud

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// View accumulates the external 4x4 transform applied to reprojected
// vertices: rotations about the cloud center, movement toward it, and a
// reset. Gesture interpretation happens upstream; only the matrix algebra
// lives here. Safe for concurrent use: input handlers mutate the view on
// the UI goroutine while render passes read Matrix from the stream worker.
type View struct {
	mu        sync.Mutex
	center    mgl32.Vec3
	transform mgl32.Mat4
}

// NewView starts at identity around the given cloud center.
func NewView(center mgl32.Vec3) *View {
	return &View{center: center, transform: mgl32.Ident4()}
}

// Matrix returns a snapshot of the current accumulated transform.
func (v *View) Matrix() mgl32.Mat4 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transform
}

// Yaw rotates the cloud about the Y axis through its center.
func (v *View) Yaw(angle float32) {
	v.rotateAroundCenter(mgl32.HomogRotate3DY(angle))
}

// Pitch rotates the cloud about the X axis through its center.
func (v *View) Pitch(angle float32) {
	v.rotateAroundCenter(mgl32.HomogRotate3DX(angle))
}

// Roll rotates the cloud about the Z axis through its center.
func (v *View) Roll(angle float32) {
	v.rotateAroundCenter(mgl32.HomogRotate3DZ(angle))
}

// MoveTowardCenter translates the viewpoint toward (positive scale) or away
// from (negative scale) the cloud center.
func (v *View) MoveTowardCenter(scale float32) {
	dir := v.center.Mul(scale)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transform = mgl32.Translate3D(-dir.X(), -dir.Y(), -dir.Z()).Mul4(v.transform)
}

// Reset drops all accumulated rotation and translation.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transform = mgl32.Ident4()
}

func (v *View) rotateAroundCenter(r mgl32.Mat4) {
	toOrigin := mgl32.Translate3D(-v.center.X(), -v.center.Y(), -v.center.Z())
	back := mgl32.Translate3D(v.center.X(), v.center.Y(), v.center.Z())
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transform = back.Mul4(r).Mul4(toOrigin).Mul4(v.transform)
}
