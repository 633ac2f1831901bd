package app

import (
	"fmt"
	"image"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/mathgl/mgl32"

	"depthjet/internal/logger"
	"depthjet/internal/pointcloud"
	"depthjet/internal/stream"
)

const (
	viewAreaWidth  = 640
	viewAreaHeight = 480

	rotateStep = 0.05
	zoomStep   = 0.1
)

// Viewer is the single-window display: one image canvas fed by either the
// false-color converter or the point-cloud splatter, a mode toggle, and
// keyboard-driven view transforms for the point cloud.
type Viewer struct {
	window  fyne.Window
	logger  logger.Logger
	display *canvas.Image
	toggle  *widget.Button
	status  *widget.Label
	content *fyne.Container

	mode     atomic.Int32
	view     *pointcloud.View
	splatter *Splatter
}

func NewViewer(window fyne.Window, cloudCenter mgl32.Vec3, log logger.Logger) *Viewer {
	v := &Viewer{
		window:   window,
		logger:   log,
		view:     pointcloud.NewView(cloudCenter),
		splatter: NewSplatter(viewAreaWidth, viewAreaHeight),
	}

	v.display = canvas.NewImageFromImage(nil)
	v.display.FillMode = canvas.ImageFillContain
	v.display.ScaleMode = canvas.ImageScaleFastest
	v.display.SetMinSize(fyne.NewSize(viewAreaWidth, viewAreaHeight))

	v.toggle = widget.NewButton("Point Cloud", v.onToggle)
	v.toggle.Importance = widget.HighImportance
	v.status = widget.NewLabel("Starting stream")

	toolbar := container.NewBorder(nil, nil, container.NewHBox(v.toggle), v.status)
	v.content = container.NewBorder(nil, toolbar, nil, nil, v.display)
	window.SetContent(v.content)
	window.Canvas().SetOnTypedKey(v.onKey)

	log.Info("Viewer", "initialized", map[string]interface{}{
		"width":  viewAreaWidth,
		"height": viewAreaHeight,
	})
	return v
}

// Mode reports the render mode for the next frame.
func (v *Viewer) Mode() stream.Mode {
	return stream.Mode(v.mode.Load())
}

func (v *Viewer) onToggle() {
	if stream.Mode(v.mode.Load()) == stream.ModeFalseColor {
		v.mode.Store(int32(stream.ModePointCloud))
		v.toggle.SetText("False Color")
	} else {
		v.mode.Store(int32(stream.ModeFalseColor))
		v.toggle.SetText("Point Cloud")
	}
	v.logger.Debug("Viewer", "mode toggled", map[string]interface{}{
		"mode": stream.Mode(v.mode.Load()).String(),
	})
}

func (v *Viewer) onKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyLeft:
		v.view.Yaw(-rotateStep)
	case fyne.KeyRight:
		v.view.Yaw(rotateStep)
	case fyne.KeyUp:
		v.view.Pitch(-rotateStep)
	case fyne.KeyDown:
		v.view.Pitch(rotateStep)
	case fyne.KeyQ:
		v.view.Roll(-rotateStep)
	case fyne.KeyE:
		v.view.Roll(rotateStep)
	case fyne.KeyW:
		v.view.MoveTowardCenter(zoomStep)
	case fyne.KeyS:
		v.view.MoveTowardCenter(-zoomStep)
	case fyne.KeyR:
		v.view.Reset()
	}
}

// SetImage displays one completed false-color frame. The image must remain
// untouched by the caller after handoff.
func (v *Viewer) SetImage(img image.Image) {
	fyne.Do(func() {
		v.display.Image = img
		v.display.Refresh()
	})
}

// SetPointCloud splats the frame's vertices through the current view
// transform and displays the result.
func (v *Viewer) SetPointCloud(verts []pointcloud.Vertex) {
	img := v.splatter.Render(verts, v.view.Matrix())

	// The splatter reuses its backing image; hand the canvas a copy so the
	// next frame cannot race the draw.
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	v.SetImage(out)
}

// SetDepthRange updates the diagnostic readout of the live depth bounds.
func (v *Viewer) SetDepthRange(minDepth, maxDepth float32) {
	fyne.Do(func() {
		v.status.SetText(fmt.Sprintf("depth %.3f-%.3f m", minDepth, maxDepth))
	})
}
