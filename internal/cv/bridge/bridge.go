// Package bridge converts between gocv Mats and the pipeline's frame and
// image types. Camera collaborators that deliver Mats enter the pipeline
// here; rendered output leaves through it for display.
package bridge

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"depthjet/internal/cv/pool"
	"depthjet/internal/cv/safe"
	"depthjet/internal/frame"
)

// DepthFrameFromMat views a single-channel float Mat as a DepthFrame.
// The Mat must stay alive while the frame is in use.
func DepthFrameFromMat(mat *safe.Mat) (*frame.DepthFrame, error) {
	if err := safe.Validate(mat, "DepthFrameFromMat"); err != nil {
		return nil, err
	}
	if mat.Type() != gocv.MatTypeCV32FC1 {
		return nil, fmt.Errorf("depth Mat must be CV32FC1, got type %d", mat.Type())
	}

	m := mat.GetMat()
	pix, err := m.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("depth Mat has no contiguous float view: %w", err)
	}
	return frame.NewDepthFrame(pix, mat.Cols(), mat.Rows(), mat.Cols())
}

// VideoFrameFromBGRAMat converts a BGRA video Mat to the RGBA byte layout
// the reprojector samples.
func VideoFrameFromBGRAMat(mat *safe.Mat) (*frame.VideoFrame, error) {
	if err := safe.Validate(mat, "VideoFrameFromBGRAMat"); err != nil {
		return nil, err
	}
	if mat.Channels() != 4 {
		return nil, fmt.Errorf("video Mat must have 4 channels, got %d", mat.Channels())
	}

	src := mat.GetMat()
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.CvtColor(src, &dst, gocv.ColorBGRAToRGBA)

	data, err := dst.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("converted video Mat has no byte view: %w", err)
	}
	pix := make([]byte, len(data))
	copy(pix, data)

	return frame.NewVideoFrame(pix, mat.Cols(), mat.Rows(), mat.Cols()*4)
}

// BufferImage wraps a pooled output buffer's pixels as an image.RGBA
// without copying. The image is only valid until the buffer is released.
func BufferImage(b *pool.Buffer) *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix(),
		Stride: b.Stride(),
		Rect:   image.Rect(0, 0, b.Width(), b.Height()),
	}
}

// ImageFromRGBA copies a raw RGBA byte view into a standalone image.RGBA,
// detaching it from pipeline-owned storage.
func ImageFromRGBA(pix []byte, width, height, stride int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+width*4], pix[y*stride:y*stride+width*4])
	}
	return img
}
