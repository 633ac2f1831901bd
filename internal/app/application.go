// Package app assembles the viewer: synthetic camera, converter, projector,
// stream worker, and the fyne window, with signal-driven shutdown.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/go-gl/mathgl/mgl32"

	"depthjet/internal/convert"
	"depthjet/internal/cv/bridge"
	"depthjet/internal/cv/pool"
	"depthjet/internal/equalize"
	"depthjet/internal/frame"
	"depthjet/internal/logger"
	"depthjet/internal/pointcloud"
	"depthjet/internal/source"
	"depthjet/internal/stream"
)

const (
	AppName    = "DepthJet"
	AppID      = "dev.depthjet.viewer"
	AppVersion = "1.0.0"
)

// depthRangeEvery is the frame cadence of the live min/max readout.
const depthRangeEvery = 30

// matPool bridges the gocv-backed pool to the converter's pool contract.
type matPool struct {
	*pool.Pool
}

func (p matPool) Acquire() (convert.Buffer, error) {
	return p.Pool.Acquire()
}

type Application struct {
	fyneApp   fyne.App
	window    fyne.Window
	logger    logger.Logger
	camera    *source.Camera
	converter *convert.Converter
	projector *pointcloud.Projector
	worker    *stream.Worker
	viewer    *Viewer

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown chan struct{}
}

func NewApplication() (*Application, error) {
	app.SetMetadata(fyne.AppMetadata{
		ID:      AppID,
		Name:    AppName,
		Version: AppVersion,
		Build:   1,
	})

	fyneApp := app.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)
	window.Resize(fyne.NewSize(viewAreaWidth+40, viewAreaHeight+100))
	window.CenterOnScreen()
	window.SetMaster()

	ctx, cancel := context.WithCancel(context.Background())
	log := logger.NewConsoleLogger()

	log.Info("Application", "starting application", map[string]interface{}{
		"version": AppVersion,
	})

	camera, err := source.NewCamera(source.DefaultOptions(), log)
	if err != nil {
		cancel()
		return nil, err
	}
	width, height, format := camera.Description()

	cfg := convert.DefaultConfig()
	cfg.NewPool = func(w, h, capacity int) (convert.BufferPool, error) {
		p, err := pool.New(log, w, h, capacity)
		if err != nil {
			return nil, err
		}
		return matPool{p}, nil
	}

	converter := convert.NewConverter(cfg, log)
	if err := converter.Prepare(convert.InputDescription{
		Width:  width,
		Height: height,
		Format: format,
	}); err != nil {
		cancel()
		return nil, err
	}

	projector := pointcloud.NewProjector(pointcloud.DefaultOptions())

	// The synthetic wave is centered half a working range in front of the
	// camera; view rotations orbit that point.
	opts := source.DefaultOptions()
	cloudCenter := mgl32.Vec3{0, 0, float32(opts.MinDepth+opts.MaxDepth) / 2 * 1000}
	viewer := NewViewer(window, cloudCenter, log)

	a := &Application{
		fyneApp:   fyneApp,
		window:    window,
		logger:    log,
		camera:    camera,
		converter: converter,
		projector: projector,
		viewer:    viewer,
		ctx:       ctx,
		cancel:    cancel,
		shutdown:  make(chan struct{}),
	}

	worker, err := stream.NewWorker(stream.Config{
		Converter:    converter,
		Projector:    projector,
		Mode:         viewer.Mode,
		OnImage:      a.onImage,
		OnPointCloud: viewer.SetPointCloud,
		Logger:       log,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	a.worker = worker

	a.setupSignalHandling()
	log.Info("Application", "initialization complete", nil)
	return a, nil
}

func (a *Application) onImage(out *convert.Output) {
	if err := out.Done.Wait(a.ctx); err != nil {
		out.Release()
		return
	}
	img := bridge.ImageFromRGBA(out.Pix(), out.Width(), out.Height(), out.Stride())
	out.Release()
	a.viewer.SetImage(img)
}

func (a *Application) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("Application", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			a.initiateShutdown()
		case <-a.ctx.Done():
			return
		}
	}()
}

func (a *Application) Run() error {
	pairs := make(chan frame.Pair, 1)
	workerIn := make(chan frame.Pair)

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		if err := a.camera.Run(a.ctx, pairs); err != nil && a.ctx.Err() == nil {
			a.logger.Error("Application", err, nil)
			a.initiateShutdown()
		}
	}()
	go func() {
		defer a.wg.Done()
		defer close(workerIn)
		a.forwardPairs(pairs, workerIn)
	}()
	go func() {
		defer a.wg.Done()
		a.worker.Run(a.ctx, workerIn)
	}()

	a.window.SetCloseIntercept(func() {
		a.logger.Info("Application", "shutdown requested via window close", nil)
		a.initiateShutdown()
		a.window.Close()
	})

	go func() {
		<-a.shutdown
		fyne.Do(func() {
			a.fyneApp.Quit()
		})
	}()

	a.window.Show()
	a.fyneApp.Run()
	a.wg.Wait()
	return nil
}

// forwardPairs tees the camera stream into the worker, sampling the live
// depth bounds for the status readout on a fixed cadence.
func (a *Application) forwardPairs(in <-chan frame.Pair, out chan<- frame.Pair) {
	var count int64
	for {
		select {
		case <-a.ctx.Done():
			return
		case pair, ok := <-in:
			if !ok {
				return
			}
			if count%depthRangeEvery == 0 && pair.Depth != nil {
				if minDepth, maxDepth, ok := equalize.MinMax(pair.Depth); ok {
					a.viewer.SetDepthRange(minDepth, maxDepth)
				}
			}
			count++
			select {
			case out <- pair:
			case <-a.ctx.Done():
				return
			}
		}
	}
}

func (a *Application) initiateShutdown() {
	select {
	case <-a.shutdown:
		return
	default:
		close(a.shutdown)
	}

	a.logger.Info("Application", "shutdown sequence initiated", nil)
	a.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.converter.Reset()
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		a.logger.Warning("Application", "converter shutdown timeout", nil)
	}

	processed, dropped := a.worker.Stats()
	a.logger.Info("Application", "shutdown sequence completed", map[string]interface{}{
		"frames_processed": processed,
		"frames_dropped":   dropped,
	})
}
