//go:build gst

package software

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

// Camera captures from a V4L2 device through GStreamer:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGB) → appsink
type Camera struct {
	cfg    player.CameraConfig
	push   func(*pixel.Buffer)
	logger *slog.Logger

	mu       sync.Mutex
	pipeline *gst.Pipeline
	cancel   context.CancelFunc
}

func newCamera(cfg player.CameraConfig, push func(*pixel.Buffer), logger *slog.Logger) (player.CameraDevice, error) {
	if cfg.Device == "" {
		cfg.Device = fmt.Sprintf("/dev/video%d", cfg.Index)
	}
	return &Camera{
		cfg:    cfg,
		push:   push,
		logger: logger.With("component", "camera", "device", cfg.Device, "source", "v4l2"),
	}, nil
}

// Start builds the pipeline and sets it to PLAYING
func (c *Camera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline != nil {
		return errors.New("camera already started")
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("create v4l2src: %w", err)
	}
	src.SetProperty("device", c.cfg.Device)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("create videoconvert: %w", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("create videoscale: %w", err)
	}
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("create capsfilter: %w", err)
	}
	caps := fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", c.cfg.Width, c.cfg.Height)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(caps))

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	pipeline.AddMany(src, convert, scale, capsfilter, sink.Element)
	if err := gst.ElementLinkMany(src, convert, scale, capsfilter, sink.Element); err != nil {
		return fmt.Errorf("link camera pipeline: %w", err)
	}

	width, height := c.cfg.Width, c.cfg.Height
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(s *app.Sink) gst.FlowReturn {
			return c.onSample(s, width, height)
		},
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start camera pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.pipeline, c.cancel = pipeline, cancel
	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	c.logger.Info("camera started", "caps", caps)
	return nil
}

func (c *Camera) onSample(s *app.Sink, width, height int) gst.FlowReturn {
	sample := s.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	// Raw RGB rows are padded to 4 bytes
	row := width * 3
	stride := (row + 3) &^ 3

	data := buffer.Map(gst.MapRead).Bytes()
	if len(data) < stride*(height-1)+row {
		buffer.Unmap()
		c.logger.Warn("short camera buffer", "bytes", len(data), "stride", stride)
		return gst.FlowOK
	}

	// GStreamer reuses the buffer, copy into pooled memory
	frame := pixel.NewPacked(width, height, pixel.FormatRGB)
	copyRows(frame.Bytes(), data, row, stride, height)
	buffer.Unmap()

	c.push(frame)
	return gst.FlowOK
}

// Stop sets the pipeline to NULL
func (c *Camera) Stop() error {
	c.mu.Lock()
	pipeline, cancel := c.pipeline, c.cancel
	c.pipeline, c.cancel = nil, nil
	c.mu.Unlock()
	if pipeline == nil {
		return nil
	}
	cancel()
	if err := pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("stop camera pipeline: %w", err)
	}
	c.logger.Info("camera stopped")
	return nil
}
