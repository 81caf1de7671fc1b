//go:build !gst

package software

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

// Camera generates a moving colour-bar pattern. Build with -tags gst to
// capture from a V4L2 device instead.
type Camera struct {
	cfg    player.CameraConfig
	push   func(*pixel.Buffer)
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newCamera(cfg player.CameraConfig, push func(*pixel.Buffer), logger *slog.Logger) (player.CameraDevice, error) {
	return &Camera{
		cfg:    cfg,
		push:   push,
		logger: logger.With("component", "camera", "device", cfg.Index, "source", "synthetic"),
	}, nil
}

// Start begins pushing frames until Stop or ctx is done
func (c *Camera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("camera already started")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
	c.logger.Info("camera started", "width", c.cfg.Width, "height", c.cfg.Height, "fps", c.cfg.FPS)
	return nil
}

func (c *Camera) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.FPS))
	defer ticker.Stop()

	var n int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.push(testPattern(c.cfg.Width, c.cfg.Height, n))
			n++
		}
	}
}

// Stop halts capture and waits for the capture goroutine
func (c *Camera) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	c.logger.Info("camera stopped")
	return nil
}
