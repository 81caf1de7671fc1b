// Package software is a CPU implementation of the player pipeline. It
// composes effects with gg, reads photos from disk, produces frames on a
// ticker and shows the window through a browser preview.
package software

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
	"github.com/video-system/go-effect-bridge/pkg/preview"
)

// Name is the registry name of this backend
const Name = "software"

var (
	ErrNoInput     = errors.New("no input attached")
	ErrNoFrame     = errors.New("input has no frame")
	ErrClosed      = errors.New("player closed")
	ErrInvalidSize = errors.New("invalid size")
)

func init() {
	player.Register(Name, func() player.Backend { return New(nil) })
}

// Backend creates software pipeline objects
type Backend struct {
	logger *slog.Logger

	// PreviewQuality is the JPEG quality of window frames
	PreviewQuality int
}

var _ player.Backend = (*Backend)(nil)

// New returns a software backend logging to logger (slog.Default when nil)
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{logger: logger.With("backend", Name), PreviewQuality: 80}
}

// Name returns the backend name
func (b *Backend) Name() string { return Name }

// Initialize checks the token and records the resource paths that exist.
// Missing paths are logged and skipped; an empty path is ignored.
func (b *Backend) Initialize(paths []string, token string) (player.SDK, error) {
	if token == "" {
		return nil, errors.New("client token is empty")
	}
	sdk := &SDK{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			b.logger.Warn("resource path unavailable", "path", p)
			continue
		}
		sdk.paths = append(sdk.paths, p)
	}
	b.logger.Info("sdk initialized", "resource_paths", sdk.paths)
	return sdk, nil
}

func (b *Backend) NewRenderer(rb player.RenderBackend, width, height int) (player.Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d", ErrInvalidSize, width, height)
	}
	return &Renderer{
		backend: rb.Resolve(),
		hub:     preview.NewHub(width, height, b.PreviewQuality, b.logger),
	}, nil
}

func (b *Backend) NewRenderTarget(rb player.RenderBackend, width, height int) (player.RenderTarget, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrInvalidSize, width, height)
	}
	return &RenderTarget{backend: rb.Resolve(), width: width, height: height}, nil
}

func (b *Backend) NewPlayer(sdk player.SDK, cfg player.PlayerConfig, target player.RenderTarget, renderer player.Renderer) (player.Player, error) {
	s, ok := sdk.(*SDK)
	if !ok {
		return nil, fmt.Errorf("sdk %T was not created by the %s backend", sdk, Name)
	}
	return newPlayer(s, cfg, target, renderer, b.logger), nil
}

func (b *Backend) NewLiveInput() (player.LiveInput, error) {
	return &LiveInput{}, nil
}

func (b *Backend) NewPhotoInput() (player.PhotoInput, error) {
	return &PhotoInput{}, nil
}

func (b *Backend) NewFrameOutput(cb func(pixel.Image), format pixel.PixelFormat) (player.FrameOutput, error) {
	if cb == nil {
		return nil, errors.New("frame output callback is nil")
	}
	if format.BytesPerPixel() != 4 {
		return nil, fmt.Errorf("frame output: %w: %s", pixel.ErrUnsupportedFormat, format)
	}
	return &FrameOutput{cb: cb, format: format}, nil
}

func (b *Backend) NewWindowOutput(surface player.Surface) (player.WindowOutput, error) {
	if surface == nil {
		return nil, errors.New("window output needs a surface")
	}
	return &WindowOutput{surface: surface}, nil
}

func (b *Backend) NewCamera(cfg player.CameraConfig, push func(*pixel.Buffer)) (player.CameraDevice, error) {
	if push == nil {
		return nil, errors.New("camera push function is nil")
	}
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return newCamera(cfg, push, b.logger)
}

// SDK holds the resource paths effects are looked up in
type SDK struct {
	paths []string
}

func (s *SDK) ResourcePaths() []string {
	return append([]string(nil), s.paths...)
}

func (s *SDK) Close() error { return nil }
