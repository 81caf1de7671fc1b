// Package player describes the effect-rendering pipeline a session drives.
// A Backend produces the pipeline objects; implementations register
// themselves by name.
package player

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
)

// Backend creates the pipeline objects for one rendering implementation
type Backend interface {
	// Metadata
	Name() string

	// Initialize validates the client token and loads resources from paths
	Initialize(paths []string, token string) (SDK, error)

	// Rendering
	NewRenderer(rb RenderBackend, width, height int) (Renderer, error)
	NewRenderTarget(rb RenderBackend, width, height int) (RenderTarget, error)
	NewPlayer(sdk SDK, cfg PlayerConfig, target RenderTarget, renderer Renderer) (Player, error)

	// Inputs
	NewLiveInput() (LiveInput, error)
	NewPhotoInput() (PhotoInput, error)
	NewCamera(cfg CameraConfig, push func(*pixel.Buffer)) (CameraDevice, error)

	// Outputs
	NewFrameOutput(cb func(pixel.Image), format pixel.PixelFormat) (FrameOutput, error)
	NewWindowOutput(surface Surface) (WindowOutput, error)
}

// SDK is the initialized pipeline runtime
type SDK interface {
	ResourcePaths() []string
	Close() error
}

// PlayerConfig holds player settings
type PlayerConfig struct {
	FPS int
}

// CameraConfig describes the capture device to open
type CameraConfig struct {
	Index  int
	Device string // device path, overrides Index when set
	Width  int
	Height int
	FPS    int
}

// RenderMode selects how frames are produced
type RenderMode int

const (
	// RenderLoop produces frames continuously while playing
	RenderLoop RenderMode = iota
	// RenderManual produces a frame only when Render is called
	RenderManual
)

// Player composes the current input with the loaded effect and delivers
// each frame to every attached output.
type Player interface {
	// Use attaches an input or output and returns the player for chaining
	Use(e Endpoint) Player
	// Remove detaches an endpoint; unknown endpoints are ignored
	Remove(e Endpoint)

	// Effects
	Load(name string) error
	LoadAsync(name string, done func(error))
	Effect() string

	// Playback
	SetRenderMode(mode RenderMode)
	Render() error
	Play() error
	Pause() error

	Close() error
}

// EndpointKind distinguishes inputs from outputs
type EndpointKind int

const (
	EndpointInput EndpointKind = iota
	EndpointOutput
)

// Endpoint is anything a Player can Use
type Endpoint interface {
	Kind() EndpointKind
	Close() error
}

// LiveInput accepts frames pushed by the host or a camera
type LiveInput interface {
	Endpoint
	// Push transfers ownership of buf to the pipeline. It only enqueues.
	Push(buf *pixel.Buffer, timestampUs int64) error
}

// PhotoInput renders a still image from disk
type PhotoInput interface {
	Endpoint
	Load(path string) error
}

// FrameOutput delivers composed frames to a callback. The image passed to
// the callback is only valid for the duration of the call.
type FrameOutput interface {
	Endpoint
	Format() pixel.PixelFormat
}

// WindowOutput presents composed frames on a renderer surface
type WindowOutput interface {
	Endpoint
	SetFrameLayout(x, y, width, height int)
}

// Surface is where a window output draws
type Surface interface {
	Size() (width, height int)
	Present(img pixel.Image) error
}

// RenderTarget is the offscreen target frames are composed into
type RenderTarget interface {
	Size() (width, height int)
	Close() error
}

// Renderer owns the window and its event loop
type Renderer interface {
	Backend() RenderBackend
	Surface() Surface
	// SetCallbacks installs window notifications. Either may be nil.
	SetCallbacks(onResize func(width, height int), onClose func())
	// Run processes window events until ctx is done or the window closes
	Run(ctx context.Context) error
	Close() error
}

// CameraDevice pushes captured frames until stopped
type CameraDevice interface {
	Start(ctx context.Context) error
	Stop() error
}

// RenderBackend selects the GPU API
type RenderBackend int

const (
	RenderAuto RenderBackend = iota
	RenderOpenGL
	RenderMetal
)

func (b RenderBackend) String() string {
	switch b {
	case RenderOpenGL:
		return "opengl"
	case RenderMetal:
		return "metal"
	default:
		return "auto"
	}
}

// Resolve replaces RenderAuto with the platform default
func (b RenderBackend) Resolve() RenderBackend {
	if b != RenderAuto {
		return b
	}
	if runtime.GOOS == "darwin" {
		return RenderMetal
	}
	return RenderOpenGL
}

// ParseRenderBackend maps a config value (auto, opengl, metal) to a backend
func ParseRenderBackend(s string) (RenderBackend, error) {
	switch s {
	case "", "auto":
		return RenderAuto, nil
	case "opengl", "gl":
		return RenderOpenGL, nil
	case "metal":
		return RenderMetal, nil
	}
	return RenderAuto, fmt.Errorf("unknown render backend: %q", s)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Backend)
)

// Register registers a backend factory
func Register(name string, factory func() Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get returns a backend by name
func Get(name string) (Backend, bool) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names lists registered backends
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
