package software

import (
	"context"

	"github.com/video-system/go-effect-bridge/pkg/player"
	"github.com/video-system/go-effect-bridge/pkg/preview"
)

// Renderer shows the window as a websocket preview. The hub is exposed so
// the host can serve it over HTTP.
type Renderer struct {
	backend player.RenderBackend
	hub     *preview.Hub
}

func (r *Renderer) Backend() player.RenderBackend { return r.backend }

// Surface returns the preview hub
func (r *Renderer) Surface() player.Surface { return r.hub }

// Hub returns the preview hub
func (r *Renderer) Hub() *preview.Hub { return r.hub }

func (r *Renderer) SetCallbacks(onResize func(width, height int), onClose func()) {
	r.hub.SetHandlers(onResize, onClose)
}

// Run blocks until ctx is done or a viewer closes the window
func (r *Renderer) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-r.hub.Done():
	}
	return nil
}

func (r *Renderer) Close() error {
	return r.hub.Close()
}

// RenderTarget is the offscreen frame size
type RenderTarget struct {
	backend player.RenderBackend
	width   int
	height  int
}

func (t *RenderTarget) Size() (int, int) { return t.width, t.height }

func (t *RenderTarget) Close() error { return nil }
