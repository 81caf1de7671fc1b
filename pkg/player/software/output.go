package software

import (
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

// sink is implemented by the outputs of this backend
type sink interface {
	deliver(img *image.RGBA, seq uint64, ts int64) error
}

// FrameOutput hands each composed frame to a callback in the configured
// channel order
type FrameOutput struct {
	cb     func(pixel.Image)
	format pixel.PixelFormat
}

var _ player.FrameOutput = (*FrameOutput)(nil)

func (o *FrameOutput) Kind() player.EndpointKind { return player.EndpointOutput }
func (o *FrameOutput) Format() pixel.PixelFormat { return o.format }
func (o *FrameOutput) Close() error              { return nil }

func (o *FrameOutput) deliver(img *image.RGBA, seq uint64, ts int64) error {
	view := pixel.FromRGBA(img)
	view.Seq, view.Timestamp = seq, ts
	if o.format == pixel.FormatRGBA {
		o.cb(view)
		return nil
	}
	buf, err := pixel.Convert(view, o.format)
	if err != nil {
		return err
	}
	defer buf.Release()
	o.cb(buf.Image())
	return nil
}

// WindowOutput scales frames into the frame layout and presents them
type WindowOutput struct {
	surface player.Surface

	mu     sync.Mutex
	layout image.Rectangle
}

var _ player.WindowOutput = (*WindowOutput)(nil)

func (o *WindowOutput) Kind() player.EndpointKind { return player.EndpointOutput }
func (o *WindowOutput) Close() error              { return nil }

// SetFrameLayout places the frame inside the window
func (o *WindowOutput) SetFrameLayout(x, y, width, height int) {
	o.mu.Lock()
	o.layout = image.Rect(x, y, x+width, y+height)
	o.mu.Unlock()
}

func (o *WindowOutput) deliver(img *image.RGBA, seq uint64, ts int64) error {
	ww, wh := o.surface.Size()
	o.mu.Lock()
	layout := o.layout
	o.mu.Unlock()
	if layout.Empty() {
		layout = image.Rect(0, 0, ww, wh)
	}

	frame := img
	if ww > 0 && wh > 0 && (ww != img.Rect.Dx() || wh != img.Rect.Dy() || layout != img.Rect) {
		frame = image.NewRGBA(image.Rect(0, 0, ww, wh))
		draw.ApproxBiLinear.Scale(frame, layout, img, img.Bounds(), draw.Src, nil)
	}

	view := pixel.FromRGBA(frame)
	view.Seq, view.Timestamp = seq, ts
	return o.surface.Present(view)
}
