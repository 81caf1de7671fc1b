package software

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/video-system/go-effect-bridge/pkg/player"
)

// Player composes the attached input with the loaded effect. In loop mode
// a single goroutine renders at the configured rate while playing; in
// manual mode frames are produced by Render on the caller's goroutine.
type Player struct {
	logger   *slog.Logger
	sdk      *SDK
	fps      int
	target   player.RenderTarget
	renderer player.Renderer

	mu       sync.Mutex
	input    source
	inputEP  player.Endpoint
	outputs  []player.Endpoint
	effect   *Effect
	mode     player.RenderMode
	playing  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	closed   bool
	loads    sync.WaitGroup

	// renderMu serialises frame production between the loop and Render
	renderMu  sync.Mutex
	seq       uint64
	lastTs    int64
	lastInput source
}

var _ player.Player = (*Player)(nil)

func newPlayer(sdk *SDK, cfg player.PlayerConfig, target player.RenderTarget, renderer player.Renderer, logger *slog.Logger) *Player {
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	return &Player{
		logger:   logger.With("component", "player"),
		sdk:      sdk,
		fps:      fps,
		target:   target,
		renderer: renderer,
	}
}

// Use attaches an input (replacing the current one) or adds an output
func (p *Player) Use(e player.Endpoint) player.Player {
	if e == nil {
		return p
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind() {
	case player.EndpointInput:
		src, ok := e.(source)
		if !ok {
			p.logger.Warn("input not supported by this backend", "type", fmt.Sprintf("%T", e))
			return p
		}
		p.input, p.inputEP = src, e
	case player.EndpointOutput:
		if _, ok := e.(sink); !ok {
			p.logger.Warn("output not supported by this backend", "type", fmt.Sprintf("%T", e))
			return p
		}
		for _, o := range p.outputs {
			if o == e {
				return p
			}
		}
		p.outputs = append(p.outputs, e)
	}
	return p
}

// Remove detaches e
func (p *Player) Remove(e player.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inputEP == e {
		p.input, p.inputEP = nil, nil
		return
	}
	for i, o := range p.outputs {
		if o == e {
			p.outputs = append(p.outputs[:i], p.outputs[i+1:]...)
			return
		}
	}
}

// Load activates the named effect synchronously. An empty name unloads.
func (p *Player) Load(name string) error {
	var eff *Effect
	if name != "" {
		dir, err := FindEffect(p.sdk.ResourcePaths(), name)
		if err != nil {
			return err
		}
		eff, err = LoadEffect(dir)
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.effect = eff
	p.mu.Unlock()

	if eff != nil {
		p.logger.Info("effect loaded", "effect", eff.Name, "dir", eff.Dir(), "shapes", len(eff.Shapes))
	} else {
		p.logger.Info("effect unloaded")
	}
	return nil
}

// LoadAsync loads in the background and reports the result to done
func (p *Player) LoadAsync(name string, done func(error)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if done != nil {
			done(ErrClosed)
		}
		return
	}
	p.loads.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.loads.Done()
		err := p.Load(name)
		if err != nil {
			p.logger.Warn("effect load failed", "effect", name, "error", err)
		}
		if done != nil {
			done(err)
		}
	}()
}

// Effect returns the name of the active effect
func (p *Player) Effect() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.effect == nil {
		return ""
	}
	return p.effect.Name
}

// SetRenderMode switches between loop and manual rendering
func (p *Player) SetRenderMode(mode player.RenderMode) {
	p.mu.Lock()
	p.mode = mode
	var wait chan struct{}
	if mode == player.RenderManual {
		wait = p.stopLoopLocked()
	} else if p.playing {
		p.startLoopLocked()
	}
	p.mu.Unlock()
	if wait != nil {
		<-wait
	}
}

// Play starts producing frames in loop mode
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.playing = true
	if p.mode == player.RenderLoop {
		p.startLoopLocked()
	}
	return nil
}

// Pause stops the render loop and waits for the current frame to finish
func (p *Player) Pause() error {
	p.mu.Lock()
	p.playing = false
	wait := p.stopLoopLocked()
	p.mu.Unlock()
	if wait != nil {
		<-wait
	}
	return nil
}

// Render produces one frame from the current input regardless of whether
// it is new
func (p *Player) Render() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return p.renderFrame(true)
}

// Close stops playback and waits for pending loads
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.playing = false
	wait := p.stopLoopLocked()
	p.input, p.inputEP, p.outputs = nil, nil, nil
	p.mu.Unlock()

	if wait != nil {
		<-wait
	}
	p.loads.Wait()
	return nil
}

// Stats returns the number of frames produced
func (p *Player) Stats() uint64 {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()
	return p.seq
}

func (p *Player) startLoopLocked() {
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.loopDone = cancel, done
	go p.loop(ctx, done)
	p.logger.Debug("render loop started", "fps", p.fps)
}

func (p *Player) stopLoopLocked() chan struct{} {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	done := p.loopDone
	p.cancel, p.loopDone = nil, nil
	return done
}

func (p *Player) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := p.renderFrame(false)
			if err != nil && !errors.Is(err, ErrNoInput) && !errors.Is(err, ErrNoFrame) {
				p.logger.Warn("render failed", "error", err)
			}
		}
	}
}

// renderFrame composes the current input frame and delivers it to every
// output in attach order. Unless force is set, a live frame that was
// already rendered is skipped.
func (p *Player) renderFrame(force bool) error {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	p.mu.Lock()
	in := p.input
	outs := make([]player.Endpoint, len(p.outputs))
	copy(outs, p.outputs)
	eff := p.effect
	p.mu.Unlock()

	if in == nil {
		return ErrNoInput
	}
	after := p.lastTs
	if force || in != p.lastInput {
		after = always
	}
	src, ts, ok := in.frame(after)
	if !ok {
		return ErrNoFrame
	}

	frame, err := p.compose(src, eff)
	if err != nil {
		return err
	}

	p.seq++
	p.lastTs, p.lastInput = ts, in
	for _, o := range outs {
		if err := o.(sink).deliver(frame, p.seq, ts); err != nil {
			p.logger.Warn("output delivery failed", "output", fmt.Sprintf("%T", o), "seq", p.seq, "error", err)
		}
	}
	return nil
}

func (p *Player) compose(src image.Image, eff *Effect) (*image.RGBA, error) {
	var out *image.RGBA
	if eff != nil {
		var err error
		if out, err = eff.Apply(src); err != nil {
			return nil, err
		}
	} else {
		b := src.Bounds()
		out = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(out, out.Rect, src, b.Min, draw.Src)
	}

	if p.target == nil {
		return out, nil
	}
	tw, th := p.target.Size()
	if tw <= 0 || th <= 0 || (tw == out.Rect.Dx() && th == out.Rect.Dy()) {
		return out, nil
	}
	scaled := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(scaled, scaled.Rect, out, out.Rect, draw.Src, nil)
	return scaled, nil
}
