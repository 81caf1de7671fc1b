package session

import (
	"context"
	"errors"
	"sync"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

// recorder collects teardown calls in order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

type fakeBackend struct {
	rec *recorder

	mu       sync.Mutex
	player   *fakePlayer
	live     *fakeLive
	frameOut *fakeFrameOutput
	window   *fakeWindowOutput
	renderer *fakeRenderer
	cameras  []*fakeCamera
	paths    []string

	// loadGate blocks LoadAsync until closed; loadErr is its result
	loadGate chan struct{}
	loadErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rec: &recorder{}}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Initialize(paths []string, token string) (player.SDK, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	b.mu.Lock()
	b.paths = paths
	b.mu.Unlock()
	return &fakeSDK{rec: b.rec}, nil
}

func (b *fakeBackend) NewRenderer(rb player.RenderBackend, width, height int) (player.Renderer, error) {
	r := &fakeRenderer{rec: b.rec, backend: rb.Resolve(), surface: &fakeSurface{w: width, h: height}}
	b.mu.Lock()
	b.renderer = r
	b.mu.Unlock()
	return r, nil
}

func (b *fakeBackend) NewRenderTarget(rb player.RenderBackend, width, height int) (player.RenderTarget, error) {
	return &fakeTarget{rec: b.rec, w: width, h: height}, nil
}

func (b *fakeBackend) NewPlayer(sdk player.SDK, cfg player.PlayerConfig, target player.RenderTarget, renderer player.Renderer) (player.Player, error) {
	p := &fakePlayer{rec: b.rec, backend: b, fps: cfg.FPS}
	b.mu.Lock()
	b.player = p
	b.mu.Unlock()
	return p, nil
}

func (b *fakeBackend) NewLiveInput() (player.LiveInput, error) {
	in := &fakeLive{rec: b.rec}
	b.mu.Lock()
	b.live = in
	b.mu.Unlock()
	return in, nil
}

func (b *fakeBackend) NewPhotoInput() (player.PhotoInput, error) {
	return &fakePhoto{rec: b.rec}, nil
}

func (b *fakeBackend) NewCamera(cfg player.CameraConfig, push func(*pixel.Buffer)) (player.CameraDevice, error) {
	c := &fakeCamera{rec: b.rec, cfg: cfg, push: push}
	b.mu.Lock()
	b.cameras = append(b.cameras, c)
	b.mu.Unlock()
	return c, nil
}

func (b *fakeBackend) NewFrameOutput(cb func(pixel.Image), format pixel.PixelFormat) (player.FrameOutput, error) {
	o := &fakeFrameOutput{rec: b.rec, cb: cb, format: format}
	b.mu.Lock()
	b.frameOut = o
	b.mu.Unlock()
	return o, nil
}

func (b *fakeBackend) NewWindowOutput(surface player.Surface) (player.WindowOutput, error) {
	o := &fakeWindowOutput{rec: b.rec, surface: surface}
	b.mu.Lock()
	b.window = o
	b.mu.Unlock()
	return o, nil
}

// emit simulates the pipeline delivering img to the frame output
func (b *fakeBackend) emit(img pixel.Image) {
	b.mu.Lock()
	out := b.frameOut
	b.mu.Unlock()
	out.cb(img)
}

type fakeSDK struct{ rec *recorder }

func (s *fakeSDK) ResourcePaths() []string { return nil }
func (s *fakeSDK) Close() error            { s.rec.add("sdk.close"); return nil }

type fakeTarget struct {
	rec  *recorder
	w, h int
}

func (t *fakeTarget) Size() (int, int) { return t.w, t.h }
func (t *fakeTarget) Close() error     { t.rec.add("target.close"); return nil }

type fakeSurface struct{ w, h int }

func (s *fakeSurface) Size() (int, int)              { return s.w, s.h }
func (s *fakeSurface) Present(img pixel.Image) error { return nil }

type fakeRenderer struct {
	rec      *recorder
	backend  player.RenderBackend
	surface  *fakeSurface
	onResize func(int, int)
}

func (r *fakeRenderer) Backend() player.RenderBackend { return r.backend }
func (r *fakeRenderer) Surface() player.Surface       { return r.surface }
func (r *fakeRenderer) SetCallbacks(onResize func(int, int), onClose func()) {
	r.onResize = onResize
}
func (r *fakeRenderer) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
func (r *fakeRenderer) Close() error { r.rec.add("renderer.close"); return nil }

type fakePlayer struct {
	rec     *recorder
	backend *fakeBackend
	fps     int

	mu      sync.Mutex
	used    []player.Endpoint
	mode    player.RenderMode
	playing bool
	renders int
	loaded  string
}

func (p *fakePlayer) Use(e player.Endpoint) player.Player {
	p.mu.Lock()
	p.used = append(p.used, e)
	p.mu.Unlock()
	return p
}

func (p *fakePlayer) Remove(e player.Endpoint) {
	p.mu.Lock()
	for i, u := range p.used {
		if u == e {
			p.used = append(p.used[:i], p.used[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

func (p *fakePlayer) Load(name string) error {
	p.mu.Lock()
	p.loaded = name
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) LoadAsync(name string, done func(error)) {
	p.backend.mu.Lock()
	gate, err := p.backend.loadGate, p.backend.loadErr
	p.backend.mu.Unlock()
	go func() {
		if gate != nil {
			<-gate
		}
		if err == nil {
			p.Load(name)
		}
		done(err)
	}()
}

func (p *fakePlayer) Effect() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *fakePlayer) SetRenderMode(mode player.RenderMode) {
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
}

func (p *fakePlayer) Render() error {
	p.mu.Lock()
	p.renders++
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Pause() error {
	p.rec.add("player.pause")
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Close() error { p.rec.add("player.close"); return nil }

func (p *fakePlayer) isPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) uses(e player.Endpoint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.used {
		if u == e {
			return true
		}
	}
	return false
}

type fakeLive struct {
	rec *recorder

	mu     sync.Mutex
	frames []*pixel.Buffer
	stamps []int64
}

func (in *fakeLive) Kind() player.EndpointKind { return player.EndpointInput }
func (in *fakeLive) Close() error              { in.rec.add("input.close"); return nil }

func (in *fakeLive) Push(buf *pixel.Buffer, ts int64) error {
	in.mu.Lock()
	in.frames = append(in.frames, buf)
	in.stamps = append(in.stamps, ts)
	in.mu.Unlock()
	return nil
}

func (in *fakeLive) pushed() ([]*pixel.Buffer, []int64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]*pixel.Buffer(nil), in.frames...), append([]int64(nil), in.stamps...)
}

type fakePhoto struct {
	rec  *recorder
	path string
}

func (in *fakePhoto) Kind() player.EndpointKind { return player.EndpointInput }
func (in *fakePhoto) Close() error              { in.rec.add("photo.close"); return nil }
func (in *fakePhoto) Load(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	in.path = path
	return nil
}

type fakeFrameOutput struct {
	rec    *recorder
	cb     func(pixel.Image)
	format pixel.PixelFormat
}

func (o *fakeFrameOutput) Kind() player.EndpointKind { return player.EndpointOutput }
func (o *fakeFrameOutput) Format() pixel.PixelFormat { return o.format }
func (o *fakeFrameOutput) Close() error              { o.rec.add("output.close"); return nil }

type fakeWindowOutput struct {
	rec     *recorder
	surface player.Surface

	mu     sync.Mutex
	layout [4]int
}

func (o *fakeWindowOutput) Kind() player.EndpointKind { return player.EndpointOutput }
func (o *fakeWindowOutput) Close() error              { o.rec.add("output.close"); return nil }
func (o *fakeWindowOutput) SetFrameLayout(x, y, w, h int) {
	o.mu.Lock()
	o.layout = [4]int{x, y, w, h}
	o.mu.Unlock()
}

type fakeCamera struct {
	rec  *recorder
	cfg  player.CameraConfig
	push func(*pixel.Buffer)

	mu      sync.Mutex
	started bool
	stopped bool
}

func (c *fakeCamera) Start(ctx context.Context) error {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *fakeCamera) Stop() error {
	c.rec.add("camera.stop")
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}

func (c *fakeCamera) state() (started, stopped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.stopped
}
