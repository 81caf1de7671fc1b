// Package session drives an effect-rendering pipeline on behalf of a host
// application: it owns the pipeline objects, converts rendered frames for
// the host callback and injects host or camera frames.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/video-system/go-effect-bridge/internal/monotime"
	"github.com/video-system/go-effect-bridge/pkg/debugcapture"
	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

// State is the lifecycle state of a session
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateEffectLoading
	StateReady
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateEffectLoading:
		return "effect_loading"
	case StateReady:
		return "ready"
	case StateReleased:
		return "released"
	default:
		return "uninitialized"
	}
}

// OutputMode is the bound output
type OutputMode int

const (
	OutputNone OutputMode = iota
	OutputBuffer
	OutputWindow
)

func (m OutputMode) String() string {
	switch m {
	case OutputBuffer:
		return "buffer"
	case OutputWindow:
		return "window"
	default:
		return "none"
	}
}

// Credentials are passed to the pipeline on Initialize
type Credentials struct {
	SDKResourcePath string
	ResourcesFolder string
	ClientToken     string
}

// Status is a snapshot of a session
type Status struct {
	ID          string         `json:"id"`
	State       string         `json:"state"`
	Backend     string         `json:"backend"`
	Output      string         `json:"output"`
	Effect      string         `json:"effect"`
	Playing     bool           `json:"playing"`
	Camera      bool           `json:"camera"`
	CameraIndex int            `json:"camera_index"`
	Bridge      BridgeStats    `json:"bridge"`
	Injected    uint64         `json:"injected"`
	Rejected    uint64         `json:"rejected"`
	Capture     *CaptureStatus `json:"capture,omitempty"`
}

// CaptureStatus reports debug capture output while capture is enabled
type CaptureStatus struct {
	Dir    string `json:"dir"`
	Saved  uint64 `json:"saved"`
	Failed uint64 `json:"failed"`
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithBackend uses b instead of looking up sdk.backend in the registry
func WithBackend(b player.Backend) Option {
	return func(s *Session) { s.backend = b }
}

// WithClock sets the timestamp source for injected frames and captures
func WithClock(c *monotime.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// Session owns one pipeline. Lifecycle operations are serialised; frame
// injection and status reads do not wait for them.
type Session struct {
	id      string
	cfg     *Config
	logger  *slog.Logger
	backend player.Backend
	clock   *monotime.Clock

	// lifecycle serialises operations that create, bind or tear down
	// pipeline objects, including blocking ones
	lifecycle sync.Mutex

	mu          sync.RWMutex
	state       State
	ctx         context.Context
	cancel      context.CancelFunc
	sdk         player.SDK
	renderer    player.Renderer
	target      player.RenderTarget
	player      player.Player
	input       player.Endpoint
	live        player.LiveInput
	output      player.Endpoint
	outputMode  OutputMode
	camera      player.CameraDevice
	cameraIndex int
	bridge      *Bridge
	injector    *Injector
	capture     *debugcapture.Sink
	callback    FrameCallback
	effect      string
	effectOK    bool
	playing     bool

	loading atomic.Int32
}

// New creates an uninitialized session. A nil cfg uses DefaultConfig.
func New(cfg *Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Session{id: uuid.NewString(), cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session", s.id)
	if s.clock == nil {
		s.clock = monotime.Default()
	}
	if s.backend == nil {
		b, ok := player.Get(cfg.SDK.Backend)
		if !ok {
			return nil, fmt.Errorf("unknown sdk backend %q (registered: %v)", cfg.SDK.Backend, player.Names())
		}
		s.backend = b
	}
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Config returns the session configuration
func (s *Session) Config() *Config { return s.cfg }

// Initialize creates the pipeline. Re-initializing after Release is allowed.
func (s *Session) Initialize(creds Credentials) (err error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.initialized() {
		return ErrAlreadyInitialized
	}
	if creds.ClientToken == "" {
		return fmt.Errorf("%w: client token is empty", ErrInvalidInput)
	}

	rb, _ := player.ParseRenderBackend(s.cfg.Render.Backend)
	format, _ := s.cfg.outputFormat()
	mode, _ := debugcapture.ParseMode(s.cfg.DebugCapture.Mode)

	var cleanup []func() error
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		}
	}()

	sdk, err := s.backend.Initialize([]string{creds.SDKResourcePath, creds.ResourcesFolder}, creds.ClientToken)
	if err != nil {
		return fmt.Errorf("initialize sdk: %w", err)
	}
	cleanup = append(cleanup, sdk.Close)

	renderer, err := s.backend.NewRenderer(rb, s.cfg.Window.Width, s.cfg.Window.Height)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	cleanup = append(cleanup, renderer.Close)

	target, err := s.backend.NewRenderTarget(rb, s.cfg.Render.Width, s.cfg.Render.Height)
	if err != nil {
		return fmt.Errorf("create render target: %w", err)
	}
	cleanup = append(cleanup, target.Close)

	pl, err := s.backend.NewPlayer(sdk, player.PlayerConfig{FPS: s.cfg.Render.FPS}, target, renderer)
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	cleanup = append(cleanup, pl.Close)

	live, err := s.backend.NewLiveInput()
	if err != nil {
		return fmt.Errorf("create live input: %w", err)
	}
	cleanup = append(cleanup, live.Close)

	capture := debugcapture.New(mode, s.cfg.DebugCapture.Dir, s.clock, s.logger)
	bridge := NewBridge(format, capture, s.cfg.Render.MaxFrameBytes, s.logger)
	injector := NewInjector(live, s.clock, capture, s.logger)
	pl.Use(live)

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	bridge.Register(s.callback)
	s.sdk, s.renderer, s.target, s.player = sdk, renderer, target, pl
	s.input, s.live = live, live
	s.bridge, s.injector, s.capture = bridge, injector, capture
	s.ctx, s.cancel = ctx, cancel
	s.effect, s.effectOK, s.playing = "", false, false
	s.state = StateInitialized
	s.mu.Unlock()

	s.logger.Info("session initialized",
		"backend", s.backend.Name(),
		"render_backend", rb.Resolve(),
		"output_format", format,
		"debug_capture", mode)
	return nil
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateInitialized {
		return s.state
	}
	if s.loading.Load() > 0 {
		return StateEffectLoading
	}
	if s.effectOK {
		return StateReady
	}
	return StateInitialized
}

func (s *Session) initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateInitialized
}

// EffectLoad completes when the pipeline finishes loading an effect
type EffectLoad struct {
	name string
	done chan struct{}
	err  error
}

func newEffectLoad(name string) *EffectLoad {
	return &EffectLoad{name: name, done: make(chan struct{})}
}

func (l *EffectLoad) complete(err error) {
	l.err = err
	close(l.done)
}

// Name returns the requested effect
func (l *EffectLoad) Name() string { return l.name }

// Done is closed when loading finishes
func (l *EffectLoad) Done() <-chan struct{} { return l.done }

// Err returns the load result; nil until Done is closed
func (l *EffectLoad) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Wait blocks until loading finishes or ctx is done
func (l *EffectLoad) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadEffect starts loading name in the background. It works whether or
// not an output is bound. An empty name unloads the current effect.
func (s *Session) LoadEffect(name string) (*EffectLoad, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	pl, ok := s.player, s.state == StateInitialized
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotInitialized
	}

	load := newEffectLoad(name)
	s.loading.Add(1)
	s.logger.Info("loading effect", "effect", name)
	pl.LoadAsync(name, func(err error) {
		s.mu.Lock()
		if err == nil {
			s.effect = name
			s.effectOK = name != ""
		}
		s.mu.Unlock()
		s.loading.Add(-1)
		if err != nil {
			s.logger.Warn("effect load failed", "effect", name, "error", err)
		} else {
			s.logger.Info("effect ready", "effect", name)
		}
		load.complete(err)
	})
	return load, nil
}

// RegisterFrameCallback sets the single frame callback, replacing any
// previous one. It may be called before Initialize but not from inside
// the callback.
func (s *Session) RegisterFrameCallback(cb FrameCallback) {
	s.mu.Lock()
	s.callback = cb
	bridge := s.bridge
	s.mu.Unlock()
	if bridge != nil {
		bridge.Register(cb)
	}
}

// StartBufferRendering delivers frames to the registered callback
func (s *Session) StartBufferRendering() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.checkBindable(OutputBuffer); err != nil {
		return ignoreSameMode(err)
	}

	s.mu.RLock()
	pl, bridge := s.player, s.bridge
	s.mu.RUnlock()

	out, err := s.backend.NewFrameOutput(bridge.HandleFrame, pixel.FormatRGBA)
	if err != nil {
		return fmt.Errorf("create frame output: %w", err)
	}
	bridge.Bind()
	pl.Use(out)

	s.mu.Lock()
	s.output, s.outputMode = out, OutputBuffer
	s.mu.Unlock()

	s.logger.Info("buffer rendering started")
	return nil
}

// StartWindowRendering shows frames on the renderer window and runs its
// event loop until ctx is done or the window is closed.
func (s *Session) StartWindowRendering(ctx context.Context) error {
	s.lifecycle.Lock()
	if err := s.checkBindable(OutputWindow); err != nil {
		s.lifecycle.Unlock()
		return ignoreSameMode(err)
	}

	s.mu.RLock()
	pl, renderer := s.player, s.renderer
	s.mu.RUnlock()

	out, err := s.backend.NewWindowOutput(renderer.Surface())
	if err != nil {
		s.lifecycle.Unlock()
		return fmt.Errorf("create window output: %w", err)
	}
	renderer.SetCallbacks(func(w, h int) {
		out.SetFrameLayout(0, 0, w, h)
	}, nil)
	pl.Use(out)

	s.mu.Lock()
	s.output, s.outputMode = out, OutputWindow
	s.mu.Unlock()
	s.lifecycle.Unlock()

	s.logger.Info("window rendering started")
	return renderer.Run(ctx)
}

var errSameMode = errors.New("mode already bound")

func ignoreSameMode(err error) error {
	if errors.Is(err, errSameMode) {
		return nil
	}
	return err
}

func (s *Session) checkBindable(mode OutputMode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateInitialized {
		return ErrNotInitialized
	}
	switch s.outputMode {
	case OutputNone:
		return nil
	case mode:
		return errSameMode
	default:
		return fmt.Errorf("%w: %s", ErrOutputBound, s.outputMode)
	}
}

// Play starts frame production. Without a bound output it does nothing.
func (s *Session) Play() error {
	return s.playback("play", func(pl player.Player) error {
		if err := pl.Play(); err != nil {
			return err
		}
		s.mu.Lock()
		s.playing = true
		s.mu.Unlock()
		return nil
	})
}

// Pause halts frame production. Without a bound output it does nothing.
func (s *Session) Pause() error {
	return s.playback("pause", s.pause)
}

func (s *Session) pause(pl player.Player) error {
	if err := pl.Pause(); err != nil {
		return err
	}
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	return nil
}

// Stop pauses, unbinds the bridge and detaches the output so another
// output mode may be bound.
func (s *Session) Stop() error {
	return s.playback("stop", func(pl player.Player) error {
		s.bridge.Unbind()
		if err := s.pause(pl); err != nil {
			return err
		}
		s.mu.Lock()
		out := s.output
		s.output, s.outputMode = nil, OutputNone
		s.mu.Unlock()
		pl.Remove(out)
		return out.Close()
	})
}

func (s *Session) playback(op string, fn func(player.Player) error) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	pl, state, mode := s.player, s.state, s.outputMode
	s.mu.RUnlock()

	if state != StateInitialized {
		return ErrNotInitialized
	}
	if mode == OutputNone {
		s.logger.Info("no output bound, ignoring", "op", op)
		return nil
	}
	if err := fn(pl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("playback", "op", op, "output", mode)
	return nil
}

// RenderOnce switches to manual rendering and produces a single frame
// synchronously
func (s *Session) RenderOnce() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	pl, ok := s.player, s.state == StateInitialized
	s.mu.RUnlock()
	if !ok {
		return ErrNotInitialized
	}
	pl.SetRenderMode(player.RenderManual)
	if err := pl.Render(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// UsePhoto replaces the live input with a still image from path
func (s *Session) UsePhoto(path string) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	pl, old, ok := s.player, s.input, s.state == StateInitialized
	s.mu.RUnlock()
	if !ok {
		return ErrNotInitialized
	}

	photo, err := s.backend.NewPhotoInput()
	if err != nil {
		return fmt.Errorf("create photo input: %w", err)
	}
	if err := photo.Load(path); err != nil {
		photo.Close()
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	pl.Use(photo)

	s.mu.Lock()
	s.input = photo
	s.mu.Unlock()
	if old != nil && old != player.Endpoint(s.live) {
		old.Close()
	}
	s.logger.Info("photo input", "path", path)
	return nil
}

// AttachCamera starts capturing from deviceIndex, replacing any running
// camera. Captured frames go through the injector and become the player
// input.
func (s *Session) AttachCamera(deviceIndex int) error {
	if deviceIndex < 0 {
		return fmt.Errorf("%w: camera index %d", ErrInvalidInput, deviceIndex)
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	ok := s.state == StateInitialized
	pl, live, old, injector, ctx := s.player, s.live, s.camera, s.injector, s.ctx
	s.mu.RUnlock()
	if !ok {
		return ErrNotInitialized
	}

	if old != nil {
		if err := old.Stop(); err != nil {
			s.logger.Warn("stop previous camera", "error", err)
		}
	}

	cfg := player.CameraConfig{
		Index:  deviceIndex,
		Width:  s.cfg.Camera.Width,
		Height: s.cfg.Camera.Height,
		FPS:    s.cfg.Camera.FPS,
	}
	if deviceIndex == s.cfg.Camera.Index {
		cfg.Device = s.cfg.Camera.Device
	}
	cam, err := s.backend.NewCamera(cfg, func(buf *pixel.Buffer) {
		if err := injector.PushFrame(buf); err != nil {
			s.logger.Debug("camera frame rejected", "error", err)
		}
	})
	if err != nil {
		s.clearCamera()
		return fmt.Errorf("open camera %d: %w", deviceIndex, err)
	}
	if err := cam.Start(ctx); err != nil {
		s.clearCamera()
		return fmt.Errorf("start camera %d: %w", deviceIndex, err)
	}
	pl.Use(live)

	s.mu.Lock()
	s.camera, s.cameraIndex = cam, deviceIndex
	photo := s.input
	s.input = live
	s.mu.Unlock()
	if photo != nil && photo != player.Endpoint(live) {
		photo.Close()
	}

	s.logger.Info("camera attached", "index", deviceIndex)
	return nil
}

func (s *Session) clearCamera() {
	s.mu.Lock()
	s.camera = nil
	s.mu.Unlock()
}

// PushImage injects a packed 3-channel BGR frame. It only enqueues.
func (s *Session) PushImage(data []byte, stride, width, height int) error {
	s.mu.RLock()
	injector, ok := s.injector, s.state == StateInitialized
	s.mu.RUnlock()
	if !ok {
		return ErrNotInitialized
	}
	return injector.Push(data, stride, width, height)
}

// ReleaseImage releases a buffer received by the frame callback
func (s *Session) ReleaseImage(buf *pixel.Buffer) error {
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidInput)
	}
	return buf.Release()
}

// Surface returns the renderer surface, or nil before Initialize
func (s *Session) Surface() player.Surface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.renderer == nil {
		return nil
	}
	return s.renderer.Surface()
}

// Status returns a snapshot of the session
func (s *Session) Status() Status {
	st := Status{
		ID:      s.id,
		State:   s.State().String(),
		Backend: s.backend.Name(),
	}

	s.mu.RLock()
	st.Output = s.outputMode.String()
	st.Effect = s.effect
	st.Playing = s.playing
	st.Camera = s.camera != nil
	st.CameraIndex = s.cameraIndex
	bridge, injector, capture := s.bridge, s.injector, s.capture
	s.mu.RUnlock()

	if bridge != nil {
		st.Bridge = bridge.Stats()
	}
	if injector != nil {
		st.Injected, st.Rejected = injector.Stats()
	}
	if capture.Enabled() {
		cs := &CaptureStatus{Dir: capture.Dir()}
		cs.Saved, cs.Failed = capture.Stats()
		st.Capture = cs
	}
	return st
}

// Release tears the pipeline down in reverse order of construction. It is
// idempotent and safe while a frame is being delivered: the in-flight
// frame completes and later frames are dropped. It must not be called
// from inside the frame callback.
func (s *Session) Release() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.state != StateInitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = StateReleased
	cam, bridge, pl := s.camera, s.bridge, s.player
	out, in, live := s.output, s.input, s.live
	renderer, target, sdk, cancel := s.renderer, s.target, s.sdk, s.cancel
	s.camera, s.output, s.outputMode = nil, nil, OutputNone
	s.input, s.live, s.injector, s.capture = nil, nil, nil, nil
	s.player, s.renderer, s.target, s.sdk = nil, nil, nil, nil
	s.playing = false
	s.mu.Unlock()

	var errs []error
	if cam != nil {
		errs = append(errs, cam.Stop())
	}
	cancel()
	bridge.Unbind()
	errs = append(errs, pl.Pause())
	if out != nil {
		pl.Remove(out)
		errs = append(errs, out.Close())
	}
	if in != nil && in != player.Endpoint(live) {
		errs = append(errs, in.Close())
	}
	errs = append(errs,
		live.Close(),
		pl.Close(),
		renderer.Close(),
		target.Close(),
		sdk.Close(),
	)

	s.logger.Info("session released")
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}
