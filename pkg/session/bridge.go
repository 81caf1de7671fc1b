package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/video-system/go-effect-bridge/pkg/debugcapture"
	"github.com/video-system/go-effect-bridge/pkg/pixel"
)

// FrameCallback receives every delivered frame. Ownership of buf passes to
// the callback, which must call Release exactly once.
type FrameCallback func(buf *pixel.Buffer, width, height int)

// BridgeState is the delivery state of a Bridge
type BridgeState int32

const (
	BridgeIdle BridgeState = iota
	BridgeBound
	BridgeEmitting
)

func (s BridgeState) String() string {
	switch s {
	case BridgeBound:
		return "bound"
	case BridgeEmitting:
		return "emitting"
	default:
		return "idle"
	}
}

// BridgeStats counts frame outcomes
type BridgeStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Stale     uint64 `json:"stale"`
	Captured  uint64 `json:"captured"`
}

// Bridge turns pipeline frames into owned buffers for the frame callback.
// Emission is serialised, so callbacks run one at a time and in production
// order.
type Bridge struct {
	logger   *slog.Logger
	format   pixel.PixelFormat
	capture  *debugcapture.Sink
	maxBytes int64

	state atomic.Int32

	mu      sync.Mutex
	cb      FrameCallback
	lastSeq uint64

	delivered atomic.Uint64
	dropped   atomic.Uint64
	stale     atomic.Uint64
	captured  atomic.Uint64
}

// NewBridge creates an idle bridge converting frames to format. A
// maxBytes of zero disables the size guard.
func NewBridge(format pixel.PixelFormat, capture *debugcapture.Sink, maxBytes int64, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		logger:   logger.With("component", "bridge"),
		format:   format,
		capture:  capture,
		maxBytes: maxBytes,
	}
}

// Bind starts accepting frames
func (b *Bridge) Bind() {
	b.state.CompareAndSwap(int32(BridgeIdle), int32(BridgeBound))
}

// Unbind stops accepting frames. A frame being emitted completes.
func (b *Bridge) Unbind() {
	b.state.Store(int32(BridgeIdle))
}

// State returns the current state
func (b *Bridge) State() BridgeState {
	return BridgeState(b.state.Load())
}

// Register replaces the callback. It waits for an in-flight emission and
// must not be called from inside the callback.
func (b *Bridge) Register(cb FrameCallback) {
	b.mu.Lock()
	b.cb = cb
	b.mu.Unlock()
}

// Stats returns the frame counters
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
		Stale:     b.stale.Load(),
		Captured:  b.captured.Load(),
	}
}

// HandleFrame is the frame output callback. img is only read during the
// call. Frames are delivered in the order HandleFrame is entered; a
// sequenced frame arriving after a later sequence was delivered is
// discarded and counted as stale. A frame that is not 4 bytes per pixel
// is dropped without allocating.
func (b *Bridge) HandleFrame(img pixel.Image) {
	if b.State() == BridgeIdle {
		b.dropped.Add(1)
		return
	}
	if bpp := img.BytesPerPixel(); bpp != 4 {
		b.dropped.Add(1)
		if b.logger.Enabled(context.Background(), slog.LevelWarn) {
			b.logger.Warn("frame dropped", "reason", "unsupported bytes per pixel", "format", img.Format, "bpp", bpp)
		}
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() == BridgeIdle {
		b.dropped.Add(1)
		return
	}
	if img.Seq != 0 && img.Seq <= b.lastSeq {
		b.stale.Add(1)
		b.logger.Debug("stale frame dropped", "seq", img.Seq, "last", b.lastSeq)
		return
	}
	if err := b.checkSize(img.Width, img.Height); err != nil {
		b.dropped.Add(1)
		b.logger.Warn("frame dropped", "error", err)
		return
	}

	buf, err := pixel.Convert(img, b.format)
	if err != nil {
		b.dropped.Add(1)
		b.logger.Warn("frame dropped", "error", err)
		return
	}

	b.state.CompareAndSwap(int32(BridgeBound), int32(BridgeEmitting))
	defer b.state.CompareAndSwap(int32(BridgeEmitting), int32(BridgeBound))

	if img.Seq != 0 {
		b.lastSeq = img.Seq
	}

	if b.capture.Enabled() {
		if err := b.capture.Capture(buf.Image(), debugcapture.LabelResult); err != nil {
			b.logger.Warn("debug capture failed", "seq", img.Seq, "error", err)
		} else {
			b.captured.Add(1)
		}
	}

	w, h := buf.Width(), buf.Height()
	if b.cb == nil {
		buf.Release()
		b.dropped.Add(1)
		return
	}
	b.cb(buf, w, h)
	b.delivered.Add(1)
	b.logger.Debug("frame delivered", "seq", img.Seq, "width", w, "height", h)
}

func (b *Bridge) checkSize(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrAllocation, width, height)
	}
	if width == 0 || height == 0 {
		return nil
	}
	if int64(width) > math.MaxInt/4/int64(height) {
		return fmt.Errorf("%w: %dx%d overflows", ErrAllocation, width, height)
	}
	size := int64(width) * int64(height) * 4
	if b.maxBytes > 0 && size > b.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrAllocation, size, b.maxBytes)
	}
	return nil
}
