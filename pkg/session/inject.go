package session

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/video-system/go-effect-bridge/internal/monotime"
	"github.com/video-system/go-effect-bridge/pkg/debugcapture"
	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

// Injector feeds host and camera frames into the live input
type Injector struct {
	input   player.LiveInput
	clock   *monotime.Clock
	capture *debugcapture.Sink
	logger  *slog.Logger

	pushed   atomic.Uint64
	rejected atomic.Uint64
}

// NewInjector creates an injector pushing into input
func NewInjector(input player.LiveInput, clock *monotime.Clock, capture *debugcapture.Sink, logger *slog.Logger) *Injector {
	if clock == nil {
		clock = monotime.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{
		input:   input,
		clock:   clock,
		capture: capture,
		logger:  logger.With("component", "injector"),
	}
}

// Push copies a packed 3-channel BGR image into an owned RGB buffer and
// enqueues it. data is not retained after Push returns.
func (in *Injector) Push(data []byte, stride, width, height int) error {
	if err := validatePacked3(data, stride, width, height); err != nil {
		in.rejected.Add(1)
		return err
	}

	buf, err := pixel.SwapRedBlue(pixel.Image{
		Data:   data,
		Width:  width,
		Height: height,
		Stride: stride,
		Format: pixel.FormatBGR,
	})
	if err != nil {
		in.rejected.Add(1)
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	buf.Tag(pixel.Deg0, false)
	return in.enqueue(buf)
}

// PushFrame enqueues a buffer the caller already owns, such as a camera
// frame. Ownership passes to the pipeline even on error.
func (in *Injector) PushFrame(buf *pixel.Buffer) error {
	if buf == nil {
		in.rejected.Add(1)
		return fmt.Errorf("%w: nil buffer", ErrInvalidInput)
	}
	return in.enqueue(buf)
}

// Stats returns the number of enqueued and rejected frames
func (in *Injector) Stats() (pushed, rejected uint64) {
	return in.pushed.Load(), in.rejected.Load()
}

func (in *Injector) enqueue(buf *pixel.Buffer) error {
	ts := in.clock.Micros()
	buf.SetSequence(0, ts)

	if in.capture.Enabled() {
		if err := in.capture.Capture(buf.Image(), debugcapture.LabelOrigin); err != nil {
			in.logger.Warn("debug capture failed", "error", err)
		}
	}

	if err := in.input.Push(buf, ts); err != nil {
		in.rejected.Add(1)
		return fmt.Errorf("push frame: %w", err)
	}
	in.pushed.Add(1)
	return nil
}

// Rejecting empty input must not allocate
var (
	errNilData   = fmt.Errorf("%w: nil data", ErrInvalidInput)
	errEmptySize = fmt.Errorf("%w: width and height must be positive", ErrInvalidInput)
)

func validatePacked3(data []byte, stride, width, height int) error {
	switch {
	case data == nil:
		return errNilData
	case width <= 0 || height <= 0:
		return errEmptySize
	case width > math.MaxInt/3:
		return fmt.Errorf("%w: width %d overflows", ErrInvalidInput, width)
	case stride < width*3:
		return fmt.Errorf("%w: stride %d below row size %d", ErrInvalidInput, stride, width*3)
	case height > 1 && stride > (math.MaxInt-width*3)/(height-1):
		return fmt.Errorf("%w: %d rows of stride %d overflow", ErrInvalidInput, height, stride)
	}
	if need := stride*(height-1) + width*3; len(data) < need {
		return fmt.Errorf("%w: %d bytes, need %d", ErrInvalidInput, len(data), need)
	}
	return nil
}
