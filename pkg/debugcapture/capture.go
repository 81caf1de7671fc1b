// Package debugcapture writes frames to disk as PNG and JPEG for inspection.
package debugcapture

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/video-system/go-effect-bridge/internal/monotime"
	"github.com/video-system/go-effect-bridge/pkg/pixel"
)

// ErrCaptureWrite wraps every failure to persist a captured frame
var ErrCaptureWrite = errors.New("debug capture write failed")

// Mode selects whether frames are captured
type Mode string

const (
	ModeOff Mode = "off"
	ModeOn  Mode = "on"
)

// ParseMode accepts "off", "on" or an empty string (off)
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeOff):
		return ModeOff, nil
	case string(ModeOn):
		return ModeOn, nil
	}
	return ModeOff, fmt.Errorf("unknown debug capture mode: %q", s)
}

// Labels used by the session for output and injected frames
const (
	LabelResult = "result"
	LabelOrigin = "origin"
)

// Sink writes image_<µs>_<label>.png and .jpg files into a directory.
// Safe for concurrent use; each call writes only its own frame.
type Sink struct {
	dir    string
	clock  *monotime.Clock
	logger *slog.Logger

	saved  atomic.Uint64
	failed atomic.Uint64
}

// New returns a sink for mode, or nil when capture is disabled. A nil
// *Sink is valid and captures nothing. A directory that cannot be created
// is logged; the sink is still returned and each Capture then fails with
// ErrCaptureWrite.
func New(mode Mode, dir string, clock *monotime.Clock, logger *slog.Logger) *Sink {
	if mode != ModeOn {
		return nil
	}
	if dir == "" {
		dir = "."
	}
	if clock == nil {
		clock = monotime.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		dir:    dir,
		clock:  clock,
		logger: logger.With("component", "debugcapture"),
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Warn("capture directory unavailable", "dir", dir, "error", err)
	}
	return s
}

// Enabled reports whether Capture writes anything
func (s *Sink) Enabled() bool {
	return s != nil
}

// Dir returns the output directory
func (s *Sink) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Capture persists img twice: lossless PNG and JPEG at quality 100.
// The image is only read during the call.
func (s *Sink) Capture(img pixel.Image, label string) error {
	if s == nil {
		return nil
	}

	rgba, err := pixel.ToNRGBA(img)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("%w: %v", ErrCaptureWrite, err)
	}

	base := filepath.Join(s.dir, fmt.Sprintf("image_%016d_%s", s.clock.Micros(), label))
	if err := writePNG(base+".png", rgba); err != nil {
		s.failed.Add(1)
		return err
	}
	if err := writeJPEG(base+".jpg", rgba); err != nil {
		s.failed.Add(1)
		return err
	}

	s.saved.Add(1)
	s.logger.Debug("frame captured", "path", base, "width", img.Width, "height", img.Height)
	return nil
}

// Stats returns the number of captured frames and failed captures
func (s *Sink) Stats() (saved, failed uint64) {
	if s == nil {
		return 0, 0
	}
	return s.saved.Load(), s.failed.Load()
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureWrite, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%w: png encode %s: %v", ErrCaptureWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureWrite, err)
	}
	return nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureWrite, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		f.Close()
		return fmt.Errorf("%w: jpeg encode %s: %v", ErrCaptureWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureWrite, err)
	}
	return nil
}
