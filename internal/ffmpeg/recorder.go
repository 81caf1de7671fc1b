package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
)

// ErrRecorderClosed is returned by WriteFrame after Close
var ErrRecorderClosed = errors.New("recorder closed")

// RecorderConfig holds configuration for an MP4 recording
type RecorderConfig struct {
	Path      string // output file
	Codec     string // libx264 (default), mpeg4
	Preset    string // ultrafast, fast, medium (libx264 only)
	CRF       int    // constant rate factor (libx264 only)
	Framerate int
}

// Recorder encodes delivered frames into a video file. The first frame
// fixes the size; frames of another size are dropped.
type Recorder struct {
	ff     *FFmpeg
	cfg    RecorderConfig
	logger *slog.Logger

	mu     sync.Mutex
	proc   *Process
	width  int
	height int
	closed bool

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder creates a recorder. ffmpeg starts on the first frame.
func (f *FFmpeg) NewRecorder(cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.Codec == "" {
		cfg.Codec = "libx264"
	}
	if cfg.Preset == "" {
		cfg.Preset = "fast"
	}
	if cfg.CRF == 0 {
		cfg.CRF = 23
	}
	if cfg.Framerate == 0 {
		cfg.Framerate = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{ff: f, cfg: cfg, logger: logger.With("component", "recorder")}
}

// WriteFrame appends one 4-byte-per-pixel frame. img is not retained.
func (r *Recorder) WriteFrame(img pixel.Image) error {
	if img.BytesPerPixel() != 4 {
		r.dropped.Add(1)
		return fmt.Errorf("%w: %s", pixel.ErrUnsupportedFormat, img.Format)
	}
	if len(img.Data) < img.MinLen() {
		r.dropped.Add(1)
		return fmt.Errorf("%w: %d bytes for %dx%d", pixel.ErrShortBuffer, len(img.Data), img.Width, img.Height)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	if r.proc == nil {
		if img.Width <= 0 || img.Height <= 0 {
			r.dropped.Add(1)
			return fmt.Errorf("invalid frame size %dx%d", img.Width, img.Height)
		}
		proc, err := r.ff.start(context.Background(), buildRecorderArgs(r.cfg, img.Width, img.Height))
		if err != nil {
			return err
		}
		r.proc, r.width, r.height = proc, img.Width, img.Height
		r.logger.Info("recording started", "path", r.cfg.Path, "width", img.Width, "height", img.Height, "codec", r.cfg.Codec)
	}
	if img.Width != r.width || img.Height != r.height {
		r.dropped.Add(1)
		r.logger.Debug("frame size changed, dropped", "width", img.Width, "height", img.Height)
		return nil
	}

	data := img.Data[:img.MinLen()]
	if img.Format != pixel.FormatRGBA || img.Stride != img.Width*4 {
		buf, err := pixel.Convert(img, pixel.FormatRGBA)
		if err != nil {
			r.dropped.Add(1)
			return err
		}
		defer buf.Release()
		data = buf.Bytes()
	}
	if _, err := r.proc.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	r.frames.Add(1)
	return nil
}

// Close finishes the file. A recorder that never received a frame writes
// nothing.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.proc == nil {
		return nil
	}
	err := r.proc.Close()
	r.logger.Info("recording finished", "path", r.cfg.Path, "frames", r.frames.Load(), "dropped", r.dropped.Load())
	return err
}

// Stats returns written and dropped frame counts
func (r *Recorder) Stats() (frames, dropped uint64) {
	return r.frames.Load(), r.dropped.Load()
}

// buildRecorderArgs builds ffmpeg arguments for raw RGBA input on stdin
func buildRecorderArgs(cfg RecorderConfig, width, height int) []string {
	args := []string{
		"-y",
		"-loglevel", "error",

		// Input
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%d", cfg.Framerate),
		"-i", "pipe:0",

		// yuv420p needs even dimensions
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", cfg.Codec,
	}
	if cfg.Codec == "libx264" {
		args = append(args,
			"-preset", cfg.Preset,
			"-crf", fmt.Sprintf("%d", cfg.CRF),
		)
	}
	return append(args,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		cfg.Path,
	)
}
