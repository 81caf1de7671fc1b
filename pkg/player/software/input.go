package software

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

var errInputClosed = errors.New("input closed")

// source is implemented by the inputs of this backend. frame returns the
// current image when it is newer than after.
type source interface {
	frame(after int64) (image.Image, int64, bool)
}

// LiveInput keeps the newest pushed frame. An older push is released
// immediately and a replaced frame is released when superseded.
type LiveInput struct {
	mu     sync.Mutex
	cur    *pixel.Buffer
	ts     int64
	closed bool

	pushed  atomic.Uint64
	dropped atomic.Uint64
}

var _ player.LiveInput = (*LiveInput)(nil)

func (in *LiveInput) Kind() player.EndpointKind { return player.EndpointInput }

// Push takes ownership of buf
func (in *LiveInput) Push(buf *pixel.Buffer, timestampUs int64) error {
	if buf == nil {
		return errors.New("push: nil buffer")
	}
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		buf.Release()
		return errInputClosed
	}
	if in.cur != nil && timestampUs < in.ts {
		in.mu.Unlock()
		in.dropped.Add(1)
		buf.Release()
		return nil
	}
	old := in.cur
	in.cur, in.ts = buf, timestampUs
	in.mu.Unlock()

	in.pushed.Add(1)
	if old != nil {
		old.Release()
	}
	return nil
}

// Stats returns accepted and dropped push counts
func (in *LiveInput) Stats() (pushed, dropped uint64) {
	return in.pushed.Load(), in.dropped.Load()
}

func (in *LiveInput) frame(after int64) (image.Image, int64, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cur == nil || in.ts <= after {
		return nil, 0, false
	}
	img, err := pixel.ToNRGBA(in.cur.Image())
	if err != nil {
		return nil, 0, false
	}
	return img, in.ts, true
}

// Close releases the held frame; later pushes are refused
func (in *LiveInput) Close() error {
	in.mu.Lock()
	cur := in.cur
	in.cur = nil
	in.closed = true
	in.mu.Unlock()
	if cur != nil {
		cur.Release()
	}
	return nil
}

// PhotoInput serves a decoded still image on every render
type PhotoInput struct {
	mu  sync.RWMutex
	img image.Image
	ts  int64
}

var _ player.PhotoInput = (*PhotoInput)(nil)

func (in *PhotoInput) Kind() player.EndpointKind { return player.EndpointInput }

// Load decodes PNG, JPEG, GIF, BMP, TIFF or WebP from path
func (in *PhotoInput) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode photo %s: %w", path, err)
	}

	in.mu.Lock()
	in.img = img
	in.ts = time.Now().UnixMicro()
	in.mu.Unlock()
	return nil
}

func (in *PhotoInput) frame(int64) (image.Image, int64, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.img == nil {
		return nil, 0, false
	}
	return in.img, in.ts, true
}

func (in *PhotoInput) Close() error {
	in.mu.Lock()
	in.img = nil
	in.mu.Unlock()
	return nil
}

// always is passed as after to force a render of the current frame
const always = math.MinInt64
