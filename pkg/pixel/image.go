package pixel

import (
	"errors"
	"math"
	"sync/atomic"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrShortBuffer       = errors.New("pixel data shorter than stride*height")
	ErrAlreadyReleased   = errors.New("buffer already released")
)

// Image is a borrowed view of a single frame. It is only valid for the
// duration of the call it was handed to; keep a Buffer to retain pixels.
type Image struct {
	Data        []byte
	Width       int
	Height      int
	Stride      int // bytes per row, may exceed Width*BytesPerPixel
	Format      PixelFormat
	Orientation Orientation
	Mirrored    bool
	Seq         uint64 // production sequence, 0 when unsequenced
	Timestamp   int64  // capture time in microseconds
}

// BytesPerPixel returns the packed pixel size of the image format
func (img Image) BytesPerPixel() int {
	return img.Format.BytesPerPixel()
}

// RowBytes returns the number of meaningful bytes in a row
func (img Image) RowBytes() int {
	return img.Width * img.BytesPerPixel()
}

// MinLen returns the smallest Data length that holds every row. Geometry
// no slice can satisfy (stride below the row size, or rows overflowing
// int) yields math.MaxInt.
func (img Image) MinLen() int {
	if img.Width <= 0 || img.Height <= 0 {
		return 0
	}
	bpp := img.BytesPerPixel()
	if bpp > 0 && img.Width > math.MaxInt/bpp {
		return math.MaxInt
	}
	row := img.RowBytes()
	if img.Stride < row {
		return math.MaxInt
	}
	if img.Height > 1 && img.Stride > (math.MaxInt-row)/(img.Height-1) {
		return math.MaxInt
	}
	return img.Stride*(img.Height-1) + row
}

// noCopy makes go vet flag copies of a Buffer value
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Buffer is an exclusively owned frame. Whoever holds it must call Release
// exactly once; the pixels must not be touched afterwards.
type Buffer struct {
	_ noCopy

	img      Image
	release  func([]byte)
	released atomic.Bool
}

// NewBuffer takes ownership of img.Data. release is invoked once with the
// data when the buffer is released; nil means the memory is simply dropped.
func NewBuffer(img Image, release func([]byte)) *Buffer {
	return &Buffer{img: img, release: release}
}

// NewPacked allocates a pooled, stride-free buffer for the given dimensions
func NewPacked(width, height int, format PixelFormat) *Buffer {
	bpp := format.BytesPerPixel()
	data := Alloc(width * height * bpp)
	return NewBuffer(Image{
		Data:   data,
		Width:  width,
		Height: height,
		Stride: width * bpp,
		Format: format,
	}, Free)
}

// Image returns a view of the buffer. The view is empty after Release.
func (b *Buffer) Image() Image {
	if b.released.Load() {
		return Image{}
	}
	return b.img
}

// Bytes returns the pixel data, or nil after Release
func (b *Buffer) Bytes() []byte {
	if b.released.Load() {
		return nil
	}
	return b.img.Data
}

func (b *Buffer) Width() int          { return b.img.Width }
func (b *Buffer) Height() int         { return b.img.Height }
func (b *Buffer) Stride() int         { return b.img.Stride }
func (b *Buffer) Format() PixelFormat { return b.img.Format }
func (b *Buffer) Len() int            { return len(b.img.Data) }

// Tag sets orientation and mirroring metadata
func (b *Buffer) Tag(o Orientation, mirrored bool) {
	b.img.Orientation = o
	b.img.Mirrored = mirrored
}

// SetSequence records the production sequence and capture time
func (b *Buffer) SetSequence(seq uint64, timestamp int64) {
	b.img.Seq = seq
	b.img.Timestamp = timestamp
}

// Released reports whether Release has been called
func (b *Buffer) Released() bool {
	return b.released.Load()
}

// Release hands the memory back to its releaser. Only the first call has
// an effect; later calls return ErrAlreadyReleased.
func (b *Buffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return ErrAlreadyReleased
	}
	data := b.img.Data
	b.img.Data = nil
	if b.release != nil {
		b.release(data)
	}
	return nil
}
