package pixel

import (
	"errors"
	"math"
	"testing"
)

func TestBufferReleaseOnce(t *testing.T) {
	calls := 0
	buf := NewBuffer(Image{Data: []byte{1, 2, 3}, Width: 1, Height: 1, Stride: 3, Format: FormatRGB}, func([]byte) {
		calls++
	})

	if err := buf.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := buf.Release(); !errors.Is(err, ErrAlreadyReleased) {
		t.Fatalf("second Release: expected ErrAlreadyReleased, got %v", err)
	}
	if calls != 1 {
		t.Errorf("releaser called %d times, want 1", calls)
	}
	if buf.Bytes() != nil {
		t.Error("Bytes should be nil after Release")
	}
	if !buf.Released() {
		t.Error("Released should report true")
	}
	if img := buf.Image(); img.Data != nil || img.Width != 0 {
		t.Errorf("Image after Release should be empty, got %+v", img)
	}
}

func TestBufferNilReleaser(t *testing.T) {
	buf := NewBuffer(Image{Data: []byte{1}}, nil)
	if err := buf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestNewPacked(t *testing.T) {
	buf := NewPacked(5, 3, FormatBGRA)
	defer buf.Release()

	if buf.Len() != 5*3*4 {
		t.Errorf("len %d, want %d", buf.Len(), 5*3*4)
	}
	if buf.Stride() != 20 {
		t.Errorf("stride %d, want 20", buf.Stride())
	}
	if buf.Width() != 5 || buf.Height() != 3 || buf.Format() != FormatBGRA {
		t.Errorf("unexpected descriptor %dx%d %s", buf.Width(), buf.Height(), buf.Format())
	}
}

func TestPoolReuse(t *testing.T) {
	a := Alloc(1000)
	if len(a) != 1000 || cap(a) != 1024 {
		t.Fatalf("len %d cap %d, want 1000/1024", len(a), cap(a))
	}
	Free(a)

	b := Alloc(600)
	if len(b) != 600 || cap(b) != 1024 {
		t.Fatalf("len %d cap %d, want 600/1024", len(b), cap(b))
	}

	if z := Alloc(0); z == nil || len(z) != 0 {
		t.Errorf("Alloc(0) should return an empty non-nil slice")
	}

	// Slices that did not come from Alloc are ignored
	Free(make([]byte, 3))
	Free(nil)
}

func TestImageMinLen(t *testing.T) {
	img := Image{Width: 2, Height: 3, Stride: 10, Format: FormatRGB}
	if got := img.MinLen(); got != 26 {
		t.Errorf("MinLen = %d, want 26", got)
	}
	if got := (Image{Format: FormatRGB}).MinLen(); got != 0 {
		t.Errorf("empty MinLen = %d, want 0", got)
	}

	for _, img := range []Image{
		{Width: 1, Height: 3, Stride: math.MaxInt/2 + 1, Format: FormatRGBA},
		{Width: math.MaxInt/2 + 1, Height: 1, Stride: math.MaxInt, Format: FormatRGBA},
		{Width: 2, Height: 2, Stride: 4, Format: FormatRGBA},
		{Width: 2, Height: 2, Stride: -8, Format: FormatRGBA},
	} {
		if got := img.MinLen(); got != math.MaxInt {
			t.Errorf("MinLen(%dx%d stride %d) = %d, want MaxInt", img.Width, img.Height, img.Stride, got)
		}
	}
}
