package pixel

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"
)

// paddedImage builds a w x h image with stride padding filled with 0xEE
func paddedImage(t *testing.T, w, h, pad int, format PixelFormat, seed int64) Image {
	t.Helper()
	bpp := format.BytesPerPixel()
	stride := w*bpp + pad
	data := bytes.Repeat([]byte{0xEE}, stride*h)
	r := rand.New(rand.NewSource(seed))
	for y := 0; y < h; y++ {
		r.Read(data[y*stride : y*stride+w*bpp])
	}
	return Image{Data: data, Width: w, Height: h, Stride: stride, Format: format}
}

// packedRows drops stride padding
func packedRows(img Image) []byte {
	out := make([]byte, 0, img.RowBytes()*img.Height)
	for y := 0; y < img.Height; y++ {
		out = append(out, img.Data[y*img.Stride:y*img.Stride+img.RowBytes()]...)
	}
	return out
}

func TestConvertRoundTrip(t *testing.T) {
	formats := []PixelFormat{FormatRGBA, FormatBGRA, FormatARGB}
	for _, src := range formats {
		for _, dst := range formats {
			img := paddedImage(t, 7, 5, 12, src, int64(src)*10+int64(dst))

			fwd, err := Convert(img, dst)
			if err != nil {
				t.Fatalf("Convert %s -> %s: %v", src, dst, err)
			}
			if fwd.Stride() != 7*4 || fwd.Len() != 7*5*4 {
				t.Errorf("%s -> %s: stride %d len %d, want packed", src, dst, fwd.Stride(), fwd.Len())
			}

			back, err := Convert(fwd.Image(), src)
			if err != nil {
				t.Fatalf("Convert %s -> %s: %v", dst, src, err)
			}
			if !bytes.Equal(back.Bytes(), packedRows(img)) {
				t.Errorf("round trip %s -> %s -> %s changed the pixels", src, dst, src)
			}
			fwd.Release()
			back.Release()
		}
	}
}

func TestConvertRGBAToBGRASwapsZeroAndTwo(t *testing.T) {
	img := Image{
		Data:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Width:  2,
		Height: 1,
		Stride: 8,
		Format: FormatRGBA,
	}
	out, err := Convert(img, FormatBGRA)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer out.Release()

	want := []byte{3, 2, 1, 4, 7, 6, 5, 8}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("got %v, want %v", out.Bytes(), want)
	}
	if out.Format() != FormatBGRA {
		t.Errorf("format %s, want %s", out.Format(), FormatBGRA)
	}
}

func TestConvertARGB(t *testing.T) {
	img := Image{Data: []byte{10, 20, 30, 40}, Width: 1, Height: 1, Stride: 4, Format: FormatRGBA}
	out, err := Convert(img, FormatARGB)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer out.Release()

	want := []byte{40, 10, 20, 30}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("got %v, want %v", out.Bytes(), want)
	}
}

func TestConvertRejectsNonRGBA(t *testing.T) {
	tests := []struct {
		name string
		src  PixelFormat
		dst  PixelFormat
	}{
		{"rgb source", FormatRGB, FormatRGBA},
		{"bgr source", FormatBGR, FormatBGRA},
		{"nv12 source", FormatNV12, FormatRGBA},
		{"i420 source", FormatI420, FormatRGBA},
		{"unknown source", FormatUnknown, FormatRGBA},
		{"rgb destination", FormatRGBA, FormatRGB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := Image{Data: make([]byte, 64), Width: 2, Height: 2, Stride: 16, Format: tt.src}
			out, err := Convert(img, tt.dst)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
			}
			if out != nil {
				t.Error("expected no buffer")
			}
		})
	}
}

func TestConvertEmpty(t *testing.T) {
	for _, dims := range [][2]int{{0, 0}, {0, 10}, {10, 0}} {
		img := Image{Width: dims[0], Height: dims[1], Stride: dims[0] * 4, Format: FormatRGBA}
		out, err := Convert(img, FormatBGRA)
		if err != nil {
			t.Fatalf("%dx%d: unexpected error %v", dims[0], dims[1], err)
		}
		if out.Len() != 0 || out.Bytes() == nil {
			t.Errorf("%dx%d: want zero-length owned buffer, got len %d", dims[0], dims[1], out.Len())
		}
		if err := out.Release(); err != nil {
			t.Errorf("Release: %v", err)
		}
	}
}

func TestConvertShortBuffer(t *testing.T) {
	img := Image{Data: make([]byte, 20), Width: 2, Height: 3, Stride: 8, Format: FormatRGBA}
	if _, err := Convert(img, FormatBGRA); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}

	img = Image{Data: make([]byte, 64), Width: 4, Height: 2, Stride: 8, Format: FormatRGBA}
	if _, err := Convert(img, FormatBGRA); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("stride below row size: expected ErrShortBuffer, got %v", err)
	}

	img = Image{Data: make([]byte, 16), Width: 1, Height: 3, Stride: math.MaxInt/2 + 1, Format: FormatRGBA}
	if _, err := Convert(img, FormatBGRA); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("overflowing stride: expected ErrShortBuffer, got %v", err)
	}
	if _, err := ToNRGBA(img); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("overflowing stride: ToNRGBA expected ErrShortBuffer, got %v", err)
	}
}

func TestConvertKeepsMetadata(t *testing.T) {
	img := paddedImage(t, 3, 3, 0, FormatRGBA, 1)
	img.Orientation = Deg90
	img.Mirrored = true
	img.Seq = 42
	img.Timestamp = 1234

	out, err := Convert(img, FormatBGRA)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer out.Release()

	got := out.Image()
	if got.Orientation != Deg90 || !got.Mirrored || got.Seq != 42 || got.Timestamp != 1234 {
		t.Errorf("metadata not preserved: %+v", got)
	}
}

func TestSwapRedBlueRGB(t *testing.T) {
	// 2x2 packed RGB with stride 6
	img := Image{
		Data:   []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Width:  2,
		Height: 2,
		Stride: 6,
		Format: FormatRGB,
	}
	out, err := SwapRedBlue(img)
	if err != nil {
		t.Fatalf("SwapRedBlue: %v", err)
	}
	defer out.Release()

	if out.Len() != 12 {
		t.Fatalf("len %d, want 12", out.Len())
	}
	want := []byte{3, 2, 1, 6, 5, 4, 9, 8, 7, 12, 11, 10}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("got %v, want %v", out.Bytes(), want)
	}
	if out.Format() != FormatBGR {
		t.Errorf("format %s, want %s", out.Format(), FormatBGR)
	}
}

func TestSwapRedBlueIsInvolution(t *testing.T) {
	img := paddedImage(t, 9, 4, 5, FormatRGB, 7)
	once, err := SwapRedBlue(img)
	if err != nil {
		t.Fatalf("SwapRedBlue: %v", err)
	}
	twice, err := SwapRedBlue(once.Image())
	if err != nil {
		t.Fatalf("SwapRedBlue: %v", err)
	}
	if !bytes.Equal(twice.Bytes(), packedRows(img)) {
		t.Error("swapping twice should restore the original pixels")
	}
}

func TestPermutationTable(t *testing.T) {
	perm, ok := Permutation(FormatRGBA, FormatBGRA)
	if !ok {
		t.Fatal("missing RGBA -> BGRA permutation")
	}
	if want := []int{2, 1, 0, 3}; !equalInts(perm, want) {
		t.Errorf("RGBA -> BGRA = %v, want %v", perm, want)
	}

	perm, _ = Permutation(FormatRGBA, FormatRGBA)
	if want := []int{0, 1, 2, 3}; !equalInts(perm, want) {
		t.Errorf("identity = %v, want %v", perm, want)
	}

	if _, ok := Permutation(FormatRGB, FormatRGBA); ok {
		t.Error("RGB -> RGBA changes pixel size and must not be in the table")
	}
	if _, ok := Permutation(FormatNV12, FormatRGBA); ok {
		t.Error("planar formats must not be in the table")
	}
}

func TestToNRGBA(t *testing.T) {
	img := Image{Data: []byte{1, 2, 3, 9, 9, 4, 5, 6, 9, 9}, Width: 1, Height: 2, Stride: 5, Format: FormatBGR}
	out, err := ToNRGBA(img)
	if err != nil {
		t.Fatalf("ToNRGBA: %v", err)
	}
	want := []byte{3, 2, 1, 255, 6, 5, 4, 255}
	if !bytes.Equal(out.Pix, want) {
		t.Errorf("got %v, want %v", out.Pix, want)
	}

	if _, err := ToNRGBA(Image{Width: 2, Height: 2, Format: FormatNV12}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for NV12, got %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
