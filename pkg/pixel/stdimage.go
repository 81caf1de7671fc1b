package pixel

import (
	"fmt"
	"image"
)

// ToNRGBA copies a packed image into a standard library image for encoding
// or drawing. Alpha is forced to opaque for 3-byte formats.
func ToNRGBA(src Image) (*image.NRGBA, error) {
	bpp := src.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src.Format)
	}
	if src.Width < 0 || src.Height < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrShortBuffer, src.Width, src.Height)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, src.Width, src.Height))
	if src.Width == 0 || src.Height == 0 {
		return dst, nil
	}
	if src.Stride < src.RowBytes() || len(src.Data) < src.MinLen() {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d stride %d",
			ErrShortBuffer, len(src.Data), src.Width, src.Height, src.Stride)
	}

	target := FormatRGBA
	if bpp == 3 {
		target = FormatRGB
	}
	perm := permutations[formatPair{src.Format, target}]

	for y := 0; y < src.Height; y++ {
		s := src.Data[y*src.Stride:]
		d := dst.Pix[y*dst.Stride:]
		for x := 0; x < src.Width; x++ {
			si, di := x*bpp, x*4
			d[di] = s[si+perm[0]]
			d[di+1] = s[si+perm[1]]
			d[di+2] = s[si+perm[2]]
			if bpp == 4 {
				d[di+3] = s[si+perm[3]]
			} else {
				d[di+3] = 0xFF
			}
		}
	}
	return dst, nil
}

// FromRGBA returns a borrowed RGBA view of a standard library image
func FromRGBA(img *image.RGBA) Image {
	b := img.Bounds()
	return Image{
		Data:   img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: img.Stride,
		Format: FormatRGBA,
	}
}
