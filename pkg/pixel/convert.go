package pixel

import "fmt"

type channel byte

const (
	chR channel = iota
	chG
	chB
	chA
)

// layouts lists the channel stored at each byte offset of a packed pixel
var layouts = map[PixelFormat][]channel{
	FormatRGB:  {chR, chG, chB},
	FormatBGR:  {chB, chG, chR},
	FormatRGBA: {chR, chG, chB, chA},
	FormatBGRA: {chB, chG, chR, chA},
	FormatARGB: {chA, chR, chG, chB},
}

type formatPair struct {
	src, dst PixelFormat
}

// permutations is the static lookup used by every conversion: for a
// (source, destination) pair, destination byte i of a pixel is taken from
// source byte perm[i]. Only pairs with the same pixel size are present.
var permutations = buildPermutations()

func buildPermutations() map[formatPair][]int {
	table := make(map[formatPair][]int)
	for src, sl := range layouts {
		for dst, dl := range layouts {
			if len(sl) != len(dl) {
				continue
			}
			perm := make([]int, len(dl))
			for i, ch := range dl {
				for j, sch := range sl {
					if sch == ch {
						perm[i] = j
					}
				}
			}
			table[formatPair{src, dst}] = perm
		}
	}
	return table
}

// Permutation returns the byte permutation that turns a src pixel into a
// dst pixel. ok is false when no packed conversion exists.
func Permutation(src, dst PixelFormat) (perm []int, ok bool) {
	p, ok := permutations[formatPair{src, dst}]
	if !ok {
		return nil, false
	}
	return append([]int(nil), p...), true
}

// Convert copies a 4-byte-per-pixel image into a newly allocated packed
// buffer in the dst channel order. The caller owns the result.
func Convert(src Image, dst PixelFormat) (*Buffer, error) {
	if src.BytesPerPixel() != 4 || dst.BytesPerPixel() != 4 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedFormat, src.Format, dst)
	}
	return permute(src, dst)
}

// SwapRedBlue copies an image into a packed buffer with channels 0 and 2
// exchanged (RGB<->BGR, RGBA<->BGRA).
func SwapRedBlue(src Image) (*Buffer, error) {
	var dst PixelFormat
	switch src.Format {
	case FormatRGB:
		dst = FormatBGR
	case FormatBGR:
		dst = FormatRGB
	case FormatRGBA:
		dst = FormatBGRA
	case FormatBGRA:
		dst = FormatRGBA
	default:
		return nil, fmt.Errorf("%w: cannot swap red/blue of %s", ErrUnsupportedFormat, src.Format)
	}
	return permute(src, dst)
}

func permute(src Image, dst PixelFormat) (*Buffer, error) {
	perm, ok := permutations[formatPair{src.Format, dst}]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedFormat, src.Format, dst)
	}
	if src.Width < 0 || src.Height < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrShortBuffer, src.Width, src.Height)
	}

	bpp := len(perm)
	row := src.Width * bpp
	if src.Width == 0 || src.Height == 0 {
		return NewBuffer(Image{
			Data:   []byte{},
			Width:  src.Width,
			Height: src.Height,
			Stride: row,
			Format: dst,
		}, nil), nil
	}
	if src.Stride < row || len(src.Data) < src.MinLen() {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d stride %d",
			ErrShortBuffer, len(src.Data), src.Width, src.Height, src.Stride)
	}

	out := NewPacked(src.Width, src.Height, dst)
	out.Tag(src.Orientation, src.Mirrored)
	out.SetSequence(src.Seq, src.Timestamp)
	data := out.Bytes()

	identity := src.Format == dst
	for y := 0; y < src.Height; y++ {
		s := src.Data[y*src.Stride : y*src.Stride+row]
		d := data[y*row : (y+1)*row]
		if identity {
			copy(d, s)
			continue
		}
		if bpp == 4 {
			p0, p1, p2, p3 := perm[0], perm[1], perm[2], perm[3]
			for x := 0; x < row; x += 4 {
				d[x] = s[x+p0]
				d[x+1] = s[x+p1]
				d[x+2] = s[x+p2]
				d[x+3] = s[x+p3]
			}
			continue
		}
		for x := 0; x < row; x += bpp {
			for i, p := range perm {
				d[x+i] = s[x+p]
			}
		}
	}
	return out, nil
}
