package pixel

import "fmt"

// PixelFormat represents the memory layout of a frame
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatRGB                 // 8 bits per channel, packed R,G,B
	FormatBGR                 // 8 bits per channel, packed B,G,R
	FormatRGBA                // 8 bits per channel, packed R,G,B,A
	FormatBGRA                // 8 bits per channel, packed B,G,R,A
	FormatARGB                // 8 bits per channel, packed A,R,G,B
	FormatNV12                // Y plane + interleaved UV plane
	FormatI420                // Y + U + V planes
)

// String returns the diagnostic label of the format
func (f PixelFormat) String() string {
	switch f {
	case FormatRGB:
		return "bpc8_rgb"
	case FormatBGR:
		return "bpc8_bgr"
	case FormatRGBA:
		return "bpc8_rgba"
	case FormatBGRA:
		return "bpc8_bgra"
	case FormatARGB:
		return "bpc8_argb"
	case FormatNV12:
		return "nv12"
	case FormatI420:
		return "i420"
	default:
		return "unknown_format"
	}
}

// BytesPerPixel returns the packed pixel size. Planar and unknown formats return 0.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB, FormatBGR:
		return 3
	case FormatRGBA, FormatBGRA, FormatARGB:
		return 4
	default:
		return 0
	}
}

// IsPlanar returns true for multi-plane YUV formats
func (f PixelFormat) IsPlanar() bool {
	return f == FormatNV12 || f == FormatI420
}

// ParseFormat maps a config name (rgb, bgr, rgba, bgra, argb, nv12, i420) to a format
func ParseFormat(name string) (PixelFormat, error) {
	switch name {
	case "rgb", "bpc8_rgb":
		return FormatRGB, nil
	case "bgr", "bpc8_bgr":
		return FormatBGR, nil
	case "rgba", "bpc8_rgba":
		return FormatRGBA, nil
	case "bgra", "bpc8_bgra":
		return FormatBGRA, nil
	case "argb", "bpc8_argb":
		return FormatARGB, nil
	case "nv12":
		return FormatNV12, nil
	case "i420":
		return FormatI420, nil
	}
	return FormatUnknown, fmt.Errorf("unknown pixel format: %q", name)
}

// Orientation is the clockwise rotation of the captured image
type Orientation int

const (
	Deg0 Orientation = iota
	Deg90
	Deg180
	Deg270
)

func (o Orientation) String() string {
	switch o {
	case Deg90:
		return "deg_90"
	case Deg180:
		return "deg_180"
	case Deg270:
		return "deg_270"
	default:
		return "deg_0"
	}
}
