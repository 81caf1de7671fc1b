package software

import "github.com/video-system/go-effect-bridge/pkg/pixel"

var bars = [8][3]byte{
	{255, 255, 255}, {255, 255, 0}, {0, 255, 255}, {0, 255, 0},
	{255, 0, 255}, {255, 0, 0}, {0, 0, 255}, {0, 0, 0},
}

// testPattern returns RGB colour bars scrolled by n pixels
func testPattern(width, height, n int) *pixel.Buffer {
	buf := pixel.NewPacked(width, height, pixel.FormatRGB)
	data := buf.Bytes()
	barWidth := width / len(bars)
	if barWidth == 0 {
		barWidth = 1
	}
	for y := 0; y < height; y++ {
		row := data[y*width*3:]
		for x := 0; x < width; x++ {
			c := bars[((x+n)/barWidth)%len(bars)]
			copy(row[x*3:x*3+3], c[:])
		}
	}
	return buf
}

// copyRows packs height rows of row bytes from src, whose rows start every
// stride bytes, into dst
func copyRows(dst, src []byte, row, stride, height int) {
	if stride == row {
		copy(dst, src[:row*height])
		return
	}
	for y := 0; y < height; y++ {
		copy(dst[y*row:(y+1)*row], src[y*stride:y*stride+row])
	}
}
