package pixel

import "testing"

func TestFormatString(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   string
		bpp    int
	}{
		{FormatRGB, "bpc8_rgb", 3},
		{FormatBGR, "bpc8_bgr", 3},
		{FormatRGBA, "bpc8_rgba", 4},
		{FormatBGRA, "bpc8_bgra", 4},
		{FormatARGB, "bpc8_argb", 4},
		{FormatNV12, "nv12", 0},
		{FormatI420, "i420", 0},
		{FormatUnknown, "unknown_format", 0},
		{PixelFormat(99), "unknown_format", 0},
	}
	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.format, got, tt.want)
		}
		if got := tt.format.BytesPerPixel(); got != tt.bpp {
			t.Errorf("%s.BytesPerPixel() = %d, want %d", tt.want, got, tt.bpp)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"rgb", "bgr", "rgba", "bgra", "argb", "nv12", "i420", "bpc8_rgba"} {
		f, err := ParseFormat(name)
		if err != nil {
			t.Errorf("ParseFormat(%q): %v", name, err)
			continue
		}
		if f == FormatUnknown {
			t.Errorf("ParseFormat(%q) returned unknown", name)
		}
	}
	if _, err := ParseFormat("yuyv"); err == nil {
		t.Error("expected error for unsupported name")
	}
	if !FormatNV12.IsPlanar() || FormatRGBA.IsPlanar() {
		t.Error("IsPlanar mismatch")
	}
}
