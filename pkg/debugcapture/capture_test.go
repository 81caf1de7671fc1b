package debugcapture

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/video-system/go-effect-bridge/internal/monotime"
	"github.com/video-system/go-effect-bridge/pkg/pixel"
)

func testImage() pixel.Image {
	return pixel.Image{
		Data:   []byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255, 10, 20, 30, 255},
		Width:  2,
		Height: 2,
		Stride: 8,
		Format: pixel.FormatRGBA,
	}
}

// TestCaptureWritesPNGAndJPEG verifies both files are written with the expected names
func TestCaptureWritesPNGAndJPEG(t *testing.T) {
	dir := t.TempDir()
	sink := New(ModeOn, dir, monotime.New(), nil)

	if err := sink.Capture(testImage(), LabelResult); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(entries))
	}

	var pngName string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "image_") || !strings.Contains(name, "_result.") {
			t.Errorf("Unexpected file name %q", name)
		}
		if strings.HasSuffix(name, ".png") {
			pngName = name
		}
	}
	if pngName == "" {
		t.Fatal("Expected a PNG file")
	}

	f, err := os.Open(filepath.Join(dir, pngName))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 || g != 0 || b != 0 {
		t.Errorf("Expected red top-left pixel, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
	if s, f := sink.Stats(); s != 1 || f != 0 {
		t.Errorf("Expected stats 1/0, got %d/%d", s, f)
	}
}

// TestCaptureNamesSortChronologically verifies names never collide and sort in capture order
func TestCaptureNamesSortChronologically(t *testing.T) {
	dir := t.TempDir()
	sink := New(ModeOn, dir, monotime.New(), nil)

	const n = 20
	for i := 0; i < n; i++ {
		label := LabelResult
		if i%2 == 1 {
			label = LabelOrigin
		}
		if err := sink.Capture(testImage(), label); err != nil {
			t.Fatalf("Capture %d failed: %v", i, err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.png"))
	if len(matches) != n {
		t.Fatalf("Expected %d PNG files, got %d", n, len(matches))
	}
	sort.Strings(matches)
	for i, m := range matches {
		want := "_result.png"
		if i%2 == 1 {
			want = "_origin.png"
		}
		if !strings.HasSuffix(m, want) {
			t.Errorf("File %d = %s, want suffix %s", i, filepath.Base(m), want)
		}
	}
}

func TestCaptureRGB(t *testing.T) {
	sink := New(ModeOn, t.TempDir(), nil, nil)
	img := pixel.Image{Data: []byte{1, 2, 3, 4, 5, 6}, Width: 2, Height: 1, Stride: 6, Format: pixel.FormatBGR}
	if err := sink.Capture(img, LabelOrigin); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
}

func TestCaptureDisabled(t *testing.T) {
	sink := New(ModeOff, t.TempDir(), nil, nil)
	if sink.Enabled() {
		t.Fatal("Expected disabled sink")
	}
	if err := sink.Capture(testImage(), LabelResult); err != nil {
		t.Errorf("Disabled capture should be a no-op, got %v", err)
	}
}

func TestCaptureWriteFailure(t *testing.T) {
	dir := t.TempDir()
	sink := New(ModeOn, dir, nil, nil)
	// Remove the directory underneath the sink
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}

	err := sink.Capture(testImage(), LabelResult)
	if !errors.Is(err, ErrCaptureWrite) {
		t.Fatalf("Expected ErrCaptureWrite, got %v", err)
	}
	if _, f := sink.Stats(); f != 1 {
		t.Errorf("Expected 1 failure, got %d", f)
	}
}

// TestCaptureDirectoryUnavailable verifies a directory that cannot be
// created still yields a sink whose captures fail
func TestCaptureDirectoryUnavailable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	sink := New(ModeOn, filepath.Join(file, "captures"), nil, nil)
	if !sink.Enabled() {
		t.Fatal("Expected an enabled sink")
	}
	if sink.Dir() != filepath.Join(file, "captures") {
		t.Errorf("Unexpected dir %q", sink.Dir())
	}
	if err := sink.Capture(testImage(), LabelResult); !errors.Is(err, ErrCaptureWrite) {
		t.Fatalf("Expected ErrCaptureWrite, got %v", err)
	}
	if s, f := sink.Stats(); s != 0 || f != 1 {
		t.Errorf("Expected stats 0/1, got %d/%d", s, f)
	}
}

func TestCaptureUnsupportedFormat(t *testing.T) {
	sink := New(ModeOn, t.TempDir(), nil, nil)
	err := sink.Capture(pixel.Image{Width: 2, Height: 2, Format: pixel.FormatNV12}, LabelResult)
	if !errors.Is(err, ErrCaptureWrite) {
		t.Fatalf("Expected ErrCaptureWrite, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeOff, "off": ModeOff, "on": ModeOn} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("verbose"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
