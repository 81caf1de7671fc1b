package player

import (
	"runtime"
	"testing"
)

type nopBackend struct{ Backend }

func (nopBackend) Name() string { return "nop" }

func TestRegistry(t *testing.T) {
	Register("nop-test", func() Backend { return nopBackend{} })

	b, ok := Get("nop-test")
	if !ok {
		t.Fatal("Expected registered backend")
	}
	if b.Name() != "nop" {
		t.Errorf("Expected name nop, got %s", b.Name())
	}
	if _, ok := Get("missing"); ok {
		t.Error("Expected missing backend lookup to fail")
	}

	found := false
	for _, n := range Names() {
		if n == "nop-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing nop-test", Names())
	}
}

func TestRenderBackendResolve(t *testing.T) {
	want := RenderOpenGL
	if runtime.GOOS == "darwin" {
		want = RenderMetal
	}
	if got := RenderAuto.Resolve(); got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}
	if got := RenderMetal.Resolve(); got != RenderMetal {
		t.Errorf("explicit backend changed to %s", got)
	}
}

func TestParseRenderBackend(t *testing.T) {
	tests := map[string]RenderBackend{"": RenderAuto, "auto": RenderAuto, "opengl": RenderOpenGL, "metal": RenderMetal}
	for in, want := range tests {
		got, err := ParseRenderBackend(in)
		if err != nil || got != want {
			t.Errorf("ParseRenderBackend(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseRenderBackend("vulkan"); err == nil {
		t.Error("Expected error for vulkan")
	}
}
