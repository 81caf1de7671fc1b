package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/session"
)

func TestResultCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{session.ErrNotInitialized, 1},
		{fmt.Errorf("play: %w", session.ErrNotInitialized), 1},
		{session.ErrAlreadyInitialized, 2},
		{fmt.Errorf("%w: nil data", session.ErrInvalidInput), 3},
		{pixel.ErrShortBuffer, 3},
		{fmt.Errorf("%w: nv12", pixel.ErrUnsupportedFormat), 4},
		{session.ErrOutputBound, 5},
		{errors.New("boom"), 7},
	}
	for _, tt := range tests {
		if got := resultCode(tt.err); got != tt.want {
			t.Errorf("resultCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	if codeInvalidHandle != 6 {
		t.Errorf("Expected invalid handle code 6, got %d", codeInvalidHandle)
	}
}

func TestRegistry(t *testing.T) {
	r := newRegistry[uintptr, string]()
	r.add(1, "a")

	if v, ok := r.get(1); !ok || v != "a" {
		t.Fatalf("Expected a, got %q %v", v, ok)
	}
	if _, ok := r.get(2); ok {
		t.Error("Unknown key should be absent")
	}
	if _, ok := r.take(1); !ok {
		t.Fatal("take should find the key")
	}
	if _, ok := r.take(1); ok {
		t.Error("Second take should fail")
	}
	if r.size() != 0 {
		t.Errorf("Expected empty registry, got %d", r.size())
	}
}
