package main

import (
	"errors"
	"sync"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/session"
)

// Result codes returned by every exported function
const (
	codeOK = iota
	codeNotInitialized
	codeAlreadyInitialized
	codeInvalidInput
	codeUnsupportedFormat
	codeOutputBound
	codeInvalidHandle
	codeOther
)

func resultCode(err error) int {
	switch {
	case err == nil:
		return codeOK
	case errors.Is(err, session.ErrNotInitialized):
		return codeNotInitialized
	case errors.Is(err, session.ErrAlreadyInitialized):
		return codeAlreadyInitialized
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, pixel.ErrShortBuffer):
		return codeInvalidInput
	case errors.Is(err, pixel.ErrUnsupportedFormat):
		return codeUnsupportedFormat
	case errors.Is(err, session.ErrOutputBound):
		return codeOutputBound
	default:
		return codeOther
	}
}

// registry tracks live values by handle so stale or foreign handles are
// rejected instead of panicking
type registry[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
}

func newRegistry[K comparable, V any]() *registry[K, V] {
	return &registry[K, V]{items: make(map[K]V)}
}

func (r *registry[K, V]) add(k K, v V) {
	r.mu.Lock()
	r.items[k] = v
	r.mu.Unlock()
}

func (r *registry[K, V]) get(k K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[k]
	return v, ok
}

// take removes k and reports whether it was present
func (r *registry[K, V]) take(k K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[k]
	if ok {
		delete(r.items, k)
	}
	return v, ok
}

func (r *registry[K, V]) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
