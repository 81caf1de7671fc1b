// Command libeffectbridge builds the C surface of the effect bridge:
//
//	go build -buildmode=c-shared -o libeffectbridge.so ./cmd/libeffectbridge
//
// Sessions are addressed by opaque uintptr_t handles. Every function
// returns 0 on success or a result code.
package main

/*
#include <stdlib.h>
#include "effectbridge.h"
*/
import "C"

import (
	"context"
	"log/slog"
	"math"
	"runtime/cgo"
	"unsafe"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	_ "github.com/video-system/go-effect-bridge/pkg/player/software"
	"github.com/video-system/go-effect-bridge/pkg/session"
)

var (
	sessions = newRegistry[C.uintptr_t, *session.Session]()
	images   = newRegistry[unsafe.Pointer, struct{}]()
)

func main() {}

func lookup(h C.uintptr_t) (*session.Session, bool) {
	return sessions.get(h)
}

//export EBSessionCreate
func EBSessionCreate(configPath *C.char) C.uintptr_t {
	cfg := session.DefaultConfig()
	if configPath != nil {
		if path := C.GoString(configPath); path != "" {
			loaded, err := session.LoadConfig(path)
			if err != nil {
				slog.Error("load config", "path", path, "error", err)
				return 0
			}
			cfg = loaded
		}
	}
	s, err := session.New(cfg)
	if err != nil {
		slog.Error("create session", "error", err)
		return 0
	}
	h := C.uintptr_t(cgo.NewHandle(s))
	sessions.add(h, s)
	return h
}

//export EBSessionDestroy
func EBSessionDestroy(h C.uintptr_t) C.int {
	s, ok := sessions.take(h)
	if !ok {
		return codeInvalidHandle
	}
	err := s.Release()
	cgo.Handle(h).Delete()
	return C.int(resultCode(err))
}

//export EBInitialize
func EBInitialize(h C.uintptr_t, sdkPath, resourcesFolder, token *C.char) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.Initialize(session.Credentials{
		SDKResourcePath: goString(sdkPath),
		ResourcesFolder: goString(resourcesFolder),
		ClientToken:     goString(token),
	})))
}

//export EBLoadEffect
func EBLoadEffect(h C.uintptr_t, name *C.char) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	_, err := s.LoadEffect(goString(name))
	return C.int(resultCode(err))
}

//export EBRegisterImageCallback
func EBRegisterImageCallback(h C.uintptr_t, cb C.EBImageCallback) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	if cb == nil {
		s.RegisterFrameCallback(nil)
		return codeOK
	}
	s.RegisterFrameCallback(func(buf *pixel.Buffer, width, height int) {
		data := copyToC(buf.Bytes())
		buf.Release()
		C.eb_invoke(cb, (*C.uint8_t)(data), C.int(width), C.int(height))
	})
	return codeOK
}

// copyToC copies data into malloc'd memory tracked for EBReleaseImage
func copyToC(data []byte) unsafe.Pointer {
	n := len(data)
	if n == 0 {
		n = 1
	}
	p := C.malloc(C.size_t(n))
	copy(unsafe.Slice((*byte)(p), n), data)
	images.add(p, struct{}{})
	return p
}

//export EBStartRenderingBuffer
func EBStartRenderingBuffer(h C.uintptr_t) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.StartBufferRendering()))
}

// EBStartRenderingWindow blocks until the window closes or the session is
// released.
//
//export EBStartRenderingWindow
func EBStartRenderingWindow(h C.uintptr_t) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.StartWindowRendering(context.Background())))
}

//export EBPlay
func EBPlay(h C.uintptr_t) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.Play()))
}

//export EBPause
func EBPause(h C.uintptr_t) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.Pause()))
}

//export EBStop
func EBStop(h C.uintptr_t) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.Stop()))
}

//export EBAttachCamera
func EBAttachCamera(h C.uintptr_t, index C.int) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.AttachCamera(int(index))))
}

//export EBPushImage
func EBPushImage(h C.uintptr_t, data *C.uint8_t, stride, width, height C.int) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	w, ht, st := int(width), int(height), int(stride)
	if data == nil || w <= 0 || ht <= 0 || st < w*3 {
		return codeInvalidInput
	}
	size := int64(st)*int64(ht-1) + int64(w)*3
	if size > math.MaxInt32 {
		return codeInvalidInput
	}
	frame := unsafe.Slice((*byte)(unsafe.Pointer(data)), int(size))
	return C.int(resultCode(s.PushImage(frame, st, w, ht)))
}

//export EBRelease
func EBRelease(h C.uintptr_t) C.int {
	s, ok := lookup(h)
	if !ok {
		return codeInvalidHandle
	}
	return C.int(resultCode(s.Release()))
}

// EBReleaseImage frees a frame passed to the image callback. Unknown or
// already released pointers are rejected.
//
//export EBReleaseImage
func EBReleaseImage(data *C.uint8_t) C.int {
	p := unsafe.Pointer(data)
	if _, ok := images.take(p); !ok {
		return codeInvalidInput
	}
	C.free(p)
	return codeOK
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}
