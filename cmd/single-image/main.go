package main

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/video-system/go-effect-bridge/pkg/pixel"
	_ "github.com/video-system/go-effect-bridge/pkg/player/software"
	"github.com/video-system/go-effect-bridge/pkg/session"
)

const usage = "Usage: single-image <api_key> <effect_path> <input_file> <output_file>"

func main() {
	if len(os.Args) != 5 {
		fmt.Println(usage)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(os.Args[1], os.Args[2], os.Args[3], os.Args[4], logger); err != nil {
		fmt.Fprintf(os.Stderr, "single-image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Processing result was written to `%s`.\n", os.Args[4])
}

func run(apiKey, effect, input, output string, logger *slog.Logger) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg := session.DefaultConfig()
	cfg.Render.OutputFormat = "rgba"
	s, err := session.New(cfg, session.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Release()

	if err := s.Initialize(session.Credentials{
		ResourcesFolder: filepath.Join(cwd, "resources"),
		ClientToken:     apiKey,
	}); err != nil {
		return err
	}

	written := make(chan error, 1)
	s.RegisterFrameCallback(func(buf *pixel.Buffer, width, height int) {
		defer s.ReleaseImage(buf)
		select {
		case written <- writePNG(output, buf.Image()):
		default:
		}
	})

	load, err := s.LoadEffect(effect)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := load.Wait(ctx); err != nil {
		return fmt.Errorf("load effect %s: %w", effect, err)
	}

	if err := s.UsePhoto(input); err != nil {
		return err
	}
	if err := s.StartBufferRendering(); err != nil {
		return err
	}
	if err := s.RenderOnce(); err != nil {
		return err
	}

	select {
	case err := <-written:
		return err
	default:
		return fmt.Errorf("no frame was rendered")
	}
}

func writePNG(path string, img pixel.Image) error {
	nrgba, err := pixel.ToNRGBA(img)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, nrgba); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
