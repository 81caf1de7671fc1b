package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/video-system/go-effect-bridge/internal/ffmpeg"
	"github.com/video-system/go-effect-bridge/pkg/api"
	"github.com/video-system/go-effect-bridge/pkg/pixel"
	_ "github.com/video-system/go-effect-bridge/pkg/player/software"
	"github.com/video-system/go-effect-bridge/pkg/session"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := session.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("bridge failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bridge stopped")
}

func newLogger(cfg session.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(cfg *session.Config, logger *slog.Logger) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := session.New(cfg, session.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Release()

	logger.Info("starting bridge", "version", version, "session", s.ID(), "backend", cfg.SDK.Backend)

	if err := s.Initialize(session.Credentials{
		SDKResourcePath: cfg.SDK.ResourcePath,
		ResourcesFolder: cfg.SDK.ResourcesFolder,
		ClientToken:     cfg.SDK.ClientToken,
	}); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var recorder *ffmpeg.Recorder
	if cfg.Recording.Enabled {
		ff, err := ffmpeg.New()
		if err != nil {
			return fmt.Errorf("recording: %w", err)
		}
		recorder = ff.NewRecorder(ffmpeg.RecorderConfig{
			Path:      cfg.Recording.Path,
			Preset:    cfg.Recording.Preset,
			CRF:       cfg.Recording.CRF,
			Framerate: cfg.Render.FPS,
		}, logger)
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warn("recording failed", "error", err)
				return
			}
			logRecording(ff, cfg.Recording.Path, logger)
		}()
	}

	surface := s.Surface()
	s.RegisterFrameCallback(func(buf *pixel.Buffer, width, height int) {
		defer s.ReleaseImage(buf)
		img := buf.Image()
		if recorder != nil {
			if err := recorder.WriteFrame(img); err != nil {
				logger.Debug("recorder frame dropped", "error", err)
			}
		}
		if surface != nil {
			surface.Present(img)
		}
	})

	if cfg.Camera.Enabled {
		if err := s.AttachCamera(cfg.Camera.Index); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
	}

	if cfg.Effect.Name != "" {
		load, err := s.LoadEffect(cfg.Effect.Name)
		if err != nil {
			return fmt.Errorf("load effect: %w", err)
		}
		if cfg.Effect.Wait {
			if err := load.Wait(ctx); err != nil {
				return fmt.Errorf("load effect %s: %w", cfg.Effect.Name, err)
			}
		}
	}

	preview, _ := surface.(http.Handler)
	apiServer := api.NewServer(api.ServerConfig{
		Host:    cfg.API.Host,
		Port:    cfg.API.Port,
		Session: s,
		Preview: preview,
		Logger:  logger,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", "error", err)
			cancel()
		}
	}()
	defer apiServer.Stop()

	switch cfg.Render.Mode {
	case "window":
		// The window loop owns this goroutine; play once the output is bound
		go playWhenBound(ctx, s, "window", logger)
		if err := s.StartWindowRendering(ctx); err != nil {
			return fmt.Errorf("window rendering: %w", err)
		}
	default:
		if err := s.StartBufferRendering(); err != nil {
			return fmt.Errorf("buffer rendering: %w", err)
		}
		if err := s.Play(); err != nil {
			return fmt.Errorf("play: %w", err)
		}
		<-ctx.Done()
	}

	logger.Info("shutdown signal received")
	return nil
}

func playWhenBound(ctx context.Context, s *session.Session, output string, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.Status().Output != output {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	if err := s.Play(); err != nil {
		logger.Warn("play failed", "error", err)
	}
}

func logRecording(ff *ffmpeg.FFmpeg, path string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := ff.GetVideoInfo(ctx, path)
	if err != nil {
		logger.Debug("probe recording", "error", err)
		return
	}
	logger.Info("recording saved",
		"path", path,
		"resolution", info.Resolution(),
		"frames", info.Frames,
		"duration", info.Duration,
		"codec", info.Codec)
}
