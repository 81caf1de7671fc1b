package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/video-system/go-effect-bridge/pkg/debugcapture"
	"github.com/video-system/go-effect-bridge/pkg/pixel"
	"github.com/video-system/go-effect-bridge/pkg/player"
)

// Config holds all session configuration
type Config struct {
	SDK          SDKConfig          `yaml:"sdk"`
	Render       RenderConfig       `yaml:"render"`
	Window       WindowConfig       `yaml:"window"`
	Camera       CameraConfig       `yaml:"camera"`
	Effect       EffectConfig       `yaml:"effect"`
	DebugCapture DebugCaptureConfig `yaml:"debug_capture"`

	// Daemon only
	API       APIConfig       `yaml:"api"`
	Preview   PreviewConfig   `yaml:"preview"`
	Recording RecordingConfig `yaml:"recording"`
	Log       LogConfig       `yaml:"log"`
}

// SDKConfig selects the pipeline backend and its credentials
type SDKConfig struct {
	Backend         string `yaml:"backend"`          // registered backend name (software)
	ResourcePath    string `yaml:"resource_path"`    // SDK bundled resources
	ResourcesFolder string `yaml:"resources_folder"` // host effects folder
	ClientToken     string `yaml:"client_token"`
}

// RenderConfig configures frame production and delivery
type RenderConfig struct {
	Backend       string `yaml:"backend"` // auto, opengl, metal
	Mode          string `yaml:"mode"`    // buffer, window
	FPS           int    `yaml:"fps"`     // player frame rate
	Width         int    `yaml:"width"`   // render target, 0 follows the input
	Height        int    `yaml:"height"`
	OutputFormat  string `yaml:"output_format"`   // rgba, bgra, argb
	MaxFrameBytes int64  `yaml:"max_frame_bytes"` // larger frames are dropped
}

// WindowConfig configures the window output
type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CameraConfig configures the capture device
type CameraConfig struct {
	Enabled bool   `yaml:"enabled"`
	Index   int    `yaml:"index"`
	Device  string `yaml:"device"` // /dev/video0, overrides index
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
}

// EffectConfig selects the effect loaded at startup
type EffectConfig struct {
	Name string `yaml:"name"`
	Wait bool   `yaml:"wait"` // block startup until loaded
}

// DebugCaptureConfig configures on-disk frame dumps
type DebugCaptureConfig struct {
	Mode string `yaml:"mode"` // off, on
	Dir  string `yaml:"dir"`
}

// APIConfig configures the control API
type APIConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// PreviewConfig configures the browser preview
type PreviewConfig struct {
	Quality int `yaml:"quality"` // JPEG quality 1-100
}

// RecordingConfig configures the MP4 recorder
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Preset  string `yaml:"preset"`
	CRF     int    `yaml:"crf"`
}

// LogConfig configures the daemon logger
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SDK.Backend == "" {
		c.SDK.Backend = "software"
	}
	if c.Render.Backend == "" {
		c.Render.Backend = "auto"
	}
	if c.Render.Mode == "" {
		c.Render.Mode = "buffer"
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = 30
	}
	if c.Render.OutputFormat == "" {
		c.Render.OutputFormat = "rgba"
	}
	if c.Render.MaxFrameBytes == 0 {
		c.Render.MaxFrameBytes = 256 << 20
	}
	if c.Window.Width == 0 {
		c.Window.Width = 1280
	}
	if c.Window.Height == 0 {
		c.Window.Height = 720
	}
	if c.Camera.Width == 0 {
		c.Camera.Width = 1280
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = 720
	}
	if c.Camera.FPS == 0 {
		c.Camera.FPS = 30
	}
	if c.DebugCapture.Mode == "" {
		c.DebugCapture.Mode = "off"
	}
	if c.DebugCapture.Dir == "" {
		c.DebugCapture.Dir = "."
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Preview.Quality == 0 {
		c.Preview.Quality = 80
	}
	if c.Recording.Path == "" {
		c.Recording.Path = "output.mp4"
	}
	if c.Recording.Preset == "" {
		c.Recording.Preset = "fast"
	}
	if c.Recording.CRF == 0 {
		c.Recording.CRF = 23
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects unknown enum values and impossible sizes
func (c *Config) Validate() error {
	if _, err := player.ParseRenderBackend(c.Render.Backend); err != nil {
		return fmt.Errorf("render.backend: %w", err)
	}
	switch c.Render.Mode {
	case "buffer", "window":
	default:
		return fmt.Errorf("render.mode: unknown mode %q", c.Render.Mode)
	}
	if _, err := c.outputFormat(); err != nil {
		return fmt.Errorf("render.output_format: %w", err)
	}
	if c.Render.FPS < 0 || c.Render.Width < 0 || c.Render.Height < 0 {
		return fmt.Errorf("render: negative fps or size")
	}
	if c.Render.MaxFrameBytes < 0 {
		return fmt.Errorf("render.max_frame_bytes: must not be negative")
	}
	if _, err := debugcapture.ParseMode(c.DebugCapture.Mode); err != nil {
		return fmt.Errorf("debug_capture.mode: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		return fmt.Errorf("preview.quality: %d out of range 1-100", c.Preview.Quality)
	}
	return nil
}

// outputFormat returns the channel order delivered to the frame callback
func (c *Config) outputFormat() (pixel.PixelFormat, error) {
	f, err := pixel.ParseFormat(c.Render.OutputFormat)
	if err != nil {
		return pixel.FormatUnknown, err
	}
	if f.BytesPerPixel() != 4 {
		return pixel.FormatUnknown, fmt.Errorf("%w: %s", pixel.ErrUnsupportedFormat, f)
	}
	return f, nil
}
