package software

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"gopkg.in/yaml.v3"
)

// EffectFile is the descriptor every effect directory contains
const EffectFile = "effect.yaml"

// ErrEffectNotFound is returned when no resource path holds the effect
var ErrEffectNotFound = errors.New("effect not found")

// Effect is a set of overlays drawn on every frame
type Effect struct {
	Name   string  `yaml:"name"`
	Tint   string  `yaml:"tint"` // hex colour blended over the whole frame
	Shapes []Shape `yaml:"shapes"`

	dir string
}

// Shape is one overlay. Coordinates are fractions of the frame size;
// radii are fractions of the shorter side.
type Shape struct {
	Kind   string  `yaml:"kind"` // rect, circle, ellipse
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Radius float64 `yaml:"radius"`
	RX     float64 `yaml:"rx"`
	RY     float64 `yaml:"ry"`
	Color  string  `yaml:"color"`
}

// Dir returns the directory the effect was loaded from
func (e *Effect) Dir() string { return e.dir }

// FindEffect resolves name to an effect directory. name may itself be a
// directory; otherwise <path>/<name> and <path>/effects/<name> are tried
// for each resource path in order.
func FindEffect(paths []string, name string) (string, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, p := range paths {
			candidates = append(candidates,
				filepath.Join(p, name),
				filepath.Join(p, "effects", name))
		}
	}
	for _, dir := range candidates {
		if fi, err := os.Stat(filepath.Join(dir, EffectFile)); err == nil && !fi.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEffectNotFound, name)
}

// LoadEffect reads and validates the descriptor in dir
func LoadEffect(dir string) (*Effect, error) {
	data, err := os.ReadFile(filepath.Join(dir, EffectFile))
	if err != nil {
		return nil, fmt.Errorf("read effect: %w", err)
	}

	var eff Effect
	if err := yaml.Unmarshal(data, &eff); err != nil {
		return nil, fmt.Errorf("parse effect: %w", err)
	}
	if eff.Name == "" {
		eff.Name = filepath.Base(dir)
	}
	for i, s := range eff.Shapes {
		switch s.Kind {
		case "rect", "circle", "ellipse":
		default:
			return nil, fmt.Errorf("effect %s: shape %d: unknown kind %q", eff.Name, i, s.Kind)
		}
		if s.Color == "" {
			eff.Shapes[i].Color = "#ffffff"
		}
	}
	eff.dir = dir
	return &eff, nil
}

// Apply draws the effect over src and returns a new image
func (e *Effect) Apply(src image.Image) (*image.RGBA, error) {
	dc := gg.NewContextForImage(src)
	defer dc.Close()

	w, h := float64(dc.Width()), float64(dc.Height())
	short := w
	if h < short {
		short = h
	}

	if e.Tint != "" {
		dc.SetHexColor(e.Tint)
		dc.DrawRectangle(0, 0, w, h)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("effect %s: tint: %w", e.Name, err)
		}
	}

	for i, s := range e.Shapes {
		dc.SetHexColor(s.Color)
		switch s.Kind {
		case "rect":
			dc.DrawRectangle(s.X*w, s.Y*h, s.Width*w, s.Height*h)
		case "circle":
			dc.DrawCircle(s.X*w, s.Y*h, s.Radius*short)
		case "ellipse":
			dc.DrawEllipse(s.X*w, s.Y*h, s.RX*short, s.RY*short)
		}
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("effect %s: shape %d: %w", e.Name, i, err)
		}
	}

	if err := dc.FlushGPU(); err != nil {
		return nil, fmt.Errorf("effect %s: flush: %w", e.Name, err)
	}
	out, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("effect %s: unexpected image type %T", e.Name, dc.Image())
	}
	return out, nil
}
