// Package config loads stack manifests: YAML files that list the layers
// to flatten together with the background and output settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/pixelworldai/alphaflatten/exrio"
	"github.com/pixelworldai/alphaflatten/flatten"
	"github.com/pixelworldai/alphaflatten/layerio"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid stack")

// RGB is a custom background colour.
type RGB struct {
	R float64 `yaml:"r"`
	G float64 `yaml:"g"`
	B float64 `yaml:"b"`
}

// Layer is one manifest entry, bottom of the stack first.
type Layer struct {
	Path  string `yaml:"path"`
	Layer string `yaml:"layer"`
}

// Stack is a parsed manifest.
type Stack struct {
	Background  string  `yaml:"background"`
	Color       string  `yaml:"color"`
	Custom      *RGB    `yaml:"custom"`
	Output      string  `yaml:"output"`
	PixelType   string  `yaml:"pixel_type"`
	Compression string  `yaml:"compression"`
	Workers     int     `yaml:"workers"`
	Layers      []Layer `yaml:"layers"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Stack, error) {
	s, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

// Read parses the manifest at path without validating it, so callers can
// add layers first. Relative layer and output paths are taken relative to
// the manifest's directory.
func Read(path string) (*Stack, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range s.Layers {
		s.Layers[i].Path = resolve(dir, s.Layers[i].Path)
	}
	s.Output = resolve(dir, s.Output)
	return s, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Parse decodes a manifest. Unknown keys are rejected. The result is not
// validated.
func Parse(data []byte) (*Stack, error) {
	var s Stack
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &s, nil
}

// Validate checks that the manifest can be run.
func (s *Stack) Validate() error {
	if len(s.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalid)
	}
	for i, l := range s.Layers {
		if strings.TrimSpace(l.Path) == "" {
			return fmt.Errorf("%w: layer %d has no path", ErrInvalid, i)
		}
	}
	if _, err := s.BackgroundValue(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if s.PixelType != "" {
		pt, err := exrio.ParsePixelType(s.PixelType)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if pt == exrio.PixelTypeUint {
			return fmt.Errorf("%w: pixel_type must be half or float", ErrInvalid)
		}
	}
	if s.Compression != "" {
		if _, err := exrio.ParseCompression(s.Compression); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	return nil
}

// BackgroundValue resolves the background settings. color wins over
// custom; with neither set, background defaults to black.
func (s *Stack) BackgroundValue() (flatten.Background, error) {
	name := strings.ToLower(strings.TrimSpace(s.Background))
	if s.Color != "" {
		if name != "" && name != "custom" {
			return flatten.Background{}, fmt.Errorf("color %q conflicts with background %q", s.Color, s.Background)
		}
		return flatten.ParseColor(s.Color)
	}
	if name == "" {
		if s.Custom != nil {
			name = "custom"
		} else {
			name = "black"
		}
	}
	var c RGB
	if s.Custom != nil {
		c = *s.Custom
	}
	return flatten.ParseBackground(name, c.R, c.G, c.B)
}

// Warnings reports settings that are accepted but probably unintended.
func (s *Stack) Warnings() []string {
	var warnings []string
	if s.Color != "" && s.Custom != nil {
		warnings = append(warnings, "both color and custom are set; custom is ignored")
	}
	if s.Custom != nil && s.Color == "" {
		for _, c := range []struct {
			name string
			v    float64
		}{{"r", s.Custom.R}, {"g", s.Custom.G}, {"b", s.Custom.B}} {
			if c.v < 0 || c.v > 1 {
				warnings = append(warnings, fmt.Sprintf("custom.%s = %g is outside [0, 1]", c.name, c.v))
			}
		}
	}
	return warnings
}

// Sources returns the layers in stack order.
func (s *Stack) Sources() []layerio.Source {
	sources := make([]layerio.Source, len(s.Layers))
	for i, l := range s.Layers {
		sources[i] = layerio.Source{Path: l.Path, Layer: l.Layer}
	}
	return sources
}
