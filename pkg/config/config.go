// Package config loads session settings from a TOML or YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/chazu/pickandpaint/pkg/landmark"
	"github.com/chazu/pickandpaint/pkg/locate"
	"github.com/chazu/pickandpaint/pkg/mesh"
	"github.com/chazu/pickandpaint/pkg/roi"
)

// Config holds every configurable setting.
type Config struct {
	Landmark LandmarkConfig `toml:"landmark" yaml:"landmark"`

	// Locator is "brute" or "rtree".
	Locator string `toml:"locator" yaml:"locator"`

	ROI    ROIConfig    `toml:"roi" yaml:"roi"`
	Mesh   MeshConfig   `toml:"mesh" yaml:"mesh"`
	Engine EngineConfig `toml:"engine" yaml:"engine"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// LandmarkConfig holds the defaults of new landmarks.
type LandmarkConfig struct {
	Radius int     `toml:"radius" yaml:"radius"`
	Scale  float64 `toml:"scale" yaml:"scale"`

	// FollowSurface is a pointer so an explicit false survives Resolve.
	FollowSurface *bool  `toml:"follow_surface" yaml:"follow_surface"`
	LabelPrefix   string `toml:"label_prefix" yaml:"label_prefix"`
}

// ROIConfig holds the two ROI colors as #RRGGBB or #RRGGBBAA.
type ROIConfig struct {
	Outside string `toml:"outside" yaml:"outside"`
	Inside  string `toml:"inside" yaml:"inside"`
}

// MeshConfig controls meshes built from solids.
type MeshConfig struct {
	// Cells is the marching cubes resolution along the longest axis.
	Cells int `toml:"cells" yaml:"cells"`
	// WeldTolerance merges tessellated vertices closer than this.
	WeldTolerance float64 `toml:"weld_tolerance" yaml:"weld_tolerance"`
}

// EngineConfig controls script evaluation.
type EngineConfig struct {
	// Timeout is a Go duration string, e.g. "5s".
	Timeout string `toml:"timeout" yaml:"timeout"`
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Locator  string
	LogLevel string
	Radius   int
}

// Default returns a resolved configuration with every default applied.
func Default() Config {
	var c Config
	c.Resolve(Flags{})
	return c
}

// Load reads a config file. The format follows the extension: .toml, .yaml
// or .yml. Fields not set in the file keep their zero values until Resolve.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config: %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve fills empty fields with defaults. CLI flags take priority when
// non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	if flags.Locator != "" {
		c.Locator = flags.Locator
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.Radius > 0 {
		c.Landmark.Radius = flags.Radius
	}

	if c.Landmark.Scale == 0 {
		c.Landmark.Scale = 2.0
	}
	if c.Landmark.FollowSurface == nil {
		on := true
		c.Landmark.FollowSurface = &on
	}
	if c.Landmark.LabelPrefix == "" {
		c.Landmark.LabelPrefix = "F"
	}
	if c.Locator == "" {
		c.Locator = string(locate.StrategyBruteForce)
	}
	if c.ROI.Outside == "" {
		c.ROI.Outside = "#0000FF"
	}
	if c.ROI.Inside == "" {
		c.ROI.Inside = "#FF0000"
	}
	if c.Mesh.Cells <= 0 {
		c.Mesh.Cells = 40
	}
	if c.Mesh.WeldTolerance <= 0 {
		c.Mesh.WeldTolerance = 1e-6
	}
	if c.Engine.Timeout == "" {
		c.Engine.Timeout = "5s"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Landmark.Radius < 0 {
		errs = append(errs, fmt.Errorf("landmark.radius %d is negative", c.Landmark.Radius))
	}
	if c.Landmark.Scale <= 0 {
		errs = append(errs, fmt.Errorf("landmark.scale %g is not positive", c.Landmark.Scale))
	}
	if _, err := locate.ParseStrategy(c.Locator); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LookupTable(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.EvalTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LookupTable builds the ROI color table.
func (c *Config) LookupTable() (*mesh.LookupTable, error) {
	outside, err := mesh.ParseHexColor(c.ROI.Outside)
	if err != nil {
		return nil, fmt.Errorf("roi.outside: %w", err)
	}
	inside, err := mesh.ParseHexColor(c.ROI.Inside)
	if err != nil {
		return nil, fmt.Errorf("roi.inside: %w", err)
	}
	return mesh.NewLookupTable(roi.Outside, roi.Inside, outside, inside), nil
}

// EvalTimeout parses Engine.Timeout.
func (c *Config) EvalTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("engine.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("engine.timeout %s is not positive", d)
	}
	return d, nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// SessionOptions converts the landmark settings for landmark.NewSession.
func (c *Config) SessionOptions(logger *slog.Logger) (landmark.Options, error) {
	lut, err := c.LookupTable()
	if err != nil {
		return landmark.Options{}, fmt.Errorf("config: %w", err)
	}
	strategy, err := locate.ParseStrategy(c.Locator)
	if err != nil {
		return landmark.Options{}, fmt.Errorf("config: %w", err)
	}
	follow := true
	if c.Landmark.FollowSurface != nil {
		follow = *c.Landmark.FollowSurface
	}
	return landmark.Options{
		Radius:        c.Landmark.Radius,
		Scale:         c.Landmark.Scale,
		FollowSurface: follow,
		LabelPrefix:   c.Landmark.LabelPrefix,
		Locator:       strategy,
		Lookup:        lut,
		Logger:        logger,
	}, nil
}
