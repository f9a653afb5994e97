package config

import (
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/pickandpaint/pkg/locate"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, 0, c.Landmark.Radius)
	assert.Equal(t, 2.0, c.Landmark.Scale)
	require.NotNil(t, c.Landmark.FollowSurface)
	assert.True(t, *c.Landmark.FollowSurface)
	assert.Equal(t, "F", c.Landmark.LabelPrefix)
	assert.Equal(t, "brute", c.Locator)
	assert.Equal(t, 40, c.Mesh.Cells)
	assert.Equal(t, 1e-6, c.Mesh.WeldTolerance)

	d, err := c.EvalTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	l, err := c.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "session.toml", `
locator = "rtree"
log_level = "debug"

[landmark]
radius = 3
scale = 1.5
follow_surface = false
label_prefix = "L"

[roi]
inside = "#00FF00"

[engine]
timeout = "250ms"
`)
	c, err := Load(path)
	require.NoError(t, err)
	c.Resolve(Flags{})
	require.NoError(t, c.Validate())

	assert.Equal(t, "rtree", c.Locator)
	assert.Equal(t, 3, c.Landmark.Radius)
	assert.False(t, *c.Landmark.FollowSurface, "explicit false survives Resolve")
	assert.Equal(t, "#0000FF", c.ROI.Outside)

	opts, err := c.SessionOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, locate.StrategyRTree, opts.Locator)
	assert.Equal(t, 1.5, opts.Scale)
	assert.Equal(t, "L", opts.LabelPrefix)
	assert.False(t, opts.FollowSurface)
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, opts.Lookup.Map(1))
	assert.Equal(t, color.NRGBA{B: 0xff, A: 0xff}, opts.Lookup.Map(0))

	d, err := c.EvalTimeout()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "session.yml", `
landmark:
  radius: 2
  label_prefix: P
mesh:
  cells: 64
`)
	c, err := Load(path)
	require.NoError(t, err)
	c.Resolve(Flags{})
	require.NoError(t, c.Validate())
	assert.Equal(t, 2, c.Landmark.Radius)
	assert.Equal(t, "P", c.Landmark.LabelPrefix)
	assert.Equal(t, 64, c.Mesh.Cells)
	assert.True(t, *c.Landmark.FollowSurface)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "session.json", `{}`))
	assert.ErrorContains(t, err, "unsupported extension")

	_, err = Load(writeFile(t, "broken.toml", `radius = [`))
	assert.ErrorContains(t, err, "config: parse")
}

func TestFlagsOverride(t *testing.T) {
	c := Config{Locator: "brute", LogLevel: "warn"}
	c.Resolve(Flags{Locator: "rtree", LogLevel: "error", Radius: 4})
	assert.Equal(t, "rtree", c.Locator)
	assert.Equal(t, "error", c.LogLevel)
	assert.Equal(t, 4, c.Landmark.Radius)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative radius", func(c *Config) { c.Landmark.Radius = -1 }, "landmark.radius"},
		{"negative scale", func(c *Config) { c.Landmark.Scale = -2 }, "landmark.scale"},
		{"locator", func(c *Config) { c.Locator = "octree" }, "unknown strategy"},
		{"color", func(c *Config) { c.ROI.Inside = "red" }, "roi.inside"},
		{"timeout", func(c *Config) { c.Engine.Timeout = "soon" }, "engine.timeout"},
		{"zero timeout", func(c *Config) { c.Engine.Timeout = "0s" }, "engine.timeout"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
