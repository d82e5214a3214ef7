package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/probe"
)

// Output formats.
const (
	FormatJSON   = "json"
	FormatBinary = "binary"
)

// Bounds is a volume box as written in the config file.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// AABB converts b to a probe volume box.
func (b Bounds) AABB() probe.AABB {
	return probe.AABB{Min: math3d.V3FromArray(b.Min), Max: math3d.V3FromArray(b.Max)}
}

// Config holds the bake settings.
type Config struct {
	// Capture settings
	Near       float64  `json:"near"`
	Far        float64  `json:"far"`
	Resolution int      `json:"resolution"`
	Exclude    []string `json:"exclude"`

	// Volume settings
	Density float64 `json:"density"`
	Bounds  *Bounds `json:"bounds"` // nil: use the scene bounds

	// Output settings
	Workers int    `json:"workers"`
	Format  string `json:"format"`
	Output  string `json:"output"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Near       float64
	Far        float64
	Resolution int
	Density    float64
	Workers    int
	Format     string
	Output     string
	Exclude    []string
	Bounds     *Bounds
}

// Resolve applies non-zero flags over the file values, then fills any
// remaining zero fields with defaults.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Near > 0 {
		c.Near = flags.Near
	}
	if flags.Far > 0 {
		c.Far = flags.Far
	}
	if flags.Resolution > 0 {
		c.Resolution = flags.Resolution
	}
	if flags.Density > 0 {
		c.Density = flags.Density
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if len(flags.Exclude) > 0 {
		c.Exclude = flags.Exclude
	}
	if flags.Bounds != nil {
		c.Bounds = flags.Bounds
	}

	defaults := cubemap.DefaultCaptureParams()
	if c.Near <= 0 {
		c.Near = defaults.Near
	}
	if c.Far <= 0 {
		c.Far = defaults.Far
	}
	if c.Resolution <= 0 {
		c.Resolution = defaults.Resolution
	}
	if c.Density <= 0 {
		c.Density = 1
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == "" {
		c.Output = "probes.json"
		if c.Format == FormatBinary {
			c.Output = "probes.shpv"
		}
	}
}

// Validate reports settings a bake cannot use.
func (c *Config) Validate() error {
	if c.Format != FormatJSON && c.Format != FormatBinary {
		return fmt.Errorf("config: format %q (want %s or %s)", c.Format, FormatJSON, FormatBinary)
	}
	if err := c.CaptureParams().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Bounds != nil {
		if _, err := probe.GridDims(c.Bounds.AABB(), c.Density); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// CaptureParams returns the per-probe capture settings.
func (c *Config) CaptureParams() cubemap.CaptureParams {
	return cubemap.CaptureParams{
		Near:       c.Near,
		Far:        c.Far,
		Resolution: c.Resolution,
		Exclude:    c.Exclude,
	}
}

// VolumeBounds returns the configured box, or scene when none is set.
func (c *Config) VolumeBounds(scene probe.AABB) probe.AABB {
	if c.Bounds != nil {
		return c.Bounds.AABB()
	}
	return scene
}
