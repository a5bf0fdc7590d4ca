// Package config loads alucad settings using Viper. Values come from, in
// increasing priority: built-in defaults, a YAML file (alucad.yaml in the
// working directory unless a path is given), and ALUCAD_ environment
// variables, where ALUCAD_LAYOUT_GRID_COLS overrides layout.grid_cols.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/chazu/alucad/pkg/assembly"
	"github.com/chazu/alucad/pkg/engine"
	"github.com/chazu/alucad/pkg/kernel/sdfx"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ALUCAD"

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "alucad.yaml"

// Config is the decoded alucad.yaml plus ALUCAD_* environment overrides.
type Config struct {
	Kernel     KernelConfig     `mapstructure:"kernel"`
	Layout     LayoutConfig     `mapstructure:"layout"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Tessellate TessellateConfig `mapstructure:"tessellate"`
	Log        LogConfig        `mapstructure:"log"`
}

// KernelConfig tunes the sdfx kernel.
type KernelConfig struct {
	MeshCells int `mapstructure:"mesh_cells"`
}

// LayoutConfig holds the spacing defaults for list and grid layouts.
type LayoutConfig struct {
	Spacing     float64   `mapstructure:"spacing"`
	GridCols    int       `mapstructure:"grid_cols"`
	GridSpacing []float64 `mapstructure:"grid_spacing"`
}

// EngineConfig bounds script evaluation.
type EngineConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// TessellateConfig controls meshing for the App.
type TessellateConfig struct {
	// Workers bounds parallel meshing; 0 means one per CPU.
	Workers int `mapstructure:"workers"`
}

// LogConfig sets the CLI log level (debug, info, warn, error).
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NewViper returns a Viper instance carrying the defaults and the
// environment binding, ready for flags to be bound onto it.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("kernel.mesh_cells", sdfx.DefaultMeshCells)
	v.SetDefault("layout.spacing", assembly.DefaultSpacing)
	v.SetDefault("layout.grid_cols", assembly.DefaultGridCols)
	v.SetDefault("layout.grid_spacing", []float64{assembly.DefaultSpacing, assembly.DefaultSpacing})
	v.SetDefault("engine.timeout", engine.EvalTimeout)
	v.SetDefault("tessellate.workers", 0)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from path, or from DefaultFile when path is
// empty. A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith is Load on a caller-supplied Viper instance.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	if c.Kernel.MeshCells <= 0 {
		return fmt.Errorf("kernel.mesh_cells must be positive, got %d", c.Kernel.MeshCells)
	}
	if c.Layout.Spacing < 0 {
		return fmt.Errorf("layout.spacing must not be negative, got %g", c.Layout.Spacing)
	}
	if c.Layout.GridCols <= 0 {
		return fmt.Errorf("layout.grid_cols must be positive, got %d", c.Layout.GridCols)
	}
	if n := len(c.Layout.GridSpacing); n < 1 || n > 2 {
		return fmt.Errorf("layout.grid_spacing takes one or two values, got %d", n)
	}
	for _, s := range c.Layout.GridSpacing {
		if s < 0 {
			return fmt.Errorf("layout.grid_spacing must not be negative, got %g", s)
		}
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	if c.Tessellate.Workers < 0 {
		return fmt.Errorf("tessellate.workers must not be negative, got %d", c.Tessellate.Workers)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LayoutDefaults returns the settings layouts fall back to. A single grid
// spacing value applies to both axes.
func (c *Config) LayoutDefaults() assembly.Defaults {
	d := assembly.Defaults{
		Spacing:  c.Layout.Spacing,
		GridCols: c.Layout.GridCols,
	}
	switch len(c.Layout.GridSpacing) {
	case 1:
		d.GridXSpacing, d.GridYSpacing = c.Layout.GridSpacing[0], c.Layout.GridSpacing[0]
	case 2:
		d.GridXSpacing, d.GridYSpacing = c.Layout.GridSpacing[0], c.Layout.GridSpacing[1]
	}
	return d
}

// Workers resolves the tessellation worker count.
func (c *Config) Workers() int {
	if c.Tessellate.Workers > 0 {
		return c.Tessellate.Workers
	}
	return runtime.NumCPU()
}

// Level returns the parsed log level; Validate guarantees it parses.
func (c *Config) Level() log.Level {
	l, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return l
}
