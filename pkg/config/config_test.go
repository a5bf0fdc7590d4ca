package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/alucad/pkg/assembly"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Kernel.MeshCells)
	assert.Equal(t, 100.0, cfg.Layout.Spacing)
	assert.Equal(t, 2, cfg.Layout.GridCols)
	assert.Equal(t, []float64{100, 100}, cfg.Layout.GridSpacing)
	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 0, cfg.Tessellate.Workers)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, assembly.StockDefaults(), cfg.LayoutDefaults())
	assert.Equal(t, runtime.NumCPU(), cfg.Workers())
	assert.Equal(t, log.InfoLevel, cfg.Level())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
kernel:
  mesh_cells: 64
layout:
  spacing: 250
  grid_cols: 3
  grid_spacing: [50, 75]
engine:
  timeout: 2s
tessellate:
  workers: 4
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Kernel.MeshCells)
	assert.Equal(t, 2*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 4, cfg.Workers())
	assert.Equal(t, log.DebugLevel, cfg.Level())
	assert.Equal(t, assembly.Defaults{Spacing: 250, GridCols: 3, GridXSpacing: 50, GridYSpacing: 75}, cfg.LayoutDefaults())
}

func TestLoadDefaultFileFromWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "layout:\n  grid_cols: 4\n")
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Layout.GridCols)
}

func TestSingleGridSpacingAppliesToBothAxes(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "layout:\n  grid_spacing: [30]\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	d := cfg.LayoutDefaults()
	assert.Equal(t, 30.0, d.GridXSpacing)
	assert.Equal(t, 30.0, d.GridYSpacing)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ALUCAD_LAYOUT_GRID_COLS", "5")
	t.Setenv("ALUCAD_KERNEL_MESH_CELLS", "32")
	t.Setenv("ALUCAD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Layout.GridCols)
	assert.Equal(t, 32, cfg.Kernel.MeshCells)
	assert.Equal(t, log.WarnLevel, cfg.Level())
}

func TestEnvironmentBeatsFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "engine:\n  timeout: 2s\n")
	t.Setenv("ALUCAD_ENGINE_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.Timeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero mesh cells", "kernel:\n  mesh_cells: 0\n", "kernel.mesh_cells"},
		{"negative spacing", "layout:\n  spacing: -1\n", "layout.spacing"},
		{"zero cols", "layout:\n  grid_cols: 0\n", "layout.grid_cols"},
		{"three grid spacings", "layout:\n  grid_spacing: [1, 2, 3]\n", "one or two values"},
		{"negative grid spacing", "layout:\n  grid_spacing: [10, -1]\n", "layout.grid_spacing"},
		{"zero timeout", "engine:\n  timeout: 0s\n", "engine.timeout"},
		{"negative workers", "tessellate:\n  workers: -2\n", "tessellate.workers"},
		{"unknown level", "log:\n  level: chatty\n", "log.level"},
		{"not yaml", "kernel: [unclosed\n", "config: read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, t.TempDir(), tt.body))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read")
}
