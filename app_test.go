package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/alucad/pkg/kernel/kerneltest"
	"github.com/chazu/alucad/pkg/kernel/sdfx"
)

// newTestApp returns an App on the bounding-box kernel, which keeps the
// pipeline tests fast and their coordinates exact.
func newTestApp(t *testing.T) (*App, *kerneltest.Kernel) {
	t.Helper()
	k := kerneltest.New()
	return NewApp(WithKernel(k)), k
}

func readExample(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("examples", name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// meshMinX returns the smallest X coordinate of a mesh.
func meshMinX(m MeshData) float32 {
	min := m.Vertices[0]
	for i := 3; i < len(m.Vertices); i += 3 {
		if m.Vertices[i] < min {
			min = m.Vertices[i]
		}
	}
	return min
}

func findMesh(t *testing.T, r EvalResult, part string) MeshData {
	t.Helper()
	for _, m := range r.Meshes {
		if m.PartName == part {
			return m
		}
	}
	t.Fatalf("no mesh for part %q", part)
	return MeshData{}
}

func requireClean(t *testing.T, r EvalResult) {
	t.Helper()
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
}

// TestE2EAutoExample exercises the full pipeline: Lisp source → engine →
// layout → composer → tessellate → meshes. This is the same path that the
// Evaluate binding takes.
func TestE2EAutoExample(t *testing.T) {
	app, _ := newTestApp(t)

	result := app.Evaluate(readExample(t, "auto.zy"))
	requireClean(t, result)

	if result.Layout != "auto" {
		t.Errorf("layout = %q, want auto", result.Layout)
	}
	if len(result.Meshes) != 9 {
		t.Fatalf("expected 9 meshes, got %d", len(result.Meshes))
	}

	expectedParts := map[string]bool{
		"gate#0/frame":          false,
		"gate#0/transom-strip":  false,
		"gate#0/transom-panel":  false,
		"gate#0/leaf-frame":     false,
		"gate#0/leaf-strip":     false,
		"gate#0/leaf-panel":     false,
		"rollingDoor#1/rails":   false,
		"rollingDoor#1/rollbox": false,
		"rollingDoor#1/curtain": false,
	}
	for _, m := range result.Meshes {
		if _, ok := expectedParts[m.PartName]; !ok {
			t.Errorf("unexpected part name: %q", m.PartName)
			continue
		}
		expectedParts[m.PartName] = true

		// Each mesh must have non-empty geometry.
		if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
			t.Errorf("part %q: empty geometry", m.PartName)
		}
		// Must have a color assigned.
		if m.Color == "" {
			t.Errorf("part %q: no color assigned", m.PartName)
		}
	}
	for name, found := range expectedParts {
		if !found {
			t.Errorf("missing mesh for part %q", name)
		}
	}

	// The shutter follows the stock gate: 1000 wide plus 100 gap.
	if got := meshMinX(findMesh(t, result, "rollingDoor#1/rails")); got != 1100 {
		t.Errorf("shutter rails start at x=%g, want 1100", got)
	}
}

func TestE2EGridExample(t *testing.T) {
	app, _ := newTestApp(t)

	result := app.Evaluate(readExample(t, "grid.zy"))
	requireClean(t, result)

	// Two gates and one enabled shutter.
	if len(result.Meshes) != 15 {
		t.Fatalf("expected 15 meshes, got %d", len(result.Meshes))
	}
	if got := meshMinX(findMesh(t, result, "gate#1/frame")); got != 1300 {
		t.Errorf("second gate starts at x=%g, want 1300", got)
	}
	findMesh(t, result, "rollingDoor#2/curtain")
}

func TestE2EManifestExamples(t *testing.T) {
	tests := []struct {
		file   string
		layout string
		meshes int
		part   string
		minX   float32
	}{
		{"showroom.yaml", "manual", 9, "rollingDoor#1/rails", 1500},
		{"row.yaml", "horizontal", 12, "gate#2/frame", 5900},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			app, _ := newTestApp(t)

			result := app.ComposeManifest(readExample(t, tt.file))
			requireClean(t, result)

			if result.Layout != tt.layout {
				t.Errorf("layout = %q, want %q", result.Layout, tt.layout)
			}
			if len(result.Meshes) != tt.meshes {
				t.Fatalf("expected %d meshes, got %d", tt.meshes, len(result.Meshes))
			}
			if got := meshMinX(findMesh(t, result, tt.part)); got != tt.minX {
				t.Errorf("%s starts at x=%g, want %g", tt.part, got, tt.minX)
			}
		})
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app, k := newTestApp(t)
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
	if k.Total() != 0 {
		t.Errorf("empty source made %d kernel calls", k.Total())
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app, _ := newTestApp(t)
	result := app.Evaluate(`(auto (model "gate"`)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2ESdfxShutter runs a real kernel at a coarse resolution.
func TestE2ESdfxShutter(t *testing.T) {
	app := NewApp(WithKernel(sdfx.New(sdfx.WithMeshCells(64))))

	result := app.Evaluate(`(horizontal (model "rollingDoor"))`)
	requireClean(t, result)

	rollbox := findMesh(t, result, "rollingDoor#0/rollbox")
	if len(rollbox.Indices) == 0 {
		t.Fatal("rollbox mesh has no triangles")
	}
	if x := meshMinX(rollbox); x < -50 || x > 50 {
		t.Errorf("rollbox starts at x=%g, want about 0", x)
	}

	out := filepath.Join(t.TempDir(), "shutter.stl")
	if err := app.Export(mustEvaluate(t, app, `(horizontal (model "rollingDoor"))`), out); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat %s: %v", out, err)
	}
	if info.Size() == 0 {
		t.Error("STL file is empty")
	}
}

func TestE2EExportFake(t *testing.T) {
	app, k := newTestApp(t)
	out := filepath.Join(t.TempDir(), "auto.stl")

	if err := app.Export(mustEvaluate(t, app, readExample(t, "auto.zy")), out); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read %s: %v", out, err)
	}
	if !strings.HasPrefix(string(data), "solid") {
		t.Errorf("unexpected STL content %q", data)
	}
	if k.Calls("stl") != 1 {
		t.Errorf("stl calls = %d, want 1", k.Calls("stl"))
	}
}
