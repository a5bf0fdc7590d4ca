package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/chazu/alucad/pkg/assembly"
	"github.com/chazu/alucad/pkg/config"
	"github.com/chazu/alucad/pkg/engine"
	"github.com/chazu/alucad/pkg/kernel"
	"github.com/chazu/alucad/pkg/kernel/sdfx"
	"github.com/chazu/alucad/pkg/registry"
	"github.com/chazu/alucad/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App turns assembly scripts and manifests into meshes and STL files. It
// is the backend shared by the CLI and any viewer front end.
type App struct {
	ctx      context.Context
	reg      *registry.Registry
	engine   *engine.Engine
	kernel   kernel.Kernel
	composer *assembly.Composer
	defaults assembly.Defaults
	workers  int
	logger   *log.Logger
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	RequestID string          `json:"requestId"`
	Layout    string          `json:"layout"`
	Meshes    []MeshData      `json:"meshes"`
	Errors    []EvalErrorData `json:"errors"`
	Warnings  []EvalErrorData `json:"warnings"`
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	cfg    *config.Config
	kernel kernel.Kernel
	reg    *registry.Registry
	logger *log.Logger
}

// WithConfig applies loaded settings: mesh resolution, layout defaults,
// evaluation timeout and tessellation workers.
func WithConfig(cfg *config.Config) AppOption {
	return func(o *appOptions) { o.cfg = cfg }
}

// WithKernel replaces the sdfx kernel.
func WithKernel(k kernel.Kernel) AppOption {
	return func(o *appOptions) { o.kernel = k }
}

// WithRegistry replaces the stock catalogue.
func WithRegistry(r *registry.Registry) AppOption {
	return func(o *appOptions) { o.reg = r }
}

// WithAppLogger sets the logger; by default the App is silent.
func WithAppLogger(l *log.Logger) AppOption {
	return func(o *appOptions) { o.logger = l }
}

// NewApp creates a new App with an engine and the sdfx kernel.
func NewApp(opts ...AppOption) *App {
	o := appOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.reg == nil {
		o.reg = registry.Default()
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	a := &App{
		ctx:      context.Background(),
		reg:      o.reg,
		defaults: assembly.StockDefaults(),
		logger:   o.logger,
	}
	engineOpts := []engine.Option{engine.WithRegistry(o.reg)}
	if o.cfg != nil {
		a.defaults = o.cfg.LayoutDefaults()
		a.workers = o.cfg.Workers()
		engineOpts = append(engineOpts, engine.WithDefaults(a.defaults), engine.WithTimeout(o.cfg.Engine.Timeout))
	}
	a.engine = engine.NewEngine(engineOpts...)

	a.kernel = o.kernel
	if a.kernel == nil {
		var kopts []sdfx.Option
		if o.cfg != nil {
			kopts = append(kopts, sdfx.WithMeshCells(o.cfg.Kernel.MeshCells))
		}
		a.kernel = sdfx.New(kopts...)
	}
	a.composer = assembly.NewComposer(o.reg, a.kernel, assembly.WithLogger(o.logger))
	return a
}

// startup is called by the viewer shell on app startup. The context is
// saved so long-running work can be cancelled with the window.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// Evaluate takes an assembly script and returns mesh data + errors.
// This is the primary binding called by the frontend editor.
func (a *App) Evaluate(source string) EvalResult {
	result := newResult()
	logger := a.logger.With("request", result.RequestID)

	// Step 1: Evaluate the Lisp source into a layout strategy.
	strategy, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		logger.Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the frontend format.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	if strategy == nil {
		return result
	}

	a.render(logger, strategy, &result)
	return result
}

// ComposeManifest takes a YAML manifest and returns mesh data + errors.
func (a *App) ComposeManifest(data string) EvalResult {
	result := newResult()
	logger := a.logger.With("request", result.RequestID)

	m, err := assembly.LoadManifest([]byte(data))
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	strategy, err := m.StrategyWith(a.defaults)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	a.render(logger, strategy, &result)
	return result
}

// render composes and tessellates strategy into result.
func (a *App) render(logger *log.Logger, strategy assembly.LayoutStrategy, result *EvalResult) {
	result.Layout = strategy.Name()

	// Step 3: Build every placement.
	asm, err := a.Build(strategy)
	if err != nil {
		logger.Error("compose failed", "layout", strategy.Name(), "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return
	}
	for _, p := range asm.Parts {
		if p.Solid.Parts() == 0 {
			result.Warnings = append(result.Warnings, EvalErrorData{
				Message: tessellate.PartName(p) + ": no geometry",
			})
		}
	}

	// Step 4: Tessellate the assembly into triangle meshes.
	meshes, err := tessellate.Tessellate(a.ctx, a.kernel, asm, a.workers)
	if err != nil {
		logger.Error("tessellate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return
	}

	// Step 5: Convert kernel meshes to the frontend MeshData format.
	for i, m := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	logger.Debug("rendered assembly", "layout", strategy.Name(), "meshes", len(result.Meshes))
}

// Build composes strategy against the App's catalogue and kernel.
func (a *App) Build(strategy assembly.LayoutStrategy) (*assembly.Assembly, error) {
	if strategy == nil {
		return nil, errors.New("no layout to build")
	}
	return a.composer.Compose(strategy)
}

// Export composes strategy and writes the whole assembly as one STL file.
func (a *App) Export(strategy assembly.LayoutStrategy, path string) error {
	exp, ok := a.kernel.(kernel.Exporter)
	if !ok {
		return fmt.Errorf("export: kernel %T cannot write STL", a.kernel)
	}
	asm, err := a.Build(strategy)
	if err != nil {
		return err
	}
	solid := a.kernel.Compound(asm.Solids()...)
	if solid.Parts() == 0 {
		return fmt.Errorf("export: %s layout produced no geometry", strategy.Name())
	}
	if err := exp.WriteSTL(solid, path); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	a.logger.Info("wrote STL", "path", path, "layout", strategy.Name(),
		"instances", asm.Instances(), "parts", len(asm.Parts))
	return nil
}

// Engine returns the script engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Registry returns the model catalogue.
func (a *App) Registry() *registry.Registry {
	return a.reg
}

// Defaults returns the layout defaults in effect.
func (a *App) Defaults() assembly.Defaults {
	return a.defaults
}

func newResult() EvalResult {
	return EvalResult{
		RequestID: uuid.NewString(),
		Meshes:    []MeshData{},
		Errors:    []EvalErrorData{},
		Warnings:  []EvalErrorData{},
	}
}
