package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/alucad/pkg/assembly"
	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
	"github.com/chazu/alucad/pkg/registry"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms alucad Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: x-spacing -> x_spacing
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpModel wraps one model reference with its parameter overrides.
type sexpModel struct {
	item    assembly.Item
	enabled *bool
}

func (m *sexpModel) SexpString(ps *zygo.PrintState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "(model %q", m.item.Model)
	for _, k := range m.item.Params.Keys() {
		fmt.Fprintf(&sb, " :%s %g", k, m.item.Params[k])
	}
	sb.WriteString(")")
	return sb.String()
}
func (m *sexpModel) Type() *zygo.RegisteredType { return nil }

func (m *sexpModel) isEnabled() bool {
	return m.enabled == nil || *m.enabled
}

// sexpPlace wraps a manual layout entry.
type sexpPlace struct {
	entry assembly.ManualEntry
}

func (p *sexpPlace) SexpString(ps *zygo.PrintState) string {
	if p.entry.Position == nil {
		return fmt.Sprintf("(place %q)", p.entry.Model)
	}
	return fmt.Sprintf("(place %q :at %v)", p.entry.Model, *p.entry.Position)
}
func (p *sexpPlace) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a kernel.Vec3.
type sexpVec3 struct {
	vec kernel.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpLayout wraps a finished layout strategy.
type sexpLayout struct {
	strategy assembly.LayoutStrategy
}

func (l *sexpLayout) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s ...)", l.strategy.Name())
}
func (l *sexpLayout) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string // keyword names in source order
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if _, seen := result.kw[name]; !seen {
				result.order = append(result.order, name)
			}
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// only rejects keywords outside allowed.
func (a kwArgs) only(form string, allowed ...string) error {
	for _, k := range a.order {
		ok := false
		for _, want := range allowed {
			if k == want {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s: unknown keyword :%s", form, k)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a whole number.
func toInt(s zygo.Sexp) (int, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected whole number, got %g", f)
	}
	return int(f), nil
}

// toBool extracts a boolean from a Sexp.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_gate) and plain strings ("gate").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// modelKeyword recognises the (model :gate ...) spelling: a leading keyword
// naming a catalogue entry is the model id, not a parameter. It returns the
// id and the remaining args, or "" and args unchanged.
func modelKeyword(reg *registry.Registry, args []zygo.Sexp) (string, []zygo.Sexp) {
	if len(args) == 0 {
		return "", args
	}
	name, ok := isKW(args[0])
	if !ok {
		return "", args
	}
	if _, err := reg.Lookup(name); err != nil {
		return "", args
	}
	return name, args[1:]
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (kernel.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return kernel.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// flatten expands list and array arguments one level so layouts accept
// both (grid (model ..) (model ..)) and (grid (list (model ..) ..)).
func flatten(args []zygo.Sexp) ([]zygo.Sexp, error) {
	var out []zygo.Sexp
	for _, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

// paramName maps a keyword to a parameter name: opening-height and
// opening_height both become openingHeight.
func paramName(kw string) string {
	var sb strings.Builder
	upper := false
	for _, r := range kw {
		if r == '-' || r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// toModels converts layout arguments to model items.
func toModels(form string, args []zygo.Sexp) ([]*sexpModel, error) {
	flat, err := flatten(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", form, err)
	}
	out := make([]*sexpModel, 0, len(flat))
	for i, a := range flat {
		m, ok := a.(*sexpModel)
		if !ok {
			return nil, fmt.Errorf("%s: entry %d: expected (model ...), got %T (%s)", form, i, a, a.SexpString(nil))
		}
		out = append(out, m)
	}
	return out, nil
}

func enabledItems(models []*sexpModel) []assembly.Item {
	items := make([]assembly.Item, 0, len(models))
	for _, m := range models {
		if m.isEnabled() {
			items = append(items, m.item)
		}
	}
	return items
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// collector accumulates the layouts a script builds.
type collector struct {
	reg      *registry.Registry
	defaults assembly.Defaults
	layouts  []assembly.LayoutStrategy
}

func (c *collector) add(s assembly.LayoutStrategy) zygo.Sexp {
	c.layouts = append(c.layouts, s)
	return &sexpLayout{strategy: s}
}

// registerBuiltins installs the layout DSL into a zygomys environment.
// Layout forms record their strategy in c as they are evaluated.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, c *collector) {

	// -----------------------------------------------------------------------
	// (model "gate" :width 1200 :opening-height 2000 :enabled true)
	// (model :gate :width 1200)
	// -----------------------------------------------------------------------
	env.AddFunction("model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		id, args := modelKeyword(c.reg, args)
		pa := parseArgs(args)
		if id == "" {
			if len(pa.positional) != 1 {
				return zygo.SexpNull, fmt.Errorf("model requires exactly one model name, got %d", len(pa.positional))
			}
			s, err := toKeywordString(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("model: name: %w", err)
			}
			if _, err := c.reg.Lookup(s); err != nil {
				return zygo.SexpNull, fmt.Errorf("model: %w (known: %s)", err, strings.Join(c.reg.IDs(), ", "))
			}
			id = s
		} else if len(pa.positional) != 0 {
			return zygo.SexpNull, fmt.Errorf("model requires exactly one model name, got %d", len(pa.positional)+1)
		}

		m := &sexpModel{item: assembly.Item{Model: id}}
		for _, kw := range pa.order {
			v := pa.kw[kw]
			if kw == "enabled" {
				b, err := toBool(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("model: enabled: %w", err)
				}
				m.enabled = &b
				continue
			}
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("model: %s: %w", kw, err)
			}
			if m.item.Params == nil {
				m.item.Params = hardware.Params{}
			}
			m.item.Params[paramName(kw)] = f
		}
		return m, nil
	})

	// -----------------------------------------------------------------------
	// (vec3 1200 0 0)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: kernel.V3(x, y, z)}, nil
	})

	// -----------------------------------------------------------------------
	// (place (model "rollingDoor") :at (vec3 1200 0 0) :enabled true)
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only("place", "at", "enabled"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires a model as first argument")
		}
		m, ok := pa.positional[0].(*sexpModel)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("place: expected (model ...), got %T (%s)",
				pa.positional[0], pa.positional[0].SexpString(nil))
		}

		entry := assembly.ManualEntry{Model: m.item.Model, Params: m.item.Params, Enabled: m.isEnabled()}
		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
			entry.Position = &vec
		}
		if v, ok := pa.kw["enabled"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: enabled: %w", err)
			}
			entry.Enabled = b
		}
		return &sexpPlace{entry: entry}, nil
	})

	// -----------------------------------------------------------------------
	// (manual (place (model "gate")) (place (model "rollingDoor") :at (vec3 1200 0 0)))
	// -----------------------------------------------------------------------
	env.AddFunction("manual", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		flat, err := flatten(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("manual: %w", err)
		}
		if len(flat) == 0 {
			return c.add(assembly.DefaultManual()), nil
		}
		var m assembly.Manual
		for i, a := range flat {
			switch v := a.(type) {
			case *sexpPlace:
				m.Entries = append(m.Entries, v.entry)
			case *sexpModel:
				m.Entries = append(m.Entries, assembly.ManualEntry{
					Model: v.item.Model, Params: v.item.Params, Enabled: v.isEnabled(),
				})
			default:
				return zygo.SexpNull, fmt.Errorf("manual: entry %d: expected (place ...) or (model ...), got %T (%s)",
					i, a, a.SexpString(nil))
			}
		}
		return c.add(m), nil
	})

	// -----------------------------------------------------------------------
	// (auto (model "gate" :width 1500) (model "rollingDoor" :enabled false))
	// -----------------------------------------------------------------------
	env.AddFunction("auto", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		models, err := toModels("auto", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		a := assembly.Auto{Overrides: make(map[string]assembly.AutoOverride, len(models))}
		for _, m := range models {
			if _, dup := a.Overrides[m.item.Model]; dup {
				return zygo.SexpNull, fmt.Errorf("auto: model %q given twice", m.item.Model)
			}
			a.Overrides[m.item.Model] = assembly.AutoOverride{Enabled: m.enabled, Params: m.item.Params}
		}
		return c.add(a), nil
	})

	// -----------------------------------------------------------------------
	// (horizontal :spacing 100 (model "gate") (model "rollingDoor"))
	// (vertical :spacing 100 (model "gate") (model "rollingDoor"))
	// -----------------------------------------------------------------------
	list := func(form string, build func(items []assembly.Item, spacing float64) assembly.LayoutStrategy) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if err := pa.only(form, "spacing"); err != nil {
				return zygo.SexpNull, err
			}
			spacing := c.defaults.Spacing
			if v, ok := pa.kw["spacing"]; ok {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: spacing: %w", form, err)
				}
				spacing = f
			}
			models, err := toModels(form, pa.positional)
			if err != nil {
				return zygo.SexpNull, err
			}
			return c.add(build(enabledItems(models), spacing)), nil
		}
	}
	env.AddFunction("horizontal", list("horizontal", func(items []assembly.Item, spacing float64) assembly.LayoutStrategy {
		return assembly.Horizontal{Items: items, Spacing: spacing}
	}))
	env.AddFunction("vertical", list("vertical", func(items []assembly.Item, spacing float64) assembly.LayoutStrategy {
		return assembly.Vertical{Items: items, Spacing: spacing}
	}))

	// -----------------------------------------------------------------------
	// (grid :cols 2 :x-spacing 100 :y-spacing 100 (model "gate") ...)
	// -----------------------------------------------------------------------
	env.AddFunction("grid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.only("grid", "cols", "spacing", "x-spacing", "y-spacing"); err != nil {
			return zygo.SexpNull, err
		}
		g := assembly.Grid{Cols: c.defaults.GridCols, XSpacing: c.defaults.GridXSpacing, YSpacing: c.defaults.GridYSpacing}
		if v, ok := pa.kw["cols"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("grid: cols: %w", err)
			}
			g.Cols = n
		}
		if g.Cols <= 0 {
			return zygo.SexpNull, fmt.Errorf("grid: cols must be positive, got %d", g.Cols)
		}
		spacing := func(kw string, dst ...*float64) error {
			v, ok := pa.kw[kw]
			if !ok {
				return nil
			}
			f, err := toFloat64(v)
			if err != nil {
				return fmt.Errorf("grid: %s: %w", kw, err)
			}
			for _, d := range dst {
				*d = f
			}
			return nil
		}
		// Axis-specific spacing wins over the shared one.
		if err := spacing("spacing", &g.XSpacing, &g.YSpacing); err != nil {
			return zygo.SexpNull, err
		}
		if err := spacing("x-spacing", &g.XSpacing); err != nil {
			return zygo.SexpNull, err
		}
		if err := spacing("y-spacing", &g.YSpacing); err != nil {
			return zygo.SexpNull, err
		}

		models, err := toModels("grid", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}
		g.Items = enabledItems(models)
		return c.add(g), nil
	})
}
