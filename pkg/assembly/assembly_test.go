package assembly

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
	"github.com/chazu/alucad/pkg/kernel/kerneltest"
	"github.com/chazu/alucad/pkg/registry"
)

var equateEmpty = cmpopts.EquateEmpty()

func boolPtr(b bool) *bool { return &b }

func newComposer(t *testing.T) (*Composer, *kerneltest.Kernel) {
	t.Helper()
	k := kerneltest.New()
	return NewComposer(registry.Default(), k), k
}

// instanceOffsets returns the offset of each placed instance in order.
func instanceOffsets(a *Assembly) []kernel.Vec3 {
	var out []kernel.Vec3
	last := -1
	for _, p := range a.Parts {
		if p.Instance != last {
			out = append(out, p.Offset)
			last = p.Instance
		}
	}
	return out
}

// --- Placements ---

func TestPlacements(t *testing.T) {
	reg := registry.Default()
	gate := Item{Model: registry.Gate}
	door := Item{Model: registry.RollingDoor}

	tests := []struct {
		name     string
		strategy LayoutStrategy
		want     []Placement
	}{
		{
			name:     "auto defaults",
			strategy: Auto{},
			want: []Placement{
				{Model: "gate", Offset: kernel.V3(0, 0, 0)},
				{Model: "rollingDoor", Offset: kernel.V3(1100, 0, 0)},
			},
		},
		{
			name: "auto with wider gate",
			strategy: Auto{Overrides: map[string]AutoOverride{
				"gate": {Params: hardware.Params{"width": 1500}},
			}},
			want: []Placement{
				{Model: "gate", Params: hardware.Params{"width": 1500}, Offset: kernel.V3(0, 0, 0)},
				{Model: "rollingDoor", Offset: kernel.V3(1600, 0, 0)},
			},
		},
		{
			name: "auto skips only explicit disable",
			strategy: Auto{Overrides: map[string]AutoOverride{
				"gate":        {Enabled: boolPtr(false)},
				"rollingDoor": {Enabled: boolPtr(true)},
			}},
			want: []Placement{
				{Model: "rollingDoor", Offset: kernel.V3(0, 0, 0)},
			},
		},
		{
			name:     "default manual",
			strategy: DefaultManual(),
			want: []Placement{
				{Model: "gate", Offset: kernel.V3(0, 0, 0)},
				{Model: "rollingDoor", Offset: kernel.V3(1200, 0, 0)},
			},
		},
		{
			name: "manual falls back to default positions",
			strategy: Manual{Entries: []ManualEntry{
				{Model: "rollingDoor", Enabled: true},
				{Model: "gate", Enabled: false},
			}},
			want: []Placement{
				{Model: "rollingDoor", Offset: kernel.V3(1200, 0, 0)},
			},
		},
		{
			name: "horizontal",
			strategy: NewHorizontal(
				Item{Model: "gate", Params: hardware.Params{"width": 1200}},
				door,
				gate,
			),
			want: []Placement{
				{Model: "gate", Params: hardware.Params{"width": 1200}, Offset: kernel.V3(0, 0, 0)},
				{Model: "rollingDoor", Offset: kernel.V3(1300, 0, 0)},
				{Model: "gate", Offset: kernel.V3(2400, 0, 0)},
			},
		},
		{
			name:     "vertical",
			strategy: Vertical{Items: []Item{door, {Model: "gate", Params: hardware.Params{"height": 2500}}, door}, Spacing: 50},
			want: []Placement{
				{Model: "rollingDoor", Offset: kernel.V3(0, 0, 0)},
				{Model: "gate", Params: hardware.Params{"height": 2500}, Offset: kernel.V3(0, 2050, 0)},
				{Model: "rollingDoor", Offset: kernel.V3(0, 4600, 0)},
			},
		},
		{
			name:     "grid",
			strategy: NewGrid(gate, door, gate, door),
			want: []Placement{
				{Model: "gate", Offset: kernel.V3(0, 0, 0)},
				{Model: "rollingDoor", Offset: kernel.V3(1100, 0, 0)},
				{Model: "gate", Offset: kernel.V3(0, 2100, 0)},
				{Model: "rollingDoor", Offset: kernel.V3(1100, 2100, 0)},
			},
		},
		{
			name:     "empty horizontal",
			strategy: NewHorizontal(),
			want:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.strategy.Placements(reg)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, equateEmpty); diff != "" {
				t.Errorf("Placements() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlacementsRejectInvalidLayouts(t *testing.T) {
	reg := registry.Default()
	tests := []struct {
		name     string
		strategy LayoutStrategy
	}{
		{"grid without columns", Grid{Items: []Item{{Model: "gate"}}, Cols: 0}},
		{"grid with negative columns", Grid{Cols: -1}},
		{"unnamed list item", NewHorizontal(Item{})},
		{"unnamed manual entry", Manual{Entries: []ManualEntry{{Enabled: true}}}},
		{"nan spacing", Vertical{Items: []Item{{Model: "gate"}}, Spacing: math.NaN()}},
		{"infinite grid spacing", Grid{Cols: 1, XSpacing: math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.strategy.Placements(reg)
			assert.ErrorIs(t, err, ErrInvalidLayout)
		})
	}
}

func TestAutoRejectsUnknownOverride(t *testing.T) {
	_, err := Auto{Overrides: map[string]AutoOverride{"garageDoor": {}}}.Placements(registry.Default())
	assert.ErrorIs(t, err, registry.ErrUnknownModel)
}

func TestPlacementParamsAreCopies(t *testing.T) {
	params := hardware.Params{"width": 1200}
	h := NewHorizontal(Item{Model: "gate", Params: params})
	got, err := h.Placements(registry.Default())
	require.NoError(t, err)
	got[0].Params["width"] = 1
	assert.Equal(t, 1200.0, params["width"])
}

func TestDefaultPosition(t *testing.T) {
	door, ok := DefaultPosition(registry.RollingDoor)
	require.True(t, ok)
	assert.Equal(t, kernel.V3(1200, 0, 0), door)

	_, ok = DefaultPosition("carport")
	assert.False(t, ok)

	// DefaultManual hands out copies; editing one leaves the stock layout alone.
	m := DefaultManual()
	m.Entries[1].Position.X = 99
	door, _ = DefaultPosition(registry.RollingDoor)
	assert.Equal(t, 1200.0, door.X)
	assert.Equal(t, 1200.0, DefaultManual().Entries[1].Position.X)
}

// --- Composition ---

func TestComposeAutoDefaults(t *testing.T) {
	c, _ := newComposer(t)
	a, err := c.ComposeAuto(nil)
	require.NoError(t, err)

	assert.Equal(t, "auto", a.Layout)
	assert.Equal(t, 2, a.Instances())
	require.Len(t, a.Parts, 9)
	if diff := cmp.Diff([]kernel.Vec3{kernel.V3(0, 0, 0), kernel.V3(1100, 0, 0)}, instanceOffsets(a)); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}

	// The shutter's rails start where the cursor left off.
	rails := a.Parts[6]
	assert.Equal(t, "rollingDoor", rails.Model)
	assert.Equal(t, hardware.FragmentRails, rails.Fragment)
	min, max := rails.Solid.BoundingBox()
	assert.Equal(t, kernel.V3(1100, 0, 0), min)
	assert.Equal(t, kernel.V3(4100, 34, 2300), max)
}

func TestComposeGridThirdEntry(t *testing.T) {
	c, _ := newComposer(t)
	gate := Item{Model: registry.Gate}
	a, err := c.ComposeGrid([]Item{gate, gate, gate}, 2, 100, 100)
	require.NoError(t, err)
	offsets := instanceOffsets(a)
	require.Len(t, offsets, 3)
	assert.Equal(t, kernel.V3(0, 2100, 0), offsets[2])
}

func TestComposeManualGateDisabled(t *testing.T) {
	c, _ := newComposer(t)
	m := DefaultManual()
	m.Entries[0].Enabled = false

	a, err := c.ComposeManual(m)
	require.NoError(t, err)
	require.Len(t, a.Parts, 3)
	for _, p := range a.Parts {
		assert.Equal(t, registry.RollingDoor, p.Model)
		assert.Equal(t, kernel.V3(1200, 0, 0), p.Offset)
	}
	assert.Equal(t,
		[]string{hardware.FragmentRails, hardware.FragmentRollbox, hardware.FragmentCurtain},
		[]string{a.Parts[0].Fragment, a.Parts[1].Fragment, a.Parts[2].Fragment})
}

func TestComposeIsAllOrNothing(t *testing.T) {
	c, _ := newComposer(t)
	items := []Item{
		{Model: registry.Gate},
		{Model: registry.Gate, Params: hardware.Params{"openingHeight": 5000}},
	}
	a, err := c.ComposeHorizontal(items, 100)
	assert.Nil(t, a)
	require.ErrorIs(t, err, hardware.ErrInvalidParameters)
	assert.Contains(t, err.Error(), "compose: entry 1 (gate):")
}

func TestComposeUnknownModel(t *testing.T) {
	c, _ := newComposer(t)
	a, err := c.ComposeVertical([]Item{{Model: "garageDoor"}}, 100)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, registry.ErrUnknownModel)
}

func TestComposeInvalidLayoutBuildsNothing(t *testing.T) {
	c, k := newComposer(t)
	_, err := c.ComposeGrid([]Item{{Model: registry.Gate}}, 0, 100, 100)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	assert.Equal(t, 0, k.Total())
}

func TestComposeKernelError(t *testing.T) {
	k := kerneltest.New()
	k.FailOp = "box"
	c := NewComposer(registry.Default(), k)
	_, err := c.Compose(DefaultManual())
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "box", kerr.Op)
}

func TestComposeIsRepeatable(t *testing.T) {
	c, _ := newComposer(t)
	a, err := c.Compose(NewGrid(Item{Model: "gate"}, Item{Model: "rollingDoor"}))
	require.NoError(t, err)
	b, err := c.Compose(NewGrid(Item{Model: "gate"}, Item{Model: "rollingDoor"}))
	require.NoError(t, err)

	require.Len(t, b.Parts, len(a.Parts))
	for i := range a.Parts {
		amin, amax := a.Parts[i].Solid.BoundingBox()
		bmin, bmax := b.Parts[i].Solid.BoundingBox()
		assert.Equal(t, amin, bmin)
		assert.Equal(t, amax, bmax)
		assert.Equal(t, a.Parts[i].Fragment, b.Parts[i].Fragment)
	}
	assert.Len(t, a.Solids(), len(a.Parts))
}

func TestComposeLogsPlacements(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	c := NewComposer(registry.Default(), kerneltest.New(), WithLogger(logger))

	_, err := c.Compose(DefaultManual())
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "placed model"))
	assert.Contains(t, out, "composed assembly")
	assert.Contains(t, out, "rollingDoor")
}
