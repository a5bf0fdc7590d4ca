package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
	"github.com/chazu/alucad/pkg/kernel/kerneltest"
)

func TestDefaultCatalogue(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"gate", "rollingDoor"}, r.IDs())

	entries := r.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "Wicket gate", entries[0].Name)
	assert.Equal(t, "Roller shutter", entries[1].Name)

	assert.Equal(t, hardware.Params{
		"width": 1000, "height": 2700, "profile": 40, "openingHeight": 2100, "gap": 100,
	}, r.DefaultParams(Gate))
	assert.Equal(t, hardware.Params{
		"width": 3000, "height": 2600, "profile": 77, "railWidth": 83, "railDepth": 34, "rollboxHeight": 300,
	}, r.DefaultParams(RollingDoor))
}

func TestLookup(t *testing.T) {
	r := Default()
	e, err := r.Lookup(RollingDoor)
	require.NoError(t, err)
	assert.Equal(t, RollingDoor, e.ID)
	assert.NotNil(t, e.Generate)

	_, err = r.Lookup("garageDoor")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Contains(t, err.Error(), `"garageDoor"`)
}

func TestDefaultParamsUnknownIsEmpty(t *testing.T) {
	p := Default().DefaultParams("nope")
	assert.NotNil(t, p)
	assert.Empty(t, p)
}

func TestDefaultsAreNotShared(t *testing.T) {
	r := Default()
	p := r.DefaultParams(Gate)
	p["width"] = 1

	e, err := r.Lookup(Gate)
	require.NoError(t, err)
	e.Defaults["height"] = 1

	r.List()[0].Defaults["gap"] = 1

	assert.Equal(t, 1000.0, r.DefaultParams(Gate)["width"])
	assert.Equal(t, 2700.0, r.DefaultParams(Gate)["height"])
	assert.Equal(t, 100.0, r.DefaultParams(Gate)["gap"])
}

func TestNewCopiesCallerDefaults(t *testing.T) {
	defaults := hardware.Params{"size": 10}
	r := New(Entry{ID: "cube", Defaults: defaults})
	defaults["size"] = 20
	assert.Equal(t, 10.0, r.DefaultParams("cube")["size"])
}

func TestNewPanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		New(Entry{ID: "a"}, Entry{ID: "a"})
	})
	assert.Panics(t, func() {
		New(Entry{})
	})
}

func TestInstantiateMergesDefaults(t *testing.T) {
	var got hardware.Params
	r := New(Entry{
		ID:       "probe",
		Defaults: hardware.Params{"width": 1000, "height": 2000},
		Generate: func(_ kernel.Kernel, p hardware.Params) ([]hardware.Fragment, error) {
			got = p
			return nil, nil
		},
	})
	_, err := r.Instantiate(kerneltest.New(), "probe", hardware.Params{"width": 1200})
	require.NoError(t, err)
	assert.Equal(t, hardware.Params{"width": 1200, "height": 2000}, got)
	assert.Equal(t, 1000.0, r.DefaultParams("probe")["width"])
}

func TestInstantiateGate(t *testing.T) {
	frags, err := Default().Instantiate(kerneltest.New(), Gate, nil)
	require.NoError(t, err)
	assert.Len(t, frags, 6)
}

func TestInstantiateErrors(t *testing.T) {
	r := Default()
	k := kerneltest.New()

	_, err := r.Instantiate(k, "garageDoor", nil)
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = r.Instantiate(k, Gate, hardware.Params{"openingHeight": 2800})
	assert.ErrorIs(t, err, hardware.ErrInvalidParameters)
	assert.False(t, errors.Is(err, ErrUnknownModel))

	_, err = r.Instantiate(k, RollingDoor, hardware.Params{"openingHeight": 2000})
	assert.ErrorIs(t, err, hardware.ErrInvalidParameters, "gate fields are unknown to the shutter")
	assert.Equal(t, 0, k.Total())
}
