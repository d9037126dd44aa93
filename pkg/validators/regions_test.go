// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocations struct {
	names []string
	err   error
	calls int
}

func (f *fakeLocations) ListLocations(context.Context) ([]string, error) {
	f.calls++
	return f.names, f.err
}

func TestRegionwiseEngines(t *testing.T) {
	locations := &fakeLocations{names: []string{"eastus", "westus2", "northeurope"}}
	validate := RegionwiseEngines(locations)

	ns := &Namespace{RegionwiseEngines: []string{"EastUS=3", " westus2 = 1 "}}
	require.NoError(t, validate(context.Background(), ns))
	assert.Equal(t, []RegionEngines{
		{Region: "eastus", EngineInstances: 3},
		{Region: "westus2", EngineInstances: 1},
	}, ns.RegionEngines)
	assert.Equal(t, 1, locations.calls)
}

func TestRegionwiseEngines_Errors(t *testing.T) {
	locations := &fakeLocations{names: []string{"eastus"}}
	validate := RegionwiseEngines(locations)
	ctx := context.Background()

	tests := []struct {
		item string
		want string
	}{
		{"eastus", "Expected region=engineCount"},
		{"=3", "cannot be empty"},
		{"eastus=", "cannot be empty"},
		{"mars=1", "Expected Azure region"},
		{"eastus=three", "Expected integer"},
	}
	for _, tt := range tests {
		err := validate(ctx, &Namespace{RegionwiseEngines: []string{tt.item}})
		assert.Contains(t, requireInvalid(t, err).Message, tt.want, tt.item)
	}
}

func TestRegionwiseEngines_SkipsLookupWhenAbsent(t *testing.T) {
	locations := &fakeLocations{err: errors.New("should not be called")}
	require.NoError(t, RegionwiseEngines(locations)(context.Background(), &Namespace{}))
	assert.Zero(t, locations.calls)
}

func TestRegionwiseEngines_LookupFailure(t *testing.T) {
	boom := errors.New("subscription not found")
	err := RegionwiseEngines(&fakeLocations{err: boom})(context.Background(), &Namespace{RegionwiseEngines: []string{"eastus=1"}})
	assert.ErrorIs(t, err, boom)
}
