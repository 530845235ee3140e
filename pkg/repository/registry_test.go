package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"entitydb/pkg/clock"
	"entitydb/pkg/idgen"
	"entitydb/pkg/storageadapter"
)

func TestRegistry_SharesRepositoryAcrossOpens(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	opens := 0

	open := func() (*Repository, error) {
		opens++
		return Create(ctx, Options{
			Registry:     testRegistry(),
			IndexConfigs: testIndexConfigs(),
			Branch:       "main",
			Adapter:      storageadapter.NewMemory(),
			Clock:        clock.NewFixed(0),
			IDs:          &idgen.Sequential{Prefix: "c"},
		})
	}

	r1, err := reg.Open("proj", open)
	require.NoError(t, err)
	r2, err := reg.Open("proj", open)
	require.NoError(t, err)

	require.Same(t, r1, r2)
	require.Equal(t, 1, opens)
	require.Equal(t, 2, reg.RefCount("proj"))
}

func TestRegistry_ReleaseDropsEntryAtZero(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	open := func() (*Repository, error) {
		return Create(ctx, Options{
			Registry:     testRegistry(),
			IndexConfigs: testIndexConfigs(),
			Branch:       "main",
			Adapter:      storageadapter.NewMemory(),
			Clock:        clock.NewFixed(0),
			IDs:          &idgen.Sequential{Prefix: "c"},
		})
	}

	_, err := reg.Open("proj", open)
	require.NoError(t, err)
	_, err = reg.Open("proj", open)
	require.NoError(t, err)

	closed := 0
	closeFn := func(*Repository) error { closed++; return nil }

	require.NoError(t, reg.Release("proj", closeFn))
	require.Equal(t, 0, closed)
	require.Equal(t, 1, reg.RefCount("proj"))

	require.NoError(t, reg.Release("proj", closeFn))
	require.Equal(t, 1, closed)
	require.Equal(t, 0, reg.RefCount("proj"))
}

func TestRegistry_ReleaseUnopenedReturnsError(t *testing.T) {
	reg := NewRegistry()
	require.ErrorIs(t, reg.Release("missing", nil), ErrNotOpen)
}
