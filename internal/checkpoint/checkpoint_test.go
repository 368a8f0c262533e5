package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koustreak/StorRi/internal/checkpoint"
	"github.com/koustreak/StorRi/internal/errs"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()

	require.NoError(t, store.Save(ctx, "photos-listing", "marker-17"))

	got, err := store.Load(ctx, "photos-listing")
	require.NoError(t, err)
	require.Equal(t, "marker-17", got)

	// Saving again replaces; an empty marker records completion and must
	// round-trip as empty, not as missing.
	require.NoError(t, store.Save(ctx, "photos-listing", ""))
	got, err = store.Load(ctx, "photos-listing")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryStoreMissingName(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()

	_, err := store.Load(ctx, "never-saved")
	require.Error(t, err)
	require.True(t, errs.IsNotFound(err))
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()

	require.NoError(t, store.Save(ctx, "job", "m1"))
	require.NoError(t, store.Delete(ctx, "job"))

	_, err := store.Load(ctx, "job")
	require.True(t, errs.IsNotFound(err))

	// Deleting a missing name is not an error.
	require.NoError(t, store.Delete(ctx, "job"))
}
