package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

func TestIngestProgressStore_LastIngested(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIngestProgressStore(pool)
	ctx := context.Background()

	_, err := store.GetLastIngested(ctx, domain.BasinAtlantic)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	first := time.Date(2022, 9, 26, 12, 0, 0, 0, time.UTC).UnixMilli()
	require.NoError(t, store.SetLastIngested(ctx, &storage.IngestProgress{
		Basin:         domain.BasinAtlantic,
		LastTimestamp: first,
	}))

	got, err := store.GetLastIngested(ctx, domain.BasinAtlantic)
	require.NoError(t, err)
	require.Equal(t, domain.BasinAtlantic, got.Basin)
	require.Equal(t, first, got.LastTimestamp)

	// Saving again overwrites rather than conflicting.
	second := time.Date(2022, 9, 28, 18, 0, 0, 0, time.UTC).UnixMilli()
	require.NoError(t, store.SetLastIngested(ctx, &storage.IngestProgress{
		Basin:         domain.BasinAtlantic,
		LastTimestamp: second,
	}))

	got, err = store.GetLastIngested(ctx, domain.BasinAtlantic)
	require.NoError(t, err)
	require.Equal(t, second, got.LastTimestamp)

	// Progress is tracked per basin.
	_, err = store.GetLastIngested(ctx, domain.BasinEastPacific)
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestIngestProgressStore_SeenStorms(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIngestProgressStore(pool)
	ctx := context.Background()

	seen, err := store.IsStormSeen(ctx, "AL092022")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, store.MarkStormSeen(ctx, "AL092022"))
	require.NoError(t, store.MarkStormSeen(ctx, "AL072022"))

	// Marking twice is a no-op, not an error.
	require.NoError(t, store.MarkStormSeen(ctx, "AL092022"))

	seen, err = store.IsStormSeen(ctx, "AL092022")
	require.NoError(t, err)
	require.True(t, seen)

	codes, err := store.LoadSeenStorms(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AL072022", "AL092022"}, codes)
}
