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

func testStorm(code, name string, year int, basin domain.Basin, start time.Time) *domain.Storm {
	return &domain.Storm{
		Code:      code,
		Name:      name,
		Year:      year,
		Basin:     basin,
		StartTime: start,
		EndTime:   start.Add(6 * 24 * time.Hour),
	}
}

func TestStormStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStormStore(pool)
	ctx := context.Background()

	start := time.Date(2022, 9, 23, 6, 0, 0, 0, time.UTC)
	storm := testStorm("AL092022", "IAN", 2022, domain.BasinAtlantic, start)
	require.NoError(t, store.Insert(ctx, storm))

	got, err := store.GetByCode(ctx, "AL092022")
	require.NoError(t, err)
	require.Equal(t, "IAN", got.Name)
	require.Equal(t, 2022, got.Year)
	require.Equal(t, domain.BasinAtlantic, got.Basin)
	require.True(t, got.StartTime.Equal(start))
	require.True(t, got.EndTime.Equal(start.Add(6*24*time.Hour)))

	// Duplicate code rejected.
	err = store.Insert(ctx, testStorm("AL092022", "IAN", 2022, domain.BasinAtlantic, start))
	require.True(t, errors.Is(err, storage.ErrDuplicateKey))

	// Unknown code not found.
	_, err = store.GetByCode(ctx, "AL999999")
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestStormStore_ListByBasin(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStormStore(pool)
	ctx := context.Background()

	base := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, testStorm("AL092022", "IAN", 2022, domain.BasinAtlantic, base.AddDate(0, 3, 22))))
	require.NoError(t, store.Insert(ctx, testStorm("AL072022", "FIONA", 2022, domain.BasinAtlantic, base.AddDate(0, 3, 13))))
	require.NoError(t, store.Insert(ctx, testStorm("EP102022", "KAY", 2022, domain.BasinEastPacific, base.AddDate(0, 3, 3))))

	atlantic, err := store.ListByBasin(ctx, domain.BasinAtlantic)
	require.NoError(t, err)
	require.Len(t, atlantic, 2)
	require.Equal(t, "AL072022", atlantic[0].Code)
	require.Equal(t, "AL092022", atlantic[1].Code)

	pacific, err := store.ListByBasin(ctx, domain.BasinEastPacific)
	require.NoError(t, err)
	require.Len(t, pacific, 1)
	require.Equal(t, "EP102022", pacific[0].Code)
}

func TestStormStore_ListByYearRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStormStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testStorm("AL082021", "GRACE", 2021, domain.BasinAtlantic, time.Date(2021, 8, 13, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, store.Insert(ctx, testStorm("AL092022", "IAN", 2022, domain.BasinAtlantic, time.Date(2022, 9, 23, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, store.Insert(ctx, testStorm("AL122023", "LEE", 2023, domain.BasinAtlantic, time.Date(2023, 9, 5, 0, 0, 0, 0, time.UTC))))

	got, err := store.ListByYearRange(ctx, 2021, 2022)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "AL082021", got[0].Code)
	require.Equal(t, "AL092022", got[1].Code)
}
