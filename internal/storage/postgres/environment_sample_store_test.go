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

func TestEnvironmentSampleStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEnvironmentSampleStore(pool)
	ctx := context.Background()

	base := time.Date(2022, 9, 26, 12, 0, 0, 0, time.UTC)
	samples := []domain.EnvironmentSample{
		{Timestamp: base.Add(6 * time.Hour), ShearMagnitudeKt: 8.7, ShearDirectionDeg: 92},
		{Timestamp: base, ShearMagnitudeKt: 10.2, ShearDirectionDeg: 85},
	}
	require.NoError(t, store.InsertBulk(ctx, "AL092022", samples))

	got, err := store.GetByStormCode(ctx, "AL092022")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by timestamp regardless of insert order.
	require.True(t, got[0].Timestamp.Equal(base))
	require.Equal(t, 10.2, got[0].ShearMagnitudeKt)
	require.Equal(t, 85.0, got[0].ShearDirectionDeg)
	require.True(t, got[1].Timestamp.Equal(base.Add(6*time.Hour)))
}

func TestEnvironmentSampleStore_DuplicateRejected(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEnvironmentSampleStore(pool)
	ctx := context.Background()

	base := time.Date(2022, 9, 26, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, "AL092022", []domain.EnvironmentSample{
		{Timestamp: base, ShearMagnitudeKt: 10.2, ShearDirectionDeg: 85},
	}))

	err := store.InsertBulk(ctx, "AL092022", []domain.EnvironmentSample{
		{Timestamp: base, ShearMagnitudeKt: 11.0, ShearDirectionDeg: 90},
	})
	require.True(t, errors.Is(err, storage.ErrDuplicateKey))

	// Same timestamp under a different storm is fine.
	require.NoError(t, store.InsertBulk(ctx, "AL132022", []domain.EnvironmentSample{
		{Timestamp: base, ShearMagnitudeKt: 14.9, ShearDirectionDeg: 220},
	}))
}
