package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
)

func TestMemoryInstallationRepo_CreateDeactivatesPrevious(t *testing.T) {
	repo := NewMemoryInstallationRepo()
	ctx := context.Background()

	first := domain.Installation{ID: 1, LocationID: "loc-1", IsActive: true, InstalledAt: time.Now().Add(-time.Hour)}
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	second := domain.Installation{ID: 2, LocationID: "loc-1", IsActive: true, InstalledAt: time.Now()}
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	active, err := repo.GetActiveByLocation(ctx, "loc-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), active.ID)
}

func TestMemoryInstallationRepo_CreateLeavesOtherLocationsAlone(t *testing.T) {
	repo := NewMemoryInstallationRepo()
	ctx := context.Background()

	_, err := repo.Create(ctx, domain.Installation{ID: 1, LocationID: "loc-1", IsActive: true, InstalledAt: time.Now()})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.Installation{ID: 2, LocationID: "loc-2", IsActive: true, InstalledAt: time.Now()})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, stored.IsActive)
}

func TestMemoryInstallationRepo_GetActiveByLocationAnyLocation(t *testing.T) {
	repo := NewMemoryInstallationRepo()
	ctx := context.Background()

	_, err := repo.Create(ctx, domain.Installation{ID: 1, LocationID: "loc-1", IsActive: true, InstalledAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.Installation{ID: 2, LocationID: "loc-2", IsActive: true, InstalledAt: time.Now()})
	require.NoError(t, err)

	// Empty location id means "any"; most recent active wins.
	active, err := repo.GetActiveByLocation(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(2), active.ID)

	_, err = repo.GetActiveByLocation(ctx, "loc-missing")
	require.ErrorIs(t, err, domain.ErrInstallationNotFound)
}

func TestMemoryInstallationRepo_UpdateTokens(t *testing.T) {
	repo := NewMemoryInstallationRepo()
	ctx := context.Background()

	_, err := repo.Create(ctx, domain.Installation{ID: 1, LocationID: "loc-1", IsActive: true, InstalledAt: time.Now()})
	require.NoError(t, err)

	expiresAt := time.Now().Add(24 * time.Hour)
	refreshedAt := time.Now()
	require.NoError(t, repo.UpdateTokens(ctx, 1, "new-access", "new-refresh", expiresAt, refreshedAt))

	stored, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "new-access", stored.AccessToken)
	require.Equal(t, "new-refresh", stored.RefreshToken)
	require.NotNil(t, stored.RefreshedAt)

	require.ErrorIs(t, repo.UpdateTokens(ctx, 999, "a", "r", expiresAt, refreshedAt), domain.ErrInstallationNotFound)
}

func TestMemoryLocationTokenStore_TTL(t *testing.T) {
	store := NewMemoryLocationTokenStore()
	ctx := context.Background()

	token := domain.LocationToken{InstallationID: 1, AccessToken: "loc-token", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, token, 50*time.Millisecond))

	cached, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Equal(t, "loc-token", cached.AccessToken)

	time.Sleep(80 * time.Millisecond)
	cached, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, cached)
}

func TestMemoryLocationTokenStore_Delete(t *testing.T) {
	store := NewMemoryLocationTokenStore()
	ctx := context.Background()

	token := domain.LocationToken{InstallationID: 1, AccessToken: "loc-token", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, token, time.Hour))
	require.NoError(t, store.Delete(ctx, 1))

	cached, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, cached)

	// Deleting an absent entry is a no-op.
	require.NoError(t, store.Delete(ctx, 2))
}

func TestMemoryInstallStateStore_TakeOnce(t *testing.T) {
	store := NewMemoryInstallStateStore()
	ctx := context.Background()

	state := domain.InstallState{State: "state-1", CreatedAt: time.Now()}
	require.NoError(t, store.SaveState(ctx, state, time.Minute))

	taken, err := store.TakeState(ctx, "state-1")
	require.NoError(t, err)
	require.NotNil(t, taken)
	require.Equal(t, "state-1", taken.State)

	taken, err = store.TakeState(ctx, "state-1")
	require.NoError(t, err)
	require.Nil(t, taken)
}

func TestMemoryInstallStateStore_Expiry(t *testing.T) {
	store := NewMemoryInstallStateStore()
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, domain.InstallState{State: "state-1", CreatedAt: time.Now()}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	taken, err := store.TakeState(ctx, "state-1")
	require.NoError(t, err)
	require.Nil(t, taken)
}
