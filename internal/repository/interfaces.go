package repository

import (
	"context"
	"time"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
)

// InstallationRepository owns the durable lifecycle of OAuth installations.
// Records are deactivated, never hard-deleted.
type InstallationRepository interface {
	// Create persists a new installation and deactivates any prior active
	// rows for the same location in the same transaction.
	Create(ctx context.Context, inst domain.Installation) (domain.Installation, error)
	GetByID(ctx context.Context, id int64) (domain.Installation, error)
	// GetActiveByLocation returns the most recently installed active record
	// for the location. An empty locationID matches any location. Returns
	// domain.ErrInstallationNotFound when nothing matches.
	GetActiveByLocation(ctx context.Context, locationID string) (domain.Installation, error)
	List(ctx context.Context) ([]domain.InstallationSummary, error)
	// UpdateTokens overwrites token material after a successful refresh.
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt, refreshedAt time.Time) error
	Deactivate(ctx context.Context, id int64) error
}

// DirectoryRepository persists directory listing configurations.
type DirectoryRepository interface {
	Create(ctx context.Context, dir domain.Directory) (domain.Directory, error)
	GetByID(ctx context.Context, id int64) (domain.Directory, error)
	List(ctx context.Context, locationID string) ([]domain.Directory, error)
	Update(ctx context.Context, dir domain.Directory) (domain.Directory, error)
	Delete(ctx context.Context, id int64) error
}

// LocationTokenStore is the shared cache of converted Location tokens, keyed
// by installation id. It is a derived view; absence is never an error.
type LocationTokenStore interface {
	Save(ctx context.Context, token domain.LocationToken, ttl time.Duration) error
	// Get returns nil, nil when no entry exists.
	Get(ctx context.Context, installationID int64) (*domain.LocationToken, error)
	Delete(ctx context.Context, installationID int64) error
}

// InstallStateStore persists short-lived state values minted by the OAuth URL
// endpoint so the callback can recognize flows it started.
type InstallStateStore interface {
	SaveState(ctx context.Context, state domain.InstallState, ttl time.Duration) error
	// TakeState loads and deletes the state in one step; nil, nil when absent.
	TakeState(ctx context.Context, state string) (*domain.InstallState, error)
}
