package locationtoken

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/adapter/ghl"
	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/repository"
	"github.com/engageautomations/ghl-api-backend/internal/service/installation"
)

// Converter bridges the scope gap between the Company token an installation
// stores and the Location token that media/product endpoints require. Tokens
// move through four states per installation: uncached, cached-valid,
// cached-expiring, invalid. Failures are never cached.
type Converter interface {
	// GetLocationToken returns a Location token valid for at least the
	// safety margin from the moment of return.
	GetLocationToken(ctx context.Context, installationID int64) (string, error)
	// HasLocationToken is a non-blocking freshness check. It never fails;
	// internal errors report false.
	HasLocationToken(ctx context.Context, installationID int64) bool
	// ClearCache evicts the cache entry; no-op if absent. Used on
	// deactivation and reinstall to force reconversion.
	ClearCache(ctx context.Context, installationID int64) error
}

type converter struct {
	installations installation.Service
	cache         repository.LocationTokenStore
	client        ghl.Client
	logger        *zap.Logger
}

// NewConverter wires the location token converter.
func NewConverter(
	installations installation.Service,
	cache repository.LocationTokenStore,
	client ghl.Client,
	logger *zap.Logger,
) Converter {
	return &converter{
		installations: installations,
		cache:         cache,
		client:        client,
		logger:        logger,
	}
}

func (c *converter) GetLocationToken(ctx context.Context, installationID int64) (string, error) {
	cached, err := c.cache.Get(ctx, installationID)
	if err != nil {
		// Cache trouble is not fatal; fall through to conversion.
		c.log().Warn("location token cache read failed", zap.Error(err))
	}
	if cached != nil && cached.Fresh() {
		return cached.AccessToken, nil
	}

	token, err := c.convert(ctx, installationID)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (c *converter) HasLocationToken(ctx context.Context, installationID int64) bool {
	cached, err := c.cache.Get(ctx, installationID)
	if err != nil {
		return false
	}
	return cached != nil && cached.Fresh()
}

func (c *converter) ClearCache(ctx context.Context, installationID int64) error {
	return c.cache.Delete(ctx, installationID)
}

// convert runs one Company→Location conversion and overwrites the cache slot.
// Two concurrent conversions for the same installation both round-trip and
// the last write wins; conversion is idempotent so only a network call is
// wasted.
func (c *converter) convert(ctx context.Context, installationID int64) (domain.LocationToken, error) {
	inst, err := c.installations.EnsureFreshToken(ctx, installationID)
	if err != nil {
		return domain.LocationToken{}, err
	}
	if inst.LocationID == "" {
		return domain.LocationToken{}, domain.NewLocationConversionError(0, "", fmt.Errorf("installation %d has no location id", installationID))
	}

	resp, err := c.client.ConvertLocationToken(ctx, inst.AccessToken, inst.CompanyID, inst.LocationID)
	if err != nil {
		return domain.LocationToken{}, err
	}

	expiresAt := time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second)
	token := domain.LocationToken{
		InstallationID: installationID,
		LocationID:     inst.LocationID,
		AccessToken:    resp.AccessToken,
		ExpiresAt:      expiresAt,
	}

	ttl := time.Until(expiresAt)
	if ttl > 0 {
		if err := c.cache.Save(ctx, token, ttl); err != nil {
			// The token is still usable for this request.
			c.log().Warn("location token cache write failed", zap.Error(err))
		}
	}

	c.log().Debug("location token converted",
		zap.Int64("installation_id", installationID),
		zap.String("location_id", inst.LocationID),
		zap.Time("expires_at", expiresAt),
	)
	return token, nil
}

func (c *converter) log() *zap.Logger {
	if c != nil && c.logger != nil {
		return c.logger
	}
	return zap.L()
}
