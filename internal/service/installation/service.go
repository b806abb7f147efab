package installation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/adapter/ghl"
	"github.com/engageautomations/ghl-api-backend/internal/config"
	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/repository"
)

// Service owns the create/read/refresh lifecycle of installation records.
type Service interface {
	// BuildAuthorizationURL returns the provider authorization URL. When the
	// caller supplies no state, one is minted and persisted for the callback.
	BuildAuthorizationURL(ctx context.Context, state string) (authURL, outState string, err error)
	// CompleteInstall exchanges the authorization code and persists the
	// resulting installation.
	CompleteInstall(ctx context.Context, code string) (domain.Installation, error)
	// ConsumeState reports whether the callback state matches a flow this
	// service started. Unknown states are tolerated because marketplace
	// installs never pass through BuildAuthorizationURL.
	ConsumeState(ctx context.Context, state string) bool
	GetByID(ctx context.Context, id int64) (domain.Installation, error)
	// GetActiveInstallation returns the canonical installation for a
	// location: the most recently installed active record.
	GetActiveInstallation(ctx context.Context, locationID string) (domain.Installation, error)
	List(ctx context.Context) ([]domain.InstallationSummary, error)
	// RefreshTokens rotates the Company token via the refresh grant. Failure
	// means the installation is invalid and re-auth is required.
	RefreshTokens(ctx context.Context, id int64) (domain.Installation, error)
	// EnsureFreshToken returns the installation with a Company token valid
	// for at least the safety margin, refreshing when necessary.
	EnsureFreshToken(ctx context.Context, id int64) (domain.Installation, error)
	Deactivate(ctx context.Context, id int64) error
}

const installStateTTL = 5 * time.Minute

type service struct {
	repo       repository.InstallationRepository
	stateStore repository.InstallStateStore
	tokens     repository.LocationTokenStore
	client     ghl.Client
	node       *snowflake.Node
	cfg        config.Config
	logger     *zap.Logger
}

// NewService wires the installation manager.
func NewService(
	repo repository.InstallationRepository,
	stateStore repository.InstallStateStore,
	tokens repository.LocationTokenStore,
	client ghl.Client,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) Service {
	return &service{
		repo:       repo,
		stateStore: stateStore,
		tokens:     tokens,
		client:     client,
		node:       node,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *service) BuildAuthorizationURL(ctx context.Context, state string) (string, string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		minted, err := secureRandomString(32)
		if err != nil {
			return "", "", fmt.Errorf("generate state: %w", err)
		}
		state = minted
	}

	authURL, err := url.Parse(s.cfg.MarketplaceURL)
	if err != nil {
		return "", "", fmt.Errorf("parse marketplace url: %w", err)
	}
	params := authURL.Query()
	params.Set("response_type", "code")
	params.Set("client_id", s.cfg.ClientID)
	params.Set("redirect_uri", s.cfg.RedirectURI)
	params.Set("scope", s.cfg.ScopeString())
	params.Set("state", state)
	authURL.RawQuery = params.Encode()

	payload := domain.InstallState{State: state, CreatedAt: time.Now().UTC()}
	if err := s.stateStore.SaveState(ctx, payload, installStateTTL); err != nil {
		return "", "", fmt.Errorf("persist state: %w", err)
	}

	return authURL.String(), state, nil
}

func (s *service) ConsumeState(ctx context.Context, state string) bool {
	if strings.TrimSpace(state) == "" {
		return false
	}
	found, err := s.stateStore.TakeState(ctx, state)
	if err != nil {
		s.log().Warn("failed to load install state", zap.Error(err))
		return false
	}
	return found != nil
}

func (s *service) CompleteInstall(ctx context.Context, code string) (domain.Installation, error) {
	token, err := s.client.ExchangeCode(ctx, code, s.cfg.RedirectURI)
	if err != nil {
		return domain.Installation{}, err
	}

	// On a reinstall the prior active record gets deactivated below; remember
	// it so its cached Location token can be evicted too.
	var prior *domain.Installation
	if token.LocationID != "" {
		existing, lookupErr := s.repo.GetActiveByLocation(ctx, token.LocationID)
		switch {
		case lookupErr == nil:
			prior = &existing
		case !errors.Is(lookupErr, domain.ErrInstallationNotFound):
			s.log().Warn("failed to look up prior installation", zap.Error(lookupErr))
		}
	}

	now := time.Now().UTC()
	inst := domain.Installation{
		ID:           s.node.Generate().Int64(),
		UserID:       token.UserID,
		LocationID:   token.LocationID,
		CompanyID:    token.CompanyID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    now.Add(time.Duration(token.ExpiresIn) * time.Second),
		Scopes:       token.Scope,
		IsActive:     true,
		InstalledAt:  now,
	}
	if inst.Scopes == "" {
		inst.Scopes = s.cfg.ScopeString()
	}

	created, err := s.repo.Create(ctx, inst)
	if err != nil {
		return domain.Installation{}, fmt.Errorf("persist installation: %w", err)
	}

	if prior != nil {
		if err := s.tokens.Delete(ctx, prior.ID); err != nil {
			s.log().Warn("failed to evict cached location token",
				zap.Int64("installation_id", prior.ID), zap.Error(err))
		}
	}

	s.log().Info("installation created",
		zap.Int64("installation_id", created.ID),
		zap.String("location_id", created.LocationID),
		zap.String("company_id", created.CompanyID),
	)
	return created, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (domain.Installation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetActiveInstallation(ctx context.Context, locationID string) (domain.Installation, error) {
	return s.repo.GetActiveByLocation(ctx, locationID)
}

func (s *service) List(ctx context.Context) ([]domain.InstallationSummary, error) {
	return s.repo.List(ctx)
}

func (s *service) RefreshTokens(ctx context.Context, id int64) (domain.Installation, error) {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Installation{}, err
	}
	if !inst.IsActive {
		return domain.Installation{}, domain.ErrInstallationInactive
	}
	if strings.TrimSpace(inst.RefreshToken) == "" {
		return domain.Installation{}, domain.NewTokenRefreshError(0, "", fmt.Errorf("installation has no refresh token"))
	}

	token, err := s.client.RefreshToken(ctx, inst.RefreshToken)
	if err != nil {
		return domain.Installation{}, err
	}

	now := time.Now().UTC()
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = inst.RefreshToken
	}
	expiresAt := now.Add(time.Duration(token.ExpiresIn) * time.Second)

	if err := s.repo.UpdateTokens(ctx, id, token.AccessToken, refreshToken, expiresAt, now); err != nil {
		return domain.Installation{}, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	inst.AccessToken = token.AccessToken
	inst.RefreshToken = refreshToken
	inst.ExpiresAt = expiresAt
	inst.RefreshedAt = &now

	s.log().Info("installation tokens refreshed", zap.Int64("installation_id", id))
	return inst, nil
}

func (s *service) EnsureFreshToken(ctx context.Context, id int64) (domain.Installation, error) {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Installation{}, err
	}
	if !inst.IsActive {
		return domain.Installation{}, domain.ErrInstallationInactive
	}
	if !inst.NeedsRefresh() {
		return inst, nil
	}
	return s.RefreshTokens(ctx, id)
}

func (s *service) Deactivate(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.log().Info("installation deactivated", zap.Int64("installation_id", id))
	return nil
}

func (s *service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func secureRandomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
