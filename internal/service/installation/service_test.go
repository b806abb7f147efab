package installation

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/adapter/ghl"
	"github.com/engageautomations/ghl-api-backend/internal/config"
	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/repository"
)

func TestService_BuildAuthorizationURL(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	authURL, state, err := h.service.BuildAuthorizationURL(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	require.Equal(t, "marketplace.example.com", parsed.Host)
	require.Equal(t, "code", parsed.Query().Get("response_type"))
	require.Equal(t, "client-id", parsed.Query().Get("client_id"))
	require.Equal(t, "https://app.example.com/api/oauth/callback", parsed.Query().Get("redirect_uri"))
	require.Equal(t, state, parsed.Query().Get("state"))

	// The minted state is persisted for the callback and consumed once.
	require.True(t, h.service.ConsumeState(ctx, state))
	require.False(t, h.service.ConsumeState(ctx, state))
}

func TestService_BuildAuthorizationURLEchoesCallerState(t *testing.T) {
	h := newTestHarness(t)

	authURL, state, err := h.service.BuildAuthorizationURL(context.Background(), "caller-state")
	require.NoError(t, err)
	require.Equal(t, "caller-state", state)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	require.Equal(t, "caller-state", parsed.Query().Get("state"))
}

func TestService_CompleteInstall(t *testing.T) {
	h := newTestHarness(t)
	h.client.exchangeResp = &domain.TokenResponse{
		AccessToken:  "company-access",
		RefreshToken: "company-refresh",
		TokenType:    "Bearer",
		ExpiresIn:    86400,
		Scope:        "products.readonly medias.write",
		UserID:       "user-1",
		LocationID:   "loc-1",
		CompanyID:    "comp-1",
	}

	inst, err := h.service.CompleteInstall(context.Background(), "auth-code")
	require.NoError(t, err)
	require.NotZero(t, inst.ID)
	require.Equal(t, "loc-1", inst.LocationID)
	require.Equal(t, "comp-1", inst.CompanyID)
	require.Equal(t, "company-access", inst.AccessToken)
	require.Equal(t, "products.readonly medias.write", inst.Scopes)
	require.True(t, inst.IsActive)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), inst.ExpiresAt, time.Minute)

	stored, err := h.service.GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, inst.AccessToken, stored.AccessToken)
}

func TestService_CompleteInstallDefaultsScopes(t *testing.T) {
	h := newTestHarness(t)
	h.client.exchangeResp = &domain.TokenResponse{
		AccessToken: "access",
		ExpiresIn:   3600,
		LocationID:  "loc-1",
	}

	inst, err := h.service.CompleteInstall(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, h.cfg.ScopeString(), inst.Scopes)
}

func TestService_CompleteInstallExchangeFailure(t *testing.T) {
	h := newTestHarness(t)
	h.client.exchangeErr = domain.NewTokenExchangeError(401, `{"error":"invalid_grant"}`, nil)

	_, err := h.service.CompleteInstall(context.Background(), "bad-code")
	require.Error(t, err)
	var exchangeErr *domain.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	require.Equal(t, 401, exchangeErr.StatusCode)
}

func TestService_ReinstallDeactivatesPrevious(t *testing.T) {
	h := newTestHarness(t)
	h.client.exchangeResp = &domain.TokenResponse{
		AccessToken: "first-access",
		ExpiresIn:   3600,
		LocationID:  "loc-1",
	}
	first, err := h.service.CompleteInstall(context.Background(), "code-1")
	require.NoError(t, err)

	h.client.exchangeResp = &domain.TokenResponse{
		AccessToken: "second-access",
		ExpiresIn:   3600,
		LocationID:  "loc-1",
	}
	second, err := h.service.CompleteInstall(context.Background(), "code-2")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	old, err := h.service.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	require.False(t, old.IsActive)

	active, err := h.service.GetActiveInstallation(context.Background(), "loc-1")
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)
}

func TestService_ReinstallEvictsCachedLocationToken(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	prior := h.seedInstallation(t, domain.Installation{
		LocationID:  "loc-1",
		AccessToken: "old-access",
		ExpiresAt:   time.Now().Add(time.Hour),
		IsActive:    true,
	})
	stale := domain.LocationToken{
		InstallationID: prior.ID,
		LocationID:     "loc-1",
		AccessToken:    "old-location-token",
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, h.cache.Save(ctx, stale, time.Hour))

	h.client.exchangeResp = &domain.TokenResponse{
		AccessToken: "new-access",
		ExpiresIn:   3600,
		LocationID:  "loc-1",
	}
	_, err := h.service.CompleteInstall(ctx, "reinstall-code")
	require.NoError(t, err)

	cached, err := h.cache.Get(ctx, prior.ID)
	require.NoError(t, err)
	require.Nil(t, cached)
}

func TestService_GetActiveInstallationNotFound(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.service.GetActiveInstallation(context.Background(), "loc-missing")
	require.ErrorIs(t, err, domain.ErrInstallationNotFound)
}

func TestService_RefreshTokens(t *testing.T) {
	h := newTestHarness(t)
	inst := h.seedInstallation(t, domain.Installation{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Minute),
		IsActive:     true,
	})
	h.client.refreshResp = &domain.TokenResponse{
		AccessToken:  "new-access",
		RefreshToken: "refresh-2",
		ExpiresIn:    86400,
	}

	refreshed, err := h.service.RefreshTokens(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, "new-access", refreshed.AccessToken)
	require.Equal(t, "refresh-2", refreshed.RefreshToken)
	require.NotNil(t, refreshed.RefreshedAt)
	require.Equal(t, "refresh-1", h.client.lastRefreshToken)

	stored, err := h.service.GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, "new-access", stored.AccessToken)
}

func TestService_RefreshTokensKeepsOldRefreshToken(t *testing.T) {
	h := newTestHarness(t)
	inst := h.seedInstallation(t, domain.Installation{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Minute),
		IsActive:     true,
	})
	h.client.refreshResp = &domain.TokenResponse{
		AccessToken: "new-access",
		ExpiresIn:   3600,
	}

	refreshed, err := h.service.RefreshTokens(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refreshed.RefreshToken)
}

func TestService_RefreshTokensInactive(t *testing.T) {
	h := newTestHarness(t)
	inst := h.seedInstallation(t, domain.Installation{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Minute),
		IsActive:     false,
	})

	_, err := h.service.RefreshTokens(context.Background(), inst.ID)
	require.ErrorIs(t, err, domain.ErrInstallationInactive)
	require.Zero(t, h.client.refreshCalls)
}

func TestService_EnsureFreshTokenSkipsRefreshWhenValid(t *testing.T) {
	h := newTestHarness(t)
	inst := h.seedInstallation(t, domain.Installation{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		IsActive:     true,
	})

	fresh, err := h.service.EnsureFreshToken(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, "access", fresh.AccessToken)
	require.Zero(t, h.client.refreshCalls)
}

func TestService_EnsureFreshTokenRefreshesNearExpiry(t *testing.T) {
	h := newTestHarness(t)
	inst := h.seedInstallation(t, domain.Installation{
		AccessToken:  "stale-access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Minute),
		IsActive:     true,
	})
	h.client.refreshResp = &domain.TokenResponse{
		AccessToken: "fresh-access",
		ExpiresIn:   86400,
	}

	fresh, err := h.service.EnsureFreshToken(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, "fresh-access", fresh.AccessToken)
	require.Equal(t, 1, h.client.refreshCalls)
}

func TestService_Deactivate(t *testing.T) {
	h := newTestHarness(t)
	inst := h.seedInstallation(t, domain.Installation{
		AccessToken: "access",
		LocationID:  "loc-1",
		ExpiresAt:   time.Now().Add(time.Hour),
		IsActive:    true,
	})

	require.NoError(t, h.service.Deactivate(context.Background(), inst.ID))

	_, err := h.service.GetActiveInstallation(context.Background(), "loc-1")
	require.ErrorIs(t, err, domain.ErrInstallationNotFound)
}

// ---- Test harness and fakes ----

type testHarness struct {
	service Service
	repo    *repository.MemoryInstallationRepo
	cache   *repository.MemoryLocationTokenStore
	client  *fakeClient
	cfg     config.Config
	node    *snowflake.Node
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	cfg := config.Config{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		RedirectURI:    "https://app.example.com/api/oauth/callback",
		Scopes:         []string{"products.readonly", "medias.write"},
		MarketplaceURL: "https://marketplace.example.com/oauth/chooselocation",
	}
	repo := repository.NewMemoryInstallationRepo()
	cache := repository.NewMemoryLocationTokenStore()
	client := &fakeClient{}
	svc := NewService(repo, repository.NewMemoryInstallStateStore(), cache, client, node, cfg, zap.NewNop())
	return &testHarness{service: svc, repo: repo, cache: cache, client: client, cfg: cfg, node: node}
}

func (h *testHarness) seedInstallation(t *testing.T, inst domain.Installation) domain.Installation {
	t.Helper()
	if inst.ID == 0 {
		inst.ID = h.node.Generate().Int64()
	}
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}
	created, err := h.repo.Create(context.Background(), inst)
	require.NoError(t, err)
	return created
}

type fakeClient struct {
	exchangeResp *domain.TokenResponse
	exchangeErr  error
	refreshResp  *domain.TokenResponse
	refreshErr   error

	refreshCalls     int
	lastRefreshToken string
}

func (f *fakeClient) ExchangeCode(context.Context, string, string) (*domain.TokenResponse, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if f.exchangeResp == nil {
		return nil, fmt.Errorf("exchange not configured")
	}
	return f.exchangeResp, nil
}

func (f *fakeClient) RefreshToken(_ context.Context, refreshToken string) (*domain.TokenResponse, error) {
	f.refreshCalls++
	f.lastRefreshToken = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshResp == nil {
		return nil, fmt.Errorf("refresh not configured")
	}
	return f.refreshResp, nil
}

func (f *fakeClient) ConvertLocationToken(context.Context, string, string, string) (*domain.TokenResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeClient) Forward(context.Context, ghl.ForwardRequest) (*ghl.UpstreamResponse, error) {
	return nil, fmt.Errorf("not implemented")
}
