package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/adapter/ghl"
	"github.com/engageautomations/ghl-api-backend/internal/config"
	"github.com/engageautomations/ghl-api-backend/internal/domain"
	httpmiddleware "github.com/engageautomations/ghl-api-backend/internal/http/middleware"
	"github.com/engageautomations/ghl-api-backend/internal/repository"
	"github.com/engageautomations/ghl-api-backend/internal/service/installation"
	"github.com/engageautomations/ghl-api-backend/internal/service/locationtoken"
	"github.com/engageautomations/ghl-api-backend/internal/service/proxy"
)

// ---- Test harness and fakes ----

// handlerHarness runs the handlers against real services backed by in-memory
// stores and a fake upstream client, wired onto the same routes the router
// registers.
type handlerHarness struct {
	engine      *gin.Engine
	client      *fakeGHLClient
	repo        *repository.MemoryInstallationRepo
	directories *repository.MemoryDirectoryRepo
	tokenCache  *repository.MemoryLocationTokenStore
	converter   locationtoken.Converter
	service     installation.Service
	node        *snowflake.Node
	cfg         config.Config
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		ClientID:           "client-id",
		ClientSecret:       "client-secret",
		RedirectURI:        "https://app.example.com/api/oauth/callback",
		Scopes:             []string{"products.readonly", "medias.write"},
		MarketplaceURL:     "https://marketplace.example.com/oauth/chooselocation",
		SuccessRedirectURL: "https://app.example.com/welcome",
		ErrorRedirectURL:   "https://app.example.com/oauth-error",
	}

	repo := repository.NewMemoryInstallationRepo()
	directories := repository.NewMemoryDirectoryRepo()
	tokenCache := repository.NewMemoryLocationTokenStore()
	client := &fakeGHLClient{}
	logger := zap.NewNop()

	installations := installation.NewService(repo, repository.NewMemoryInstallStateStore(), tokenCache, client, node, cfg, logger)
	converter := locationtoken.NewConverter(installations, tokenCache, client, logger)
	proxySvc := proxy.NewService(installations, converter, client, logger)

	oauthHandler := NewOAuthHandler(installations, cfg, logger)
	installationHandler := NewInstallationHandler(installations, converter, logger)
	directoryHandler := NewDirectoryHandler(directories, node)
	proxyHandler := NewProxyHandler(proxySvc, logger)
	resolver := &httpmiddleware.InstallationResolver{Installations: installations}

	r := gin.New()
	r.GET("/api/oauth/url", oauthHandler.URL)
	r.GET("/api/oauth/callback", oauthHandler.Callback)
	r.GET("/api/oauth/status", oauthHandler.Status)
	r.GET("/api/installations", installationHandler.List)
	r.GET("/api/installations/:id", installationHandler.Get)
	r.DELETE("/api/installations/:id", installationHandler.Delete)
	r.GET("/api/directories", directoryHandler.List)
	r.POST("/api/directories", directoryHandler.Create)
	r.GET("/api/directories/:id", directoryHandler.Get)
	r.PUT("/api/directories/:id", directoryHandler.Update)
	r.DELETE("/api/directories/:id", directoryHandler.Delete)
	for _, ep := range proxy.Endpoints() {
		r.Handle(ep.Method, ep.LocalPath, resolver.Resolve, proxyHandler.Handle(ep))
	}

	return &handlerHarness{
		engine:      r,
		client:      client,
		repo:        repo,
		directories: directories,
		tokenCache:  tokenCache,
		converter:   converter,
		service:     installations,
		node:        node,
		cfg:         cfg,
	}
}

func (h *handlerHarness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *handlerHarness) seedInstallation(t *testing.T, inst domain.Installation) domain.Installation {
	t.Helper()
	if inst.ID == 0 {
		inst.ID = h.node.Generate().Int64()
	}
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}
	if inst.ExpiresAt.IsZero() {
		inst.ExpiresAt = time.Now().UTC().Add(time.Hour)
	}
	created, err := h.repo.Create(context.Background(), inst)
	require.NoError(t, err)
	return created
}

type fakeGHLClient struct {
	mu sync.Mutex

	exchangeResp *domain.TokenResponse
	exchangeErr  error
	refreshResp  *domain.TokenResponse
	refreshErr   error
	convertResp  *domain.TokenResponse
	convertErr   error
	forwardResp  *ghl.UpstreamResponse
	forwardErr   error

	forwards []ghl.ForwardRequest
}

func (f *fakeGHLClient) ExchangeCode(context.Context, string, string) (*domain.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if f.exchangeResp == nil {
		return nil, fmt.Errorf("exchange not configured")
	}
	return f.exchangeResp, nil
}

func (f *fakeGHLClient) RefreshToken(context.Context, string) (*domain.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshResp == nil {
		return nil, fmt.Errorf("refresh not configured")
	}
	return f.refreshResp, nil
}

func (f *fakeGHLClient) ConvertLocationToken(context.Context, string, string, string) (*domain.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	if f.convertResp == nil {
		return nil, fmt.Errorf("convert not configured")
	}
	return f.convertResp, nil
}

func (f *fakeGHLClient) Forward(_ context.Context, req ghl.ForwardRequest) (*ghl.UpstreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards = append(f.forwards, req)
	if f.forwardErr != nil {
		return nil, f.forwardErr
	}
	if f.forwardResp != nil {
		return f.forwardResp, nil
	}
	return &ghl.UpstreamResponse{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil
}

func (f *fakeGHLClient) forwardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwards)
}

func (f *fakeGHLClient) lastForward(t *testing.T) ghl.ForwardRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.forwards)
	return f.forwards[len(f.forwards)-1]
}
