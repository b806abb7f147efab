package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/config"
	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/service/installation"
)

// OAuthHandler serves the install flow: URL generation, the provider
// callback, and install status checks.
type OAuthHandler struct {
	Installations installation.Service
	Config        config.Config
	Logger        *zap.Logger
}

// NewOAuthHandler creates the OAuth handler set.
func NewOAuthHandler(installations installation.Service, cfg config.Config, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{Installations: installations, Config: cfg, Logger: logger}
}

// URL generates the provider authorization URL, echoing the caller's state
// or minting one.
func (h *OAuthHandler) URL(c *gin.Context) {
	authURL, state, err := h.Installations.BuildAuthorizationURL(c.Request.Context(), c.Query("state"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "authUrl": authURL, "state": state})
}

// Callback handles the browser redirect from the provider. With a code it
// exchanges and persists, then redirects to the success URL with a non-secret
// marker. With an error it redirects to the error URL echoing the provider's
// message. With neither it answers a plain diagnostic used by health checks.
func (h *OAuthHandler) Callback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	providerErr := strings.TrimSpace(c.Query("error"))
	state := strings.TrimSpace(c.Query("state"))

	if providerErr != "" {
		h.redirectError(c, providerErr)
		return
	}
	if code == "" {
		c.String(http.StatusOK, "OAuth callback reachable")
		return
	}

	if state != "" && !h.Installations.ConsumeState(c.Request.Context(), state) {
		// Marketplace-initiated installs never minted a state here; log and
		// continue.
		h.Logger.Info("oauth callback with unrecognized state", zap.String("state", state))
	}

	inst, err := h.Installations.CompleteInstall(c.Request.Context(), code)
	if err != nil {
		h.Logger.Error("oauth installation failed", zap.Error(err))
		h.redirectError(c, installErrorMessage(err))
		return
	}

	target, parseErr := url.Parse(h.Config.SuccessRedirectURL)
	if parseErr != nil {
		respondServiceError(c, fmt.Errorf("parse success redirect url: %w", parseErr))
		return
	}
	params := target.Query()
	params.Set("success", "oauth-complete")
	params.Set("installationId", strconv.FormatInt(inst.ID, 10))
	params.Set("ts", strconv.FormatInt(time.Now().Unix(), 10))
	target.RawQuery = params.Encode()

	c.Redirect(http.StatusFound, target.String())
}

// Status reports whether an active installation exists for a location.
func (h *OAuthHandler) Status(c *gin.Context) {
	locationID := strings.TrimSpace(c.Query("locationId"))
	inst, err := h.Installations.GetActiveInstallation(c.Request.Context(), locationID)
	if err != nil {
		if errors.Is(err, domain.ErrInstallationNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true, "installed": false})
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"installed":      true,
		"installationId": strconv.FormatInt(inst.ID, 10),
		"locationId":     inst.LocationID,
	})
}

func (h *OAuthHandler) redirectError(c *gin.Context, message string) {
	target, err := url.Parse(h.Config.ErrorRedirectURL)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "server_error", "error redirect url misconfigured", nil)
		return
	}
	params := target.Query()
	params.Set("error", message)
	target.RawQuery = params.Encode()
	c.Redirect(http.StatusFound, target.String())
}

func installErrorMessage(err error) string {
	var exchangeErr *domain.TokenExchangeError
	if errors.As(err, &exchangeErr) {
		return "token_exchange_failed"
	}
	return "installation_failed"
}
