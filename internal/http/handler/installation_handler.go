package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/service/installation"
	"github.com/engageautomations/ghl-api-backend/internal/service/locationtoken"
)

// InstallationHandler serves the admin UI's installation management
// endpoints. Responses are summaries only; token material never leaves the
// process.
type InstallationHandler struct {
	Installations installation.Service
	Converter     locationtoken.Converter
	Logger        *zap.Logger
}

// NewInstallationHandler creates the installation admin handler.
func NewInstallationHandler(installations installation.Service, converter locationtoken.Converter, logger *zap.Logger) *InstallationHandler {
	return &InstallationHandler{Installations: installations, Converter: converter, Logger: logger}
}

// List returns all installations, most recent first.
func (h *InstallationHandler) List(c *gin.Context) {
	summaries, err := h.Installations.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, summaries)
}

// Get returns one installation summary by id.
func (h *InstallationHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	inst, err := h.Installations.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, inst.ToSummary())
}

// Delete deactivates an installation and evicts its cached location token.
// Records are never hard-deleted.
func (h *InstallationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Installations.Deactivate(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	if err := h.Converter.ClearCache(c.Request.Context(), id); err != nil {
		h.Logger.Warn("failed to clear location token cache", zap.Int64("installation_id", id), zap.Error(err))
	}
	respondData(c, http.StatusOK, gin.H{"deactivated": true})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "id must be a numeric installation id", nil)
		return 0, false
	}
	return id, true
}
