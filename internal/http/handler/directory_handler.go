package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/repository"
)

// DirectoryHandler serves the directory listing configuration the admin UI
// edits. Config blobs are passed through opaquely.
type DirectoryHandler struct {
	Directories repository.DirectoryRepository
	Node        *snowflake.Node
}

// NewDirectoryHandler creates the directory handler.
func NewDirectoryHandler(directories repository.DirectoryRepository, node *snowflake.Node) *DirectoryHandler {
	return &DirectoryHandler{Directories: directories, Node: node}
}

type directoryRequest struct {
	LocationID string         `json:"location_id"`
	Name       string         `json:"name" binding:"required"`
	Slug       string         `json:"slug"`
	Config     map[string]any `json:"config"`
}

// List returns directories, optionally filtered by locationId.
func (h *DirectoryHandler) List(c *gin.Context) {
	dirs, err := h.Directories.List(c.Request.Context(), strings.TrimSpace(c.Query("locationId")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, dirs)
}

// Get returns one directory by id.
func (h *DirectoryHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	dir, err := h.Directories.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, dir)
}

// Create persists a new directory configuration.
func (h *DirectoryHandler) Create(c *gin.Context) {
	var req directoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	now := time.Now().UTC()
	dir := domain.Directory{
		ID:         h.Node.Generate().Int64(),
		LocationID: strings.TrimSpace(req.LocationID),
		Name:       strings.TrimSpace(req.Name),
		Slug:       normalizeSlug(req.Slug, req.Name),
		Config:     req.Config,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := h.Directories.Create(c.Request.Context(), dir)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, created)
}

// Update overwrites name, slug, and config for an existing directory.
func (h *DirectoryHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	existing, err := h.Directories.GetByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var req directoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	existing.Name = strings.TrimSpace(req.Name)
	existing.Slug = normalizeSlug(req.Slug, req.Name)
	if req.Config != nil {
		existing.Config = req.Config
	}
	existing.UpdatedAt = time.Now().UTC()

	updated, err := h.Directories.Update(c.Request.Context(), existing)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, updated)
}

// Delete removes a directory.
func (h *DirectoryHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Directories.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": true})
}

func normalizeSlug(slug, name string) string {
	value := strings.TrimSpace(slug)
	if value == "" {
		value = name
	}
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "-")
	return value
}
