package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/service/installation"
)

const installationKey = "installation"

// InstallationResolver loads the installation a proxied request acts on
// behalf of, before any upstream call is made.
type InstallationResolver struct {
	Installations installation.Service
}

// Resolve finds the installation via the X-Installation-Id header, the
// installationId query parameter, or the canonical active installation for
// the given (or any) location. Unresolvable requests are rejected with 401
// and never reach the upstream provider.
func (m *InstallationResolver) Resolve(c *gin.Context) {
	idRaw := strings.TrimSpace(c.GetHeader("X-Installation-Id"))
	if idRaw == "" {
		idRaw = strings.TrimSpace(c.Query("installationId"))
	}

	var (
		inst domain.Installation
		err  error
	)
	if idRaw != "" {
		var id int64
		id, err = strconv.ParseInt(idRaw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"code":    "invalid_installation_id",
				"message": "installation id must be numeric",
			})
			return
		}
		inst, err = m.Installations.GetByID(c.Request.Context(), id)
		if err == nil && !inst.IsActive {
			err = domain.ErrInstallationInactive
		}
	} else {
		locationID := strings.TrimSpace(c.Query("locationId"))
		if locationID == "" {
			locationID = strings.TrimSpace(c.GetHeader("X-Location-Id"))
		}
		inst, err = m.Installations.GetActiveInstallation(c.Request.Context(), locationID)
	}

	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "installation_not_found",
			"message": "No active installation found. Complete the OAuth installation flow first.",
		})
		return
	}

	c.Set(installationKey, inst)
	c.Next()
}

// GetInstallation exposes the resolved installation to handlers.
func GetInstallation(c *gin.Context) (domain.Installation, bool) {
	value, ok := c.Get(installationKey)
	if !ok {
		return domain.Installation{}, false
	}
	inst, ok := value.(domain.Installation)
	return inst, ok
}
