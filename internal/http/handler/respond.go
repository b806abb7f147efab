package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
)

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondUpstream(c *gin.Context, status int, body []byte) {
	if len(body) == 0 {
		c.JSON(status, gin.H{"success": true})
		return
	}
	c.JSON(status, gin.H{"success": true, "data": json.RawMessage(body)})
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	payload := gin.H{"error": code, "message": message}
	if details != nil {
		payload["details"] = details
	}
	c.JSON(status, payload)
}

// respondServiceError maps the domain error taxonomy onto the JSON error
// envelope. Upstream rejections carry the provider's raw body under details.
func respondServiceError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"code":    validationErr.Code,
			"message": validationErr.Message,
		})
		return
	}

	var exchangeErr *domain.TokenExchangeError
	if errors.As(err, &exchangeErr) {
		respondError(c, http.StatusBadRequest, "token_exchange_failed",
			"OAuth code exchange was rejected by the provider.", providerDetails(&exchangeErr.ProviderError))
		return
	}

	var refreshErr *domain.TokenRefreshError
	if errors.As(err, &refreshErr) {
		respondError(c, http.StatusUnauthorized, "token_refresh_failed",
			"Token refresh failed; re-installation is required.", providerDetails(&refreshErr.ProviderError))
		return
	}

	var conversionErr *domain.LocationConversionError
	if errors.As(err, &conversionErr) {
		status := http.StatusInternalServerError
		if conversionErr.StatusCode == http.StatusUnauthorized || conversionErr.StatusCode == http.StatusForbidden {
			status = http.StatusUnauthorized
		}
		respondError(c, status, "location_token_failed",
			"Company to Location token conversion failed.", providerDetails(&conversionErr.ProviderError))
		return
	}

	switch {
	case errors.Is(err, domain.ErrInstallationNotFound), errors.Is(err, domain.ErrInstallationInactive):
		respondError(c, http.StatusUnauthorized, "installation_not_found",
			"No active installation found. Complete the OAuth installation flow first.", nil)
	case errors.Is(err, domain.ErrDirectoryNotFound):
		respondError(c, http.StatusNotFound, "directory_not_found", "Directory not found.", nil)
	case errors.Is(err, domain.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	default:
		respondError(c, http.StatusInternalServerError, "server_error", err.Error(), nil)
	}
}

func upstreamDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var raw json.RawMessage
	if json.Unmarshal(body, &raw) == nil {
		return gin.H{"body": raw}
	}
	return gin.H{"body": string(body)}
}

func providerDetails(err *domain.ProviderError) any {
	if err == nil || (err.StatusCode == 0 && err.Body == "") {
		return nil
	}
	details := gin.H{}
	if err.StatusCode != 0 {
		details["status"] = err.StatusCode
	}
	if err.Body != "" {
		// Relay the provider's body verbatim when it is JSON, as text otherwise.
		var raw json.RawMessage
		if json.Unmarshal([]byte(err.Body), &raw) == nil {
			details["body"] = raw
		} else {
			details["body"] = err.Body
		}
	}
	return details
}
