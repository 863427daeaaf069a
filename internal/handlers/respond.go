// Package handlers contains HTTP request handlers for the timetrack service.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tempora-hq/timetrack-api/internal/repository"
	"github.com/tempora-hq/timetrack-api/internal/service"
)

// respondError writes the stable {error} body for a status.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondServiceError maps a service-layer error onto its HTTP status
// and stable message. Internal errors are logged with detail but never
// leak past the boundary.
func respondServiceError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSSOOnlyAccount),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenMalformed),
		errors.Is(err, service.ErrSessionNotCached):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConsentRequired):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// respondRepoError maps repository lookups that feed handlers directly.
func respondRepoError(c *gin.Context, log zerolog.Logger, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not found")
		return
	}
	respondServiceError(c, log, err)
}
