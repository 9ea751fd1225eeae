package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tatugacamp/school-api/internal/middleware"
	"github.com/tatugacamp/school-api/internal/models"
)

// claimsFromContext returns the authenticated claims, or nil on routes that
// somehow bypassed the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}
