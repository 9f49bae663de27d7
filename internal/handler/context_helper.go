package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pawhaven/petclass-api/internal/middleware"
	"github.com/pawhaven/petclass-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// tenantFromContext returns the tenant the request is scoped to, or an
// empty string when unauthenticated. Services treat empty as an error.
func tenantFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.TenantID
}
