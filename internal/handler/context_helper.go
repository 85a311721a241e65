package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/file-approval-api/internal/middleware"
	"github.com/noah-isme/file-approval-api/internal/models"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
	"github.com/noah-isme/file-approval-api/pkg/response"
)

// actorFromContext resolves the workflow actor from the verified JWT claims,
// responding 401 itself when they are absent.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

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
