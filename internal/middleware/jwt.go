package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/file-approval-api/internal/service"
	appErrors "github.com/noah-isme/file-approval-api/pkg/errors"
	"github.com/noah-isme/file-approval-api/pkg/response"
)

// ContextUserKey is the gin context key holding the verified JWT claims. The
// claims are the only identity source the workflow trusts; actor fields in
// request bodies are ignored.
const ContextUserKey = "currentUser"

// bearerToken extracts the token from an Authorization header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWT rejects requests without a valid access token.
func JWT(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or malformed authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when a valid token is present but never blocks.
// Used on the signed-download route so audit rows can name the caller when
// the SPA sends its bearer along with the token link.
func OptionalJWT(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := auth.ValidateToken(token); err == nil {
				c.Set(ContextUserKey, claims)
			}
		}
		c.Next()
	}
}
