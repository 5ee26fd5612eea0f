// File: internal/middleware/auth.go
package middleware

import (
	"context"

	"medibook_backend/internal/auth"
	"medibook_backend/internal/common"
	"medibook_backend/internal/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authenticator resolves an access token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*identity.User, error)
}

// SessionAuth gates a route on the access-token cookie. The resolved user is
// stored under common.UserKey; on failure the chain is aborted with a 401.
func SessionAuth(authenticator Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authenticator.Authenticate(c.Request.Context(), auth.AccessTokenFromRequest(c))
		if err != nil {
			logger.Debug("Session rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			common.RespondWithError(c, err)
			return
		}

		c.Set(common.UserKey, user)
		c.Next()
	}
}

// GetUserFromContext returns the user stored by SessionAuth, or nil.
func GetUserFromContext(c *gin.Context) *identity.User {
	val, exists := c.Get(common.UserKey)
	if !exists {
		return nil
	}
	user, ok := val.(*identity.User)
	if !ok {
		return nil
	}
	return user
}

// RoleAuthMiddleware creates a middleware to check if the authenticated user has one of the required roles.
// It must run after SessionAuth.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUserFromContext(c)
		if user == nil {
			common.RespondWithError(c, common.ErrUnauthenticated)
			return
		}

		for _, role := range allowedRoles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
	}
}
