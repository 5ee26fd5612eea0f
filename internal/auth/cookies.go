// File: internal/auth/cookies.go
package auth

import (
	"net/http"
	"time"

	"medibook_backend/internal/config"
	"medibook_backend/internal/identity"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "access-token"
	RefreshTokenCookie = "refresh-token"
)

// SetSessionCookies writes the provider token pair as HTTP-only cookies.
func SetSessionCookies(c *gin.Context, cfg *config.Config, session *identity.Session) {
	maxAge := int(cfg.SessionCookieMaxAge / time.Second)
	setSessionCookie(c, cfg, AccessTokenCookie, session.AccessToken, maxAge)
	setSessionCookie(c, cfg, RefreshTokenCookie, session.RefreshToken, maxAge)
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(c *gin.Context, cfg *config.Config) {
	setSessionCookie(c, cfg, AccessTokenCookie, "", -1)
	setSessionCookie(c, cfg, RefreshTokenCookie, "", -1)
}

// AccessTokenFromRequest returns the access-token cookie value, or "" when absent.
func AccessTokenFromRequest(c *gin.Context) string {
	cookie, err := c.Request.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setSessionCookie(c *gin.Context, cfg *config.Config, name, value string, maxAge int) {
	sameSite := http.SameSiteLaxMode
	if cfg.IsProduction() {
		sameSite = http.SameSiteStrictMode
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   cfg.IsProduction(),
		HttpOnly: true,
		SameSite: sameSite,
	})
}
