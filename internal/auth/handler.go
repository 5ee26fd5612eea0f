// File: internal/auth/handler.go
package auth

import (
	"errors"
	"io"
	"net/http"

	"medibook_backend/internal/common"
	"medibook_backend/internal/config"
	"medibook_backend/internal/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	service Service
	cfg     *config.Config
	logger  *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(service Service, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
		logger:  logger.Named("auth_handler"),
	}
}

// RegisterRoutes sets up the routes for authentication operations.
// credentialLimiter guards the endpoints that accept passwords; sessionGate
// guards profile.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, credentialLimiter, sessionGate gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", credentialLimiter, h.register)
		authGroup.POST("/login", credentialLimiter, h.login)
		authGroup.POST("/logout", h.logout)
		authGroup.GET("/profile", sessionGate, h.profile)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	if result.Session == nil {
		c.JSON(http.StatusOK, AuthResponse{
			Message: "Registration successful. Please check your email to confirm your account.",
			User:    result.User,
		})
		return
	}

	SetSessionCookies(c, h.cfg, result.Session)
	c.JSON(http.StatusCreated, AuthResponse{Message: "Registration successful.", User: result.User})
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	SetSessionCookies(c, h.cfg, result.Session)
	c.JSON(http.StatusOK, AuthResponse{Message: "Login successful.", User: result.User})
}

func (h *Handler) logout(c *gin.Context) {
	h.service.Logout(c.Request.Context(), AccessTokenFromRequest(c))
	ClearSessionCookies(c, h.cfg)
	c.JSON(http.StatusOK, AuthResponse{Message: "Logged out successfully."})
}

func (h *Handler) profile(c *gin.Context) {
	user, ok := c.Get(common.UserKey)
	if !ok {
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{User: user.(*identity.User)})
}

// bindJSON decodes the body into dst. An empty body decodes to the zero value
// so that validation reports the missing fields.
func (h *Handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Request body must be valid JSON."))
		return false
	}
	return true
}
