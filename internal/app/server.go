// File: internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"medibook_backend/internal/appointment"
	"medibook_backend/internal/auth"
	"medibook_backend/internal/common"
	"medibook_backend/internal/config"
	"medibook_backend/internal/doctor"
	"medibook_backend/internal/filestorage"
	"medibook_backend/internal/identity"
	"medibook_backend/internal/jobs"
	"medibook_backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	// Jobs
	appointmentExpiryJob *jobs.AppointmentExpiryJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	authService auth.Service,
	authHandler *auth.Handler,
	doctorHandler *doctor.Handler,
	appointmentHandler *appointment.Handler,
	appointmentExpiryJob *jobs.AppointmentExpiryJob,
	images *filestorage.FileStorageService,
) (*Server, error) {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	// ClientIP feeds the credential rate limiter, so forwarded headers only
	// count when they come from a configured proxy.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	// CORS Middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.FrontendOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.FrontendOrigins
	} else {
		logger.Warn("FRONTEND_ORIGINS is empty; cross-origin requests will be refused")
		corsConfig.AllowOriginFunc = func(string) bool { return false }
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", common.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", common.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	// Create middleware instances
	sessionGate := middleware.SessionAuth(authService, logger.Named("SessionAuth"))
	doctorRoleMW := middleware.RoleAuthMiddleware(identity.RoleDoctor)
	credentialLimiter := middleware.NewIPRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst).Middleware()

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	router.Static(images.URLPrefix(), images.StoragePath())

	api := router.Group("/api")
	authHandler.RegisterRoutes(api, credentialLimiter, sessionGate)
	doctorHandler.RegisterRoutes(api, sessionGate, doctorRoleMW)
	appointmentHandler.RegisterRoutes(api, sessionGate)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:           httpServer,
		router:               router,
		cfg:                  cfg,
		logger:               logger,
		appointmentExpiryJob: appointmentExpiryJob,
	}, nil
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if s.appointmentExpiryJob != nil {
		if err := s.appointmentExpiryJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start appointment expiry job", zap.Error(err))
		}
	} else {
		s.logger.Info("Appointment expiry job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", gin.Mode()),
		zap.String("app_env", s.cfg.AppEnv),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.appointmentExpiryJob != nil {
		s.appointmentExpiryJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
