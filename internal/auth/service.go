// File: internal/auth/service.go
package auth

import (
	"context"
	"time"

	"medibook_backend/internal/common"
	"medibook_backend/internal/config"
	"medibook_backend/internal/identity"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Service is the session broker. It never stores credentials or verifies
// tokens itself; both are delegated to the identity provider.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*identity.AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*identity.AuthResult, error)
	Logout(ctx context.Context, accessToken string)
	Authenticate(ctx context.Context, accessToken string) (*identity.User, error)
}

// SessionService implements Service on top of an identity.Provider.
type SessionService struct {
	provider  identity.Provider
	blocklist TokenBlocklistService
	validate  *validator.Validate
	cfg       *config.Config
	logger    *zap.Logger
}

// NewSessionService creates the session broker service.
func NewSessionService(provider identity.Provider, blocklist TokenBlocklistService, cfg *config.Config, logger *zap.Logger) *SessionService {
	return &SessionService{
		provider:  provider,
		blocklist: blocklist,
		validate:  common.NewValidator(),
		cfg:       cfg,
		logger:    logger.Named("auth"),
	}
}

// Register validates the input and forwards it to provider sign-up. A nil
// Session in the result means the provider wants the email confirmed first.
func (s *SessionService) Register(ctx context.Context, req RegisterRequest) (*identity.AuthResult, error) {
	if err := common.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = identity.RolePatient
	}

	result, err := s.provider.SignUp(ctx, identity.SignUpParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		if rej, ok := identity.IsRejection(err); ok {
			s.logger.Info("Registration rejected by identity provider", zap.Int("status", rej.StatusCode), zap.String("code", rej.Code))
			return nil, common.NewProviderRejection(rej.Message)
		}
		s.logger.Error("Identity provider sign-up failed", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return result, nil
}

// Login exchanges credentials for a session. Every provider refusal maps to
// the same InvalidCredentials error so callers cannot probe which accounts exist.
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (*identity.AuthResult, error) {
	if err := common.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}

	result, err := s.provider.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		if rej, ok := identity.IsRejection(err); ok {
			s.logger.Info("Login rejected by identity provider", zap.Int("status", rej.StatusCode), zap.String("code", rej.Code))
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error("Identity provider sign-in failed", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	if result == nil || result.Session == nil {
		return nil, common.ErrInvalidCredentials
	}
	return result, nil
}

// Logout blocks the token locally and asks the provider to revoke it. The
// provider call is best-effort.
func (s *SessionService) Logout(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := s.blocklist.AddToBlocklist(ctx, accessToken, time.Now().Add(s.cfg.SessionCookieMaxAge)); err != nil {
		s.logger.Warn("Failed to blocklist access token", zap.Error(err))
	}
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("Identity provider sign-out failed", zap.Error(err))
	}
}

// Authenticate resolves the user behind accessToken.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*identity.User, error) {
	if accessToken == "" {
		return nil, common.ErrUnauthenticated
	}

	blocked, err := s.blocklist.IsBlocklisted(ctx, accessToken)
	if err != nil {
		s.logger.Error("Blocklist lookup failed", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	if blocked {
		return nil, common.ErrInvalidToken
	}

	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		if _, ok := identity.IsRejection(err); ok {
			return nil, common.ErrInvalidToken
		}
		s.logger.Error("Identity provider introspection failed", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return user, nil
}
