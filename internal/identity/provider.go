// File: internal/identity/provider.go
package identity

import (
	"context"
	"errors"
	"fmt"

	"medibook_backend/internal/config"

	"go.uber.org/zap"
)

// Roles a user can carry in provider metadata.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// User is the normalized profile the broker relays to the client. It is
// derived from provider metadata and never persisted here.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Session is the provider-issued token pair. It lives only long enough to be
// written into cookies.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// AuthResult is returned by sign-up and sign-in. Session is nil when the
// provider requires email confirmation before issuing tokens.
type AuthResult struct {
	User    *User
	Session *Session
}

// SignUpParams carries the registration input forwarded to the provider.
type SignUpParams struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// Provider is the identity service of record. Implementations return a
// *RejectionError when the provider refused the request on business grounds
// (bad credentials, duplicate email, expired token) and any other error for
// transport or provider-side failures.
type Provider interface {
	SignUp(ctx context.Context, params SignUpParams) (*AuthResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*User, error)
}

// RejectionError is a provider-reported refusal.
type RejectionError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider rejected request (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider rejected request (%d): %s", e.StatusCode, e.Message)
}

// IsRejection reports whether err is, or wraps, a *RejectionError.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// New selects the provider implementation named by IDENTITY_PROVIDER.
func New(cfg *config.Config, logger *zap.Logger) (Provider, error) {
	switch cfg.IdentityProvider {
	case config.ProviderGoTrue:
		return NewGoTrueProvider(cfg, logger), nil
	case config.ProviderFirebase:
		return NewFirebaseProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}
}

func normalizeRole(role string) string {
	if role == RoleDoctor {
		return RoleDoctor
	}
	return RolePatient
}
