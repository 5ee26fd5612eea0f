// File: internal/identity/firebase.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"medibook_backend/internal/config"
)

// firebaseAuthClient is the subset of *auth.Client the provider uses.
type firebaseAuthClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string) error
}

const rollbackTimeout = 10 * time.Second

// passwordVerifier exchanges email and password for Firebase ID and refresh
// tokens. The Admin SDK cannot do this, so it goes through Identity Toolkit.
type passwordVerifier interface {
	VerifyPassword(ctx context.Context, email, password string) (*identitytoolkit.VerifyPasswordResponse, error)
}

type identityToolkitVerifier struct {
	svc *identitytoolkit.Service
}

func (v *identityToolkitVerifier) VerifyPassword(ctx context.Context, email, password string) (*identitytoolkit.VerifyPasswordResponse, error) {
	return v.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
}

// FirebaseProvider implements Provider on Firebase Authentication. Roles are
// stored as a "role" custom claim so they travel inside the ID token.
type FirebaseProvider struct {
	authClient firebaseAuthClient
	passwords  passwordVerifier
	logger     *zap.Logger
}

// NewFirebaseProvider initializes the Firebase Admin SDK from the service
// account key and an Identity Toolkit client from the web API key.
func NewFirebaseProvider(cfg *config.Config, logger *zap.Logger) (*FirebaseProvider, error) {
	logger = logger.Named("firebase")
	if cfg.FirebaseServiceAccountKeyPath == "" {
		return nil, fmt.Errorf("firebase service account key path is required")
	}
	ctx := context.Background()

	cleanPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
	var fbConf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConf, option.WithCredentialsFile(cleanPath))
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", cleanPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		logger.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.IdentityProviderTimeout}
	toolkit, err := identitytoolkit.NewService(ctx,
		option.WithAPIKey(cfg.FirebaseWebAPIKey),
		option.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating Identity Toolkit client: %w", err)
	}

	logger.Info("Firebase identity provider initialized")
	return &FirebaseProvider{
		authClient: authClient,
		passwords:  &identityToolkitVerifier{svc: toolkit},
		logger:     logger,
	}, nil
}

// SignUp creates the account, records the role claim and signs the new user
// in. Firebase does not gate sign-in on email confirmation, so a session is
// always returned. If either later step fails the account is deleted again,
// so the email stays free for a retry.
func (p *FirebaseProvider) SignUp(ctx context.Context, params SignUpParams) (*AuthResult, error) {
	toCreate := (&auth.UserToCreate{}).
		Email(params.Email).
		Password(params.Password).
		DisplayName(params.Name)

	record, err := p.authClient.CreateUser(ctx, toCreate)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, &RejectionError{StatusCode: http.StatusBadRequest, Code: "EMAIL_EXISTS", Message: "User already registered"}
		}
		return nil, fmt.Errorf("firebase create user: %w", err)
	}

	role := normalizeRole(params.Role)
	if err := p.authClient.SetCustomUserClaims(ctx, record.UID, map[string]interface{}{"role": role}); err != nil {
		p.rollbackUser(ctx, record.UID)
		return nil, fmt.Errorf("firebase set role claim: %w", err)
	}

	result, err := p.SignInWithPassword(ctx, params.Email, params.Password)
	if err != nil {
		p.rollbackUser(ctx, record.UID)
		return nil, err
	}
	result.User = &User{ID: record.UID, Email: record.Email, Name: params.Name, Role: role}
	return result, nil
}

// rollbackUser deletes a half-registered account. It runs even when ctx is
// already cancelled.
func (p *FirebaseProvider) rollbackUser(ctx context.Context, uid string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := p.authClient.DeleteUser(ctx, uid); err != nil {
		p.logger.Error("Failed to roll back partially registered user", zap.String("uid", uid), zap.Error(err))
		return
	}
	p.logger.Warn("Rolled back partially registered user", zap.String("uid", uid))
}

// SignInWithPassword verifies the credentials and reads the role back from
// the issued ID token.
func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	resp, err := p.passwords.VerifyPassword(ctx, email, password)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500 {
			return nil, &RejectionError{StatusCode: gerr.Code, Code: gerr.Message, Message: gerr.Message}
		}
		return nil, fmt.Errorf("firebase verify password: %w", err)
	}

	user := &User{ID: resp.LocalId, Email: resp.Email, Name: resp.DisplayName, Role: RolePatient}
	if tok, err := p.authClient.VerifyIDToken(ctx, resp.IdToken); err == nil {
		user = userFromToken(tok)
	} else {
		p.logger.Warn("Freshly issued ID token failed verification", zap.String("uid", resp.LocalId), zap.Error(err))
	}

	return &AuthResult{
		User: user,
		Session: &Session{
			AccessToken:  resp.IdToken,
			RefreshToken: resp.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
		},
	}, nil
}

// SignOut revokes every refresh token of the user owning accessToken.
func (p *FirebaseProvider) SignOut(ctx context.Context, accessToken string) error {
	tok, err := p.authClient.VerifyIDToken(ctx, accessToken)
	if err != nil {
		return p.tokenError(err)
	}
	if err := p.authClient.RevokeRefreshTokens(ctx, tok.UID); err != nil {
		return fmt.Errorf("firebase revoke refresh tokens: %w", err)
	}
	return nil
}

// GetUser verifies accessToken, including the revocation check.
func (p *FirebaseProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	tok, err := p.authClient.VerifyIDTokenAndCheckRevoked(ctx, accessToken)
	if err != nil {
		return nil, p.tokenError(err)
	}
	return userFromToken(tok), nil
}

func (p *FirebaseProvider) tokenError(err error) error {
	if auth.IsIDTokenInvalid(err) || auth.IsIDTokenExpired(err) || auth.IsIDTokenRevoked(err) {
		return &RejectionError{StatusCode: http.StatusUnauthorized, Code: "INVALID_ID_TOKEN", Message: "invalid or expired ID token"}
	}
	return fmt.Errorf("firebase verify ID token: %w", err)
}

func userFromToken(tok *auth.Token) *User {
	email, _ := tok.Claims["email"].(string)
	name, _ := tok.Claims["name"].(string)
	role, _ := tok.Claims["role"].(string)
	return &User{ID: tok.UID, Email: email, Name: name, Role: normalizeRole(role)}
}
