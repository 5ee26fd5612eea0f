// File: internal/identity/gotrue.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"medibook_backend/internal/config"

	"go.uber.org/zap"
)

// GoTrueProvider talks to a GoTrue-compatible auth REST API (the Supabase
// auth service).
type GoTrueProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGoTrueProvider builds a client for the provider at IDENTITY_PROVIDER_URL.
// Every call is bounded by IDENTITY_PROVIDER_TIMEOUT_SECONDS.
func NewGoTrueProvider(cfg *config.Config, logger *zap.Logger) *GoTrueProvider {
	return &GoTrueProvider{
		baseURL:    strings.TrimRight(cfg.IdentityProviderURL, "/"),
		apiKey:     cfg.IdentityProviderKey,
		httpClient: &http.Client{Timeout: cfg.IdentityProviderTimeout},
		logger:     logger.Named("gotrue"),
	}
}

type goTrueUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

type goTrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *goTrueUser `json:"user"`
}

// goTrueError covers the error shapes GoTrue has used across versions.
type goTrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e goTrueError) message() string {
	for _, m := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

func (e goTrueError) code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	return e.Error
}

// SignUp registers a user with {name, role} as user metadata. When email
// confirmation is enabled GoTrue answers with the bare user object and no
// tokens, which is reported as a nil Session.
func (p *GoTrueProvider) SignUp(ctx context.Context, params SignUpParams) (*AuthResult, error) {
	body := map[string]interface{}{
		"email":    params.Email,
		"password": params.Password,
		"data": map[string]string{
			"name": params.Name,
			"role": params.Role,
		},
	}

	raw, err := p.do(ctx, http.MethodPost, "/auth/v1/signup", "", body)
	if err != nil {
		return nil, err
	}

	var sess goTrueSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding signup response: %w", err)
	}
	if sess.AccessToken != "" && sess.User != nil {
		return &AuthResult{User: sess.User.normalize(), Session: sess.session()}, nil
	}

	var u goTrueUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decoding signup user: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("signup response carried neither a session nor a user")
	}
	return &AuthResult{User: u.normalize()}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}

	raw, err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}

	var sess goTrueSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if sess.User == nil {
		return nil, fmt.Errorf("token response carried no user")
	}
	result := &AuthResult{User: sess.User.normalize()}
	if sess.AccessToken != "" {
		result.Session = sess.session()
	}
	return result, nil
}

// SignOut revokes the session behind accessToken.
func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	_, err := p.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	return err
}

// GetUser introspects accessToken.
func (p *GoTrueProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	raw, err := p.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return nil, err
	}
	var u goTrueUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}
	if u.ID == "" {
		return nil, &RejectionError{StatusCode: http.StatusUnauthorized, Message: "token resolved to no user"}
	}
	return u.normalize(), nil
}

// do sends one request. bearer, when empty, falls back to the API key as
// GoTrue expects for anonymous endpoints. 4xx answers become *RejectionError,
// except 429 and, on key-only calls, 401/403: those mean the broker itself is
// throttled or misconfigured.
func (p *GoTrueProvider) do(ctx context.Context, method, path, bearer string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint, err := url.Parse(p.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("building provider url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building provider request: %w", err)
	}
	keyOnly := bearer == ""
	if keyOnly {
		bearer = p.apiKey
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("Identity provider request failed", zap.String("method", method), zap.String("path", endpoint.Path), zap.Error(err))
		return nil, fmt.Errorf("identity provider request %s %s: %w", method, endpoint.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading provider response: %w", err)
	}

	keyRefused := keyOnly && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests && !keyRefused:
		var ge goTrueError
		_ = json.Unmarshal(raw, &ge)
		p.logger.Debug("Identity provider rejected request",
			zap.String("path", endpoint.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", ge.code()),
		)
		return nil, &RejectionError{StatusCode: resp.StatusCode, Code: ge.code(), Message: ge.message()}
	default:
		p.logger.Error("Identity provider returned an unexpected status",
			zap.String("path", endpoint.Path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("identity provider %s %s: unexpected status %d", method, endpoint.Path, resp.StatusCode)
	}
}

func (s goTrueSession) session() *Session {
	return &Session{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresIn: s.ExpiresIn}
}

func (u goTrueUser) normalize() *User {
	name, _ := u.UserMetadata["name"].(string)
	role, _ := u.UserMetadata["role"].(string)
	return &User{ID: u.ID, Email: u.Email, Name: name, Role: normalizeRole(role)}
}
