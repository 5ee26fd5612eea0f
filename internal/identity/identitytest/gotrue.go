// Package identitytest provides an in-process GoTrue-compatible auth server
// for tests.
package identitytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APIKey is the key the fake server expects in the apikey header.
const APIKey = "test-anon-key"

var signingKey = []byte("identitytest-signing-key")

type account struct {
	id       string
	email    string
	password string
	name     string
	role     string
}

// GoTrueServer is a fake of the GoTrue REST endpoints used by the broker.
type GoTrueServer struct {
	*httptest.Server

	// RequireConfirmation makes signup return a bare user without tokens.
	RequireConfirmation bool
	// FailLogout makes /logout answer 500.
	FailLogout bool

	mu       sync.Mutex
	accounts map[string]*account
	revoked  map[string]bool
	calls    int64
}

// NewGoTrueServer starts the fake. Callers must Close it.
func NewGoTrueServer() *GoTrueServer {
	s := &GoTrueServer{
		accounts: make(map[string]*account),
		revoked:  make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/signup", s.handleSignup)
	mux.HandleFunc("/auth/v1/token", s.handleToken)
	mux.HandleFunc("/auth/v1/logout", s.handleLogout)
	mux.HandleFunc("/auth/v1/user", s.handleUser)
	s.Server = httptest.NewServer(s.requireAPIKey(mux))
	return s
}

// Calls returns how many requests reached the fake.
func (s *GoTrueServer) Calls() int64 {
	return atomic.LoadInt64(&s.calls)
}

// AddUser seeds a confirmed account and returns its id.
func (s *GoTrueServer) AddUser(email, password, name, role string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &account{id: uuid.NewString(), email: email, password: password, name: name, role: role}
	s.accounts[strings.ToLower(email)] = a
	return a.id
}

// IssueToken mints an access token for a seeded account.
func (s *GoTrueServer) IssueToken(email string) string {
	s.mu.Lock()
	a := s.accounts[strings.ToLower(email)]
	s.mu.Unlock()
	if a == nil {
		return ""
	}
	return sign(a)
}

func (s *GoTrueServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.calls, 1)
		if r.Header.Get("apikey") != APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *GoTrueServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string            `json:"email"`
		Password string            `json:"password"`
		Data     map[string]string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "invalid body"})
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[strings.ToLower(req.Email)]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"code": 422, "error_code": "user_already_exists", "msg": "User already registered",
		})
		return
	}
	a := &account{id: uuid.NewString(), email: req.Email, password: req.Password, name: req.Data["name"], role: req.Data["role"]}
	s.accounts[strings.ToLower(req.Email)] = a
	s.mu.Unlock()

	if s.RequireConfirmation {
		writeJSON(w, http.StatusOK, userJSON(a))
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(a))
}

func (s *GoTrueServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "password" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	a := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if a == nil || a.password != req.Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid_grant", "error_description": "Invalid login credentials",
		})
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(a))
}

func (s *GoTrueServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.FailLogout {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "boom"})
		return
	}
	token := bearer(r)
	if _, ok := s.verify(token); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	s.mu.Lock()
	s.revoked[token] = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *GoTrueServer) handleUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.verify(bearer(r))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	s.mu.Lock()
	a := s.accounts[strings.ToLower(claims.Email)]
	s.mu.Unlock()
	if a == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, userJSON(a))
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func sign(a *account) string {
	claims := tokenClaims{
		Email: a.email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.id,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	return signed
}

func (s *GoTrueServer) verify(raw string) (*tokenClaims, bool) {
	if raw == "" {
		return nil, false
	}
	s.mu.Lock()
	revoked := s.revoked[raw]
	s.mu.Unlock()
	if revoked {
		return nil, false
	}
	claims := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, false
	}
	return claims, true
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func userJSON(a *account) map[string]interface{} {
	return map[string]interface{}{
		"id":    a.id,
		"email": a.email,
		"user_metadata": map[string]string{
			"name": a.name,
			"role": a.role,
		},
	}
}

func sessionJSON(a *account) map[string]interface{} {
	return map[string]interface{}{
		"access_token":  sign(a),
		"refresh_token": uuid.NewString(),
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          userJSON(a),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
