package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"medibook_backend/internal/identity"
)

// countingProvider is an in-memory identity.Provider that records how often
// it was called.
type countingProvider struct {
	mu sync.Mutex

	calls          int
	users          map[string]*fakeAccount
	tokens         map[string]string
	requireConfirm bool
	failSignOut    bool
	transportErr   error
}

type fakeAccount struct {
	user     identity.User
	password string
}

func newCountingProvider() *countingProvider {
	return &countingProvider{
		users:  make(map[string]*fakeAccount),
		tokens: make(map[string]string),
	}
}

func (p *countingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *countingProvider) seed(email, password, name, role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[email] = &fakeAccount{
		user:     identity.User{ID: "id-" + email, Email: email, Name: name, Role: role},
		password: password,
	}
}

func (p *countingProvider) issue(email string) *identity.Session {
	token := "access-" + email
	p.tokens[token] = email
	return &identity.Session{AccessToken: token, RefreshToken: "refresh-" + email, ExpiresIn: 3600}
}

func (p *countingProvider) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.transportErr != nil {
		return nil, p.transportErr
	}
	if _, exists := p.users[params.Email]; exists {
		return nil, &identity.RejectionError{StatusCode: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	acct := &fakeAccount{
		user:     identity.User{ID: "id-" + params.Email, Email: params.Email, Name: params.Name, Role: params.Role},
		password: params.Password,
	}
	p.users[params.Email] = acct
	u := acct.user
	if p.requireConfirm {
		return &identity.AuthResult{User: &u}, nil
	}
	return &identity.AuthResult{User: &u, Session: p.issue(params.Email)}, nil
}

func (p *countingProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.transportErr != nil {
		return nil, p.transportErr
	}
	acct, ok := p.users[email]
	if !ok || acct.password != password {
		return nil, &identity.RejectionError{StatusCode: http.StatusBadRequest, Code: "invalid_grant", Message: "Invalid login credentials"}
	}
	u := acct.user
	return &identity.AuthResult{User: &u, Session: p.issue(email)}, nil
}

func (p *countingProvider) SignOut(ctx context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failSignOut {
		return errors.New("provider unavailable")
	}
	delete(p.tokens, accessToken)
	return nil
}

func (p *countingProvider) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.transportErr != nil {
		return nil, p.transportErr
	}
	email, ok := p.tokens[accessToken]
	if !ok {
		return nil, &identity.RejectionError{StatusCode: http.StatusUnauthorized, Message: "invalid JWT"}
	}
	u := p.users[email].user
	return &u, nil
}
