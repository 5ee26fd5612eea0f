// File: internal/auth/blocklist.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// TokenBlocklistService remembers access tokens that were logged out.
type TokenBlocklistService interface {
	// AddToBlocklist blocks token until expiresAt.
	AddToBlocklist(ctx context.Context, token string, expiresAt time.Time) error
	// IsBlocklisted checks if token was blocked and has not expired yet.
	IsBlocklisted(ctx context.Context, token string) (bool, error)
}

// InMemoryBlocklistService is an in-memory implementation of TokenBlocklistService using a cache.
// Tokens are stored as SHA-256 digests, never in the clear.
type InMemoryBlocklistService struct {
	cache *cache.Cache
}

// InMemoryBlocklistConfig holds the configuration for the InMemoryBlocklistService.
type InMemoryBlocklistConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// NewInMemoryBlocklistService creates a new in-memory blocklist service.
func NewInMemoryBlocklistService(cfg InMemoryBlocklistConfig) *InMemoryBlocklistService {
	return &InMemoryBlocklistService{
		cache: cache.New(cfg.DefaultExpiration, cfg.CleanupInterval),
	}
}

// AddToBlocklist stores the token digest until expiresAt. Already expired
// tokens are ignored.
func (s *InMemoryBlocklistService) AddToBlocklist(ctx context.Context, token string, expiresAt time.Time) error {
	duration := time.Until(expiresAt)
	if duration <= 0 {
		return nil
	}
	s.cache.Set(tokenDigest(token), struct{}{}, duration)
	return nil
}

// IsBlocklisted checks if a token digest exists in the in-memory cache.
func (s *InMemoryBlocklistService) IsBlocklisted(ctx context.Context, token string) (bool, error) {
	_, found := s.cache.Get(tokenDigest(token))
	return found, nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
