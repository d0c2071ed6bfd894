package auth

import (
	"context"
	"errors"

	"github.com/tspannhw/thermal-streamer/internal/config"
)

// TokenProvider supplies a currently valid scoped access token.  GetToken
// refreshes transparently when the cached token is close to expiry;
// ForceRefresh discards the cached token first (used after the service
// rejects a request with 401/403).
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// AuthError is a credential failure.  It is not retried locally: a rejected
// signature or revoked secret will not self-correct.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth error: " + e.Message + ": " + e.Err.Error()
	}
	return "auth error: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewTokenProvider selects the credential strategy configured for the
// process: key-pair (signed assertion exchanged for a scoped token) or a
// pre-issued programmatic access token.
func NewTokenProvider(cfg *config.Config) (TokenProvider, error) {
	switch cfg.AuthMethod {
	case config.AuthMethodKeyPair:
		return NewKeyPairTokenProvider(cfg)
	case config.AuthMethodPat:
		return NewPatTokenProvider(cfg.PatToken)
	default:
		return nil, errors.New("Invalid TokenProvider impl requested: " + cfg.AuthMethod)
	}
}
