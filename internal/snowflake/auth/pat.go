package auth

import (
	"context"
)

// PatTokenProvider satisfies the TokenProvider contract with a pre-issued
// programmatic access token.  There is nothing to refresh; a rejected PAT
// stays rejected until the operator replaces it.
type PatTokenProvider struct {
	token string
}

func NewPatTokenProvider(token string) (*PatTokenProvider, error) {
	if token == "" {
		return nil, &AuthError{Message: "empty pat_token"}
	}
	return &PatTokenProvider{token: token}, nil
}

func (p *PatTokenProvider) GetToken(ctx context.Context) (string, error) {
	return p.token, nil
}

func (p *PatTokenProvider) ForceRefresh(ctx context.Context) (string, error) {
	return p.token, nil
}
