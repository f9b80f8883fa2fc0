// Package identity resolves the operator behind the configured bearer
// token.
package identity

import (
	"context"
	"errors"
	"sync"

	"Backend-Volunteer-Hours/src/services/approval"
	"Backend-Volunteer-Hours/src/utils"
)

var ErrNoCredential = errors.New("no operator credential")

type Operator struct {
	UserID          string
	DisplayName     string
	PermissionLevel approval.PermissionLevel
}

// Provider supplies the current operator to the attendance client and the
// auto-checkout scheduler.
type Provider interface {
	CurrentCredential(ctx context.Context) (string, bool)
	OperatorIdentity(ctx context.Context) (Operator, error)
}

// TokenProvider reads the operator from the claims of a JWT issued by the
// hour-record service.
type TokenProvider struct {
	mu    sync.RWMutex
	token string
}

func NewTokenProvider(token string) *TokenProvider {
	return &TokenProvider{token: token}
}

// SetToken replaces the token, e.g. after the operator signs in again.
// An empty token signs the operator out.
func (p *TokenProvider) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

func (p *TokenProvider) CurrentCredential(_ context.Context) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", false
	}
	if _, err := utils.ReadJWTClaims(p.token); err != nil {
		return "", false
	}
	return p.token, true
}

func (p *TokenProvider) OperatorIdentity(ctx context.Context) (Operator, error) {
	token, ok := p.CurrentCredential(ctx)
	if !ok {
		return Operator{}, ErrNoCredential
	}
	claims, err := utils.ReadJWTClaims(token)
	if err != nil {
		return Operator{}, err
	}
	if claims.UserID == "" {
		return Operator{}, errors.New("token carries no userId claim")
	}
	return Operator{
		UserID:          claims.UserID,
		DisplayName:     claims.LegalName,
		PermissionLevel: approval.PermissionLevel(claims.Role),
	}, nil
}

// Static is a fixed operator, for tests and single-user tools.
type Static struct {
	Token    string
	Operator Operator
	Err      error
}

func (s Static) CurrentCredential(context.Context) (string, bool) {
	return s.Token, s.Token != ""
}

func (s Static) OperatorIdentity(context.Context) (Operator, error) {
	if s.Err != nil {
		return Operator{}, s.Err
	}
	if s.Token == "" {
		return Operator{}, ErrNoCredential
	}
	return s.Operator, nil
}
