package service

import (
	"context"
	"crypto/subtle"

	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

// AuthService logs the operator in to the HTTP surface.
type AuthService struct {
	username     string
	passwordHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		username:     cfg.OperatorUsername,
		passwordHash: cfg.OperatorPasswordHash,
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// Login checks the operator credentials and issues an access token. Login is
// refused outright while no password hash is configured.
func (s *AuthService) Login(_ context.Context, username, password string) (domain.Token, error) {
	if s.passwordHash == "" {
		return domain.Token{}, apperrors.NewForbidden("operator login is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(s.username, domain.SubjectTypeOperator)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
