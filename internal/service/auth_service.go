package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodbank/internal/security/auth"
)

// ErrTokenRevoked is returned for tokens that were logged out.
var ErrTokenRevoked = errors.New("token has been revoked")

// AuthService handles admin authentication operations
type AuthService struct {
	credentials *auth.AdminCredentials
	tokens      *auth.TokenManager
	revoker     auth.Revoker
	ttl         time.Duration
	logger      *slog.Logger
}

// LoginResult represents login response
type LoginResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
}

// NewAuthService creates a new authentication service
func NewAuthService(
	credentials *auth.AdminCredentials,
	tokens *auth.TokenManager,
	revoker auth.Revoker,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthService{
		credentials: credentials,
		tokens:      tokens,
		revoker:     revoker,
		ttl:         ttl,
		logger:      logger,
	}
}

// Login verifies the admin credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if err := s.credentials.Verify(username, password); err != nil {
		metrics.ObserveLogin("failure")
		s.logger.Warn("admin login failed", slog.String("username", username))
		return nil, err
	}

	token, claims, err := s.tokens.GenerateToken(s.credentials.Username(), s.ttl)
	if err != nil {
		metrics.ObserveLogin("error")
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	metrics.ObserveLogin("success")
	s.logger.Info("admin logged in", slog.String("username", claims.Username))
	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Time,
		Username:  claims.Username,
	}, nil
}

// Logout revokes the token identified by claims until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return auth.ErrMissingToken
	}
	expires := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := s.revoker.Revoke(ctx, claims.ID, expires); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logger.Info("admin logged out", slog.String("username", claims.Username))
	return nil
}

// Authenticate checks signature, expiry and revocation of token.
// A revocation store that cannot be reached rejects the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}
