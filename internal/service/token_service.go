package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
)

// TokenConfig holds what is needed to verify identity provider tokens.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

// TokenService validates HS256 access tokens minted by the identity
// provider. It never issues tokens for end users.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenService constructs the validator.
func NewTokenService(cfg TokenConfig) *TokenService {
	return &TokenService{cfg: cfg, now: time.Now}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	for _, aud := range s.cfg.Audience {
		opts = append(opts, jwt.WithAudience(aud))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" || !validRole(claims.Role) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is missing user_id or role")
	}
	return claims, nil
}

// SignToken mints a token with the shared secret. Used by tests and local
// tooling that stands in for the identity provider.
func (s *TokenService) SignToken(claims models.JWTClaims, ttl time.Duration) (string, error) {
	issuedAt := s.now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	if claims.Issuer == "" {
		claims.Issuer = s.cfg.Issuer
	}
	if len(claims.Audience) == 0 && len(s.cfg.Audience) > 0 {
		claims.Audience = jwt.ClaimStrings(s.cfg.Audience)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

func validRole(role models.UserRole) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleHOD, models.RoleInstructor, models.RoleStudent:
		return true
	default:
		return false
	}
}
