package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
)

// JWTVerifier checks HMAC-signed bearer tokens against a shared secret and
// the expected audience.
type JWTVerifier struct {
	secret    []byte
	algorithm string
	audience  string
	now       func() time.Time
}

func NewJWTVerifier(cfg *config.AuthConfig) *JWTVerifier {
	return &JWTVerifier{
		secret:    []byte(cfg.JWTSecret),
		algorithm: strings.ToUpper(cfg.JWTAlgorithm),
		audience:  cfg.ExpectedAudience,
		now:       time.Now,
	}
}

// Verify returns the token subject.
func (v *JWTVerifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{v.algorithm}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("token rejected")
		return "", fmt.Errorf("%w: %s", domain.ErrUnauthorized, reason(err))
	}
	if !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		zlog.Logger.Warn().Msg("token without subject")
		return "", fmt.Errorf("%w: missing subject", domain.ErrUnauthorized)
	}

	return claims.Subject, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "invalid audience"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid signature"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing required claim"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	default:
		return "invalid token"
	}
}

var _ domain.TokenVerifier = (*JWTVerifier)(nil)
