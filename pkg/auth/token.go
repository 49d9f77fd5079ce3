package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/config"
)

var (
	signingMethod = jwt.SigningMethodHS256

	errNoSecret  = errors.New("jwt secret is required")
	errNoIssuer  = errors.New("jwt issuer is required")
	errNoTTL     = errors.New("jwt expiration minutes must be positive")
	errNoSubject = errors.New("token missing user_id")
)

// MintAccessToken signs an HS256 token for the payload, valid from now for cfg.TTL().
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.Issuer == "":
		return "", errNoIssuer
	case cfg.TTL() <= 0:
		return "", errNoTTL
	case payload.UserID == uuid.Nil:
		return "", errNoSubject
	case !payload.Role.IsValid():
		return "", fmt.Errorf("invalid role %q", payload.Role)
	}

	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}
	registered := jwt.RegisteredClaims{
		ID:        id,
		Issuer:    cfg.Issuer,
		Subject:   payload.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL())),
	}

	signed, err := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID:           payload.UserID,
		Role:             payload.Role,
		RegisteredClaims: registered,
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. Only HS256 is accepted.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	claims := new(AccessTokenClaims)
	secret := func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil }
	if _, err := parser.ParseWithClaims(raw, claims, secret); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, errNoSubject
	}
	return claims, nil
}
