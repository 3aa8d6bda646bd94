package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "arkiva"

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// ErrUnauthorized indicates the caller lacks a required role.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Claims represents JWT claims used across the service.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 bearer tokens for route guards.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens constructs a token signer/verifier. An empty secret disables
// token support; callers check Enabled before use.
func NewTokens(secret string) *Tokens {
	secret = strings.TrimSpace(secret)
	t := &Tokens{now: time.Now}
	if secret != "" {
		t.secret = []byte(secret)
	}
	return t
}

// Enabled reports whether a signing secret is configured.
func (t *Tokens) Enabled() bool { return len(t.secret) > 0 }

// Generate signs a JWT for the given user and roles.
func (t *Tokens) Generate(userID string, roles []string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("userID is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	if !t.Enabled() {
		return "", errors.New("auth secret is not configured")
	}

	now := t.now().UTC()
	claims := Claims{
		Roles: dedupeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and required claims.
func (t *Tokens) ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || !t.Enabled() {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := t.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	claims.Roles = dedupeRoles(claims.Roles)
	return claims, nil
}

func (t *Tokens) validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := t.now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return errors.New("token not yet valid")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
