package auth

import (
	"context"
	"strings"
)

type userIDContextKey struct{}
type rolesContextKey struct{}

// ContextWithUser stores user identity in the context.
func ContextWithUser(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey{}, strings.TrimSpace(userID))
	if len(roles) > 0 {
		ctx = context.WithValue(ctx, rolesContextKey{}, dedupeRoles(roles))
	}
	return ctx
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userIDContextKey{}).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// RolesFromContext returns the roles stored in context (deduplicated and
// lower-cased).
func RolesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	v, ok := ctx.Value(rolesContextKey{}).([]string)
	if !ok || len(v) == 0 {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// HasRole checks whether the context contains the specified role.
func HasRole(ctx context.Context, role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	for _, r := range RolesFromContext(ctx) {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole returns ErrUnauthorized unless the context carries the role.
func RequireRole(ctx context.Context, role string) error {
	if !HasRole(ctx, role) {
		return ErrUnauthorized
	}
	return nil
}
