package directory

import (
	"context"

	"arkiva.org/internal/audit"
)

// Store persists directory records.
//
// Both upserts must execute the find-or-create as one atomic unit keyed on
// the natural identity (organizations: owner_id + name, users: user_id) so
// concurrent onboarding calls for the same identity cannot insert twice.
// On an existing organization only profile fields and updated_at change;
// quota, settings, status and created_at are preserved. On an existing user
// profile fields, onboarding_completed and updated_at change and created_at
// is preserved.
//
// The audit entry commits with the write; implementations fill its ResourceID
// with the resulting record id before appending.
type Store interface {
	UpsertOrganization(ctx context.Context, org *Organization, rec *audit.Entry) (id string, created bool, err error)
	UpsertUser(ctx context.Context, user *User, rec *audit.Entry) (id string, created bool, err error)
	FindUserByUserID(ctx context.Context, userID string) (*User, error)
}
