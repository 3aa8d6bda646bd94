package access

import (
	"context"

	"arkiva.org/internal/audit"
)

// Store describes persistence for the access matrix and habilitations.
//
// Mutating methods accept the audit entry describing the change and must
// commit it atomically with the mutation itself: a privileged write is never
// persisted without its audit record. Toggle must behave as a single
// conditional upsert on the (organization, access, role) triple so concurrent
// callers can never create duplicates.
type Store interface {
	ListMatrix(ctx context.Context, organizationID string) ([]MatrixEntry, error)
	FindMatrixEntry(ctx context.Context, organizationID, accessKey, roleKey string) (*MatrixEntry, error)
	Toggle(ctx context.Context, organizationID, accessKey, roleKey string, rec *audit.Entry) (ToggleResult, error)
	ReplaceMatrix(ctx context.Context, organizationID string, entries []MatrixEntry, rec *audit.Entry) (int, error)

	ListHabilitations(ctx context.Context, organizationID string) ([]Habilitation, error)
	HabilitationsForMember(ctx context.Context, organizationID, memberID string) ([]Habilitation, error)
	AddHabilitation(ctx context.Context, h *Habilitation, rec *audit.Entry) error
	// RemoveHabilitation deletes by id. A missing id is a silent no-op and
	// must not record the audit entry.
	RemoveHabilitation(ctx context.Context, id string, rec *audit.Entry) error
}
