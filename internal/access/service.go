package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"arkiva.org/internal/audit"
	"arkiva.org/internal/auth"
	"arkiva.org/internal/ids"
)

// MatrixInput is one desired matrix cell for a bulk replace.
type MatrixInput struct {
	AccessKey string `json:"access_key"`
	RoleKey   string `json:"role_key"`
	Granted   bool   `json:"granted"`
}

// HabilitationInput carries the fields for a new habilitation.
type HabilitationInput struct {
	OrganizationID string     `json:"organization_id"`
	MemberID       string     `json:"member_id"`
	MemberName     string     `json:"member_name"`
	AccessKey      string     `json:"access_key"`
	AccessCellID   string     `json:"access_cell_id"`
	Type           string     `json:"type"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// Service owns matrix and habilitation mutations. Every privileged write
// carries its audit entry into the store so mutation and audit record commit
// together.
type Service struct {
	store Store
	audit *audit.Service
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the access service.
func NewService(store Store, auditSvc *audit.Service, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("access store is required")
	}
	if auditSvc == nil {
		return nil, errors.New("audit service is required")
	}
	s := &Service{store: store, audit: auditSvc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListMatrix returns all matrix entries for the organization. Order carries
// no contract.
func (s *Service) ListMatrix(ctx context.Context, organizationID string) ([]MatrixEntry, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListMatrix(ctx, organizationID)
}

// Toggle flips the grant for one (accessKey, roleKey) cell, creating it
// granted when absent. The store performs the flip as one conditional upsert.
func (s *Service) Toggle(ctx context.Context, organizationID, accessKey, roleKey string) (ToggleResult, error) {
	organizationID = strings.TrimSpace(organizationID)
	accessKey = strings.TrimSpace(accessKey)
	roleKey = strings.TrimSpace(roleKey)
	if organizationID == "" || accessKey == "" || roleKey == "" {
		return ToggleResult{}, fmt.Errorf("%w: organization_id, access_key and role_key are required", ErrInvalidInput)
	}
	rec, err := s.audit.NewEntry(organizationID, actorFrom(ctx), "access.matrix.toggle",
		audit.ResourceAccessMatrix, accessKey+":"+roleKey, map[string]string{
			"access_key": accessKey,
			"role_key":   roleKey,
		})
	if err != nil {
		return ToggleResult{}, err
	}
	return s.store.Toggle(ctx, organizationID, accessKey, roleKey, rec)
}

// ReplaceMatrix replaces the organization's whole matrix with entries. After
// it returns the stored matrix equals the input exactly; the store applies
// delete and insert inside one transaction.
func (s *Service) ReplaceMatrix(ctx context.Context, organizationID string, inputs []MatrixInput) (int, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return 0, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(inputs))
	entries := make([]MatrixEntry, 0, len(inputs))
	nowUTC := s.now().UTC()
	for _, in := range inputs {
		accessKey := strings.TrimSpace(in.AccessKey)
		roleKey := strings.TrimSpace(in.RoleKey)
		if accessKey == "" || roleKey == "" {
			return 0, fmt.Errorf("%w: access_key and role_key are required on every entry", ErrInvalidInput)
		}
		key := accessKey + ":" + roleKey
		if _, dup := seen[key]; dup {
			return 0, fmt.Errorf("%w: duplicate entry for %s", ErrInvalidInput, key)
		}
		seen[key] = struct{}{}
		entries = append(entries, MatrixEntry{
			ID:             ids.New(),
			OrganizationID: organizationID,
			AccessKey:      accessKey,
			RoleKey:        roleKey,
			Granted:        in.Granted,
			CreatedAt:      nowUTC,
			UpdatedAt:      nowUTC,
		})
	}
	rec, err := s.audit.NewEntry(organizationID, actorFrom(ctx), "access.matrix.replace",
		audit.ResourceAccessMatrix, organizationID, map[string]string{
			"count": strconv.Itoa(len(entries)),
		})
	if err != nil {
		return 0, err
	}
	return s.store.ReplaceMatrix(ctx, organizationID, entries, rec)
}

// ListHabilitations returns the organization's overrides, newest-first.
func (s *Service) ListHabilitations(ctx context.Context, organizationID string) ([]Habilitation, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListHabilitations(ctx, organizationID)
}

// AddHabilitation inserts a new override. Duplicates for the same member and
// access key are allowed; the resolver picks the newest one.
func (s *Service) AddHabilitation(ctx context.Context, in HabilitationInput) (*Habilitation, error) {
	h := &Habilitation{
		ID:             ids.New(),
		OrganizationID: strings.TrimSpace(in.OrganizationID),
		MemberID:       strings.TrimSpace(in.MemberID),
		MemberName:     strings.TrimSpace(in.MemberName),
		AccessKey:      strings.TrimSpace(in.AccessKey),
		AccessCellID:   strings.TrimSpace(in.AccessCellID),
		Type:           strings.TrimSpace(strings.ToLower(in.Type)),
		ExpiresAt:      in.ExpiresAt,
		CreatedAt:      s.now().UTC(),
	}
	if h.OrganizationID == "" || h.MemberID == "" || h.MemberName == "" || h.AccessKey == "" {
		return nil, fmt.Errorf("%w: organization_id, member_id, member_name and access_key are required", ErrInvalidInput)
	}
	switch h.Type {
	case HabilitationGrant, HabilitationRevoke:
		h.ExpiresAt = nil
	case HabilitationTemporary:
		if h.ExpiresAt == nil {
			return nil, fmt.Errorf("%w: expires_at is required for temporary habilitations", ErrInvalidInput)
		}
		if !h.ExpiresAt.After(h.CreatedAt) {
			return nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported habilitation type %q", ErrInvalidInput, h.Type)
	}
	rec, err := s.audit.NewEntry(h.OrganizationID, actorFrom(ctx), "access.habilitation.add",
		audit.ResourceHabilitation, h.ID, map[string]string{
			"member_id":  h.MemberID,
			"access_key": h.AccessKey,
			"type":       h.Type,
		})
	if err != nil {
		return nil, err
	}
	if err := s.store.AddHabilitation(ctx, h, rec); err != nil {
		return nil, err
	}
	return h, nil
}

// RemoveHabilitation deletes an override by id. Removing an id that does not
// exist is a no-op: callers must not assume the entry existed.
func (s *Service) RemoveHabilitation(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	rec, err := s.audit.NewEntry("", actorFrom(ctx), "access.habilitation.remove",
		audit.ResourceHabilitation, id, nil)
	if err != nil {
		return err
	}
	return s.store.RemoveHabilitation(ctx, id, rec)
}

// EffectiveAccess loads the member's overrides and the matrix cell for
// (accessKey, roleKey) and resolves them into a decision.
func (s *Service) EffectiveAccess(ctx context.Context, organizationID, memberID, roleKey, accessKey string) (Decision, error) {
	organizationID = strings.TrimSpace(organizationID)
	memberID = strings.TrimSpace(memberID)
	roleKey = strings.TrimSpace(roleKey)
	accessKey = strings.TrimSpace(accessKey)
	if organizationID == "" || memberID == "" || roleKey == "" || accessKey == "" {
		return Decision{}, fmt.Errorf("%w: organization_id, member_id, role_key and access_key are required", ErrInvalidInput)
	}
	habs, err := s.store.HabilitationsForMember(ctx, organizationID, memberID)
	if err != nil {
		return Decision{}, err
	}
	entry, err := s.store.FindMatrixEntry(ctx, organizationID, accessKey, roleKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Decision{}, err
	}
	return Resolve(s.now().UTC(), accessKey, habs, entry), nil
}

func actorFrom(ctx context.Context) string {
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		return userID
	}
	return "system"
}
