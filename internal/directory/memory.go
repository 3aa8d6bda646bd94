package directory

import (
	"context"
	"sync"
	"time"

	"arkiva.org/internal/audit"
)

// InMemory implements Store with in-process concurrency safety. Used by tests
// and local development; production runs on the PostgreSQL store.
type InMemory struct {
	mu       sync.RWMutex
	orgs     map[string]Organization // keyed by ownerID + "\x00" + name
	users    map[string]User         // keyed by external user id
	auditLog audit.Store
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty directory writing audit records to auditLog.
func NewInMemory(auditLog audit.Store) *InMemory {
	return &InMemory{
		orgs:     make(map[string]Organization),
		users:    make(map[string]User),
		auditLog: auditLog,
	}
}

func (s *InMemory) UpsertOrganization(ctx context.Context, org *Organization, rec *audit.Entry) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := org.OwnerID + "\x00" + org.Name
	existing, ok := s.orgs[key]
	if !ok {
		s.orgs[key] = *org
		return org.ID, true, s.appendAudit(ctx, rec, org.ID)
	}
	existing.Type = org.Type
	existing.LogoURL = org.LogoURL
	existing.Sector = org.Sector
	existing.Description = org.Description
	existing.UpdatedAt = time.Now().UTC()
	s.orgs[key] = existing
	return existing.ID, false, s.appendAudit(ctx, rec, existing.ID)
}

func (s *InMemory) UpsertUser(ctx context.Context, user *User, rec *audit.Entry) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.UserID]
	if !ok {
		s.users[user.UserID] = *user
		return user.ID, true, s.appendAudit(ctx, rec, user.ID)
	}
	existing.Email = user.Email
	existing.DisplayName = user.DisplayName
	existing.AvatarURL = user.AvatarURL
	existing.PersonaType = user.PersonaType
	existing.OnboardingCompleted = true
	existing.UpdatedAt = time.Now().UTC()
	s.users[user.UserID] = existing
	return existing.ID, false, s.appendAudit(ctx, rec, existing.ID)
}

func (s *InMemory) FindUserByUserID(ctx context.Context, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := u
	return &out, nil
}

func (s *InMemory) appendAudit(ctx context.Context, rec *audit.Entry, resourceID string) error {
	if s.auditLog == nil || rec == nil {
		return nil
	}
	rec.ResourceID = resourceID
	return s.auditLog.Append(ctx, rec)
}
