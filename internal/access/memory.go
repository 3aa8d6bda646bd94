package access

import (
	"context"
	"sort"
	"sync"
	"time"

	"arkiva.org/internal/audit"
	"arkiva.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Used by tests
// and local development; production runs on the PostgreSQL store. Audit
// records are appended under the same lock as the mutation, mirroring the
// transactional coupling of the durable store.
type InMemory struct {
	mu            sync.RWMutex
	matrix        map[string]MatrixEntry // org + "\x00" + accessKey + "\x00" + roleKey
	habilitations map[string]Habilitation
	auditLog      audit.Store
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store writing audit records to auditLog.
func NewInMemory(auditLog audit.Store) *InMemory {
	return &InMemory{
		matrix:        make(map[string]MatrixEntry),
		habilitations: make(map[string]Habilitation),
		auditLog:      auditLog,
	}
}

func matrixKey(organizationID, accessKey, roleKey string) string {
	return organizationID + "\x00" + accessKey + "\x00" + roleKey
}

func (s *InMemory) ListMatrix(ctx context.Context, organizationID string) ([]MatrixEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []MatrixEntry
	for _, e := range s.matrix {
		if e.OrganizationID == organizationID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (s *InMemory) FindMatrixEntry(ctx context.Context, organizationID, accessKey, roleKey string) (*MatrixEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.matrix[matrixKey(organizationID, accessKey, roleKey)]
	if !ok {
		return nil, ErrNotFound
	}
	out := e
	return &out, nil
}

func (s *InMemory) Toggle(ctx context.Context, organizationID, accessKey, roleKey string, rec *audit.Entry) (ToggleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := matrixKey(organizationID, accessKey, roleKey)
	result := ToggleResult{}
	if e, ok := s.matrix[key]; ok {
		e.Granted = !e.Granted
		e.UpdatedAt = now
		s.matrix[key] = e
		result = ToggleResult{Action: ToggleActionToggled, Granted: e.Granted}
	} else {
		s.matrix[key] = MatrixEntry{
			ID:             ids.New(),
			OrganizationID: organizationID,
			AccessKey:      accessKey,
			RoleKey:        roleKey,
			Granted:        true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		result = ToggleResult{Action: ToggleActionCreated, Granted: true}
	}
	if err := s.appendAudit(ctx, rec); err != nil {
		return ToggleResult{}, err
	}
	return result, nil
}

func (s *InMemory) ReplaceMatrix(ctx context.Context, organizationID string, entries []MatrixEntry, rec *audit.Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.matrix {
		if e.OrganizationID == organizationID {
			delete(s.matrix, key)
		}
	}
	for _, e := range entries {
		s.matrix[matrixKey(organizationID, e.AccessKey, e.RoleKey)] = e
	}
	if err := s.appendAudit(ctx, rec); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *InMemory) ListHabilitations(ctx context.Context, organizationID string) ([]Habilitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Habilitation
	for _, h := range s.habilitations {
		if h.OrganizationID == organizationID {
			res = append(res, h)
		}
	}
	sortHabilitationsNewestFirst(res)
	return res, nil
}

func (s *InMemory) HabilitationsForMember(ctx context.Context, organizationID, memberID string) ([]Habilitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Habilitation
	for _, h := range s.habilitations {
		if h.OrganizationID == organizationID && h.MemberID == memberID {
			res = append(res, h)
		}
	}
	sortHabilitationsNewestFirst(res)
	return res, nil
}

func (s *InMemory) AddHabilitation(ctx context.Context, h *Habilitation, rec *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.habilitations[h.ID] = *h
	return s.appendAudit(ctx, rec)
}

func (s *InMemory) RemoveHabilitation(ctx context.Context, id string, rec *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habilitations[id]
	if !ok {
		return nil
	}
	delete(s.habilitations, id)
	if rec != nil {
		rec.OrganizationID = h.OrganizationID
	}
	return s.appendAudit(ctx, rec)
}

func (s *InMemory) appendAudit(ctx context.Context, rec *audit.Entry) error {
	if s.auditLog == nil || rec == nil {
		return nil
	}
	return s.auditLog.Append(ctx, rec)
}

func sortHabilitationsNewestFirst(habs []Habilitation) {
	sort.SliceStable(habs, func(i, j int) bool {
		if habs[i].CreatedAt.Equal(habs[j].CreatedAt) {
			return habs[i].ID > habs[j].ID
		}
		return habs[i].CreatedAt.After(habs[j].CreatedAt)
	})
}
