package audit

import (
	"context"
	"sort"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. Used by tests
// and local development; production runs on the PostgreSQL store.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty log.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, cloneEntry(*entry))
	return nil
}

func (s *InMemory) ListByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, e := range s.entries {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			res = append(res, cloneEntry(e))
		}
	}
	sortNewestFirst(res)
	return res, nil
}

func (s *InMemory) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, e := range s.entries {
		if e.OrganizationID == organizationID {
			res = append(res, cloneEntry(e))
		}
	}
	sortNewestFirst(res)
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

func cloneEntry(e Entry) Entry {
	if len(e.Details) > 0 {
		copied := make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			copied[k] = v
		}
		e.Details = copied
	}
	return e
}
