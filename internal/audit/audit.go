package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arkiva.org/internal/ids"
)

var (
	ErrInvalidInput = errors.New("audit: invalid input")
	ErrNotFound     = errors.New("audit: not found")
)

// Resource types accepted by the log. Matrix and habilitation mutations are
// audited under their own types so privileged permission changes stay traceable.
const (
	ResourceDocument     = "document"
	ResourceArchive      = "archive"
	ResourceSignature    = "signature"
	ResourceOrganization = "organization"
	ResourceUser         = "user"
	ResourceAccessMatrix = "access_matrix"
	ResourceHabilitation = "habilitation"
)

const defaultOrgListLimit = 100

var resourceTypes = map[string]struct{}{
	ResourceDocument:     {},
	ResourceArchive:      {},
	ResourceSignature:    {},
	ResourceOrganization: {},
	ResourceUser:         {},
	ResourceAccessMatrix: {},
	ResourceHabilitation: {},
}

// Entry is one append-only record of a privileged action. Entries are never
// mutated or deleted once written.
type Entry struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id,omitempty"`
	UserID         string            `json:"user_id"`
	Action         string            `json:"action"`
	ResourceType   string            `json:"resource_type"`
	ResourceID     string            `json:"resource_id"`
	Details        map[string]string `json:"details,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Store persists entries. Implementations must return list results ordered
// newest-first by CreatedAt (ties broken by ID descending).
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error)
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Entry, error)
}

// Service validates and records audit entries.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service backed by store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewEntry builds a validated, stamped entry without persisting it. Callers
// that persist mutations transactionally pass the result to their store so
// the audit row commits with the write.
func (s *Service) NewEntry(organizationID, userID, action, resourceType, resourceID string, details map[string]string) (*Entry, error) {
	userID = strings.TrimSpace(userID)
	action = strings.TrimSpace(action)
	resourceType = strings.TrimSpace(strings.ToLower(resourceType))
	resourceID = strings.TrimSpace(resourceID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if action == "" {
		return nil, fmt.Errorf("%w: action is required", ErrInvalidInput)
	}
	if _, ok := resourceTypes[resourceType]; !ok {
		return nil, fmt.Errorf("%w: unsupported resource type %q", ErrInvalidInput, resourceType)
	}
	if resourceID == "" {
		return nil, fmt.Errorf("%w: resource_id is required", ErrInvalidInput)
	}
	var copied map[string]string
	if len(details) > 0 {
		copied = make(map[string]string, len(details))
		for k, v := range details {
			copied[k] = v
		}
	}
	return &Entry{
		ID:             ids.New(),
		OrganizationID: strings.TrimSpace(organizationID),
		UserID:         userID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Details:        copied,
		CreatedAt:      s.now().UTC(),
	}, nil
}

// LogAction validates, stamps and appends an entry, returning its id.
func (s *Service) LogAction(ctx context.Context, organizationID, userID, action, resourceType, resourceID string, details map[string]string) (string, error) {
	entry, err := s.NewEntry(organizationID, userID, action, resourceType, resourceID, details)
	if err != nil {
		return "", err
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// ListByResource returns the history of one resource, newest-first.
func (s *Service) ListByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	resourceType = strings.TrimSpace(strings.ToLower(resourceType))
	resourceID = strings.TrimSpace(resourceID)
	if _, ok := resourceTypes[resourceType]; !ok {
		return nil, fmt.Errorf("%w: unsupported resource type %q", ErrInvalidInput, resourceType)
	}
	if resourceID == "" {
		return nil, fmt.Errorf("%w: resource_id is required", ErrInvalidInput)
	}
	return s.store.ListByResource(ctx, resourceType, resourceID)
}

// ListByOrganization returns the organization's history, newest-first,
// capped to limit entries (a non-positive limit applies the default cap).
func (s *Service) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Entry, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if limit <= 0 || limit > 1000 {
		limit = defaultOrgListLimit
	}
	return s.store.ListByOrganization(ctx, organizationID, limit)
}
