package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arkiva.org/internal/audit"
	"arkiva.org/internal/auth"
	"arkiva.org/internal/ids"
)

// OrganizationInput carries identity-sync fields for an organization.
type OrganizationInput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	OwnerID     string `json:"owner_id"`
	LogoURL     string `json:"logo_url"`
	Sector      string `json:"sector"`
	Description string `json:"description"`
}

// UserInput carries identity-sync fields for a user profile.
type UserInput struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	PersonaType string `json:"persona_type"`
}

// Service syncs organization and user records from the external auth provider.
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

// NewService constructs the directory service.
func NewService(store Store, auditSvc *audit.Service, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
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

// MigrateOrganization finds or creates the organization identified by
// (OwnerID, Name). Baseline quota, settings and status apply on creation
// only; re-migrating an existing organization patches profile fields without
// resetting prior customization.
func (s *Service) MigrateOrganization(ctx context.Context, in OrganizationInput) (string, error) {
	nowUTC := s.now().UTC()
	org := &Organization{
		ID:          ids.New(),
		Name:        strings.TrimSpace(in.Name),
		Type:        strings.TrimSpace(strings.ToLower(in.Type)),
		OwnerID:     strings.TrimSpace(in.OwnerID),
		LogoURL:     strings.TrimSpace(in.LogoURL),
		Sector:      strings.TrimSpace(in.Sector),
		Description: strings.TrimSpace(in.Description),
		Status:      OrgStatusActive,
		Quota:       DefaultQuota(),
		Settings:    DefaultSettings(),
		CreatedAt:   nowUTC,
		UpdatedAt:   nowUTC,
	}
	if org.Name == "" || org.Type == "" || org.OwnerID == "" {
		return "", fmt.Errorf("%w: name, type and owner_id are required", ErrInvalidInput)
	}
	rec, err := s.audit.NewEntry("", actorFrom(ctx), "directory.organization.migrate",
		audit.ResourceOrganization, org.ID, map[string]string{
			"owner_id": org.OwnerID,
			"name":     org.Name,
		})
	if err != nil {
		return "", err
	}
	id, _, err := s.store.UpsertOrganization(ctx, org, rec)
	if err != nil {
		return "", err
	}
	return id, nil
}

// MigrateUser finds or creates the user keyed by the external subject
// identifier. Onboarding is marked completed on every call; created_at is
// preserved across re-migrations.
func (s *Service) MigrateUser(ctx context.Context, in UserInput) (string, error) {
	nowUTC := s.now().UTC()
	user := &User{
		ID:                  ids.New(),
		UserID:              strings.TrimSpace(in.UserID),
		Email:               strings.TrimSpace(strings.ToLower(in.Email)),
		DisplayName:         strings.TrimSpace(in.DisplayName),
		AvatarURL:           strings.TrimSpace(in.AvatarURL),
		PersonaType:         strings.TrimSpace(strings.ToLower(in.PersonaType)),
		OnboardingCompleted: true,
		CreatedAt:           nowUTC,
		UpdatedAt:           nowUTC,
	}
	if user.UserID == "" {
		return "", fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if user.DisplayName == "" {
		return "", fmt.Errorf("%w: display_name is required", ErrInvalidInput)
	}
	switch user.PersonaType {
	case "", PersonaCitizen, PersonaBusiness, PersonaInstitutional:
	default:
		return "", fmt.Errorf("%w: unsupported persona type %q", ErrInvalidInput, user.PersonaType)
	}
	rec, err := s.audit.NewEntry("", actorFrom(ctx), "directory.user.migrate",
		audit.ResourceUser, user.ID, map[string]string{
			"user_id": user.UserID,
		})
	if err != nil {
		return "", err
	}
	id, _, err := s.store.UpsertUser(ctx, user, rec)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetByUserID returns the profile for the external subject identifier.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.FindUserByUserID(ctx, userID)
}

func actorFrom(ctx context.Context) string {
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		return userID
	}
	return "system"
}
