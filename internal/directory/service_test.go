package directory

import (
	"context"
	"errors"
	"testing"

	"arkiva.org/internal/audit"
)

func newTestService(t *testing.T) (*Service, *InMemory, *audit.InMemory) {
	t.Helper()
	auditStore := audit.NewInMemory()
	auditSvc, err := audit.NewService(auditStore)
	if err != nil {
		t.Fatalf("audit.NewService: %v", err)
	}
	store := NewInMemory(auditStore)
	svc, err := NewService(store, auditSvc)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, auditStore
}

func TestMigrateOrganizationIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	in := OrganizationInput{
		Name:    "Acme Archives",
		Type:    "business",
		OwnerID: "owner-1",
		Sector:  "legal",
	}
	id1, err := svc.MigrateOrganization(ctx, in)
	if err != nil {
		t.Fatalf("MigrateOrganization: %v", err)
	}
	if id1 == "" {
		t.Fatalf("expected organization id")
	}

	// Re-migrating the same (owner, name) pair returns the existing record.
	in.Description = "updated description"
	id2, err := svc.MigrateOrganization(ctx, in)
	if err != nil {
		t.Fatalf("MigrateOrganization: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("expected the same organization id, got %s and %s", id1, id2)
	}

	org := store.orgs["owner-1\x00Acme Archives"]
	if org.Description != "updated description" {
		t.Fatalf("profile fields must be patched on re-migration, got %q", org.Description)
	}
	if org.Status != OrgStatusActive {
		t.Fatalf("unexpected status: %s", org.Status)
	}
}

func TestMigrateOrganizationPreservesCustomization(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	in := OrganizationInput{Name: "Acme", Type: "business", OwnerID: "owner-1"}
	if _, err := svc.MigrateOrganization(ctx, in); err != nil {
		t.Fatalf("MigrateOrganization: %v", err)
	}

	// Simulate an operator raising the quota after onboarding.
	key := "owner-1\x00Acme"
	org := store.orgs[key]
	org.Quota.MaxSeats = 50
	org.Status = OrgStatusSuspended
	createdAt := org.CreatedAt
	store.orgs[key] = org

	if _, err := svc.MigrateOrganization(ctx, in); err != nil {
		t.Fatalf("MigrateOrganization: %v", err)
	}
	org = store.orgs[key]
	if org.Quota.MaxSeats != 50 {
		t.Fatalf("re-migration must not reset quota, got %d seats", org.Quota.MaxSeats)
	}
	if org.Status != OrgStatusSuspended {
		t.Fatalf("re-migration must not reset status, got %s", org.Status)
	}
	if !org.CreatedAt.Equal(createdAt) {
		t.Fatalf("created_at must be preserved")
	}
}

func TestMigrateOrganizationValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []OrganizationInput{
		{Type: "business", OwnerID: "owner-1"},
		{Name: "Acme", OwnerID: "owner-1"},
		{Name: "Acme", Type: "business"},
	}
	for _, in := range cases {
		if _, err := svc.MigrateOrganization(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}
}

func TestMigrateOrganizationDefaults(t *testing.T) {
	svc, store, _ := newTestService(t)
	if _, err := svc.MigrateOrganization(context.Background(), OrganizationInput{
		Name: "Acme", Type: "business", OwnerID: "owner-1",
	}); err != nil {
		t.Fatalf("MigrateOrganization: %v", err)
	}
	org := store.orgs["owner-1\x00Acme"]
	if org.Quota.MaxSeats != 5 || org.Quota.MaxStorageBytes != 5<<30 {
		t.Fatalf("unexpected default quota: %+v", org.Quota)
	}
	if org.Settings.Locale != "fr-FR" || org.Settings.Currency != "EUR" {
		t.Fatalf("unexpected default settings: %+v", org.Settings)
	}
}

func TestMigrateUserIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := UserInput{
		UserID:      "ext-123",
		Email:       "Ada@Example.com",
		DisplayName: "Ada",
		PersonaType: "citizen",
	}
	id1, err := svc.MigrateUser(ctx, in)
	if err != nil {
		t.Fatalf("MigrateUser: %v", err)
	}

	in.DisplayName = "Ada L."
	id2, err := svc.MigrateUser(ctx, in)
	if err != nil {
		t.Fatalf("MigrateUser: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("expected the same user id, got %s and %s", id1, id2)
	}

	user, err := svc.GetByUserID(ctx, "ext-123")
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if user.DisplayName != "Ada L." {
		t.Fatalf("profile fields must be patched, got %q", user.DisplayName)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email must be normalized, got %q", user.Email)
	}
	if !user.OnboardingCompleted {
		t.Fatalf("onboarding must be marked completed")
	}
}

func TestMigrateUserValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.MigrateUser(ctx, UserInput{Email: "a@b.c", DisplayName: "Ada"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing user_id, got %v", err)
	}
	if _, err := svc.MigrateUser(ctx, UserInput{UserID: "u", Email: "not-an-email", DisplayName: "Ada"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad email, got %v", err)
	}
	if _, err := svc.MigrateUser(ctx, UserInput{UserID: "u", Email: "a@b.c"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing display name, got %v", err)
	}
	if _, err := svc.MigrateUser(ctx, UserInput{UserID: "u", Email: "a@b.c", DisplayName: "Ada", PersonaType: "robot"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown persona, got %v", err)
	}
}

func TestGetByUserIDNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.GetByUserID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrationsAreAudited(t *testing.T) {
	svc, _, auditStore := newTestService(t)
	ctx := context.Background()

	id, err := svc.MigrateOrganization(ctx, OrganizationInput{Name: "Acme", Type: "business", OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("MigrateOrganization: %v", err)
	}
	entries, err := auditStore.ListByResource(ctx, audit.ResourceOrganization, id)
	if err != nil {
		t.Fatalf("ListByResource: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "directory.organization.migrate" {
		t.Fatalf("expected migration audit entry, got %+v", entries)
	}
}
