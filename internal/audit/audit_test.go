package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *InMemory) {
	t.Helper()
	store := NewInMemory()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestNewEntryValidation(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.NewEntry("org-1", "", "document.create", ResourceDocument, "doc-1", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty user, got %v", err)
	}
	if _, err := svc.NewEntry("org-1", "user-1", "", ResourceDocument, "doc-1", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty action, got %v", err)
	}
	if _, err := svc.NewEntry("org-1", "user-1", "document.create", "invoice", "doc-1", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown resource type, got %v", err)
	}
	if _, err := svc.NewEntry("org-1", "user-1", "document.create", ResourceDocument, "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty resource id, got %v", err)
	}

	entry, err := svc.NewEntry("org-1", "user-1", "document.create", "Document", "doc-1", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("entry must be stamped with an id")
	}
	if entry.ResourceType != ResourceDocument {
		t.Fatalf("resource type must be normalized, got %q", entry.ResourceType)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatalf("entry must carry a timestamp")
	}
}

func TestNewEntryCopiesDetails(t *testing.T) {
	svc, _ := newTestService(t)
	details := map[string]string{"k": "v"}
	entry, err := svc.NewEntry("org-1", "user-1", "document.create", ResourceDocument, "doc-1", details)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	details["k"] = "mutated"
	if entry.Details["k"] != "v" {
		t.Fatalf("details must be copied, got %v", entry.Details)
	}
}

func TestLogActionAppends(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	id, err := svc.LogAction(ctx, "org-1", "user-1", "document.create", ResourceDocument, "doc-1", nil)
	if err != nil {
		t.Fatalf("LogAction: %v", err)
	}
	if id == "" {
		t.Fatalf("expected entry id")
	}

	entries, err := store.ListByResource(ctx, ResourceDocument, "doc-1")
	if err != nil {
		t.Fatalf("ListByResource: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("expected the appended entry, got %+v", entries)
	}
}

func TestListByResourceNewestFirst(t *testing.T) {
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	svc, err := NewService(NewInMemory(), WithClock(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.LogAction(ctx, "org-1", "user-1", fmt.Sprintf("document.update.%d", i), ResourceDocument, "doc-1", nil); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	entries, err := svc.ListByResource(ctx, ResourceDocument, "doc-1")
	if err != nil {
		t.Fatalf("ListByResource: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Action != "document.update.2" {
		t.Fatalf("entries not newest-first: %v", entries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Fatalf("entries not ordered newest-first")
		}
	}
}

func TestListByOrganizationCapsLimit(t *testing.T) {
	store := NewInMemory()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		if _, err := svc.LogAction(ctx, "org-1", "user-1", "document.create", ResourceDocument, fmt.Sprintf("doc-%d", i), nil); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	entries, err := svc.ListByOrganization(ctx, "org-1", 0)
	if err != nil {
		t.Fatalf("ListByOrganization: %v", err)
	}
	if len(entries) != 100 {
		t.Fatalf("default cap must apply, got %d entries", len(entries))
	}

	entries, err = svc.ListByOrganization(ctx, "org-1", 5000)
	if err != nil {
		t.Fatalf("ListByOrganization: %v", err)
	}
	if len(entries) != 100 {
		t.Fatalf("oversized limit must fall back to the default cap, got %d", len(entries))
	}

	entries, err = svc.ListByOrganization(ctx, "org-1", 10)
	if err != nil {
		t.Fatalf("ListByOrganization: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("explicit limit must apply, got %d", len(entries))
	}
}

func TestListByOrganizationRequiresID(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ListByOrganization(context.Background(), "  ", 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
