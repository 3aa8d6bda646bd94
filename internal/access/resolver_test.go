package access

import (
	"testing"
	"time"
)

func TestResolveDefaultDeny(t *testing.T) {
	d := Resolve(time.Now(), "documents.read", nil, nil)
	if d.Granted {
		t.Fatalf("expected deny without matrix or habilitations")
	}
	if d.Source != DecisionSourceDefault {
		t.Fatalf("unexpected source: %s", d.Source)
	}
}

func TestResolveMatrixFallback(t *testing.T) {
	entry := &MatrixEntry{AccessKey: "documents.read", RoleKey: "editor", Granted: true}
	d := Resolve(time.Now(), "documents.read", nil, entry)
	if !d.Granted || d.Source != DecisionSourceMatrix {
		t.Fatalf("expected matrix grant, got %+v", d)
	}

	entry.Granted = false
	d = Resolve(time.Now(), "documents.read", nil, entry)
	if d.Granted || d.Source != DecisionSourceMatrix {
		t.Fatalf("expected matrix deny, got %+v", d)
	}
}

func TestResolveHabilitationOverridesMatrix(t *testing.T) {
	now := time.Now().UTC()
	entry := &MatrixEntry{AccessKey: "documents.read", Granted: true}
	habs := []Habilitation{
		{AccessKey: "documents.read", Type: HabilitationRevoke, CreatedAt: now},
	}
	d := Resolve(now, "documents.read", habs, entry)
	if d.Granted {
		t.Fatalf("revoke habilitation must win over matrix grant")
	}
	if d.Source != DecisionSourceHabilitation {
		t.Fatalf("unexpected source: %s", d.Source)
	}
}

func TestResolveNewestHabilitationWins(t *testing.T) {
	now := time.Now().UTC()
	habs := []Habilitation{
		{AccessKey: "documents.read", Type: HabilitationGrant, CreatedAt: now.Add(-2 * time.Hour)},
		{AccessKey: "documents.read", Type: HabilitationRevoke, CreatedAt: now.Add(-1 * time.Hour)},
	}
	d := Resolve(now, "documents.read", habs, nil)
	if d.Granted {
		t.Fatalf("newer revoke must win over older grant")
	}

	habs = append(habs, Habilitation{AccessKey: "documents.read", Type: HabilitationGrant, CreatedAt: now})
	d = Resolve(now, "documents.read", habs, nil)
	if !d.Granted {
		t.Fatalf("newest grant must win")
	}
}

func TestResolveIgnoresOtherAccessKeys(t *testing.T) {
	now := time.Now().UTC()
	habs := []Habilitation{
		{AccessKey: "archives.read", Type: HabilitationGrant, CreatedAt: now},
	}
	d := Resolve(now, "documents.read", habs, nil)
	if d.Source != DecisionSourceDefault {
		t.Fatalf("habilitation for another access key must not apply: %+v", d)
	}
}

func TestResolveTemporaryWindow(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	active := []Habilitation{
		{AccessKey: "documents.read", Type: HabilitationTemporary, ExpiresAt: &future, CreatedAt: now.Add(-time.Minute)},
	}
	d := Resolve(now, "documents.read", active, nil)
	if !d.Granted || d.Source != DecisionSourceHabilitation {
		t.Fatalf("temporary grant inside window must allow, got %+v", d)
	}

	expired := []Habilitation{
		{AccessKey: "documents.read", Type: HabilitationTemporary, ExpiresAt: &past, CreatedAt: now.Add(-time.Hour)},
	}
	d = Resolve(now, "documents.read", expired, nil)
	if d.Granted {
		t.Fatalf("expired temporary grant must deny")
	}
	if d.Source != DecisionSourceHabilitation {
		t.Fatalf("expired temporary still decides the outcome, got source %s", d.Source)
	}
}

func TestResolveTemporaryWithoutExpiryDenies(t *testing.T) {
	now := time.Now().UTC()
	habs := []Habilitation{
		{AccessKey: "documents.read", Type: HabilitationTemporary, CreatedAt: now},
	}
	d := Resolve(now, "documents.read", habs, &MatrixEntry{AccessKey: "documents.read", Granted: true})
	if d.Granted {
		t.Fatalf("temporary habilitation without expiry must deny")
	}
}
