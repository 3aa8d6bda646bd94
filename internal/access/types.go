package access

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("access: invalid input")
	ErrNotFound     = errors.New("access: not found")
	ErrConflict     = errors.New("access: resource conflict")
)

// Habilitation override types. A habilitation layers an individual decision
// for one member above the role-level matrix.
const (
	HabilitationGrant     = "grant"
	HabilitationRevoke    = "revoke"
	HabilitationTemporary = "temporary"
)

// MatrixEntry maps one (accessKey, roleKey) pair to a grant decision inside an
// organization. At most one entry exists per (organization, access, role)
// triple; the store enforces that with a uniqueness constraint.
type MatrixEntry struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AccessKey      string    `json:"access_key"`
	RoleKey        string    `json:"role_key"`
	Granted        bool      `json:"granted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Habilitation is a per-member override. Temporary habilitations carry an
// explicit expiry; the resolver treats them as grants only inside the window.
type Habilitation struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	MemberID       string     `json:"member_id"`
	MemberName     string     `json:"member_name"`
	AccessKey      string     `json:"access_key"`
	AccessCellID   string     `json:"access_cell_id,omitempty"`
	Type           string     `json:"type"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToggleResult reports what a matrix toggle did.
type ToggleResult struct {
	Action  string `json:"action"` // "created" or "toggled"
	Granted bool   `json:"granted"`
}

const (
	ToggleActionCreated = "created"
	ToggleActionToggled = "toggled"
)

// Decision is the resolver's verdict for one (member, accessKey) pair.
type Decision struct {
	Granted bool   `json:"granted"`
	Source  string `json:"source"` // "habilitation", "matrix" or "default"
}

const (
	DecisionSourceHabilitation = "habilitation"
	DecisionSourceMatrix       = "matrix"
	DecisionSourceDefault      = "default"
)
