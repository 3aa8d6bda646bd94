package directory

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("directory: invalid input")
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: resource conflict")
)

// Persona account categories. The persona gates which application area a user
// lands in after sign-in.
const (
	PersonaCitizen       = "citizen"
	PersonaBusiness      = "business"
	PersonaInstitutional = "institutional"
)

// Organization statuses.
const (
	OrgStatusActive    = "active"
	OrgStatusSuspended = "suspended"
)

// Quota caps the organization's seats and storage and lists enabled modules.
type Quota struct {
	MaxSeats        int      `json:"max_seats"`
	MaxStorageBytes int64    `json:"max_storage_bytes"`
	Modules         []string `json:"modules"`
}

// Settings carries per-organization locale preferences.
type Settings struct {
	Locale   string `json:"locale"`
	Currency string `json:"currency"`
}

// DefaultQuota returns the baseline applied when an organization is created.
func DefaultQuota() Quota {
	return Quota{
		MaxSeats:        5,
		MaxStorageBytes: 5 << 30,
		Modules:         []string{"documents", "archives", "signatures"},
	}
}

// DefaultSettings returns the baseline applied when an organization is created.
func DefaultSettings() Settings {
	return Settings{Locale: "fr-FR", Currency: "EUR"}
}

// Organization is a tenant record synced from the external auth provider.
// Identity is approximated by the (OwnerID, Name) pair, enforced unique by
// the store so concurrent onboarding calls cannot create duplicates.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	OwnerID     string    `json:"owner_id"`
	LogoURL     string    `json:"logo_url,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Quota       Quota     `json:"quota"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is a profile record keyed by the external auth subject identifier.
type User struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Email               string    `json:"email"`
	DisplayName         string    `json:"display_name"`
	AvatarURL           string    `json:"avatar_url,omitempty"`
	PersonaType         string    `json:"persona_type,omitempty"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
