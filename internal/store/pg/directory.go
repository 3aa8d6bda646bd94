package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"arkiva.org/internal/audit"
	"arkiva.org/internal/directory"
)

var _ directory.Store = (*Store)(nil)

// UpsertOrganization finds or creates the organization keyed on the unique
// (owner_id, name) pair in one statement. Baseline quota, settings and status
// persist only on insert; an existing row keeps them and gets its profile
// fields and updated_at patched.
func (s *Store) UpsertOrganization(ctx context.Context, org *directory.Organization, rec *audit.Entry) (string, bool, error) {
	if s.db == nil {
		return "", false, errors.New("database connection unavailable")
	}

	quota, err := json.Marshal(org.Quota)
	if err != nil {
		return "", false, fmt.Errorf("marshal quota: %w", err)
	}
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return "", false, fmt.Errorf("marshal settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id       string
		inserted bool
	)
	err = tx.QueryRowContext(ctx, `
		insert into organizations (id, name, type, owner_id, logo_url, sector, description, status, quota, settings, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		on conflict (owner_id, name) do update set
			type = excluded.type,
			logo_url = excluded.logo_url,
			sector = excluded.sector,
			description = excluded.description,
			updated_at = now()
		returning id, (xmax = 0) as inserted
	`, org.ID, org.Name, org.Type, org.OwnerID, nullIfEmpty(org.LogoURL), nullIfEmpty(org.Sector),
		nullIfEmpty(org.Description), org.Status, quota, settings, org.CreatedAt, org.UpdatedAt).Scan(&id, &inserted)
	if err != nil {
		return "", false, err
	}

	if rec != nil {
		rec.ResourceID = id
	}
	if err := insertAudit(ctx, tx, rec); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return id, inserted, nil
}

// UpsertUser finds or creates the profile keyed on the unique external
// user_id. Onboarding is marked completed on both branches; created_at is
// preserved on update.
func (s *Store) UpsertUser(ctx context.Context, user *directory.User, rec *audit.Entry) (string, bool, error) {
	if s.db == nil {
		return "", false, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id       string
		inserted bool
	)
	err = tx.QueryRowContext(ctx, `
		insert into users (id, user_id, email, display_name, avatar_url, persona_type, onboarding_completed, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, true, $7, $8)
		on conflict (user_id) do update set
			email = excluded.email,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			persona_type = excluded.persona_type,
			onboarding_completed = true,
			updated_at = now()
		returning id, (xmax = 0) as inserted
	`, user.ID, user.UserID, user.Email, user.DisplayName, nullIfEmpty(user.AvatarURL),
		nullIfEmpty(user.PersonaType), user.CreatedAt, user.UpdatedAt).Scan(&id, &inserted)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return "", false, directory.ErrConflict
		}
		return "", false, err
	}

	if rec != nil {
		rec.ResourceID = id
	}
	if err := insertAudit(ctx, tx, rec); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return id, inserted, nil
}

func (s *Store) FindUserByUserID(ctx context.Context, userID string) (*directory.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		u       directory.User
		avatar  sql.NullString
		persona sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, email, display_name, avatar_url, persona_type, onboarding_completed, created_at, updated_at
		from users
		where user_id = $1
	`, userID).Scan(&u.ID, &u.UserID, &u.Email, &u.DisplayName, &avatar, &persona, &u.OnboardingCompleted, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if avatar.Valid {
		u.AvatarURL = avatar.String
	}
	if persona.Valid {
		u.PersonaType = persona.String
	}
	return &u, nil
}
