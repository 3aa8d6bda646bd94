package pg

import (
	"context"
	"database/sql"
	"errors"

	"arkiva.org/internal/access"
	"arkiva.org/internal/audit"
	"arkiva.org/internal/ids"
)

var _ access.Store = (*Store)(nil)

func (s *Store) ListMatrix(ctx context.Context, organizationID string) ([]access.MatrixEntry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, access_key, role_key, granted, created_at, updated_at
		from access_matrix
		where organization_id = $1
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []access.MatrixEntry
	for rows.Next() {
		var e access.MatrixEntry
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.AccessKey, &e.RoleKey, &e.Granted, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) FindMatrixEntry(ctx context.Context, organizationID, accessKey, roleKey string) (*access.MatrixEntry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var e access.MatrixEntry
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, access_key, role_key, granted, created_at, updated_at
		from access_matrix
		where organization_id = $1 and access_key = $2 and role_key = $3
	`, organizationID, accessKey, roleKey).Scan(&e.ID, &e.OrganizationID, &e.AccessKey, &e.RoleKey, &e.Granted, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Toggle flips the cell in one conditional upsert keyed on the unique
// (organization_id, access_key, role_key) triple. Two concurrent callers can
// never both observe "absent" and insert duplicates: the second conflicts and
// flips instead. xmax = 0 distinguishes a fresh insert from an update.
func (s *Store) Toggle(ctx context.Context, organizationID, accessKey, roleKey string, rec *audit.Entry) (access.ToggleResult, error) {
	if s.db == nil {
		return access.ToggleResult{}, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return access.ToggleResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		granted  bool
		inserted bool
	)
	err = tx.QueryRowContext(ctx, `
		insert into access_matrix (id, organization_id, access_key, role_key, granted)
		values ($1, $2, $3, $4, true)
		on conflict (organization_id, access_key, role_key)
		do update set granted = not access_matrix.granted, updated_at = now()
		returning granted, (xmax = 0) as inserted
	`, ids.New(), organizationID, accessKey, roleKey).Scan(&granted, &inserted)
	if err != nil {
		return access.ToggleResult{}, err
	}

	if err := insertAudit(ctx, tx, rec); err != nil {
		return access.ToggleResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return access.ToggleResult{}, err
	}

	action := access.ToggleActionToggled
	if inserted {
		action = access.ToggleActionCreated
	}
	return access.ToggleResult{Action: action, Granted: granted}, nil
}

// ReplaceMatrix swaps the organization's matrix for entries atomically: the
// delete and every insert commit together or not at all.
func (s *Store) ReplaceMatrix(ctx context.Context, organizationID string, entries []access.MatrixEntry, rec *audit.Entry) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from access_matrix where organization_id = $1`, organizationID); err != nil {
		return 0, err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			insert into access_matrix (id, organization_id, access_key, role_key, granted, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, e.OrganizationID, e.AccessKey, e.RoleKey, e.Granted, e.CreatedAt, e.UpdatedAt); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return 0, access.ErrConflict
			}
			return 0, err
		}
	}
	if err := insertAudit(ctx, tx, rec); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Store) ListHabilitations(ctx context.Context, organizationID string) ([]access.Habilitation, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, member_id, member_name, access_key, access_cell_id, type, expires_at, created_at
		from habilitations
		where organization_id = $1
		order by created_at desc, id desc
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHabilitations(rows)
}

func (s *Store) HabilitationsForMember(ctx context.Context, organizationID, memberID string) ([]access.Habilitation, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, member_id, member_name, access_key, access_cell_id, type, expires_at, created_at
		from habilitations
		where organization_id = $1 and member_id = $2
		order by created_at desc, id desc
	`, organizationID, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHabilitations(rows)
}

func (s *Store) AddHabilitation(ctx context.Context, h *access.Habilitation, rec *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var expires sql.NullTime
	if h.ExpiresAt != nil {
		expires = sql.NullTime{Time: *h.ExpiresAt, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into habilitations (id, organization_id, member_id, member_name, access_key, access_cell_id, type, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, h.ID, h.OrganizationID, h.MemberID, h.MemberName, h.AccessKey, nullIfEmpty(h.AccessCellID), h.Type, expires, h.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return access.ErrNotFound
		}
		return err
	}
	if err := insertAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveHabilitation deletes by id. A missing id commits nothing and records
// no audit entry.
func (s *Store) RemoveHabilitation(ctx context.Context, id string, rec *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var organizationID string
	err = tx.QueryRowContext(ctx, `
		delete from habilitations where id = $1 returning organization_id
	`, id).Scan(&organizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec != nil {
		rec.OrganizationID = organizationID
	}
	if err := insertAudit(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func scanHabilitations(rows *sql.Rows) ([]access.Habilitation, error) {
	var result []access.Habilitation
	for rows.Next() {
		var (
			h       access.Habilitation
			cellID  sql.NullString
			expires sql.NullTime
		)
		if err := rows.Scan(&h.ID, &h.OrganizationID, &h.MemberID, &h.MemberName, &h.AccessKey, &cellID, &h.Type, &expires, &h.CreatedAt); err != nil {
			return nil, err
		}
		if cellID.Valid {
			h.AccessCellID = cellID.String
		}
		if expires.Valid {
			t := expires.Time
			h.ExpiresAt = &t
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
