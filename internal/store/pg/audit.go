package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"arkiva.org/internal/audit"
)

var _ audit.Store = (*Store)(nil)

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_logs (id, organization_id, user_id, action, resource_type, resource_id, details, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, nullIfEmpty(entry.OrganizationID), entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, details, entry.CreatedAt)
	return err
}

func (s *Store) ListByResource(ctx context.Context, resourceType, resourceID string) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, user_id, action, resource_type, resource_id, details, created_at
		from audit_logs
		where resource_type = $1 and resource_id = $2
		order by created_at desc, id desc
	`, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func (s *Store) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, user_id, action, resource_type, resource_id, details, created_at
		from audit_logs
		where organization_id = $1
		order by created_at desc, id desc
		limit $2
	`, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var result []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			orgID   sql.NullString
			details []byte
		)
		if err := rows.Scan(&e.ID, &orgID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if orgID.Valid {
			e.OrganizationID = orgID.String
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func marshalDetails(details map[string]string) ([]byte, error) {
	if len(details) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	return data, nil
}
