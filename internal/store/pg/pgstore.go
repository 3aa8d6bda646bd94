package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"arkiva.org/internal/audit"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements the access, audit and directory store interfaces on
// PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// insertAudit writes an audit entry inside the caller's transaction so the
// record commits with the mutation it describes.
func insertAudit(ctx context.Context, tx *sql.Tx, rec *audit.Entry) error {
	if rec == nil {
		return nil
	}
	details, err := marshalDetails(rec.Details)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		insert into audit_logs (id, organization_id, user_id, action, resource_type, resource_id, details, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, nullIfEmpty(rec.OrganizationID), rec.UserID, rec.Action, rec.ResourceType, rec.ResourceID, details, rec.CreatedAt)
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
