package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/issuer/models"
	"trialgate/internal/platform/database"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
)

const issuerColumns = `id, name, login_id, did, public_key, private_key, is_active, created_at, updated_at`

// PostgresStore persists issuers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed issuer store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the issuer. Name (case-insensitive), DID and login id are unique indexes.
func (s *PostgresStore) Create(ctx context.Context, iss *models.Issuer) error {
	query := `
		INSERT INTO issuers (` + issuerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(iss.ID),
		iss.Name,
		nullString(iss.LoginID),
		iss.DID,
		iss.PublicKey,
		iss.PrivateKey,
		iss.Active,
		iss.CreatedAt,
		iss.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			if constraint == loginIDConstraint {
				return fmt.Errorf("create issuer: %w", models.ErrLoginIDTaken)
			}
			return fmt.Errorf("issuer %s already used: %w", uniqueField(constraint), sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create issuer: %w", err)
	}
	return nil
}

// Update persists the mutable fields (active flag, timestamp).
func (s *PostgresStore) Update(ctx context.Context, iss *models.Issuer) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE issuers SET is_active = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(iss.ID), iss.Active, iss.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update issuer: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update issuer rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	return s.findOne(ctx, "find issuer by id", `WHERE id = $1`, uuid.UUID(issuerID))
}

// FindByName matches the name case-insensitively regardless of active state.
func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Issuer, error) {
	return s.findOne(ctx, "find issuer by name", `WHERE lower(name) = lower($1)`, name)
}

func (s *PostgresStore) FindByDID(ctx context.Context, did string) (*models.Issuer, error) {
	return s.findOne(ctx, "find issuer by did", `WHERE did = $1`, did)
}

func (s *PostgresStore) LoginIDExists(ctx context.Context, loginID string) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM issuers WHERE login_id = $1)`, loginID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check login id: %w", err)
	}
	return exists, nil
}

// ListActive returns active issuers, newest first.
func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Issuer, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+issuerColumns+` FROM issuers WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var out []*models.Issuer
	for rows.Next() {
		iss, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		out = append(out, iss)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findOne(ctx context.Context, action, where string, arg any) (*models.Issuer, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+issuerColumns+` FROM issuers `+where, arg)
	iss, err := scanIssuer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return iss, nil
}

type issuerRow interface {
	Scan(dest ...any) error
}

func scanIssuer(row issuerRow) (*models.Issuer, error) {
	var iss models.Issuer
	var issuerID uuid.UUID
	var loginID sql.NullString
	if err := row.Scan(&issuerID, &iss.Name, &loginID, &iss.DID, &iss.PublicKey, &iss.PrivateKey,
		&iss.Active, &iss.CreatedAt, &iss.UpdatedAt); err != nil {
		return nil, err
	}
	iss.ID = id.IssuerID(issuerID)
	iss.LoginID = loginID.String
	return &iss, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const loginIDConstraint = "issuers_login_id_key"

// uniqueField names the column behind a unique constraint of the issuers table.
func uniqueField(constraint string) string {
	switch constraint {
	case loginIDConstraint:
		return "login id"
	case "issuers_did_key":
		return "did"
	case "idx_issuers_name_lower":
		return "name"
	default:
		return "name, did or login id"
	}
}
