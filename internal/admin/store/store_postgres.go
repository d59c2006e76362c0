package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/admin/models"
	"trialgate/internal/platform/database"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
)

const accessHashColumns = `id, hash, description, is_active, created_at, updated_at`

// bootstrapLockKey names the advisory lock guarding the first hash.
const bootstrapLockKey int64 = 0x74676164

var errLockOutsideTx = errors.New("bootstrap lock requires a transaction")

// PostgresStore persists admin access hashes in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *models.AccessHash) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO admin_access_hashes (`+accessHashColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.UUID(a.ID),
		a.Hash,
		sql.NullString{String: a.Description, Valid: a.Description != ""},
		a.Active,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("access hash already used: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create access hash: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, a *models.AccessHash) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE admin_access_hashes SET is_active = $2, updated_at = $3 WHERE hash = $1`,
		a.Hash, a.Active, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update access hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update access hash: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*models.AccessHash, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+accessHashColumns+` FROM admin_access_hashes WHERE hash = $1`, hash)
	a, err := scanAccessHash(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find access hash: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.AccessHash, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+accessHashColumns+` FROM admin_access_hashes ORDER BY created_at DESC, hash`)
	if err != nil {
		return nil, fmt.Errorf("list access hashes: %w", err)
	}
	defer rows.Close()

	var out []*models.AccessHash
	for rows.Next() {
		a, err := scanAccessHash(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access hash: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT count(*) FROM admin_access_hashes`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count access hashes: %w", err)
	}
	return n, nil
}

// LockBootstrap takes a transaction-scoped advisory lock so concurrent
// bootstraps see each other's insert. It must run inside tx.RunInTx.
func (s *PostgresStore) LockBootstrap(ctx context.Context) error {
	sqlTx, ok := tx.From(ctx)
	if !ok {
		return errLockOutsideTx
	}
	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return fmt.Errorf("lock access hash bootstrap: %w", err)
	}
	return nil
}

type accessHashRow interface {
	Scan(dest ...any) error
}

func scanAccessHash(row accessHashRow) (*models.AccessHash, error) {
	var a models.AccessHash
	var rawID uuid.UUID
	var description sql.NullString
	if err := row.Scan(&rawID, &a.Hash, &description, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.AccessHashID(rawID)
	a.Description = description.String
	return &a, nil
}
