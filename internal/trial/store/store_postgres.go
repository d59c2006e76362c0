package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/platform/database"
	"trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
)

const trialColumns = `id, code_name, display_name, requirements, is_active, created_at, updated_at`

// PostgresStore persists trials in PostgreSQL with requirements as jsonb.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, t *models.Trial) error {
	req, err := json.Marshal(t.Requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO trials (`+trialColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(t.ID), t.CodeName, t.DisplayName, string(req), t.Active, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("trial code name already used: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create trial: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *models.Trial) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE trials SET is_active = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(t.ID), t.Active, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update trial: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update trial rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, trialID id.TrialID) (*models.Trial, error) {
	return s.findOne(ctx, "find trial by id", `WHERE id = $1`, uuid.UUID(trialID))
}

func (s *PostgresStore) FindByCodeName(ctx context.Context, codeName string) (*models.Trial, error) {
	return s.findOne(ctx, "find trial by code name", `WHERE code_name = $1`, codeName)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Trial, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+trialColumns+` FROM trials WHERE is_active ORDER BY created_at ASC, code_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var out []*models.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findOne(ctx context.Context, action, where string, arg any) (*models.Trial, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials `+where, arg)
	t, err := scanTrial(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return t, nil
}

type trialRow interface {
	Scan(dest ...any) error
}

func scanTrial(row trialRow) (*models.Trial, error) {
	var t models.Trial
	var trialID uuid.UUID
	var req []byte
	if err := row.Scan(&trialID, &t.CodeName, &t.DisplayName, &req, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(req, &t.Requirements); err != nil {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}
	t.ID = id.TrialID(trialID)
	return &t, nil
}
