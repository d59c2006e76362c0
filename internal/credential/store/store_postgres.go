package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/credential/models"
	"trialgate/internal/platform/database"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
)

const credentialColumns = `id, credential_hash, credential, issued_at, expiry, issuer_did, issuer_id,
	patient_number, status, created_at, updated_at`

// PostgresStore persists credential records in PostgreSQL. The signed document
// lives in a jsonb column so it can be re-hashed on read.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	doc, err := encodeDocument(rec.Document)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		rec.Hash,
		doc,
		rec.IssuedAt,
		rec.Expiry,
		rec.IssuerDID,
		uuid.UUID(rec.IssuerID),
		rec.PatientNumber,
		string(rec.Status),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("credential hash already stored: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// Update persists status changes; every other column is immutable.
func (s *PostgresStore) Update(ctx context.Context, rec *models.Record) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE credentials SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(rec.ID), string(rec.Status), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Record, error) {
	return s.findOne(ctx, "find credential by id", `WHERE id = $1`, uuid.UUID(credentialID))
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*models.Record, error) {
	return s.findOne(ctx, "find credential by hash", `WHERE credential_hash = $1`, hash)
}

func (s *PostgresStore) ListByIssuerAndPatient(ctx context.Context, issuerID id.IssuerID, patientNumber string) ([]*models.Record, error) {
	return s.list(ctx,
		`WHERE issuer_id = $1 AND patient_number = $2 ORDER BY created_at DESC`,
		uuid.UUID(issuerID), patientNumber)
}

func (s *PostgresStore) List(ctx context.Context, issuerID *id.IssuerID) ([]*models.Record, error) {
	if issuerID == nil {
		return s.list(ctx, `ORDER BY created_at DESC`)
	}
	return s.list(ctx, `WHERE issuer_id = $1 ORDER BY created_at DESC`, uuid.UUID(*issuerID))
}

func (s *PostgresStore) list(ctx context.Context, tail string, args ...any) ([]*models.Record, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `SELECT `+credentialColumns+` FROM credentials `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findOne(ctx context.Context, action, where string, arg any) (*models.Record, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM credentials `+where, arg)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return rec, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var rec models.Record
	var credentialID, issuerID uuid.UUID
	var doc []byte
	var status string
	if err := row.Scan(&credentialID, &rec.Hash, &doc, &rec.IssuedAt, &rec.Expiry, &rec.IssuerDID,
		&issuerID, &rec.PatientNumber, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	rec.ID = id.CredentialID(credentialID)
	rec.IssuerID = id.IssuerID(issuerID)
	rec.Status = parsed
	if len(doc) > 0 {
		var d models.Document
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("decode credential document: %w", err)
		}
		rec.Document = &d
	}
	return &rec, nil
}

func encodeDocument(doc *models.Document) (any, error) {
	if doc == nil {
		return nil, nil
	}
	canonical, err := doc.Canonical()
	if err != nil {
		return nil, err
	}
	return string(canonical), nil
}
