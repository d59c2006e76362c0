package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trialgate/internal/platform/database"
	"trialgate/internal/proof/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
)

const proofColumns = `id, proof_hash, nullifier, issuer_did, credential_hash, trial_id, eligible_trial_ids,
	status, tx_hash, verified_at, created_at, updated_at`

// PostgresStore persists proofs in PostgreSQL. Unique indexes on proof_hash and
// nullifier back the replay check under concurrent submissions.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Proof) error {
	var trialID any
	if p.TrialID != nil {
		trialID = uuid.UUID(*p.TrialID)
	}
	eligible := make([]string, 0, len(p.EligibleTrialIDs))
	for _, t := range p.EligibleTrialIDs {
		eligible = append(eligible, t.String())
	}
	query := `
		INSERT INTO proofs (` + proofColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		p.ProofHash,
		p.Nullifier,
		p.IssuerDID,
		p.CredentialHash,
		trialID,
		pq.Array(eligible),
		string(p.Status),
		sql.NullString{String: p.TxHash, Valid: p.TxHash != ""},
		p.VerifiedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("proof hash or nullifier already used: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create proof: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, proofHash string) (*models.Proof, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+proofColumns+` FROM proofs WHERE proof_hash = $1`, proofHash)
	p, err := scanProof(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find proof by hash: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ExistsByHashOrNullifier(ctx context.Context, proofHash, nullifier string) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM proofs WHERE proof_hash = $1 OR nullifier = $2)`, proofHash, nullifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check proof replay: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) LatestByCredential(ctx context.Context, credentialHash string) (*models.Proof, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+proofColumns+` FROM proofs WHERE credential_hash = $1 ORDER BY created_at DESC LIMIT 1`, credentialHash)
	p, err := scanProof(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest proof: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByCredential(ctx context.Context, credentialHash string) ([]*models.Proof, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+proofColumns+` FROM proofs WHERE credential_hash = $1 ORDER BY created_at DESC`, credentialHash)
	if err != nil {
		return nil, fmt.Errorf("list proofs: %w", err)
	}
	defer rows.Close()

	var out []*models.Proof
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proof: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type proofRow interface {
	Scan(dest ...any) error
}

func scanProof(row proofRow) (*models.Proof, error) {
	var p models.Proof
	var proofID uuid.UUID
	var trialID uuid.NullUUID
	var eligible pq.StringArray
	var status string
	var txHash sql.NullString
	var verifiedAt sql.NullTime
	if err := row.Scan(&proofID, &p.ProofHash, &p.Nullifier, &p.IssuerDID, &p.CredentialHash, &trialID,
		&eligible, &status, &txHash, &verifiedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	p.ID = id.ProofID(proofID)
	p.Status = parsed
	p.TxHash = txHash.String
	if trialID.Valid {
		t := id.TrialID(trialID.UUID)
		p.TrialID = &t
	}
	if verifiedAt.Valid {
		v := verifiedAt.Time
		p.VerifiedAt = &v
	}
	for _, raw := range eligible {
		t, err := id.ParseTrialID(raw)
		if err != nil {
			return nil, fmt.Errorf("decode eligible trial id: %w", err)
		}
		p.EligibleTrialIDs = append(p.EligibleTrialIDs, t)
	}
	return &p, nil
}
