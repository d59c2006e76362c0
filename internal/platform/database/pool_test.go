package database

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURL(t *testing.T) {
	pool, err := New(t.Context(), Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, pool)

	assert.NoError(t, pool.Close())
	assert.Error(t, pool.Health(t.Context()))
	pool.RecordStats()
}

func TestUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "proofs_nullifier_key"})

	constraint, ok := UniqueViolation(dup)
	assert.True(t, ok)
	assert.Equal(t, "proofs_nullifier_key", constraint)
	assert.True(t, IsUniqueViolation(dup))

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok, "foreign key violations are not duplicates")
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain")))
}
