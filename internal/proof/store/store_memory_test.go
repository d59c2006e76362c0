package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/internal/proof/models"
	"trialgate/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := models.NewTerminal(models.Submission{CredentialHash: "c1", ProofHash: "p1", Nullifier: "n1"}, models.StatusRejected, base)
	second := models.NewTerminal(models.Submission{CredentialHash: "c1", ProofHash: "p2", Nullifier: "n2"}, models.StatusExpired, base.Add(time.Hour))
	require.NoError(t, s.Create(ctx, first))
	require.NoError(t, s.Create(ctx, second))

	t.Run("proof hash and nullifier are unique", func(t *testing.T) {
		dupHash := models.NewTerminal(models.Submission{CredentialHash: "c2", ProofHash: "p1", Nullifier: "n9"}, models.StatusRejected, base)
		assert.True(t, errors.Is(s.Create(ctx, dupHash), sentinel.ErrAlreadyUsed))
		dupNull := models.NewTerminal(models.Submission{CredentialHash: "c2", ProofHash: "p9", Nullifier: "n2"}, models.StatusRejected, base)
		assert.True(t, errors.Is(s.Create(ctx, dupNull), sentinel.ErrAlreadyUsed))
	})

	t.Run("latest is newest", func(t *testing.T) {
		latest, err := s.LatestByCredential(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "p2", latest.ProofHash)

		_, err = s.LatestByCredential(ctx, "none")
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("exists by either identifier", func(t *testing.T) {
		ok, err := s.ExistsByHashOrNullifier(ctx, "zzz", "n1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.ExistsByHashOrNullifier(ctx, "zzz", "yyy")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list newest first", func(t *testing.T) {
		all, err := s.ListByCredential(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "p2", all[0].ProofHash)
	})
}
