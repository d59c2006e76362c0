package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/internal/admin/models"
	"trialgate/pkg/platform/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemory()

	older, err := models.NewAccessHash("0123456789abcdef", "", base)
	require.NoError(t, err)
	newer, err := models.NewAccessHash("fedcba9876543210", "second", base.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))

	t.Run("hash is unique", func(t *testing.T) {
		dup, err := models.NewAccessHash("0123456789abcdef", "", base)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Create(ctx, dup), sentinel.ErrAlreadyUsed)
	})

	t.Run("list is newest first", func(t *testing.T) {
		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, newer.Hash, all[0].Hash)
	})

	t.Run("update persists deactivation", func(t *testing.T) {
		found, err := s.FindByHash(ctx, older.Hash)
		require.NoError(t, err)
		require.NoError(t, found.Deactivate(base.Add(2*time.Hour)))
		require.NoError(t, s.Update(ctx, found))

		again, err := s.FindByHash(ctx, older.Hash)
		require.NoError(t, err)
		assert.False(t, again.Active)
	})

	t.Run("count includes inactive hashes", func(t *testing.T) {
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, s.LockBootstrap(ctx))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := s.FindByHash(ctx, "aaaaaaaaaaaaaaaa")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
