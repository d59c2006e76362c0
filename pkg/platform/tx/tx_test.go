package tx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trialgate/pkg/domain-errors"
)

func TestInMemoryRunInTx(t *testing.T) {
	t.Run("propagates fn error", func(t *testing.T) {
		boom := errors.New("boom")
		err := NewInMemory().RunInTx(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nested calls do not deadlock", func(t *testing.T) {
		runner := NewInMemory()
		inner := false
		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			return runner.RunInTx(ctx, func(context.Context) error {
				inner = true
				return nil
			})
		})
		require.NoError(t, err)
		assert.True(t, inner)
	})

	t.Run("cancelled context is rejected", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewInMemory().RunInTx(ctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("applies a default deadline", func(t *testing.T) {
		var deadline time.Time
		_ = NewInMemory().RunInTx(context.Background(), func(ctx context.Context) error {
			deadline, _ = ctx.Deadline()
			return nil
		})
		assert.False(t, deadline.IsZero())
	})
}

func TestConnWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
}
