package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/internal/eligibility"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

func intPtr(v int) *int { return &v }

func TestNewTrial(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("trims names and starts active", func(t *testing.T) {
		tr, err := NewTrial(id.NewTrialID(), " ASTHMA-01 ", " Asthma Relief ", eligibility.Requirements{MinAge: intPtr(18)}, now)
		require.NoError(t, err)
		assert.Equal(t, "ASTHMA-01", tr.CodeName)
		assert.Equal(t, "Asthma Relief", tr.DisplayName)
		assert.True(t, tr.Active)
		assert.Equal(t, tr.ID.String(), tr.Candidate().ID)
	})

	cases := []struct {
		name string
		req  eligibility.Requirements
		want string
	}{
		{"negative min", eligibility.Requirements{MinAge: intPtr(-1)}, "minAge must be at least 0"},
		{"negative max", eligibility.Requirements{MaxAge: intPtr(-3)}, "maxAge must be at least 0"},
		{"inverted range", eligibility.Requirements{MinAge: intPtr(50), MaxAge: intPtr(20)}, "minAge cannot be greater than maxAge"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTrial(id.NewTrialID(), "X", "X", tc.req, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tc.want, err.Error())
		})
	}

	t.Run("deactivate twice", func(t *testing.T) {
		tr, err := NewTrial(id.NewTrialID(), "X", "X", eligibility.Requirements{}, now)
		require.NoError(t, err)
		require.NoError(t, tr.Deactivate(now))
		assert.True(t, dErrors.HasCode(tr.Deactivate(now), dErrors.CodeConflict))
	})
}
