//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trialgate/internal/eligibility"
	"trialgate/internal/proof/models"
	"trialgate/internal/proof/store"
	trialmodels "trialgate/internal/trial/models"
	trialstore "trialgate/internal/trial/store"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	trialID  id.TrialID
	ctx      context.Context
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.postgres.TruncateModuleTables(s.ctx))

	trial, err := trialmodels.NewTrial(id.NewTrialID(), "PG-01", "Postgres Study", eligibility.Requirements{}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(trialstore.NewPostgres(s.postgres.DB).Create(s.ctx, trial))
	s.trialID = trial.ID
}

func sub(credentialHash, seed string) models.Submission {
	return models.Submission{
		CredentialHash: credentialHash,
		ProofHash:      "proof-" + seed + "-0123456789abcdef0123456789",
		Nullifier:      "null-" + seed + "-0123456789abcdef0123456789",
		IssuerDID:      "did:clinic:pg",
		Signature:      "sig",
	}
}

func (s *PostgresStoreSuite) TestVerifiedRoundTrip() {
	p := models.NewVerified(sub("cred-a", "1"), "0xabc", s.trialID, []id.TrialID{s.trialID}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, p))

	got, err := s.store.FindByHash(s.ctx, p.ProofHash)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, got.Status)
	s.Equal("0xabc", got.TxHash)
	s.Require().NotNil(got.TrialID)
	s.Equal(s.trialID, *got.TrialID)
	s.Equal([]id.TrialID{s.trialID}, got.EligibleTrialIDs)
	s.Require().NotNil(got.VerifiedAt)
	s.True(got.VerifiedAt.Equal(s.now))
}

func (s *PostgresStoreSuite) TestUniqueness() {
	first := models.NewTerminal(sub("cred-a", "1"), models.StatusRejected, s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))

	sameNullifier := models.NewTerminal(sub("cred-b", "2"), models.StatusRejected, s.now)
	sameNullifier.Nullifier = first.Nullifier
	s.ErrorIs(s.store.Create(s.ctx, sameNullifier), sentinel.ErrAlreadyUsed)

	exists, err := s.store.ExistsByHashOrNullifier(s.ctx, "other", first.Nullifier)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *PostgresStoreSuite) TestLatestAndHistory() {
	_, err := s.store.LatestByCredential(s.ctx, "cred-a")
	s.ErrorIs(err, sentinel.ErrNotFound)

	older := models.NewTerminal(sub("cred-a", "1"), models.StatusExpired, s.now)
	newer := models.NewTerminal(sub("cred-a", "2"), models.StatusRejected, s.now.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	latest, err := s.store.LatestByCredential(s.ctx, "cred-a")
	s.Require().NoError(err)
	s.Equal(newer.ID, latest.ID)
	s.Nil(latest.TrialID)
	s.Empty(latest.EligibleTrialIDs)

	all, err := s.store.ListByCredential(s.ctx, "cred-a")
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(older.ID, all[1].ID)
}
