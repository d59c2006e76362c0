package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Verifier

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	credmodels "trialgate/internal/credential/models"
	credservice "trialgate/internal/credential/service"
	credstore "trialgate/internal/credential/store"
	"trialgate/internal/eligibility"
	issuermodels "trialgate/internal/issuer/models"
	issuerservice "trialgate/internal/issuer/service"
	issuerstore "trialgate/internal/issuer/store"
	"trialgate/internal/proof/metrics"
	"trialgate/internal/proof/models"
	"trialgate/internal/proof/service/mocks"
	"trialgate/internal/proof/store"
	"trialgate/internal/proof/verifier"
	trialservice "trialgate/internal/trial/service"
	trialstore "trialgate/internal/trial/store"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/audit"
	auditmemory "trialgate/pkg/platform/audit/store/memory"
	"trialgate/pkg/requestcontext"
	racetest "trialgate/pkg/testutil"
)

type recordingEmitter struct {
	store *auditmemory.InMemoryStore
}

func (e recordingEmitter) Emit(ctx context.Context, event audit.Event) error {
	return e.store.Append(ctx, event)
}

type ServiceSuite struct {
	suite.Suite
	now         time.Time
	ctx         context.Context
	ctrl        *gomock.Controller
	verifier    *mocks.MockVerifier
	issuers     *issuerservice.Service
	credentials *credservice.Service
	trials      *trialservice.Service
	proofs      *store.InMemory
	events      *auditmemory.InMemoryStore
	metrics     *metrics.Metrics
	svc         *Service
	clinic      *issuermodels.Issuer
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockVerifier(s.ctrl)

	s.issuers = issuerservice.New(issuerstore.NewInMemory())
	s.credentials = credservice.New(credstore.NewInMemory(), s.issuers)
	s.trials = trialservice.New(trialstore.NewInMemory())
	s.proofs = store.NewInMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.svc = New(s.proofs, s.credentials, s.issuers, s.trials,
		WithVerifier(s.verifier),
		WithAuditPublisher(recordingEmitter{store: s.events}),
		WithEntropy(bytes.NewReader(make([]byte, 4096))),
		WithMetrics(s.metrics),
	)

	clinic, err := s.issuers.Register(s.at(-72*time.Hour), "City General Hospital", "")
	s.Require().NoError(err)
	s.clinic = clinic

	minAge, maxAge := 18, 45
	s.createTrial(-10*24*time.Hour, "ANEMIA-01", "Anemia Study", eligibility.Requirements{
		MinAge: &minAge, MaxAge: &maxAge,
		Genotypes:  []string{"AA", "AS"},
		Conditions: []string{"Anemia", "Diabetes"},
	})
	s.createTrial(-9*24*time.Hour, "SICKLE-02", "Sickle Cell Study", eligibility.Requirements{
		Genotypes: []string{"SS"},
	})
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *ServiceSuite) createTrial(offset time.Duration, code, display string, req eligibility.Requirements) {
	_, err := s.trials.Create(s.at(offset), trialservice.CreateCommand{CodeName: code, DisplayName: display, Requirements: req})
	s.Require().NoError(err)
}

// issue signs a 30-year-old AS/Anemia credential unless genotype overrides it.
func (s *ServiceSuite) issue(offset time.Duration, name, genotype string) *credmodels.Issued {
	issued, err := s.credentials.Issue(s.at(offset), credservice.IssueCommand{
		Name:          name,
		DateOfBirth:   time.Date(1996, 1, 15, 0, 0, 0, 0, time.UTC),
		Gender:        "Female",
		BloodGroup:    "O+",
		Genotype:      genotype,
		Conditions:    []string{"Anemia"},
		PatientNumber: "P-" + name,
		IssuerID:      &s.clinic.ID,
	})
	s.Require().NoError(err)
	return issued
}

func submission(issued *credmodels.Issued, seed string) models.Submission {
	return models.Submission{
		CredentialHash: issued.Hash,
		ProofHash:      strings.Repeat(seed, 64),
		Nullifier:      strings.Repeat(seed, 63) + "n",
		IssuerDID:      issued.IssuerDID,
		Signature:      strings.Repeat("s", 64),
	}
}

func valid(sub models.Submission) verifier.Verdict {
	return verifier.Verdict{Valid: true, TxHash: verifier.TxHash(sub.ProofHash, sub.Nullifier)}
}

func (s *ServiceSuite) proofCount(credentialHash string) int {
	proofs, err := s.proofs.ListByCredential(s.ctx, credentialHash)
	s.Require().NoError(err)
	return len(proofs)
}

func (s *ServiceSuite) TestGenerate() {
	s.Run("derives a triple without persisting", func() {
		issued := s.issue(-48*time.Hour, "Ada", "AS")
		res, err := s.svc.Generate(s.ctx, GenerateCommand{CredentialHash: issued.Hash, IssuerDID: issued.IssuerDID})
		s.Require().NoError(err)

		s.Equal(issued.Hash, res.CredentialHash)
		s.Len(res.ProofHash, 64)
		s.Len(res.Nullifier, 64)
		s.Equal(credmodels.HashBytes([]byte(res.ProofHash+"-"+res.Nullifier+"-"+issued.IssuerDID)), res.Signature)
		s.Zero(s.proofCount(issued.Hash))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Generated))
	})

	s.Run("unknown credential", func() {
		_, err := s.svc.Generate(s.ctx, GenerateCommand{CredentialHash: "missing", IssuerDID: s.clinic.DID})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("issuer mismatch", func() {
		issued := s.issue(-48*time.Hour, "Bola", "AS")
		_, err := s.svc.Generate(s.ctx, GenerateCommand{CredentialHash: issued.Hash, IssuerDID: "did:example:other"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("Issuer DID does not match the credential issuer", err.Error())
	})

	s.Run("expired credential", func() {
		issued := s.issue(-40*24*time.Hour, "Chidi", "AS")
		_, err := s.svc.Generate(s.ctx, GenerateCommand{CredentialHash: issued.Hash, IssuerDID: issued.IssuerDID})
		s.True(dErrors.HasCode(err, dErrors.CodeExpiredCredential))
		s.Zero(s.proofCount(issued.Hash))
	})

	s.Run("revoked credential", func() {
		issued := s.issue(-48*time.Hour, "Dayo", "AS")
		_, err := s.credentials.Revoke(s.ctx, issued.CredentialID)
		s.Require().NoError(err)

		_, err = s.svc.Generate(s.ctx, GenerateCommand{CredentialHash: issued.Hash, IssuerDID: issued.IssuerDID})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal("Credential is revoked. Only active credentials can be used to generate proofs.", err.Error())
	})
}

func (s *ServiceSuite) TestSubmitVerified() {
	issued := s.issue(-48*time.Hour, "Ada", "AS")
	sub := submission(issued, "a")
	s.verifier.EXPECT().Verify(gomock.Any(), sub).Return(valid(sub), nil)

	res, err := s.svc.Submit(s.ctx, sub)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, res.Status)
	s.Equal("You're eligible", res.Message)
	s.Equal(valid(sub).TxHash, res.TxHash)
	s.Equal(s.now, res.Timestamp)
	s.Equal("ANEMIA-01", res.MatchedTrial.CodeName)
	s.Len(res.EligibleTrials, 1)

	stored, err := s.proofs.FindByHash(s.ctx, sub.ProofHash)
	s.Require().NoError(err)
	s.Equal(res.ProofID, stored.ID)
	s.Require().NotNil(stored.TrialID)
	s.Equal(res.MatchedTrial.ID, stored.TrialID.String())
	s.Len(stored.EligibleTrialIDs, 1)
	s.Require().NotNil(stored.VerifiedAt)

	events := s.events.ListByAction(s.ctx, audit.EventProofSubmitted)
	s.Require().Len(events, 1)
	s.Equal(OutcomeVerified, events[0].Outcome)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues(OutcomeVerified)))
}

func (s *ServiceSuite) TestCooldown() {
	issued := s.issue(-48*time.Hour, "Ada", "AS")
	first := submission(issued, "a")
	s.verifier.EXPECT().Verify(gomock.Any(), first).Return(valid(first), nil)
	_, err := s.svc.Submit(s.ctx, first)
	s.Require().NoError(err)

	s.Run("immediately after", func() {
		_, err := s.svc.Submit(s.ctx, submission(issued, "b"))
		s.True(dErrors.HasCode(err, dErrors.CodeCooldownActive))
		s.Contains(err.Error(), "Please wait 42 more days before submitting again.")
	})

	s.Run("singular day", func() {
		other := s.issue(-48*time.Hour, "Eni", "AS")
		prior := models.NewTerminal(submission(other, "p"), models.StatusRejected, s.now.Add(-(41*24*time.Hour + time.Hour)))
		s.Require().NoError(s.proofs.Create(s.ctx, prior))

		_, err := s.svc.Submit(s.ctx, submission(other, "q"))
		s.True(dErrors.HasCode(err, dErrors.CodeCooldownActive))
		s.Contains(err.Error(), "Please wait 1 more day before")
	})

	s.Run("rejections also start a cooldown", func() {
		other := s.issue(-48*time.Hour, "Bola", "CC")
		_, err := s.svc.Submit(s.ctx, submission(other, "c"))
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))

		_, err = s.svc.Submit(s.ctx, submission(other, "d"))
		s.True(dErrors.HasCode(err, dErrors.CodeCooldownActive))
	})
}

func (s *ServiceSuite) TestExpiryIsCheckedBeforeCooldown() {
	issued := s.issue(-48*time.Hour, "Ada", "AS")
	first := submission(issued, "a")
	s.verifier.EXPECT().Verify(gomock.Any(), first).Return(valid(first), nil)
	_, err := s.svc.Submit(s.ctx, first)
	s.Require().NoError(err)

	_, err = s.svc.Submit(s.at(CooldownPeriod), submission(issued, "b"))
	s.True(dErrors.HasCode(err, dErrors.CodeExpiredCredential))
}

func (s *ServiceSuite) TestSubmitFailures() {
	s.Run("unknown credential", func() {
		_, err := s.svc.Submit(s.ctx, models.Submission{CredentialHash: "missing"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("revoked credential fails closed", func() {
		issued := s.issue(-48*time.Hour, "Revoked", "AS")
		_, err := s.credentials.Revoke(s.ctx, issued.CredentialID)
		s.Require().NoError(err)

		_, err = s.svc.Submit(s.ctx, submission(issued, "r"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Zero(s.proofCount(issued.Hash))
	})

	s.Run("expired credential persists an expired proof", func() {
		issued := s.issue(-40*24*time.Hour, "Expired", "AS")
		sub := submission(issued, "e")
		_, err := s.svc.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeExpiredCredential))

		stored, err := s.proofs.FindByHash(s.ctx, sub.ProofHash)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, stored.Status)
	})

	s.Run("issuer mismatch", func() {
		issued := s.issue(-48*time.Hour, "Mismatch", "AS")
		sub := submission(issued, "m")
		sub.IssuerDID = "did:example:other"
		_, err := s.svc.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("Issuer DID in proof does not match the credential issuer", err.Error())
	})

	s.Run("ineligible persists a rejected proof with every reason", func() {
		issued := s.issue(-48*time.Hour, "Ineligible", "CC")
		sub := submission(issued, "i")
		_, err := s.svc.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
		s.Equal("You are not eligible for any active clinical trials. "+
			"Anemia Study: Genotype CC is not eligible for this trial; "+
			"Sickle Cell Study: Genotype CC is not eligible for this trial", err.Error())

		stored, err := s.proofs.FindByHash(s.ctx, sub.ProofHash)
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, stored.Status)
	})

	s.Run("replayed proof hash", func() {
		seen := s.issue(-48*time.Hour, "Seen", "CC")
		_, err := s.svc.Submit(s.ctx, submission(seen, "x"))
		s.Require().Error(err)

		issued := s.issue(-48*time.Hour, "Replay", "AS")
		_, err = s.svc.Submit(s.ctx, submission(issued, "x"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("Proof with this hash or nullifier already exists", err.Error())
		s.Zero(s.proofCount(issued.Hash))
	})

	s.Run("verifier rejection persists a rejected proof", func() {
		issued := s.issue(-48*time.Hour, "Bad", "AS")
		sub := submission(issued, "v")
		s.verifier.EXPECT().Verify(gomock.Any(), sub).Return(verifier.Verdict{Reason: verifier.ReasonInvalidFormat}, nil)

		_, err := s.svc.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
		s.Equal(verifier.ReasonInvalidFormat, err.Error())

		stored, err := s.proofs.FindByHash(s.ctx, sub.ProofHash)
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, stored.Status)
	})

	s.Run("verifier rejection without reason", func() {
		issued := s.issue(-48*time.Hour, "Silent", "AS")
		sub := submission(issued, "w")
		s.verifier.EXPECT().Verify(gomock.Any(), sub).Return(verifier.Verdict{}, nil)

		_, err := s.svc.Submit(s.ctx, sub)
		s.Equal("Proof verification failed", err.Error())
	})

	s.Run("verifier timeout persists nothing", func() {
		issued := s.issue(-48*time.Hour, "Slow", "AS")
		sub := submission(issued, "t")
		s.verifier.EXPECT().Verify(gomock.Any(), sub).Return(verifier.Verdict{}, context.DeadlineExceeded)

		_, err := s.svc.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.Zero(s.proofCount(issued.Hash))
	})
}

func (s *ServiceSuite) TestSubmitWithoutActiveTrials() {
	svc := New(store.NewInMemory(), s.credentials, s.issuers, trialservice.New(trialstore.NewInMemory()),
		WithVerifier(s.verifier))
	issued := s.issue(-48*time.Hour, "Ada", "AS")

	_, err := svc.Submit(s.ctx, submission(issued, "a"))
	s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
	s.Equal("No active trials available. Please contact the administrator.", err.Error())
}

func (s *ServiceSuite) TestConcurrentSubmissionsRespectCooldown() {
	issued := s.issue(-48*time.Hour, "Ada", "AS")
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub models.Submission) (verifier.Verdict, error) {
			return valid(sub), nil
		}).Times(1)

	const n = 8
	res := racetest.RunConcurrent(n, func(i int) error {
		_, err := s.svc.Submit(s.ctx, submission(issued, strconv.Itoa(i)))
		return err
	})

	s.EqualValues(1, res.Successes)
	s.EqualValues(n-1, res.Count(dErrors.CodeCooldownActive))
	s.Equal(1, s.proofCount(issued.Hash))
}

func (s *ServiceSuite) TestStatusAndHistory() {
	issued := s.issue(-48*time.Hour, "Ada", "AS")
	sub := submission(issued, "a")
	s.verifier.EXPECT().Verify(gomock.Any(), sub).Return(valid(sub), nil)
	_, err := s.svc.Submit(s.at(-time.Hour), sub)
	s.Require().NoError(err)

	s.Run("status includes issuer name", func() {
		res, err := s.svc.Status(s.ctx, sub.ProofHash)
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, res.Proof.Status)
		s.Require().NotNil(res.IssuerName)
		s.Equal("City General Hospital", *res.IssuerName)
	})

	s.Run("unknown proof", func() {
		_, err := s.svc.Status(s.ctx, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal("Proof with hash nope not found", err.Error())
	})

	s.Run("history lists newest first", func() {
		_, err := s.svc.Submit(s.ctx, submission(issued, "b"))
		s.Require().Error(err)

		res, err := s.svc.History(s.ctx, issued.Hash)
		s.Require().NoError(err)
		s.Equal(credmodels.StatusActive, res.CredentialStatus)
		s.Require().Len(res.Proofs, 1, "cooldown rejections are not recorded")
		s.Equal(sub.ProofHash, res.Proofs[0].ProofHash)
	})

	s.Run("history of unknown credential", func() {
		_, err := s.svc.History(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestVerifyLocal() {
	sub := models.Submission{ProofHash: "p", Nullifier: "n"}
	s.verifier.EXPECT().Verify(gomock.Any(), sub).Return(verifier.Verdict{Reason: verifier.ReasonInvalidFormat}, nil)
	v, err := s.svc.VerifyLocal(s.ctx, sub)
	s.Require().NoError(err)
	s.False(v.Valid)

	s.verifier.EXPECT().Verify(gomock.Any(), sub).Return(verifier.Verdict{}, errors.New("connection reset"))
	_, err = s.svc.VerifyLocal(s.ctx, sub)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestSchema() {
	schema := s.svc.Schema()
	s.Equal("Ed25519", schema.SignatureAlgorithm)
	s.Contains(schema.RequiredClaims, "conditions")
}
