package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	credmodels "trialgate/internal/credential/models"
	"trialgate/internal/eligibility"
	issuermodels "trialgate/internal/issuer/models"
	"trialgate/internal/proof/lock"
	"trialgate/internal/proof/metrics"
	"trialgate/internal/proof/models"
	"trialgate/internal/proof/verifier"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/audit"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
	"trialgate/pkg/requestcontext"
)

// CooldownPeriod applies after every submission, whatever its outcome.
const CooldownPeriod = 42 * 24 * time.Hour

// Submission outcomes, used for audit events and metric labels.
const (
	OutcomeVerified = "verified"
	OutcomeRejected = "rejected"
	OutcomeExpired  = "expired"
	OutcomeCooldown = "cooldown"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Store persists proofs. Proof hash and nullifier are unique at the storage layer.
type Store interface {
	Create(ctx context.Context, p *models.Proof) error
	FindByHash(ctx context.Context, proofHash string) (*models.Proof, error)
	ExistsByHashOrNullifier(ctx context.Context, proofHash, nullifier string) (bool, error)
	LatestByCredential(ctx context.Context, credentialHash string) (*models.Proof, error)
	ListByCredential(ctx context.Context, credentialHash string) ([]*models.Proof, error)
}

// CredentialSource looks credentials up by content hash. Missing credentials
// come back as a not-found domain error.
type CredentialSource interface {
	FindByHash(ctx context.Context, hash string) (*credmodels.Record, error)
}

type IssuerDirectory interface {
	Get(ctx context.Context, issuerID id.IssuerID) (*issuermodels.Issuer, error)
}

// TrialSource returns active trials in load order.
type TrialSource interface {
	Candidates(ctx context.Context) ([]eligibility.Trial, error)
}

// Verifier checks a submitted proof.
type Verifier interface {
	Verify(ctx context.Context, sub models.Submission) (verifier.Verdict, error)
}

// GenerateCommand asks for a proof over a stored credential. Credential is used
// only when the stored record carries no document.
type GenerateCommand struct {
	CredentialHash string
	IssuerDID      string
	Credential     *credmodels.Document
}

type GenerateResult struct {
	CredentialHash string
	IssuerDID      string
	models.Triple
}

type SubmitResult struct {
	Status         models.Status
	Message        string
	TxHash         string
	Timestamp      time.Time
	ProofID        id.ProofID
	EligibleTrials []eligibility.Trial
	MatchedTrial   eligibility.Trial
}

type StatusResult struct {
	Proof      *models.Proof
	IssuerName *string
}

type HistoryResult struct {
	CredentialStatus credmodels.Status
	IssuerName       *string
	Proofs           []*models.Proof
}

// Service derives and accepts eligibility proofs.
type Service struct {
	proofs      Store
	credentials CredentialSource
	issuers     IssuerDirectory
	trials      TrialSource
	verifier    Verifier
	locker      lock.Locker
	entropy     io.Reader
	tx          tx.Runner
	auditor     *audit.Logger
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type serviceConfig struct {
	logger   *slog.Logger
	emitter  audit.Emitter
	tx       tx.Runner
	verifier Verifier
	locker   lock.Locker
	entropy  io.Reader
	metrics  *metrics.Metrics
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithAuditPublisher(emitter audit.Emitter) Option {
	return func(c *serviceConfig) {
		c.emitter = emitter
	}
}

func WithTx(runner tx.Runner) Option {
	return func(c *serviceConfig) {
		c.tx = runner
	}
}

func WithVerifier(v Verifier) Option {
	return func(c *serviceConfig) {
		c.verifier = v
	}
}

// WithLocker replaces the in-process per-credential lock, e.g. with a Redis lock
// when several replicas accept submissions.
func WithLocker(l lock.Locker) Option {
	return func(c *serviceConfig) {
		c.locker = l
	}
}

// WithEntropy sets the randomness source for nullifiers.
func WithEntropy(r io.Reader) Option {
	return func(c *serviceConfig) {
		c.entropy = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func New(proofs Store, credentials CredentialSource, issuers IssuerDirectory, trials TrialSource, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NewInMemory()
	}
	if cfg.verifier == nil {
		cfg.verifier = verifier.NewPlaceholder(verifier.WithMetrics(cfg.metrics))
	}
	if cfg.locker == nil {
		cfg.locker = lock.NewLocal()
	}
	if cfg.entropy == nil {
		cfg.entropy = rand.Reader
	}
	return &Service{
		proofs:      proofs,
		credentials: credentials,
		issuers:     issuers,
		trials:      trials,
		verifier:    cfg.verifier,
		locker:      cfg.locker,
		entropy:     cfg.entropy,
		tx:          cfg.tx,
		auditor:     audit.NewLogger(cfg.logger, cfg.emitter),
		logger:      cfg.logger,
		metrics:     cfg.metrics,
	}
}

// Generate derives a proof triple from an active credential. Nothing is persisted.
func (s *Service) Generate(ctx context.Context, cmd GenerateCommand) (*GenerateResult, error) {
	rec, err := s.credentials.FindByHash(ctx, cmd.CredentialHash)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if rec.Status != credmodels.StatusActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, inactiveMessage(rec.Status))
	}
	if rec.Expiry.Before(now) {
		return nil, dErrors.New(dErrors.CodeExpiredCredential, "Credential has expired")
	}
	if rec.IssuerDID != cmd.IssuerDID {
		return nil, dErrors.New(dErrors.CodeConflict, "Issuer DID does not match the credential issuer")
	}

	doc := rec.Document
	if doc == nil {
		doc = cmd.Credential
	}
	if doc == nil {
		return nil, dErrors.New(dErrors.CodeValidation,
			"Credential object is required. Please provide it in the request body or ensure it was stored when the credential was issued.")
	}

	triple, err := models.Derive(*doc, cmd.CredentialHash, cmd.IssuerDID, now, s.entropy)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate proof")
	}
	s.metrics.IncGenerated()
	return &GenerateResult{CredentialHash: cmd.CredentialHash, IssuerDID: cmd.IssuerDID, Triple: triple}, nil
}

// Submit checks a proof against the credential and every active trial.
// Submissions for one credential are serialized so the cooldown check and the
// write that starts the next cooldown cannot interleave.
func (s *Service) Submit(ctx context.Context, sub models.Submission) (*SubmitResult, error) {
	waitStart := time.Now()
	release, err := s.locker.Lock(ctx, sub.CredentialHash)
	if err != nil {
		return nil, wrapWaitErr(err, "failed to acquire submission lock")
	}
	defer release()
	s.metrics.ObserveLockWait(waitStart)

	res, outcome, err := s.submit(ctx, sub)
	s.metrics.IncSubmission(outcome)
	return res, err
}

func (s *Service) submit(ctx context.Context, sub models.Submission) (*SubmitResult, string, error) {
	rec, err := s.credentials.FindByHash(ctx, sub.CredentialHash)
	if err != nil {
		return nil, OutcomeError, err
	}
	now := requestcontext.Now(ctx)
	if rec.Status != credmodels.StatusActive {
		return nil, OutcomeError, dErrors.New(dErrors.CodeInvalidState, inactiveMessage(rec.Status))
	}
	if rec.Expiry.Before(now) {
		if err := s.record(ctx, models.NewTerminal(sub, models.StatusExpired, now), OutcomeExpired, "credential expired"); err != nil {
			return nil, OutcomeError, err
		}
		return nil, OutcomeExpired, dErrors.New(dErrors.CodeExpiredCredential, "Credential has expired")
	}

	if err := s.checkCooldown(ctx, sub.CredentialHash, now); err != nil {
		return nil, OutcomeCooldown, err
	}

	if rec.IssuerDID != sub.IssuerDID {
		return nil, OutcomeError, dErrors.New(dErrors.CodeConflict, "Issuer DID in proof does not match the credential issuer")
	}
	if rec.Document == nil {
		return nil, OutcomeError, dErrors.New(dErrors.CodeValidation, "Credential object is missing. Cannot validate against trial requirements.")
	}

	trials, err := s.trials.Candidates(ctx)
	if err != nil {
		return nil, OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trials")
	}
	if len(trials) == 0 {
		return nil, OutcomeError, dErrors.New(dErrors.CodeIneligible, "No active trials available. Please contact the administrator.")
	}

	outcome := eligibility.Evaluate(rec.Document.Claims, trials)
	primary, ok := outcome.Primary()
	if !ok {
		summary := outcome.Summary()
		if err := s.record(ctx, models.NewTerminal(sub, models.StatusRejected, now), OutcomeRejected, "ineligible"); err != nil {
			return nil, OutcomeError, err
		}
		return nil, OutcomeRejected, dErrors.New(dErrors.CodeIneligible, "You are not eligible for any active clinical trials. "+summary)
	}

	exists, err := s.proofs.ExistsByHashOrNullifier(ctx, sub.ProofHash, sub.Nullifier)
	if err != nil {
		return nil, OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check proof uniqueness")
	}
	if exists {
		return nil, OutcomeConflict, duplicateProofErr()
	}

	verdict, err := s.verifier.Verify(ctx, sub)
	if err != nil {
		return nil, OutcomeError, wrapWaitErr(err, "proof verification did not complete")
	}
	if !verdict.Valid {
		reason := verdict.Reason
		if reason == "" {
			reason = "Proof verification failed"
		}
		if err := s.record(ctx, models.NewTerminal(sub, models.StatusRejected, now), OutcomeRejected, reason); err != nil {
			return nil, OutcomeError, err
		}
		return nil, OutcomeRejected, dErrors.New(dErrors.CodeVerificationFailed, reason)
	}

	primaryID, err := id.ParseTrialID(primary.ID)
	if err != nil {
		return nil, OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "matched trial has an invalid id")
	}
	eligibleIDs := make([]id.TrialID, 0, len(outcome.Eligible))
	for _, t := range outcome.Eligible {
		tid, err := id.ParseTrialID(t.ID)
		if err != nil {
			return nil, OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "eligible trial has an invalid id")
		}
		eligibleIDs = append(eligibleIDs, tid)
	}

	proof := models.NewVerified(sub, verdict.TxHash, primaryID, eligibleIDs, now)
	if err := s.record(ctx, proof, OutcomeVerified, ""); err != nil {
		return nil, OutcomeError, err
	}
	return &SubmitResult{
		Status:         models.StatusVerified,
		Message:        "You're eligible",
		TxHash:         verdict.TxHash,
		Timestamp:      now,
		ProofID:        proof.ID,
		EligibleTrials: outcome.Eligible,
		MatchedTrial:   primary,
	}, OutcomeVerified, nil
}

func (s *Service) checkCooldown(ctx context.Context, credentialHash string, now time.Time) error {
	last, err := s.proofs.LatestByCredential(ctx, credentialHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load previous proof")
	}
	ends := last.CreatedAt.Add(CooldownPeriod)
	if !ends.After(now) {
		return nil
	}
	days := int(math.Ceil(ends.Sub(now).Hours() / 24))
	plural := "s"
	if days == 1 {
		plural = ""
	}
	return dErrors.New(dErrors.CodeCooldownActive, fmt.Sprintf(
		"You cannot submit another proof yet. Clinical trials don't happen often. Please wait %d more day%s before submitting again. The 6-week cooldown period applies whether you were eligible or not.",
		days, plural))
}

// record persists a proof and its audit event together.
func (s *Service) record(ctx context.Context, p *models.Proof, outcome, reason string) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.proofs.Create(txCtx, p); err != nil {
			return err
		}
		if err := s.auditor.Record(txCtx, audit.EventProofSubmitted,
			"subject", p.CredentialHash,
			"outcome", outcome,
			"reason", reason,
			"proof_id", p.ID.String(),
		); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return duplicateProofErr()
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save proof")
	}
	return nil
}

// Status returns a proof with the name of the issuer behind its credential.
func (s *Service) Status(ctx context.Context, proofHash string) (*StatusResult, error) {
	p, err := s.proofs.FindByHash(ctx, proofHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Proof with hash %s not found", proofHash))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load proof")
	}
	res := &StatusResult{Proof: p}
	if rec, err := s.credentials.FindByHash(ctx, p.CredentialHash); err == nil {
		res.IssuerName = s.issuerName(ctx, rec.IssuerID)
	}
	return res, nil
}

// History lists every submission for a credential, newest first.
func (s *Service) History(ctx context.Context, credentialHash string) (*HistoryResult, error) {
	rec, err := s.credentials.FindByHash(ctx, credentialHash)
	if err != nil {
		return nil, err
	}
	proofs, err := s.proofs.ListByCredential(ctx, credentialHash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proofs")
	}
	return &HistoryResult{
		CredentialStatus: rec.Status,
		IssuerName:       s.issuerName(ctx, rec.IssuerID),
		Proofs:           proofs,
	}, nil
}

// VerifyLocal runs the verifier without touching storage.
func (s *Service) VerifyLocal(ctx context.Context, sub models.Submission) (verifier.Verdict, error) {
	v, err := s.verifier.Verify(ctx, sub)
	if err != nil {
		return verifier.Verdict{}, wrapWaitErr(err, "proof verification did not complete")
	}
	return v, nil
}

func (s *Service) Schema() models.Schema {
	return models.CurrentSchema()
}

func (s *Service) issuerName(ctx context.Context, issuerID id.IssuerID) *string {
	if issuerID.IsNil() {
		return nil
	}
	issuer, err := s.issuers.Get(ctx, issuerID)
	if err != nil {
		return nil
	}
	return &issuer.Name
}

func inactiveMessage(status credmodels.Status) string {
	return fmt.Sprintf("Credential is %s. Only active credentials can be used to generate proofs.", status)
}

func duplicateProofErr() error {
	return dErrors.New(dErrors.CodeConflict, "Proof with this hash or nullifier already exists")
}

func wrapWaitErr(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
