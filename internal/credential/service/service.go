package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"trialgate/internal/credential/metrics"
	"trialgate/internal/credential/models"
	"trialgate/internal/credential/signing"
	"trialgate/internal/eligibility"
	issuermodels "trialgate/internal/issuer/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/audit"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
	"trialgate/pkg/requestcontext"
)

// Issuer resolution strategies, also used as metric labels.
const (
	StrategyIssuerID    = "issuer_id"
	StrategyIssuerLogin = "issuer_login"
	StrategyDefault     = "default"
)

// Store persists credential records. The hash is unique at the storage layer.
type Store interface {
	Create(ctx context.Context, rec *models.Record) error
	Update(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Record, error)
	FindByHash(ctx context.Context, hash string) (*models.Record, error)
	ListByIssuerAndPatient(ctx context.Context, issuerID id.IssuerID, patientNumber string) ([]*models.Record, error)
	List(ctx context.Context, issuerID *id.IssuerID) ([]*models.Record, error)
}

// IssuerResolver is the slice of the issuer registry the engine depends on.
type IssuerResolver interface {
	Get(ctx context.Context, issuerID id.IssuerID) (*issuermodels.Issuer, error)
	GetActive(ctx context.Context, issuerID id.IssuerID) (*issuermodels.Issuer, error)
	ResolveByName(ctx context.Context, name string) (*issuermodels.Issuer, error)
	VerifyLoginID(ctx context.Context, name, loginID string) (*issuermodels.Issuer, error)
	Oldest(ctx context.Context) (*issuermodels.Issuer, error)
}

// IssueCommand carries the claims to attest and how to pick the signing issuer.
// IssuerID wins over IssuerName; with neither the oldest active issuer signs.
type IssueCommand struct {
	Name          string
	DateOfBirth   time.Time
	Gender        string
	BloodGroup    string
	Genotype      string
	Conditions    []string
	PatientNumber string

	IssuerID      *id.IssuerID
	IssuerName    string
	IssuerLoginID string
}

// Service issues, retrieves and revokes credentials.
type Service struct {
	credentials Store
	issuers     IssuerResolver
	signer      signing.Signer
	tx          tx.Runner
	auditor     *audit.Logger
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type serviceConfig struct {
	logger  *slog.Logger
	emitter audit.Emitter
	tx      tx.Runner
	signer  signing.Signer
	metrics *metrics.Metrics
}

// Option configures the Service.
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

// WithSigner replaces the Ed25519 signer.
func WithSigner(signer signing.Signer) Option {
	return func(c *serviceConfig) {
		c.signer = signer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func New(credentials Store, issuers IssuerResolver, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NewInMemory()
	}
	if cfg.signer == nil {
		cfg.signer = signing.Ed25519{}
	}
	return &Service{
		credentials: credentials,
		issuers:     issuers,
		signer:      cfg.signer,
		tx:          cfg.tx,
		auditor:     audit.NewLogger(cfg.logger, cfg.emitter),
		logger:      cfg.logger,
		metrics:     cfg.metrics,
	}
}

// Issue signs the claims with the resolved issuer's key and persists an active record.
func (s *Service) Issue(ctx context.Context, cmd IssueCommand) (*models.Issued, error) {
	start := time.Now()
	defer s.metrics.ObserveIssue(start)

	now := requestcontext.Now(ctx)
	if err := validateIssue(cmd, now); err != nil {
		return nil, err
	}
	issuer, strategy, err := s.resolveIssuer(ctx, cmd)
	if err != nil {
		return nil, err
	}

	claims := eligibility.Claims{
		Name:       strings.TrimSpace(cmd.Name),
		Age:        id.AgeAt(cmd.DateOfBirth, now),
		Gender:     cmd.Gender,
		BloodGroup: cmd.BloodGroup,
		Genotype:   cmd.Genotype,
		Conditions: trimAll(cmd.Conditions),
	}
	doc, issuedAt, expiry := models.NewDocument(issuer.DID, claims, now)
	canonical, err := doc.Canonical()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize credential")
	}
	signature, err := s.signer.Sign(canonical, issuer.PrivateKey)
	if err != nil {
		s.metrics.IncSigningError()
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf(
			"Failed to sign credential: %s. The issuer's private key may be corrupted. Please delete and recreate the issuer.", err))
	}
	hash := models.HashBytes(canonical)

	rec, err := models.NewRecord(id.NewCredentialID(), hash, doc, issuedAt, expiry, issuer.ID, strings.TrimSpace(cmd.PatientNumber))
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.credentials.Create(txCtx, rec); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "An identical credential was already issued")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential")
		}
		if err := s.auditor.Record(txCtx, audit.EventCredentialIssued,
			"subject", rec.ID.String(),
			"issuer_id", issuer.ID.String(),
			"strategy", strategy,
		); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncIssued(strategy)

	return &models.Issued{
		Document:        doc,
		Signature:       signature,
		Hash:            hash,
		IssuerPublicKey: issuer.PublicKey,
		IssuerDID:       issuer.DID,
		CredentialID:    rec.ID,
		IssuerID:        issuer.ID,
		IssuerName:      issuer.Name,
		PatientNumber:   rec.PatientNumber,
	}, nil
}

func (s *Service) resolveIssuer(ctx context.Context, cmd IssueCommand) (*issuermodels.Issuer, string, error) {
	switch {
	case cmd.IssuerID != nil:
		issuer, err := s.issuers.GetActive(ctx, *cmd.IssuerID)
		return issuer, StrategyIssuerID, err
	case strings.TrimSpace(cmd.IssuerName) != "":
		if strings.TrimSpace(cmd.IssuerLoginID) == "" {
			return nil, "", dErrors.New(dErrors.CodeValidation, "Issuer login ID is required")
		}
		issuer, err := s.issuers.VerifyLoginID(ctx, cmd.IssuerName, strings.TrimSpace(cmd.IssuerLoginID))
		return issuer, StrategyIssuerLogin, err
	default:
		issuer, err := s.issuers.Oldest(ctx)
		return issuer, StrategyDefault, err
	}
}

func validateIssue(cmd IssueCommand, now time.Time) error {
	required := []struct {
		value string
		msg   string
	}{
		{cmd.Name, "Name is required"},
		{cmd.Gender, "Gender is required"},
		{cmd.BloodGroup, "Blood group is required"},
		{cmd.Genotype, "Genotype is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return dErrors.New(dErrors.CodeValidation, r.msg)
		}
	}
	if len(cmd.Conditions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "At least one condition is required")
	}
	for _, c := range cmd.Conditions {
		if strings.TrimSpace(c) == "" {
			return dErrors.New(dErrors.CodeValidation, "Conditions must not contain blank entries")
		}
	}
	if strings.TrimSpace(cmd.PatientNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "Patient number is required")
	}
	if cmd.DateOfBirth.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "Date of birth is required")
	}
	if cmd.DateOfBirth.After(now) {
		return dErrors.New(dErrors.CodeValidation, "Date of birth cannot be in the future")
	}
	allowed := []struct {
		field  string
		value  string
		values []string
	}{
		{"gender", cmd.Gender, models.Genders},
		{"bloodGroup", cmd.BloodGroup, models.BloodGroups},
		{"genotype", cmd.Genotype, models.Genotypes},
	}
	for _, a := range allowed {
		if !slices.Contains(a.values, a.value) {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("%s must be one of [%s]", a.field, strings.Join(a.values, " ")))
		}
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

// Revoke flips an active credential to revoked. Revocation is permanent.
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID) (*models.Record, error) {
	var revoked *models.Record
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rec, err := s.Get(txCtx, credentialID)
		if err != nil {
			return err
		}
		if err := rec.Revoke(requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.credentials.Update(txCtx, rec); err != nil {
			return wrapCredentialErr(err, credentialID)
		}
		if err := s.auditor.Record(txCtx, audit.EventCredentialRevoked,
			"subject", rec.ID.String(),
			"issuer_id", rec.IssuerID.String(),
		); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		revoked = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncRevoked()
	return revoked, nil
}

// Retrieve returns a patient's usable credentials from the named clinic.
// Any revoked credential fails the whole lookup.
func (s *Service) Retrieve(ctx context.Context, issuerName, patientNumber string) (*issuermodels.Issuer, []*models.Record, error) {
	patientNumber = strings.TrimSpace(patientNumber)
	if patientNumber == "" {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "Patient number is required")
	}
	issuer, err := s.issuers.ResolveByName(ctx, issuerName)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.credentials.ListByIssuerAndPatient(ctx, issuer.ID, patientNumber)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credentials")
	}

	notPatient := dErrors.New(dErrors.CodeNotFound, fmt.Sprintf(
		"Sorry, you are not a patient at %s. Please check your issuer name and patient number, or contact the clinic if you believe this is an error.",
		issuer.Name))
	if len(all) == 0 {
		s.metrics.IncRetrieval("not_found")
		return nil, nil, notPatient
	}

	now := requestcontext.Now(ctx)
	var active []*models.Record
	expired := false
	for _, rec := range all {
		switch rec.EffectiveStatus(now) {
		case models.StatusRevoked:
			s.metrics.IncRetrieval("revoked")
			return nil, nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf(
				"Your credential has been revoked by %s. Please contact the clinic for more information.", issuer.Name))
		case models.StatusExpired:
			expired = true
		case models.StatusActive:
			active = append(active, rec)
		}
	}
	if len(active) > 0 {
		s.metrics.IncRetrieval("found")
		return issuer, active, nil
	}
	if expired {
		s.metrics.IncRetrieval("expired")
		return nil, nil, dErrors.New(dErrors.CodeExpiredCredential, fmt.Sprintf(
			"Your credential from %s has expired. Please contact the clinic to issue a new credential.", issuer.Name))
	}
	s.metrics.IncRetrieval("not_found")
	return nil, nil, notPatient
}

func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (*models.Record, error) {
	rec, err := s.credentials.FindByID(ctx, credentialID)
	if err != nil {
		return nil, wrapCredentialErr(err, credentialID)
	}
	return rec, nil
}

// FindByHash loads a credential by its content hash.
func (s *Service) FindByHash(ctx context.Context, hash string) (*models.Record, error) {
	rec, err := s.credentials.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Credential with hash %s not found", hash))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return rec, nil
}

// List returns credentials newest first, optionally narrowed to one issuer by name.
func (s *Service) List(ctx context.Context, issuerName string) ([]models.Listed, error) {
	var filter *id.IssuerID
	if strings.TrimSpace(issuerName) != "" {
		issuer, err := s.issuers.ResolveByName(ctx, issuerName)
		if err != nil {
			return nil, err
		}
		filter = &issuer.ID
	}
	records, err := s.credentials.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}

	names := make(map[id.IssuerID]string)
	out := make([]models.Listed, 0, len(records))
	for _, rec := range records {
		name, seen := names[rec.IssuerID]
		if !seen {
			if issuer, err := s.issuers.Get(ctx, rec.IssuerID); err == nil {
				name = issuer.Name
			}
			names[rec.IssuerID] = name
		}
		out = append(out, models.Listed{Record: rec, IssuerName: name})
	}
	return out, nil
}

// CheckUsable reports whether the credential could back a proof right now.
// A missing credential is an answer, not an error.
func (s *Service) CheckUsable(ctx context.Context, hash string) (models.Usability, error) {
	rec, err := s.credentials.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Usability{Reason: "Credential not found"}, nil
		}
		return models.Usability{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if rec.Status != models.StatusActive {
		return models.Usability{
			Reason: fmt.Sprintf("Credential is %s. Only active credentials can be used.", rec.Status),
		}, nil
	}
	if rec.IsExpired(requestcontext.Now(ctx)) {
		return models.Usability{Reason: "Credential has expired"}, nil
	}
	return models.Usability{
		Valid:     true,
		Message:   "Credential is valid. You qualify to generate a proof.",
		IssuerDID: rec.IssuerDID,
		Expiry:    rec.Expiry,
	}, nil
}

// VerifySignature checks a holder-presented document against an issuer public key.
func (s *Service) VerifySignature(doc models.Document, signatureHex, publicKeyHex string) (bool, error) {
	canonical, err := doc.Canonical()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeBadRequest, "credential could not be serialized")
	}
	return signing.Verify(canonical, signatureHex, publicKeyHex), nil
}

func wrapCredentialErr(err error, credentialID id.CredentialID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Credential with ID %s not found", credentialID))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
}
