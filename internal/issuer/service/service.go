package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"trialgate/internal/issuer/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/audit"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
	"trialgate/pkg/requestcontext"
)

const noActiveIssuerMessage = "No active issuer found. Please register an issuer first using POST /issuer/register"

// Store persists issuers. Name, DID and login ID are unique at the storage layer.
type Store interface {
	Create(ctx context.Context, issuer *models.Issuer) error
	Update(ctx context.Context, issuer *models.Issuer) error
	FindByID(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	FindByName(ctx context.Context, name string) (*models.Issuer, error)
	FindByDID(ctx context.Context, did string) (*models.Issuer, error)
	LoginIDExists(ctx context.Context, loginID string) (bool, error)
	ListActive(ctx context.Context) ([]*models.Issuer, error)
}

// Service owns issuer registration, key material and name resolution.
type Service struct {
	issuers Store
	tx      tx.Runner
	auditor *audit.Logger
	logger  *slog.Logger
	entropy io.Reader
}

type serviceConfig struct {
	logger  *slog.Logger
	emitter audit.Emitter
	tx      tx.Runner
	entropy io.Reader
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

// WithTx runs registration and deactivation inside the given transaction runner.
func WithTx(runner tx.Runner) Option {
	return func(c *serviceConfig) {
		c.tx = runner
	}
}

// WithEntropy overrides the randomness used for keys and login IDs.
func WithEntropy(r io.Reader) Option {
	return func(c *serviceConfig) {
		c.entropy = r
	}
}

func New(issuers Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	runner := cfg.tx
	if runner == nil {
		runner = tx.NewInMemory()
	}
	return &Service{
		issuers: issuers,
		tx:      runner,
		auditor: audit.NewLogger(cfg.logger, cfg.emitter),
		logger:  cfg.logger,
		entropy: cfg.entropy,
	}
}

// Register creates an active issuer with a fresh Ed25519 key pair and login ID.
// An empty did defaults to did:clinic:<epoch millis>. A login ID collision,
// seen up front or raised by the store's unique index, costs one of
// MaxLoginIDAttempts. Each attempt runs in its own transaction.
func (s *Service) Register(ctx context.Context, name, did string) (*models.Issuer, error) {
	name = strings.TrimSpace(name)
	did = strings.TrimSpace(did)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Issuer name is required")
	}

	for range models.MaxLoginIDAttempts {
		issuer, err := s.register(ctx, name, did)
		if errors.Is(err, models.ErrLoginIDTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return issuer, nil
	}
	return nil, dErrors.New(dErrors.CodeInternal,
		fmt.Sprintf("Failed to generate a unique login ID after %d attempts", models.MaxLoginIDAttempts))
}

func (s *Service) register(ctx context.Context, name, did string) (*models.Issuer, error) {
	var registered *models.Issuer
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureAvailable(txCtx, s.issuers.FindByName, name, "Issuer with this name already exists"); err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		issuerDID := did
		if issuerDID == "" {
			issuerDID = fmt.Sprintf("did:clinic:%d", now.UnixMilli())
		}
		if err := s.ensureAvailable(txCtx, s.issuers.FindByDID, issuerDID, "Issuer with this DID already exists"); err != nil {
			return err
		}

		keys, err := models.GenerateKeyPair(s.entropy)
		if err != nil {
			return err
		}
		loginID, err := s.drawLoginID(txCtx, name)
		if err != nil {
			return err
		}

		issuer, err := models.NewIssuer(id.NewIssuerID(), name, issuerDID, loginID, keys, now)
		if err != nil {
			return err
		}
		if err := s.issuers.Create(txCtx, issuer); err != nil {
			switch {
			case errors.Is(err, models.ErrLoginIDTaken):
				return err
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.New(dErrors.CodeConflict, "Issuer with this name, DID or login ID already exists")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create issuer")
			}
		}
		s.auditor.Log(txCtx, audit.EventIssuerRegistered,
			"subject", issuer.ID.String(),
			"issuer_name", issuer.Name,
		)
		registered = issuer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return registered, nil
}

func (s *Service) ensureAvailable(ctx context.Context, find func(context.Context, string) (*models.Issuer, error), key, conflictMsg string) error {
	_, err := find(ctx, key)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeConflict, conflictMsg)
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer uniqueness")
	}
}

// drawLoginID returns a candidate not yet in the store, or ErrLoginIDTaken.
func (s *Service) drawLoginID(ctx context.Context, name string) (string, error) {
	candidate, err := models.NewLoginID(name, s.entropy)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate login ID")
	}
	exists, err := s.issuers.LoginIDExists(ctx, candidate)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check login ID")
	}
	if exists {
		return "", models.ErrLoginIDTaken
	}
	return candidate, nil
}

// ResolveByName finds an active issuer by case-insensitive exact name. On a miss
// the not-found message suggests up to five similarly named active issuers.
func (s *Service) ResolveByName(ctx context.Context, name string) (*models.Issuer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Issuer name is required")
	}

	issuer, err := s.issuers.FindByName(ctx, name)
	if err == nil && issuer.Active {
		return issuer, nil
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve issuer")
	}

	active, err := s.issuers.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	names := make([]string, 0, len(active))
	for _, candidate := range active {
		names = append(names, candidate.Name)
	}
	return nil, dErrors.New(dErrors.CodeNotFound, notFoundMessage(name, models.Suggest(name, names)))
}

func notFoundMessage(name string, suggestions []string) string {
	msg := fmt.Sprintf("Issuer with name %q not found.", name)
	if len(suggestions) == 0 {
		return msg + " Please check the issuer name and try again."
	}
	return msg + " Did you mean: " + strings.Join(suggestions, ", ") + "?"
}

// VerifyLoginID resolves the issuer by name and checks the clinic login ID exactly.
func (s *Service) VerifyLoginID(ctx context.Context, name, loginID string) (*models.Issuer, error) {
	issuer, err := s.ResolveByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if issuer.LoginID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized,
			fmt.Sprintf("Issuer %s has no login ID assigned. Please contact the administrator.", issuer.Name))
	}
	if subtle.ConstantTimeCompare([]byte(issuer.LoginID), []byte(loginID)) != 1 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid login ID for issuer "+issuer.Name)
	}
	return issuer, nil
}

// Get returns an issuer regardless of its active flag.
func (s *Service) Get(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	issuer, err := s.issuers.FindByID(ctx, issuerID)
	if err != nil {
		return nil, wrapIssuerErr(err, issuerID)
	}
	return issuer, nil
}

// GetActive returns an issuer only while it is active.
func (s *Service) GetActive(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	issuer, err := s.Get(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if !issuer.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Issuer with ID %s not found", issuerID))
	}
	return issuer, nil
}

// List returns active issuers, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Issuer, error) {
	issuers, err := s.issuers.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	return issuers, nil
}

// Names returns active issuer names in ascending order.
func (s *Service) Names(ctx context.Context) ([]models.NameEntry, error) {
	issuers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.NameEntry, 0, len(issuers))
	for _, issuer := range issuers {
		entries = append(entries, models.NameEntry{ID: issuer.ID, Name: issuer.Name})
	}
	slices.SortStableFunc(entries, func(a, b models.NameEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// Metadata returns the public verification data of one active issuer.
func (s *Service) Metadata(ctx context.Context, issuerID id.IssuerID) (models.Metadata, error) {
	issuer, err := s.GetActive(ctx, issuerID)
	if err != nil {
		return models.Metadata{}, err
	}
	return issuer.Metadata(), nil
}

// AllMetadata returns metadata for every active issuer, oldest first.
func (s *Service) AllMetadata(ctx context.Context) ([]models.Metadata, error) {
	issuers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(issuers) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, noActiveIssuerMessage)
	}
	out := make([]models.Metadata, 0, len(issuers))
	for i := len(issuers) - 1; i >= 0; i-- {
		out = append(out, issuers[i].Metadata())
	}
	return out, nil
}

// Oldest returns the earliest registered active issuer, the default signer when
// a caller names none.
func (s *Service) Oldest(ctx context.Context) (*models.Issuer, error) {
	issuers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(issuers) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, noActiveIssuerMessage)
	}
	return issuers[len(issuers)-1], nil
}

// Deactivate hides an issuer from resolution and issuance.
func (s *Service) Deactivate(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	var deactivated *models.Issuer
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		issuer, err := s.Get(txCtx, issuerID)
		if err != nil {
			return err
		}
		if err := issuer.Deactivate(requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.issuers.Update(txCtx, issuer); err != nil {
			return wrapIssuerErr(err, issuerID)
		}
		s.auditor.Log(txCtx, audit.EventIssuerDeactivated,
			"subject", issuer.ID.String(),
			"issuer_name", issuer.Name,
		)
		deactivated = issuer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deactivated, nil
}

func wrapIssuerErr(err error, issuerID id.IssuerID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Issuer with ID %s not found", issuerID))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuer")
}
