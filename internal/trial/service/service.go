package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"trialgate/internal/eligibility"
	"trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/audit"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
	"trialgate/pkg/requestcontext"
)

// Store persists trials. Code names are unique at the storage layer.
type Store interface {
	Create(ctx context.Context, t *models.Trial) error
	Update(ctx context.Context, t *models.Trial) error
	FindByID(ctx context.Context, trialID id.TrialID) (*models.Trial, error)
	FindByCodeName(ctx context.Context, codeName string) (*models.Trial, error)
	ListActive(ctx context.Context) ([]*models.Trial, error)
}

// CreateCommand describes one trial to register.
type CreateCommand struct {
	CodeName     string
	DisplayName  string
	Requirements eligibility.Requirements
}

type Service struct {
	trials  Store
	tx      tx.Runner
	auditor *audit.Logger
	logger  *slog.Logger
}

type serviceConfig struct {
	logger  *slog.Logger
	emitter audit.Emitter
	tx      tx.Runner
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

func New(trials Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NewInMemory()
	}
	return &Service{
		trials:  trials,
		tx:      cfg.tx,
		auditor: audit.NewLogger(cfg.logger, cfg.emitter),
		logger:  cfg.logger,
	}
}

// Create registers an active trial.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.Trial, error) {
	var created *models.Trial
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.create(txCtx, cmd)
		if err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) create(ctx context.Context, cmd CreateCommand) (*models.Trial, error) {
	t, err := models.NewTrial(id.NewTrialID(), cmd.CodeName, cmd.DisplayName, cmd.Requirements, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	duplicate := dErrors.New(dErrors.CodeConflict, fmt.Sprintf("Trial with code name %s already exists", t.CodeName))
	_, err = s.trials.FindByCodeName(ctx, t.CodeName)
	switch {
	case err == nil:
		return nil, duplicate
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check trial code name")
	}
	if err := s.trials.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, duplicate
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create trial")
	}
	s.auditor.Log(ctx, audit.EventTrialCreated,
		"subject", t.ID.String(),
		"code_name", t.CodeName,
	)
	return t, nil
}

// CreateBulk creates each trial in its own transaction and reports per-entry failures.
func (s *Service) CreateBulk(ctx context.Context, cmds []CreateCommand) models.BulkResult {
	result := models.BulkResult{Total: len(cmds)}
	for _, cmd := range cmds {
		t, err := s.Create(ctx, cmd)
		if err != nil {
			msg := err.Error()
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				msg = "Trial with this code name already exists"
			}
			result.Errors = append(result.Errors, models.BulkError{CodeName: strings.TrimSpace(cmd.CodeName), Error: msg})
			continue
		}
		result.Created = append(result.Created, t)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "bulk trial create finished",
			"total", result.Total,
			"created", len(result.Created),
			"failed", len(result.Errors),
		)
	}
	return result
}

// List returns active trials ordered by display name.
func (s *Service) List(ctx context.Context) ([]*models.Trial, error) {
	trials, err := s.ListActiveForMatching(ctx)
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(trials)
	slices.SortStableFunc(sorted, func(a, b *models.Trial) int {
		return strings.Compare(a.DisplayName, b.DisplayName)
	})
	return sorted, nil
}

// ListActiveForMatching returns active trials in creation order, the order
// eligibility is evaluated in.
func (s *Service) ListActiveForMatching(ctx context.Context) ([]*models.Trial, error) {
	trials, err := s.trials.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trials")
	}
	return trials, nil
}

// Candidates adapts the active trials for the eligibility matcher.
func (s *Service) Candidates(ctx context.Context) ([]eligibility.Trial, error) {
	trials, err := s.ListActiveForMatching(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]eligibility.Trial, 0, len(trials))
	for _, t := range trials {
		out = append(out, t.Candidate())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, trialID id.TrialID) (*models.Trial, error) {
	t, err := s.trials.FindByID(ctx, trialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Trial with ID %s not found", trialID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trial")
	}
	return t, nil
}

// Deactivate withdraws a trial from matching. Past proofs keep their reference.
func (s *Service) Deactivate(ctx context.Context, trialID id.TrialID) (*models.Trial, error) {
	var deactivated *models.Trial
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.Get(txCtx, trialID)
		if err != nil {
			return err
		}
		if err := t.Deactivate(requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.trials.Update(txCtx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update trial")
		}
		s.auditor.Log(txCtx, audit.EventTrialDeactivated,
			"subject", t.ID.String(),
			"code_name", t.CodeName,
		)
		deactivated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deactivated, nil
}
