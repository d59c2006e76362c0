package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"trialgate/internal/admin/models"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/audit"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/platform/tx"
	"trialgate/pkg/requestcontext"
)

// MaxGenerateAttempts bounds collision retries when minting a hash.
const MaxGenerateAttempts = 10

const (
	msgHashRequired = "Admin access hash is required. Please provide it in the X-Admin-Hash header, query parameter, or request body."
	msgHashInvalid  = "Invalid admin access hash."
)

type Store interface {
	Create(ctx context.Context, a *models.AccessHash) error
	Update(ctx context.Context, a *models.AccessHash) error
	FindByHash(ctx context.Context, hash string) (*models.AccessHash, error)
	List(ctx context.Context) ([]*models.AccessHash, error)
	Count(ctx context.Context) (int, error)
	LockBootstrap(ctx context.Context) error
}

// AuditReader exposes recent audit events to administrators.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Service mints and checks admin access hashes.
type Service struct {
	hashes  Store
	events  AuditReader
	entropy io.Reader
	tx      tx.Runner
	auditor *audit.Logger
	logger  *slog.Logger
}

type serviceConfig struct {
	logger  *slog.Logger
	emitter audit.Emitter
	tx      tx.Runner
	entropy io.Reader
	events  AuditReader
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

func WithEntropy(r io.Reader) Option {
	return func(c *serviceConfig) {
		c.entropy = r
	}
}

// WithAuditReader enables RecentAuditEvents.
func WithAuditReader(r AuditReader) Option {
	return func(c *serviceConfig) {
		c.events = r
	}
}

func New(hashes Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NewInMemory()
	}
	if cfg.entropy == nil {
		cfg.entropy = rand.Reader
	}
	return &Service{
		hashes:  hashes,
		events:  cfg.events,
		entropy: cfg.entropy,
		tx:      cfg.tx,
		auditor: audit.NewLogger(cfg.logger, cfg.emitter),
		logger:  cfg.logger,
	}
}

// Create mints a new active hash, retrying on collision.
func (s *Service) Create(ctx context.Context, description string) (*models.AccessHash, error) {
	return s.mint(ctx, description, nil)
}

// Bootstrap mints the first hash of a deployment without authorization. Once
// any hash exists, active or not, it fails like a request with no hash.
func (s *Service) Bootstrap(ctx context.Context, description string) (*models.AccessHash, error) {
	a, err := s.mint(ctx, description, func(txCtx context.Context) error {
		if err := s.hashes.LockBootstrap(txCtx); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock access hash bootstrap")
		}
		n, err := s.hashes.Count(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count access hashes")
		}
		if n > 0 {
			return dErrors.New(dErrors.CodeUnauthorized, msgHashRequired)
		}
		return nil
	}, "actor", bootstrapActor)
	if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		// Logged outside the rolled back transaction.
		s.auditor.Log(ctx, audit.EventAdminAccessDenied, "subject", "anonymous", "reason", "missing")
	}
	return a, err
}

const bootstrapActor = "bootstrap"

// mint runs guard, when set, in the same transaction as the insert.
func (s *Service) mint(ctx context.Context, description string, guard func(context.Context) error, attrs ...any) (*models.AccessHash, error) {
	now := requestcontext.Now(ctx)
	for range MaxGenerateAttempts {
		raw := make([]byte, models.HashLength/2)
		if _, err := io.ReadFull(s.entropy, raw); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access hash")
		}
		a, err := models.NewAccessHash(hex.EncodeToString(raw), description, now)
		if err != nil {
			return nil, err
		}

		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			if guard != nil {
				if err := guard(txCtx); err != nil {
					return err
				}
			}
			if err := s.hashes.Create(txCtx, a); err != nil {
				return err
			}
			attributes := append([]any{"subject", a.ID.String()}, attrs...)
			if err := s.auditor.Record(txCtx, audit.EventAdminHashCreated, attributes...); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
			}
			return nil
		})
		if err == nil {
			return a, nil
		}
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, err
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save access hash")
		}
	}
	return nil, dErrors.New(dErrors.CodeInternal,
		fmt.Sprintf("Failed to generate a unique access hash after %d attempts", MaxGenerateAttempts))
}

// Authorize implements the admin middleware contract. The actor never contains the hash.
func (s *Service) Authorize(ctx context.Context, hash string) (string, error) {
	if hash == "" {
		s.auditor.Log(ctx, audit.EventAdminAccessDenied, "subject", "anonymous", "reason", "missing")
		return "", dErrors.New(dErrors.CodeUnauthorized, msgHashRequired)
	}
	a, err := s.active(ctx, hash)
	if err != nil {
		return "", err
	}
	if a == nil {
		s.auditor.Log(ctx, audit.EventAdminAccessDenied, "subject", "anonymous", "reason", "invalid")
		return "", dErrors.New(dErrors.CodeUnauthorized, msgHashInvalid)
	}
	return a.Actor(), nil
}

// Verify reports whether hash is known and active.
func (s *Service) Verify(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	a, err := s.active(ctx, hash)
	if err != nil {
		return false, err
	}
	return a != nil, nil
}

func (s *Service) active(ctx context.Context, hash string) (*models.AccessHash, error) {
	a, err := s.hashes.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access hash")
	}
	if !a.Active {
		return nil, nil
	}
	return a, nil
}

func (s *Service) List(ctx context.Context) ([]*models.AccessHash, error) {
	hashes, err := s.hashes.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access hashes")
	}
	return hashes, nil
}

func (s *Service) Deactivate(ctx context.Context, hash string) (*models.AccessHash, error) {
	var out *models.AccessHash
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.hashes.FindByHash(txCtx, hash)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "Access hash not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access hash")
		}
		if err := a.Deactivate(requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.hashes.Update(txCtx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate access hash")
		}
		if err := s.auditor.Record(txCtx, audit.EventAdminHashDeactivated, "subject", a.ID.String()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecentAuditEvents returns the newest audit events, capped at limit.
func (s *Service) RecentAuditEvents(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.events == nil {
		return []audit.Event{}, nil
	}
	events, err := s.events.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}
