// Package verifier checks submitted proofs. The placeholder here stands in for
// a real proof-system verifier behind the same interface.
package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"trialgate/internal/platform/tracing"
	"trialgate/internal/proof/metrics"
	"trialgate/internal/proof/models"
)

const (
	// DefaultDelay approximates a network round trip to the verifier.
	DefaultDelay = 100 * time.Millisecond
	// MinIdentifierLength applies to both proof hash and nullifier.
	MinIdentifierLength = 32

	ReasonMissingComponents = "Missing required proof components"
	ReasonInvalidFormat     = "Invalid proof hash or nullifier format"
)

// Verdict is the verifier's answer. TxHash is set only when Valid.
type Verdict struct {
	Valid  bool
	TxHash string
	Reason string
}

// Placeholder accepts any well-formed submission after a fixed delay.
type Placeholder struct {
	delay   time.Duration
	tracer  tracing.Tracer
	metrics *metrics.Metrics
}

type Option func(*Placeholder)

func WithDelay(d time.Duration) Option {
	return func(p *Placeholder) {
		p.delay = d
	}
}

func WithTracer(t tracing.Tracer) Option {
	return func(p *Placeholder) {
		p.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Placeholder) {
		p.metrics = m
	}
}

func NewPlaceholder(opts ...Option) *Placeholder {
	p := &Placeholder{delay: DefaultDelay}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = tracing.NewNoop()
	}
	return p
}

// Verify returns ctx.Err() when cancelled during the delay.
func (p *Placeholder) Verify(ctx context.Context, sub models.Submission) (verdict Verdict, err error) {
	ctx, span := p.tracer.Start(ctx, "proof.verify",
		tracing.String("credential_hash", sub.CredentialHash),
		tracing.Duration("delay_ms", p.delay),
	)
	defer func() {
		span.SetAttributes(tracing.Bool("valid", verdict.Valid))
		span.End(err)
	}()
	start := time.Now()
	defer p.metrics.ObserveVerifier(start)

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		case <-timer.C:
		}
	}
	return Check(sub), nil
}

// Check applies the format rules without any delay.
func Check(sub models.Submission) Verdict {
	if sub.ProofHash == "" || sub.Nullifier == "" || sub.IssuerDID == "" || sub.Signature == "" {
		return Verdict{Reason: ReasonMissingComponents}
	}
	if len(sub.ProofHash) < MinIdentifierLength || len(sub.Nullifier) < MinIdentifierLength {
		return Verdict{Reason: ReasonInvalidFormat}
	}
	return Verdict{Valid: true, TxHash: TxHash(sub.ProofHash, sub.Nullifier)}
}

// TxHash is the deterministic receipt for an accepted proof.
func TxHash(proofHash, nullifier string) string {
	sum := sha256.Sum256([]byte(proofHash + nullifier))
	return "0x" + hex.EncodeToString(sum[:])
}
