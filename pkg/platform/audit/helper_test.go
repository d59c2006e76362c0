package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trialgate/pkg/platform/middleware/admin"
	"trialgate/pkg/requestcontext"
)

type mockEmitter struct {
	events    []Event
	shouldErr bool
}

func (m *mockEmitter) Emit(_ context.Context, event Event) error {
	if m.shouldErr {
		return errors.New("emit failed")
	}
	m.events = append(m.events, event)
	return nil
}

type LoggerSuite struct {
	suite.Suite
	emitter *mockEmitter
	logger  *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.emitter = &mockEmitter{}
	s.logger = NewLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), s.emitter)
}

func (s *LoggerSuite) TestLogMapsKnownAttributes() {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), now)

	s.logger.Log(ctx, EventProofSubmitted,
		"subject", "abc123",
		"outcome", "rejected",
		"reason", "cooldown",
		"ignored", 42,
	)

	s.Require().Len(s.emitter.events, 1)
	e := s.emitter.events[0]
	s.Equal(CategoryCompliance, e.Category)
	s.Equal("proof_submitted", e.Action)
	s.Equal("abc123", e.Subject)
	s.Equal("rejected", e.Outcome)
	s.Equal("cooldown", e.Reason)
	s.Equal("req-1", e.RequestID)
	s.Equal(now, e.Timestamp)
}

func (s *LoggerSuite) TestActorDefaultsToAdminActor() {
	ctx := admin.WithActor(context.Background(), "admin-hash:1234")
	s.logger.Log(ctx, EventTrialCreated, "subject", "ONC-01")
	s.Equal("admin-hash:1234", s.emitter.events[0].Actor)

	s.logger.Log(ctx, EventTrialCreated, "subject", "ONC-02", "actor", "cli")
	s.Equal("cli", s.emitter.events[1].Actor)
}

func (s *LoggerSuite) TestEmitErrorsAreSwallowed() {
	s.emitter.shouldErr = true
	s.NotPanics(func() {
		s.logger.Log(context.Background(), EventIssuerRegistered, "subject", "x")
	})
}

func (s *LoggerSuite) TestRecordReturnsEmitError() {
	s.Require().NoError(s.logger.Record(context.Background(), EventCredentialIssued, "subject", "a"))
	s.Len(s.emitter.events, 1)

	s.emitter.shouldErr = true
	s.Error(s.logger.Record(context.Background(), EventCredentialIssued, "subject", "b"))
	s.Len(s.emitter.events, 1)
}

func (s *LoggerSuite) TestNilLoggerIsNoop() {
	var l *Logger
	s.NotPanics(func() { l.Log(context.Background(), EventIssuerRegistered) })
	s.NotPanics(func() { NewLogger(nil, nil).Log(context.Background(), EventIssuerRegistered) })
	s.NoError(l.Record(context.Background(), EventProofSubmitted))
}

func (s *LoggerSuite) TestCategories() {
	s.Equal(CategoryCompliance, EventCredentialIssued.Category())
	s.Equal(CategorySecurity, EventAdminAccessDenied.Category())
	s.Equal(CategoryOperations, EventIssuerRegistered.Category())
	s.Equal(CategoryOperations, AuditEvent("something_new").Category())
}
