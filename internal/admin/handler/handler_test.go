package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/admin/service"
	"trialgate/internal/admin/store"
	"trialgate/pkg/platform/audit"
	auditmemory "trialgate/pkg/platform/audit/store/memory"
	adminmw "trialgate/pkg/platform/middleware/admin"
	"trialgate/pkg/requestcontext"
)

type emitter struct{ store *auditmemory.InMemoryStore }

func (e emitter) Emit(ctx context.Context, event audit.Event) error {
	return e.store.Append(ctx, event)
}

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	svc    *service.Service
	root   string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := auditmemory.NewInMemoryStore()
	s.svc = service.New(store.NewInMemory(),
		service.WithAuditPublisher(emitter{store: events}),
		service.WithAuditReader(events),
	)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	root, err := s.svc.Create(ctx, "bootstrap")
	s.Require().NoError(err)
	s.root = root.Hash

	s.router = mount(s.svc, logger)
}

func mount(svc *service.Service, logger *slog.Logger) http.Handler {
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAccessHash(svc, logger))
		h.RegisterAdmin(r)
	})
	return r
}

func (s *HandlerSuite) do(method, path, body, hash string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if hash != "" {
		req.Header.Set(adminmw.HeaderAccessHash, hash)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestVerifyHash() {
	rec := s.do(http.MethodPost, "/admin/verify-hash", `{"accessHash":"`+s.root+`"}`, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"valid":true,"message":"Access hash is valid"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/admin/verify-hash", `{"accessHash":"0000000000000000"}`, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"valid":false,"message":"Access hash is invalid"}`, rec.Body.String())
}

func (s *HandlerSuite) TestGateRejects() {
	s.Run("missing", func() {
		rec := s.do(http.MethodGet, "/admin/hashes", "", "")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "X-Admin-Hash header")
	})

	s.Run("unknown", func() {
		rec := s.do(http.MethodGet, "/admin/hashes", "", "ffffffffffffffff")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("query parameter is accepted", func() {
		rec := s.do(http.MethodGet, "/admin/hashes?accessHash="+s.root, "", "")
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *HandlerSuite) TestGenerateFirstHashWithoutAccessHash() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = mount(service.New(store.NewInMemory()), logger)

	rec := s.do(http.MethodPost, "/admin/generate-hash", `{"description":"first"}`, "")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var first GenerateHashResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &first))
	s.Equal("first", first.Description)

	s.Run("the first hash opens the gate", func() {
		rec := s.do(http.MethodGet, "/admin/hashes", "", first.AccessHash)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("a second call without a hash is rejected", func() {
		rec := s.do(http.MethodPost, "/admin/generate-hash", `{"description":"second"}`, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "X-Admin-Hash header")
	})

	s.Run("an unknown hash is rejected even before bootstrap", func() {
		s.router = mount(service.New(store.NewInMemory()), logger)
		rec := s.do(http.MethodPost, "/admin/generate-hash", `{"description":"x"}`, "ffffffffffffffff")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlerSuite) TestGenerateListDeactivate() {
	rec := s.do(http.MethodPost, "/admin/generate-hash", `{"description":"ops","accessHash":"`+s.root+`"}`, "")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created GenerateHashResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.Len(created.AccessHash, 16)
	s.Equal("ops", created.Description)
	s.Equal("Save this hash securely. Use it to access admin endpoints.", created.Message)

	rec = s.do(http.MethodPost, "/admin/generate-hash", "", s.root)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/admin/hashes", "", s.root)
	s.Require().Equal(http.StatusOK, rec.Code)
	var listed []AccessHashResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listed))
	s.Len(listed, 3)

	rec = s.do(http.MethodDelete, "/admin/hashes/"+created.AccessHash, "", s.root)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"message":"Access hash deactivated successfully","hash":"`+created.AccessHash+`"}`, rec.Body.String())

	s.Run("deactivated hash no longer opens the gate", func() {
		rec := s.do(http.MethodGet, "/admin/hashes", "", created.AccessHash)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("deactivating again conflicts", func() {
		rec := s.do(http.MethodDelete, "/admin/hashes/"+created.AccessHash, "", s.root)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("unknown hash", func() {
		rec := s.do(http.MethodDelete, "/admin/hashes/aaaaaaaaaaaaaaaa", "", s.root)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestRecentAuditEvents() {
	s.do(http.MethodGet, "/admin/hashes", "", "")

	rec := s.do(http.MethodGet, "/admin/audit/recent?limit=1", "", s.root)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp AuditEventsResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Total)
	s.Equal(string(audit.EventAdminAccessDenied), resp.Events[0].Action)
}
