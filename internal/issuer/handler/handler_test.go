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

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/issuer/service"
	"trialgate/internal/issuer/store"
	dErrors "trialgate/pkg/domain-errors"
	adminmw "trialgate/pkg/platform/middleware/admin"
)

const adminHash = "0123456789abcdef"

type staticAuthorizer struct{}

func (staticAuthorizer) Authorize(_ context.Context, hash string) (string, error) {
	if hash == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "Admin access hash is required.")
	}
	if hash != adminHash {
		return "", dErrors.New(dErrors.CodeUnauthorized, "Invalid admin access hash.")
	}
	return "admin:test", nil
}

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(service.New(store.NewInMemory()), logger)

	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAccessHash(staticAuthorizer{}, logger))
		h.RegisterAdmin(r)
	})
	s.router = r
}

func (s *HandlerSuite) do(method, path, body string, admin bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(adminmw.HeaderAccessHash, adminHash)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) registerIssuer(name string) RegisterIssuerResponse {
	rec := s.do(http.MethodPost, "/issuer/register", `{"name":"`+name+`"}`, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp RegisterIssuerResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) TestRegisterRequiresAdmin() {
	rec := s.do(http.MethodPost, "/issuer/register", `{"name":"City"}`, false)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestRegisterAndLookups() {
	created := s.registerIssuer("City General Hospital")
	s.NotEmpty(created.LoginID)
	s.True(created.IsActive)

	s.Run("metadata by id", func() {
		rec := s.do(http.MethodGet, "/issuer/metadata?issuerId="+created.ID, "", false)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"algorithm":"Ed25519"`)
		s.Contains(rec.Body.String(), created.PublicKey)
	})

	s.Run("metadata without id lists all", func() {
		rec := s.do(http.MethodGet, "/issuer/metadata", "", false)
		s.Require().Equal(http.StatusOK, rec.Code)
		var all []map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &all))
		s.Len(all, 1)
	})

	s.Run("names are public and omit keys", func() {
		rec := s.do(http.MethodGet, "/issuer/names", "", false)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.NotContains(rec.Body.String(), "publicKey")
		s.Contains(rec.Body.String(), "City General Hospital")
	})

	s.Run("list never exposes the login id", func() {
		rec := s.do(http.MethodGet, "/issuer/list", "", true)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.NotContains(rec.Body.String(), created.LoginID)
	})

	s.Run("verify login", func() {
		body, _ := json.Marshal(VerifyLoginRequest{IssuerName: "city general hospital", LoginID: created.LoginID})
		rec := s.do(http.MethodPost, "/issuer/verify-login", string(body), false)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"valid":true`)

		rec = s.do(http.MethodPost, "/issuer/verify-login", `{"issuerName":"City General Hospital","loginId":"WRONG-00000000"}`, false)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("deactivate", func() {
		rec := s.do(http.MethodDelete, "/issuer/"+created.ID, "", true)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"isActive":false`)

		rec = s.do(http.MethodGet, "/issuer/metadata", "", false)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Contains(rec.Body.String(), "No active issuer found")
	})
}

func (s *HandlerSuite) TestRegisterValidation() {
	rec := s.do(http.MethodPost, "/issuer/register", `{"name":"  "}`, true)
	s.Equal(http.StatusBadRequest, rec.Code)

	s.registerIssuer("City")
	rec = s.do(http.MethodPost, "/issuer/register", `{"name":"City"}`, true)
	s.Equal(http.StatusConflict, rec.Code)
	s.Contains(rec.Body.String(), "Issuer with this name already exists")
}

func (s *HandlerSuite) TestGetUnknownIssuer() {
	rec := s.do(http.MethodGet, "/issuer/not-a-uuid", "", false)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/issuer/00000000-0000-0000-0000-000000000001", "", false)
	s.Equal(http.StatusNotFound, rec.Code)
}

