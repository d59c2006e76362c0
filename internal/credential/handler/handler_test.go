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

	"trialgate/internal/credential/service"
	"trialgate/internal/credential/store"
	issuermodels "trialgate/internal/issuer/models"
	issuerservice "trialgate/internal/issuer/service"
	issuerstore "trialgate/internal/issuer/store"
	dErrors "trialgate/pkg/domain-errors"
	adminmw "trialgate/pkg/platform/middleware/admin"
	"trialgate/pkg/requestcontext"
)

const adminHash = "0123456789abcdef"

type staticAuthorizer struct{}

func (staticAuthorizer) Authorize(_ context.Context, hash string) (string, error) {
	if hash != adminHash {
		return "", dErrors.New(dErrors.CodeUnauthorized, "Invalid admin access hash.")
	}
	return "admin:test", nil
}

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	clinic *issuermodels.Issuer
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuers := issuerservice.New(issuerstore.NewInMemory())
	s.now = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	clinic, err := issuers.Register(requestcontext.WithTime(context.Background(), s.now.Add(-time.Hour)), "Lagos Clinic", "")
	s.Require().NoError(err)
	s.clinic = clinic

	h := New(service.New(store.NewInMemory(), issuers), logger)
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
	req = req.WithContext(requestcontext.WithTime(req.Context(), s.now))
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(adminmw.HeaderAccessHash, adminHash)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) issueBody(patient string) string {
	return `{"name":"Ada Obi","dob":"1990-01-15","gender":"Female","bloodGroup":"O+","genotype":"AA",
		"conditions":["Asthma"],"patientNumber":"` + patient + `","issuerName":"Lagos Clinic","issuerLoginId":"` + s.clinic.LoginID + `"}`
}

func (s *HandlerSuite) issue(patient string) IssueCredentialResponse {
	rec := s.do(http.MethodPost, "/issuer/issue", s.issueBody(patient), false)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp IssueCredentialResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) TestIssue() {
	resp := s.issue("P-1")
	s.Equal(s.clinic.DID, resp.IssuerDID)
	s.Equal(36, resp.Credential.Claims.Age)
	s.Len(resp.Signature, 128)
	s.Len(resp.CredentialHash, 64)
	s.Equal("Lagos Clinic", resp.IssuerName)

	s.Run("bad dob", func() {
		body := strings.Replace(s.issueBody("P-2"), "1990-01-15", "15/01/1990", 1)
		rec := s.do(http.MethodPost, "/issuer/issue", body, false)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.JSONEq(`{"error":"validation_failed","error_description":"dob must be a date in YYYY-MM-DD format"}`, rec.Body.String())
	})

	s.Run("missing conditions", func() {
		body := strings.Replace(s.issueBody("P-2"), `["Asthma"]`, `[]`, 1)
		rec := s.do(http.MethodPost, "/issuer/issue", body, false)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "At least one condition is required")
	})

	s.Run("wrong login id", func() {
		body := strings.Replace(s.issueBody("P-3"), s.clinic.LoginID, "LAGO-00000000", 1)
		rec := s.do(http.MethodPost, "/issuer/issue", body, false)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlerSuite) TestRetrieveAndRevoke() {
	issued := s.issue("P-9")

	rec := s.do(http.MethodPost, "/issuer/credentials/retrieve", `{"issuerName":"lagos clinic","patientNumber":"P-9"}`, false)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var found []RetrievedCredential
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &found))
	s.Require().Len(found, 1)
	s.Equal(issued.CredentialHash, found[0].CredentialHash)
	s.Require().NotNil(found[0].Credential)
	s.Equal(issued.Credential, *found[0].Credential)

	s.Run("revoke requires admin", func() {
		rec := s.do(http.MethodPost, "/issuer/revoke", `{"credentialId":"`+issued.CredentialID+`"}`, false)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("revoke", func() {
		rec := s.do(http.MethodPost, "/issuer/revoke", `{"credentialId":"`+issued.CredentialID+`"}`, true)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.JSONEq(`{"message":"Credential revoked successfully","credentialId":"`+issued.CredentialID+`","status":"revoked"}`, rec.Body.String())
	})

	s.Run("retrieve now fails closed", func() {
		rec := s.do(http.MethodPost, "/issuer/credentials/retrieve", `{"issuerName":"Lagos Clinic","patientNumber":"P-9"}`, false)
		s.Equal(http.StatusConflict, rec.Code)
		s.Contains(rec.Body.String(), "has been revoked by Lagos Clinic")
	})

	s.Run("second revoke conflicts", func() {
		rec := s.do(http.MethodPost, "/issuer/revoke", `{"credentialId":"`+issued.CredentialID+`"}`, true)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestGetAndList() {
	issued := s.issue("P-5")

	rec := s.do(http.MethodGet, "/issuer/credentials/"+issued.CredentialID, "", false)
	s.Require().Equal(http.StatusOK, rec.Code)
	var got CredentialResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("active", string(got.Status))

	rec = s.do(http.MethodGet, "/issuer/credentials", "", true)
	s.Require().Equal(http.StatusOK, rec.Code)
	var listed []CredentialSummary
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listed))
	s.Require().Len(listed, 1)
	s.Require().NotNil(listed[0].IssuerName)
	s.Equal("Lagos Clinic", *listed[0].IssuerName)

	s.Run("list is admin only", func() {
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/issuer/credentials", "", false).Code)
	})

	s.Run("malformed id", func() {
		s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/issuer/credentials/nope", "", false).Code)
	})
}

func (s *HandlerSuite) TestVerifySignature() {
	issued := s.issue("P-7")
	doc, err := json.Marshal(issued.Credential)
	s.Require().NoError(err)

	body := `{"credential":` + string(doc) + `,"signature":"` + issued.Signature + `","publicKey":"` + issued.IssuerPublicKey + `"}`
	rec := s.do(http.MethodPost, "/issuer/credentials/verify-signature", body, false)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.JSONEq(`{"valid":true}`, rec.Body.String())

	tampered := strings.Replace(body, `"age":36`, `"age":37`, 1)
	rec = s.do(http.MethodPost, "/issuer/credentials/verify-signature", tampered, false)
	s.JSONEq(`{"valid":false}`, rec.Body.String())
}
