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

	credmodels "trialgate/internal/credential/models"
	credservice "trialgate/internal/credential/service"
	credstore "trialgate/internal/credential/store"
	issuerservice "trialgate/internal/issuer/service"
	issuerstore "trialgate/internal/issuer/store"
	"trialgate/internal/proof/service"
	"trialgate/internal/proof/store"
	"trialgate/internal/proof/verifier"
	trialservice "trialgate/internal/trial/service"
	trialstore "trialgate/internal/trial/store"
	"trialgate/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	credentials *credservice.Service
	issued      *credmodels.Issued
	now         time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	earlier := requestcontext.WithTime(context.Background(), s.now.Add(-24*time.Hour))

	issuers := issuerservice.New(issuerstore.NewInMemory())
	clinic, err := issuers.Register(earlier, "Lagos Clinic", "")
	s.Require().NoError(err)

	trials := trialservice.New(trialstore.NewInMemory())
	_, err = trials.Create(earlier, trialservice.CreateCommand{CodeName: "OPEN-01", DisplayName: "Open Study"})
	s.Require().NoError(err)

	s.credentials = credservice.New(credstore.NewInMemory(), issuers)
	s.issued, err = s.credentials.Issue(earlier, credservice.IssueCommand{
		Name:          "Ada Obi",
		DateOfBirth:   time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC),
		Gender:        "Female",
		BloodGroup:    "O+",
		Genotype:      "AA",
		Conditions:    []string{"Asthma"},
		PatientNumber: "P-1",
		IssuerID:      &clinic.ID,
	})
	s.Require().NoError(err)

	svc := service.New(store.NewInMemory(), s.credentials, issuers, trials,
		service.WithVerifier(verifier.NewPlaceholder(verifier.WithDelay(0))))
	r := chi.NewRouter()
	New(svc, s.credentials, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(requestcontext.WithTime(req.Context(), s.now))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) generate() GenerateProofResponse {
	rec := s.do(http.MethodPost, "/proof/generate",
		`{"credentialHash":"`+s.issued.Hash+`","issuerDID":"`+s.issued.IssuerDID+`"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var resp GenerateProofResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func submitBody(g GenerateProofResponse) string {
	b, _ := json.Marshal(SubmitProofRequest{
		CredentialHash: g.CredentialHash,
		ProofHash:      g.ProofHash,
		Nullifier:      g.Nullifier,
		IssuerDID:      g.IssuerDID,
		Signature:      g.Signature,
	})
	return string(b)
}

func (s *HandlerSuite) TestGenerateSubmitStatusHistory() {
	g := s.generate()
	s.Len(g.ProofHash, 64)

	rec := s.do(http.MethodPost, "/proof/submit", submitBody(g))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var submitted SubmitProofResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &submitted))
	s.Equal("verified", string(submitted.Status))
	s.Equal("You're eligible", submitted.Message)
	s.Equal(verifier.TxHash(g.ProofHash, g.Nullifier), submitted.TxHash)
	s.Equal("2026-06-01T09:00:00.000Z", submitted.Timestamp)
	s.Equal("OPEN-01", submitted.MatchedTrial.CodeName)

	s.Run("status", func() {
		rec := s.do(http.MethodGet, "/proof/status/"+g.ProofHash, "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var status ProofStatusResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &status))
		s.Equal("verified", string(status.Status))
		s.Require().NotNil(status.IssuerName)
		s.Equal("Lagos Clinic", *status.IssuerName)
	})

	s.Run("second submission is rate limited by cooldown", func() {
		rec := s.do(http.MethodPost, "/proof/submit", submitBody(s.generate()))
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Contains(rec.Body.String(), "cooldown_active")
	})

	s.Run("history", func() {
		rec := s.do(http.MethodGet, "/proof/history/"+s.issued.Hash, "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var history ProofHistoryResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &history))
		s.Equal("active", string(history.CredentialStatus))
		s.Len(history.Proofs, 1)
	})
}

func (s *HandlerSuite) TestSubmitValidation() {
	rec := s.do(http.MethodPost, "/proof/submit", `{"credentialHash":"`+s.issued.Hash+`"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"error":"validation_failed","error_description":"proofHash is required"}`, rec.Body.String())
}

func (s *HandlerSuite) TestGenerateErrors() {
	s.Run("unknown credential", func() {
		rec := s.do(http.MethodPost, "/proof/generate", `{"credentialHash":"abc","issuerDID":"did:x"}`)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("revoked credential", func() {
		_, err := s.credentials.Revoke(requestcontext.WithTime(context.Background(), s.now), s.issued.CredentialID)
		s.Require().NoError(err)
		rec := s.do(http.MethodPost, "/proof/generate",
			`{"credentialHash":"`+s.issued.Hash+`","issuerDID":"`+s.issued.IssuerDID+`"}`)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestCheckCredential() {
	rec := s.do(http.MethodPost, "/proof/verify-local", `{"credentialHash":"`+s.issued.Hash+`"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp CheckCredentialResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.IsValid)
	s.Equal("Credential is valid. You qualify to generate a proof.", resp.Message)
	s.NotNil(resp.Expiry)

	rec = s.do(http.MethodPost, "/proof/verify-local", `{"credentialHash":"nope"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"isValid":false,"reason":"Credential not found"}`, rec.Body.String())
}

func (s *HandlerSuite) TestVerifyProof() {
	rec := s.do(http.MethodPost, "/proof/verify-proof", `{"proofHash":"short","nullifier":"short","issuerDID":"d","signature":"s"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"isValid":false,"reason":"Invalid proof hash or nullifier format"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/proof/verify-proof", `{}`)
	s.JSONEq(`{"isValid":false,"reason":"Missing required proof components"}`, rec.Body.String())
}

func (s *HandlerSuite) TestSchema() {
	rec := s.do(http.MethodGet, "/proof/schema", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"signatureAlgorithm":"Ed25519"`)
}
