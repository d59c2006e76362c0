package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	credmodels "trialgate/internal/credential/models"
	"trialgate/internal/proof/models"
	"trialgate/internal/proof/service"
	"trialgate/internal/proof/verifier"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the proof operations exposed over HTTP.
type Service interface {
	Generate(ctx context.Context, cmd service.GenerateCommand) (*service.GenerateResult, error)
	Submit(ctx context.Context, sub models.Submission) (*service.SubmitResult, error)
	Status(ctx context.Context, proofHash string) (*service.StatusResult, error)
	History(ctx context.Context, credentialHash string) (*service.HistoryResult, error)
	VerifyLocal(ctx context.Context, sub models.Submission) (verifier.Verdict, error)
	Schema() models.Schema
}

// CredentialChecker answers the pre-flight "can I generate a proof" question.
type CredentialChecker interface {
	CheckUsable(ctx context.Context, hash string) (credmodels.Usability, error)
}

type Handler struct {
	service     Service
	credentials CredentialChecker
	logger      *slog.Logger
}

func New(service Service, credentials CredentialChecker, logger *slog.Logger) *Handler {
	return &Handler{service: service, credentials: credentials, logger: logger}
}

// Register mounts the holder-facing proof routes. None are admin gated.
func (h *Handler) Register(r chi.Router) {
	r.Get("/proof/schema", h.HandleSchema)
	r.Post("/proof/verify-local", h.HandleCheckCredential)
	r.Post("/proof/verify-proof", h.HandleVerifyProof)
	r.Post("/proof/generate", h.HandleGenerate)
	r.Post("/proof/submit", h.HandleSubmit)
	r.Get("/proof/status/{proofHash}", h.HandleStatus)
	r.Get("/proof/history/{credentialHash}", h.HandleHistory)
}

func (h *Handler) HandleSchema(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Schema())
}

func (h *Handler) HandleCheckCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.credentials.CheckUsable(ctx, req.CredentialHash)
	if err != nil {
		h.logger.ErrorContext(ctx, "check credential failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	res := CheckCredentialResponse{IsValid: u.Valid, Reason: u.Reason, Message: u.Message, IssuerDID: u.IssuerDID}
	if u.Valid {
		expiry := u.Expiry
		res.Expiry = &expiry
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleVerifyProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyProofRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	v, err := h.service.VerifyLocal(ctx, models.Submission{
		ProofHash: req.ProofHash,
		Nullifier: req.Nullifier,
		IssuerDID: req.IssuerDID,
		Signature: req.Signature,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "verify proof failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyProofResponse{IsValid: v.Valid, TxHash: v.TxHash, Reason: v.Reason})
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GenerateProofRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Generate(ctx, service.GenerateCommand{
		CredentialHash: req.CredentialHash,
		IssuerDID:      req.IssuerDID,
		Credential:     req.Credential,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "generate proof failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, GenerateProofResponse{
		CredentialHash: res.CredentialHash,
		IssuerDID:      res.IssuerDID,
		ProofHash:      res.ProofHash,
		Nullifier:      res.Nullifier,
		Signature:      res.Signature,
	})
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitProofRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Submit(ctx, req.submission())
	if err != nil {
		h.logger.WarnContext(ctx, "submit proof failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, SubmitProofResponse{
		Status:         res.Status,
		Message:        res.Message,
		TxHash:         res.TxHash,
		Timestamp:      credmodels.FormatTimestamp(res.Timestamp),
		ProofID:        res.ProofID.String(),
		EligibleTrials: res.EligibleTrials,
		MatchedTrial:   res.MatchedTrial,
	})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	res, err := h.service.Status(ctx, chi.URLParam(r, "proofHash"))
	if err != nil {
		h.logger.WarnContext(ctx, "proof status failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	out := toStatusResponse(res.Proof)
	out.IssuerName = res.IssuerName
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	res, err := h.service.History(ctx, chi.URLParam(r, "credentialHash"))
	if err != nil {
		h.logger.WarnContext(ctx, "proof history failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	proofs := make([]ProofStatusResponse, 0, len(res.Proofs))
	for _, p := range res.Proofs {
		proofs = append(proofs, toStatusResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, ProofHistoryResponse{
		CredentialStatus: res.CredentialStatus,
		IssuerName:       res.IssuerName,
		Proofs:           proofs,
	})
}
