package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/credential/models"
	"trialgate/internal/credential/service"
	issuermodels "trialgate/internal/issuer/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
	"trialgate/pkg/validation"
)

// Service defines the credential operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, cmd service.IssueCommand) (*models.Issued, error)
	Revoke(ctx context.Context, credentialID id.CredentialID) (*models.Record, error)
	Retrieve(ctx context.Context, issuerName, patientNumber string) (*issuermodels.Issuer, []*models.Record, error)
	Get(ctx context.Context, credentialID id.CredentialID) (*models.Record, error)
	List(ctx context.Context, issuerName string) ([]models.Listed, error)
	VerifySignature(doc models.Document, signatureHex, publicKeyHex string) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the clinic and patient facing credential routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/issuer/issue", h.HandleIssue)
	r.Post("/issuer/credentials/retrieve", h.HandleRetrieve)
	r.Post("/issuer/credentials/verify-signature", h.HandleVerifySignature)
	r.Get("/issuer/credentials/{id}", h.HandleGet)
}

// RegisterAdmin mounts routes that must sit behind the admin gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/issuer/credentials", h.HandleList)
	r.Post("/issuer/revoke", h.HandleRevoke)
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cmd, err := req.command()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	issued, err := h.service.Issue(ctx, cmd)
	if err != nil {
		h.logger.ErrorContext(ctx, "issue credential failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toIssueResponse(issued))
}

func (r *IssueCredentialRequest) command() (service.IssueCommand, error) {
	dob, err := time.Parse(validation.DateLayout, r.DOB)
	if err != nil {
		return service.IssueCommand{}, dErrors.Wrap(err, dErrors.CodeValidation, "dob must be a date in YYYY-MM-DD format")
	}
	cmd := service.IssueCommand{
		Name:          r.Name,
		DateOfBirth:   dob,
		Gender:        r.Gender,
		BloodGroup:    r.BloodGroup,
		Genotype:      r.Genotype,
		Conditions:    r.Conditions,
		PatientNumber: r.PatientNumber,
		IssuerName:    r.IssuerName,
		IssuerLoginID: r.IssuerLoginID,
	}
	if r.IssuerID != "" {
		issuerID, err := id.ParseIssuerID(r.IssuerID)
		if err != nil {
			return service.IssueCommand{}, err
		}
		cmd.IssuerID = &issuerID
	}
	return cmd, nil
}

// HandleRetrieve lets a patient fetch their usable credentials by clinic and patient number.
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RetrieveCredentialsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	issuer, records, err := h.service.Retrieve(ctx, req.IssuerName, req.PatientNumber)
	if err != nil {
		h.logger.WarnContext(ctx, "retrieve credentials failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	now := requestcontext.Now(ctx)
	out := make([]RetrievedCredential, 0, len(records))
	for _, rec := range records {
		out = append(out, RetrievedCredential{
			CredentialResponse: toCredentialResponse(rec, now),
			Credential:         rec.Document,
			IssuerID:           rec.IssuerID.String(),
			IssuerName:         issuer.Name,
			CreatedAt:          rec.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.service.Get(ctx, credentialID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get credential failed", "error", err, "request_id", requestID, "credential_id", credentialID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(rec, requestcontext.Now(ctx)))
}

// HandleList lists every credential, optionally filtered by ?issuerName.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	listed, err := h.service.List(ctx, r.URL.Query().Get("issuerName"))
	if err != nil {
		h.logger.ErrorContext(ctx, "list credentials failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	now := requestcontext.Now(ctx)
	out := make([]CredentialSummary, 0, len(listed))
	for _, l := range listed {
		var issuerName *string
		if l.IssuerName != "" {
			name := l.IssuerName
			issuerName = &name
		}
		out = append(out, CredentialSummary{
			CredentialResponse: toCredentialResponse(l.Record, now),
			IssuerID:           l.Record.IssuerID.String(),
			IssuerName:         issuerName,
			PatientNumber:      l.Record.PatientNumber,
			CreatedAt:          l.Record.CreatedAt,
			UpdatedAt:          l.Record.UpdatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RevokeCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	credentialID, err := id.ParseCredentialID(req.CredentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Revoke(ctx, credentialID)
	if err != nil {
		h.logger.ErrorContext(ctx, "revoke credential failed", "error", err, "request_id", requestID, "credential_id", credentialID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RevokeCredentialResponse{
		Message:      "Credential revoked successfully",
		CredentialID: rec.ID.String(),
		Status:       rec.Status,
	})
}

func (h *Handler) HandleVerifySignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifySignatureRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	valid, err := h.service.VerifySignature(req.Credential, req.Signature, req.PublicKey)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifySignatureResponse{Valid: valid})
}
