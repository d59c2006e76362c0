package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/issuer/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the issuer operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, name, did string) (*models.Issuer, error)
	VerifyLoginID(ctx context.Context, name, loginID string) (*models.Issuer, error)
	Get(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	List(ctx context.Context) ([]*models.Issuer, error)
	Names(ctx context.Context) ([]models.NameEntry, error)
	Metadata(ctx context.Context, issuerID id.IssuerID) (models.Metadata, error)
	AllMetadata(ctx context.Context) ([]models.Metadata, error)
	Deactivate(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public issuer routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/issuer/metadata", h.HandleMetadata)
	r.Get("/issuer/names", h.HandleNames)
	r.Post("/issuer/verify-login", h.HandleVerifyLogin)
	r.Get("/issuer/{id}", h.HandleGet)
}

// RegisterAdmin mounts routes that must sit behind the admin gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/issuer/register", h.HandleRegister)
	r.Get("/issuer/list", h.HandleList)
	r.Delete("/issuer/{id}", h.HandleDeactivate)
}

// HandleMetadata returns one issuer's metadata when issuerId is given, else all active issuers.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw := r.URL.Query().Get("issuerId")
	if raw == "" {
		all, err := h.service.AllMetadata(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "list issuer metadata failed", "error", err, "request_id", requestID)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, all)
		return
	}

	issuerID, err := id.ParseIssuerID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	md, err := h.service.Metadata(ctx, issuerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "issuer metadata failed", "error", err, "request_id", requestID, "issuer_id", raw)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, md)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterIssuerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	issuer, err := h.service.Register(ctx, req.Name, req.DID)
	if err != nil {
		h.logger.ErrorContext(ctx, "register issuer failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, RegisterIssuerResponse{
		IssuerResponse: toIssuerResponse(issuer),
		LoginID:        issuer.LoginID,
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuers, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list issuers failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	out := make([]IssuerResponse, 0, len(issuers))
	for _, issuer := range issuers {
		out = append(out, toIssuerResponse(issuer))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleNames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	names, err := h.service.Names(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list issuer names failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	out := make([]NameResponse, 0, len(names))
	for _, n := range names {
		out = append(out, NameResponse{ID: n.ID.String(), Name: n.Name})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleVerifyLogin lets a clinic confirm its name and login ID before issuing.
func (h *Handler) HandleVerifyLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyLoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	issuer, err := h.service.VerifyLoginID(ctx, req.IssuerName, req.LoginID)
	if err != nil {
		h.logger.WarnContext(ctx, "verify issuer login failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyLoginResponse{
		Valid:      true,
		IssuerID:   issuer.ID.String(),
		IssuerName: issuer.Name,
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.service.Get(ctx, issuerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get issuer failed", "error", err, "request_id", requestID, "issuer_id", issuerID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssuerResponse(issuer))
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.service.Deactivate(ctx, issuerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "deactivate issuer failed", "error", err, "request_id", requestID, "issuer_id", issuerID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeactivateResponse{
		Message:  "Issuer deactivated successfully",
		IssuerID: issuer.ID.String(),
		IsActive: issuer.Active,
	})
}
