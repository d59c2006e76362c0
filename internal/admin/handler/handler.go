package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/admin/models"
	"trialgate/pkg/platform/audit"
	"trialgate/pkg/platform/httputil"
	adminmw "trialgate/pkg/platform/middleware/admin"
	"trialgate/pkg/requestcontext"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Service defines the admin operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, description string) (*models.AccessHash, error)
	Bootstrap(ctx context.Context, description string) (*models.AccessHash, error)
	Authorize(ctx context.Context, hash string) (string, error)
	Verify(ctx context.Context, hash string) (bool, error)
	List(ctx context.Context) ([]*models.AccessHash, error)
	Deactivate(ctx context.Context, hash string) (*models.AccessHash, error)
	RecentAuditEvents(ctx context.Context, limit int) ([]audit.Event, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the hash check and hash generation. Generation authorizes
// the caller itself so the first hash of a deployment can be minted.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/verify-hash", h.HandleVerifyHash)
	r.Post("/admin/generate-hash", h.HandleGenerateHash)
}

// RegisterAdmin mounts routes that must sit behind the admin gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/hashes", h.HandleListHashes)
	r.Delete("/admin/hashes/{hash}", h.HandleDeactivateHash)
	r.Get("/admin/audit/recent", h.HandleRecentAuditEvents)
}

func (h *Handler) HandleVerifyHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyHashRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	valid, err := h.service.Verify(ctx, req.AccessHash)
	if err != nil {
		h.logger.ErrorContext(ctx, "verify access hash failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	msg := "Access hash is invalid"
	if valid {
		msg = "Access hash is valid"
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyHashResponse{Valid: valid, Message: msg})
}

// HandleGenerateHash mints a hash for an authorized caller. A call without any
// hash is accepted only while the deployment has no hashes at all.
func (h *Handler) HandleGenerateHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	hash := adminmw.ExtractAccessHash(r)

	// A header-only call with no body is allowed.
	req := &GenerateHashRequest{}
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = httputil.DecodeAndPrepare[GenerateHashRequest](w, r, h.logger, ctx, requestID); !ok {
			return
		}
	}

	var (
		a     *models.AccessHash
		err   error
		actor = "bootstrap"
	)
	if hash == "" {
		a, err = h.service.Bootstrap(ctx, req.Description)
	} else {
		actor, err = h.service.Authorize(ctx, hash)
		if err == nil {
			ctx = adminmw.WithActor(ctx, actor)
			a, err = h.service.Create(ctx, req.Description)
		}
	}
	if err != nil {
		h.logger.WarnContext(ctx, "generate access hash failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin access hash generated",
		"request_id", requestID,
		"actor", actor,
		"hash_id", a.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, GenerateHashResponse{
		AccessHash:  a.Hash,
		ID:          a.ID.String(),
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		Message:     "Save this hash securely. Use it to access admin endpoints.",
	})
}

func (h *Handler) HandleListHashes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	hashes, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list access hashes failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	out := make([]AccessHashResponse, 0, len(hashes))
	for _, a := range hashes {
		out = append(out, toAccessHashResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleDeactivateHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	a, err := h.service.Deactivate(ctx, chi.URLParam(r, "hash"))
	if err != nil {
		h.logger.ErrorContext(ctx, "deactivate access hash failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeactivateHashResponse{
		Message: "Access hash deactivated successfully",
		Hash:    a.Hash,
	})
}

// HandleRecentAuditEvents returns the newest audit events; limit defaults to 50.
func (h *Handler) HandleRecentAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxAuditLimit)
		}
	}

	events, err := h.service.RecentAuditEvents(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list recent audit events failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditEventsResponse{Events: events, Total: len(events)})
}
