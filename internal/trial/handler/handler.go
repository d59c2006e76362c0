package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/trial/models"
	"trialgate/internal/trial/service"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the trial registry operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand) (*models.Trial, error)
	CreateBulk(ctx context.Context, cmds []service.CreateCommand) models.BulkResult
	List(ctx context.Context) ([]*models.Trial, error)
	Get(ctx context.Context, trialID id.TrialID) (*models.Trial, error)
	Deactivate(ctx context.Context, trialID id.TrialID) (*models.Trial, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/trial/names", h.HandleNames)
	r.Get("/trial/{id}", h.HandleGet)
}

// RegisterAdmin mounts routes that must sit behind the admin gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/trial/create", h.HandleCreate)
	r.Post("/trial/create-bulk", h.HandleCreateBulk)
	r.Get("/trial/list", h.HandleList)
	r.Delete("/trial/{id}", h.HandleDeactivate)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTrialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	t, err := h.service.Create(ctx, req.command())
	if err != nil {
		h.logger.ErrorContext(ctx, "create trial failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTrialResponse(t))
}

func (h *Handler) HandleCreateBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTrialsBulkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cmds := make([]service.CreateCommand, 0, len(req.Trials))
	for i := range req.Trials {
		cmds = append(cmds, req.Trials[i].command())
	}
	httputil.WriteJSON(w, http.StatusCreated, toBulkResponse(h.service.CreateBulk(ctx, cmds)))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	trials, ok := h.list(w, r)
	if !ok {
		return
	}
	out := make([]TrialResponse, 0, len(trials))
	for _, t := range trials {
		out = append(out, toTrialResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleNames(w http.ResponseWriter, r *http.Request) {
	trials, ok := h.list(w, r)
	if !ok {
		return
	}
	out := make([]TrialNameResponse, 0, len(trials))
	for _, t := range trials {
		out = append(out, toNameResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) ([]*models.Trial, bool) {
	ctx := r.Context()
	trials, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list trials failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return nil, false
	}
	return trials, true
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trialID, err := id.ParseTrialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.service.Get(ctx, trialID)
	if err != nil {
		h.logger.WarnContext(ctx, "get trial failed", "error", err, "request_id", requestcontext.RequestID(ctx), "trial_id", trialID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTrialResponse(t))
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trialID, err := id.ParseTrialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.service.Deactivate(ctx, trialID)
	if err != nil {
		h.logger.ErrorContext(ctx, "deactivate trial failed", "error", err, "request_id", requestcontext.RequestID(ctx), "trial_id", trialID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeactivateResponse{
		Message:  "Trial deactivated successfully",
		TrialID:  t.ID.String(),
		IsActive: t.Active,
	})
}
