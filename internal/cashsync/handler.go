package cashsync

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contaflux-erp/contaflux-erp/internal/platform/httpx"
	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// Handler wires HTTP endpoints for the unified synchronizer.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs cashsync handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers synchronizer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.handleRun)
	r.Get("/pending", h.handlePending)
	r.Get("/movements", h.handleMovements)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	report, err := h.service.SyncAll(r.Context(), companyID)
	if err != nil {
		h.respondDomainError(w, "sync run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	counts, err := h.service.CountPending(r.Context(), companyID)
	if err != nil {
		h.respondDomainError(w, "count pending", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pending": counts, "total": counts.Total()})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "since must be RFC3339")
			return
		}
		since = parsed
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), companyID, since, limit)
	if err != nil {
		h.respondDomainError(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) companyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID == 0 {
		if fromCtx, err := shared.RequireCompany(r.Context()); err == nil {
			return fromCtx, true
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id required")
		return 0, false
	}
	return companyID, true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrCompanyRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
