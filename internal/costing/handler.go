package costing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/contaflux-erp/contaflux-erp/internal/platform/httpx"
	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// Handler wires HTTP endpoints for the costing module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs costing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers costing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handleEntry)
	r.Post("/exits", h.handleExit)
	r.Post("/adjustments", h.handleAdjustment)
	r.Get("/cost", h.handleCurrentCost)
	r.Get("/movements", h.handleMovements)
	r.Get("/cogs", h.handleCogs)
}

type entryRequest struct {
	CompanyID    int64   `json:"company_id" validate:"required"`
	TargetKind   string  `json:"target_kind" validate:"required,oneof=PRODUCT SKU"`
	TargetID     int64   `json:"target_id" validate:"required"`
	Qty          float64 `json:"qty" validate:"required,gt=0"`
	UnitCost     float64 `json:"unit_cost" validate:"gte=0"`
	SourceModule string  `json:"source_module"`
	SourceID     string  `json:"source_id"`
	Note         string  `json:"note"`
}

type exitRequest struct {
	CompanyID    int64   `json:"company_id" validate:"required"`
	TargetKind   string  `json:"target_kind" validate:"required,oneof=PRODUCT SKU"`
	TargetID     int64   `json:"target_id" validate:"required"`
	Qty          float64 `json:"qty" validate:"required,gt=0"`
	SourceModule string  `json:"source_module"`
	SourceID     string  `json:"source_id"`
	Note         string  `json:"note"`
}

type adjustmentRequest struct {
	CompanyID    int64   `json:"company_id" validate:"required"`
	TargetKind   string  `json:"target_kind" validate:"required,oneof=PRODUCT SKU"`
	TargetID     int64   `json:"target_id" validate:"required"`
	Qty          float64 `json:"qty" validate:"required"`
	UnitCost     float64 `json:"unit_cost" validate:"gte=0"`
	SourceModule string  `json:"source_module"`
	SourceID     string  `json:"source_id"`
	Note         string  `json:"note"`
}

func (h *Handler) handleEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, err := h.service.RecordEntry(r.Context(), EntryInput{
		CompanyID:    req.CompanyID,
		Target:       Target{Kind: TargetKind(req.TargetKind), ID: req.TargetID},
		Qty:          req.Qty,
		UnitCost:     req.UnitCost,
		SourceModule: req.SourceModule,
		SourceID:     req.SourceID,
		Note:         req.Note,
	})
	if err != nil {
		h.respondDomainError(w, "record entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) handleExit(w http.ResponseWriter, r *http.Request) {
	var req exitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, cogs, err := h.service.RecordExit(r.Context(), ExitInput{
		CompanyID:    req.CompanyID,
		Target:       Target{Kind: TargetKind(req.TargetKind), ID: req.TargetID},
		Qty:          req.Qty,
		SourceModule: req.SourceModule,
		SourceID:     req.SourceID,
		Note:         req.Note,
	})
	if err != nil {
		h.respondDomainError(w, "record exit", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"movement": mv, "cogs": cogs})
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, err := h.service.RecordAdjustment(r.Context(), AdjustmentInput{
		CompanyID:    req.CompanyID,
		Target:       Target{Kind: TargetKind(req.TargetKind), ID: req.TargetID},
		Qty:          req.Qty,
		UnitCost:     req.UnitCost,
		SourceModule: req.SourceModule,
		SourceID:     req.SourceID,
		Note:         req.Note,
	})
	if err != nil {
		h.respondDomainError(w, "record adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) handleCurrentCost(w http.ResponseWriter, r *http.Request) {
	companyID, target, ok := parseTargetQuery(w, r)
	if !ok {
		return
	}
	bal, err := h.service.GetCurrentCost(r.Context(), companyID, target)
	if err != nil {
		h.respondDomainError(w, "get current cost", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"unit_cost":   bal.AvgCost,
		"qty_on_hand": bal.Qty,
		"updated_at":  bal.UpdatedAt,
	})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	companyID, target, ok := parseTargetQuery(w, r)
	if !ok {
		return
	}
	filter := MovementFilter{CompanyID: companyID, Target: target, Limit: 200}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondDomainError(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleCogs(w http.ResponseWriter, r *http.Request) {
	companyID, target, ok := parseTargetQuery(w, r)
	if !ok {
		return
	}
	records, err := h.service.ListCogs(r.Context(), companyID, target, 200)
	if err != nil {
		h.respondDomainError(w, "list cogs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrTargetRequired), errors.Is(err, ErrSKUTracked):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "Negative Stock", err.Error())
	case errors.Is(err, shared.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Write Conflict", "a concurrent write interfered, retry the request")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseTargetQuery(w http.ResponseWriter, r *http.Request) (int64, Target, bool) {
	q := r.URL.Query()
	companyID, err := strconv.ParseInt(q.Get("company_id"), 10, 64)
	if err != nil || companyID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id required")
		return 0, Target{}, false
	}
	kind := TargetKind(q.Get("target_kind"))
	if kind != TargetProduct && kind != TargetSKU {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "target_kind must be PRODUCT or SKU")
		return 0, Target{}, false
	}
	targetID, err := strconv.ParseInt(q.Get("target_id"), 10, 64)
	if err != nil || targetID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "target_id required")
		return 0, Target{}, false
	}
	return companyID, Target{Kind: kind, ID: targetID}, true
}
