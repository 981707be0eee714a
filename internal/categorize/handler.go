package categorize

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/contaflux-erp/contaflux-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the categorization module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs categorize handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers categorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/suggest", h.handleSuggest)
	r.Post("/learn", h.handleLearn)
	r.Post("/reprocess", h.handleReprocess)
}

type suggestRequest struct {
	CompanyID   int64  `json:"company_id" validate:"required"`
	Source      string `json:"source" validate:"required,oneof=BANK CARD MARKETPLACE"`
	Kind        string `json:"kind"`
	Counterpart string `json:"counterpart"`
}

type learnRequest struct {
	CompanyID     int64  `json:"company_id" validate:"required"`
	Establishment string `json:"establishment" validate:"required"`
	CategoryID    int64  `json:"category_id" validate:"required"`
	CostCenterID  int64  `json:"cost_center_id" validate:"required"`
	ResponsibleID int64  `json:"responsible_id"`
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	suggestion, err := h.service.Categorize(r.Context(), Transaction{
		CompanyID:   req.CompanyID,
		Source:      TransactionSource(req.Source),
		Kind:        req.Kind,
		Counterpart: req.Counterpart,
	})
	if err != nil {
		h.respondDomainError(w, "suggest", err)
		return
	}
	if suggestion == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"matched": false})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"matched": true, "suggestion": suggestion})
}

func (h *Handler) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule, err := h.service.Learn(r.Context(), LearnInput{
		CompanyID:     req.CompanyID,
		Establishment: req.Establishment,
		CategoryID:    req.CategoryID,
		CostCenterID:  req.CostCenterID,
		ResponsibleID: req.ResponsibleID,
	})
	if err != nil {
		h.respondDomainError(w, "learn", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rule": rule, "confidence": rule.Confidence()})
}

func (h *Handler) handleReprocess(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id required")
		return
	}
	report, err := h.service.ReprocessHistorical(r.Context(), companyID)
	if err != nil {
		h.respondDomainError(w, "reprocess", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrCompanyRequired), errors.Is(err, ErrPatternRequired), errors.Is(err, ErrTargetRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
