package receivables

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/contaflux-erp/contaflux-erp/internal/platform/httpx"
	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// Handler wires HTTP endpoints for receivables.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs receivables handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers receivables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/aging", h.handleAging)
	r.Post("/{id}/receive", h.handleMarkReceived)
}

type createRequest struct {
	CompanyID    int64  `json:"company_id" validate:"required"`
	CustomerName string `json:"customer_name" validate:"required"`
	Description  string `json:"description"`
	Amount       string `json:"amount" validate:"required"`
	CategoryID   int64  `json:"category_id"`
	CostCenterID int64  `json:"cost_center_id"`
	DueAt        string `json:"due_at" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_at must be RFC3339")
		return
	}
	receivable, err := h.service.Create(r.Context(), ReceivableInput{
		CompanyID:    req.CompanyID,
		CustomerName: req.CustomerName,
		Description:  req.Description,
		Amount:       amount,
		CategoryID:   req.CategoryID,
		CostCenterID: req.CostCenterID,
		DueAt:        dueAt,
	})
	if err != nil {
		h.respondDomainError(w, "create receivable", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receivable)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	receivables, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.respondDomainError(w, "list receivables", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receivables": receivables})
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Aging(r.Context(), companyID)
	if err != nil {
		h.respondDomainError(w, "aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleMarkReceived(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	receivable, err := h.service.MarkReceived(r.Context(), companyID, id, time.Time{})
	if err != nil {
		h.respondDomainError(w, "mark received", err)
		return
	}
	httpx.JSON(w, http.StatusOK, receivable)
}

func (h *Handler) companyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id required")
		return 0, false
	}
	return companyID, true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
