package payables

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

// Handler wires HTTP endpoints for payables.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs payables handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Post("/{id}/pay", h.handleMarkPaid)
}

type createRequest struct {
	CompanyID    int64  `json:"company_id" validate:"required"`
	SupplierName string `json:"supplier_name" validate:"required"`
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
	payable, err := h.service.Create(r.Context(), PayableInput{
		CompanyID:    req.CompanyID,
		SupplierName: req.SupplierName,
		Description:  req.Description,
		Amount:       amount,
		CategoryID:   req.CategoryID,
		CostCenterID: req.CostCenterID,
		DueAt:        dueAt,
	})
	if err != nil {
		h.respondDomainError(w, "create payable", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payable)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id required")
		return
	}
	payables, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.respondDomainError(w, "list payables", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payables": payables})
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	companyID, err := strconv.ParseInt(r.URL.Query().Get("company_id"), 10, 64)
	if err != nil || companyID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id required")
		return
	}
	payable, err := h.service.MarkPaid(r.Context(), companyID, id, time.Time{})
	if err != nil {
		h.respondDomainError(w, "mark paid", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payable)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
