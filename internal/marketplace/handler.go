package marketplace

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

// Handler wires HTTP endpoints for the marketplace module.
type Handler struct {
	logger      *slog.Logger
	resolver    *Resolver
	idempotency *shared.IdempotencyStore
	validate    *validator.Validate
}

// NewHandler constructs marketplace handler. The idempotency store may be nil,
// in which case repeated import submissions are accepted as new batches.
func NewHandler(logger *slog.Logger, resolver *Resolver, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, resolver: resolver, idempotency: idempotency, validate: validator.New()}
}

// MountRoutes registers marketplace routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/resolve", h.handleResolve)
	r.Post("/mappings", h.handleManualMapping)
	r.Post("/sales/import", h.handleImportSales)
}

type manualMappingRequest struct {
	CompanyID   int64  `json:"company_id" validate:"required"`
	Channel     string `json:"channel" validate:"required"`
	ExternalSKU string `json:"external_sku" validate:"required"`
	ProductID   int64  `json:"product_id"`
	SKUID       int64  `json:"sku_id"`
}

type saleLineRequest struct {
	SaleID      string  `json:"sale_id" validate:"required"`
	ExternalSKU string  `json:"external_sku" validate:"required"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice   string  `json:"unit_price"`
	SoldAt      string  `json:"sold_at"`
}

type importSalesRequest struct {
	CompanyID int64             `json:"company_id" validate:"required"`
	Channel   string            `json:"channel" validate:"required"`
	Lines     []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID, err := strconv.ParseInt(q.Get("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id must be a positive integer")
		return
	}
	channel := Channel(q.Get("channel"))
	externalSKU := q.Get("external_sku")
	resolution, err := h.resolver.Resolve(r.Context(), companyID, channel, externalSKU, q.Get("description"))
	if err != nil {
		h.respondDomainError(w, "resolve", err)
		return
	}
	if resolution == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"resolved": false, "status": string(LineNoProduct)})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"resolved": true, "resolution": resolution})
}

func (h *Handler) handleManualMapping(w http.ResponseWriter, r *http.Request) {
	var req manualMappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mapping, err := h.resolver.MapManually(r.Context(), MappingInput{
		CompanyID:   req.CompanyID,
		Channel:     Channel(req.Channel),
		ExternalSKU: req.ExternalSKU,
		ProductID:   req.ProductID,
		SKUID:       req.SKUID,
	})
	if err != nil {
		h.respondDomainError(w, "manual mapping", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mapping)
}

func (h *Handler) handleImportSales(w http.ResponseWriter, r *http.Request) {
	var req importSalesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "marketplace.import"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Import", "this batch was already submitted")
				return
			}
			h.respondDomainError(w, "idempotency check", err)
			return
		}
	}
	lines := make([]SaleLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		line := SaleLine{
			CompanyID:   req.CompanyID,
			Channel:     Channel(req.Channel),
			SaleID:      l.SaleID,
			ExternalSKU: l.ExternalSKU,
			Description: l.Description,
			Qty:         l.Qty,
		}
		if l.UnitPrice != "" {
			price, err := decimal.NewFromString(l.UnitPrice)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unit_price for sale "+l.SaleID)
				return
			}
			line.UnitPrice = price
		}
		if l.SoldAt != "" {
			soldAt, err := time.Parse(time.RFC3339, l.SoldAt)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sold_at for sale "+l.SaleID)
				return
			}
			line.SoldAt = soldAt
		}
		lines = append(lines, line)
	}
	report, err := h.resolver.ImportSales(r.Context(), lines)
	if err != nil {
		h.respondDomainError(w, "import sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrMappingKeyRequired), errors.Is(err, ErrMappingTargetRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrMappingNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
