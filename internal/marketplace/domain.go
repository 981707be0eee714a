package marketplace

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Channel identifies a sales channel.
type Channel string

const (
	ChannelMercadoLivre Channel = "MERCADO_LIVRE"
	ChannelShopee       Channel = "SHOPEE"
	ChannelAmazon       Channel = "AMAZON"
)

// Mapping associates a channel-specific SKU string to an internal product or
// SKU. Unique per (company, channel, external SKU). Automatic mappings are
// system-suggested and may be replaced by a later explicit mapping; the
// reverse never happens.
type Mapping struct {
	ID                  int64
	CompanyID           int64
	Channel             Channel
	ExternalSKU         string
	ProductID           int64
	SKUID               int64
	MappedAutomatically bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MappingInput creates or replaces a manual mapping.
type MappingInput struct {
	CompanyID   int64
	Channel     Channel
	ExternalSKU string
	ProductID   int64
	SKUID       int64
}

// Resolution is a successful externalSKU -> internal id translation.
type Resolution struct {
	ProductID int64
	SKUID     int64
	Automatic bool
}

// SKUCandidate is an internal SKU considered by the heuristic matcher.
type SKUCandidate struct {
	SKUID       int64
	ProductID   int64
	Description string
}

// SaleLine is one imported marketplace sale line.
type SaleLine struct {
	CompanyID   int64
	Channel     Channel
	SaleID      string
	ExternalSKU string
	Description string
	Qty         float64
	UnitPrice   decimal.Decimal
	SoldAt      time.Time
}

// LineStatus reports how an imported sale line was handled.
type LineStatus string

const (
	// LineResolved means the line mapped to a product and its exit was posted.
	LineResolved LineStatus = "RESOLVED"
	// LineNoProduct flags an unmapped line ("sem produto"); not an error,
	// consumed downstream as a data-quality marker.
	LineNoProduct LineStatus = "SEM_PRODUTO"
	// LineFailed means the exit posting failed.
	LineFailed LineStatus = "FAILED"
)

// LineResult pairs a sale line with its import outcome.
type LineResult struct {
	SaleID      string
	ExternalSKU string
	Status      LineStatus
	Detail      string
}

// ImportReport aggregates a sale batch import.
type ImportReport struct {
	Resolved  int
	NoProduct int
	Failed    int
	Lines     []LineResult
}

// SettlementKind enumerates marketplace settlement event kinds.
type SettlementKind string

const (
	SettlementSale       SettlementKind = "SALE"
	SettlementCommission SettlementKind = "COMMISSION"
	SettlementShipping   SettlementKind = "SHIPPING_FEE"
	SettlementAdSpend    SettlementKind = "AD_SPEND"
	SettlementTax        SettlementKind = "TAX"
)

// SettlementEvent is one marketplace financial event (payout component).
// Consumed by categorization heuristics and by the unified synchronizer.
type SettlementEvent struct {
	ID         int64
	CompanyID  int64
	Channel    Channel
	Kind       SettlementKind
	ExternalID string
	Amount     decimal.Decimal
	OccurredAt time.Time
	Memo       string
}

// ErrMappingKeyRequired indicates missing key fields.
var ErrMappingKeyRequired = errors.New("marketplace: company, channel and external sku required")

// ErrMappingTargetRequired indicates a mapping without product or SKU.
var ErrMappingTargetRequired = errors.New("marketplace: mapping requires a product or sku id")
