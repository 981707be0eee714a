package costing

import (
	"errors"
	"fmt"
	"time"
)

// TargetKind selects the granularity a ledger entry applies to.
type TargetKind string

const (
	// TargetProduct addresses the product-level cost ledger row.
	TargetProduct TargetKind = "PRODUCT"
	// TargetSKU addresses a variant-level cost ledger row.
	TargetSKU TargetKind = "SKU"
)

// Target identifies one cost ledger row (product or SKU).
type Target struct {
	Kind TargetKind
	ID   int64
}

// String renders the target for logs and audit entries.
func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementEntry represents an inbound movement (purchase receipt, opening stock).
	MovementEntry MovementType = "ENTRY"
	// MovementExit represents an outbound movement (sale, write-off).
	MovementExit MovementType = "EXIT"
	// MovementAdjust indicates manual adjustments in either direction.
	MovementAdjust MovementType = "ADJUST"
)

// Movement is one immutable stock change. Quantity is signed: positive for
// entries, negative for exits. The append-only sequence of movements for a
// target reproduces its on-hand quantity.
type Movement struct {
	ID           int64
	CompanyID    int64
	Target       Target
	Type         MovementType
	Qty          float64
	UnitCost     float64
	Flagged      bool
	SourceModule string
	SourceID     string
	Note         string
	PostedAt     time.Time
	CreatedBy    int64
}

// CogsRecord links a stock exit to the unit cost effective at the moment of
// the exit. Created exclusively by RecordExit, immutable afterward.
type CogsRecord struct {
	ID           int64
	CompanyID    int64
	MovementID   int64
	Target       Target
	Qty          float64
	UnitCost     float64
	Total        float64
	SourceModule string
	SourceID     string
	RecognizedAt time.Time
}

// Balance is the cost ledger row: running weighted-average unit cost plus
// on-hand quantity for one target.
type Balance struct {
	CompanyID int64
	Target    Target
	Qty       float64
	AvgCost   float64
	UpdatedAt time.Time
}

// EntryInput describes an inbound posting.
type EntryInput struct {
	CompanyID    int64
	Target       Target
	Qty          float64
	UnitCost     float64
	SourceModule string
	SourceID     string
	Note         string
	ActorID      int64
}

// ExitInput describes an outbound posting. The recognized unit cost comes
// from the ledger, never from the caller.
type ExitInput struct {
	CompanyID    int64
	Target       Target
	Qty          float64
	SourceModule string
	SourceID     string
	Note         string
	ActorID      int64
}

// AdjustmentInput describes a signed manual correction.
type AdjustmentInput struct {
	CompanyID    int64
	Target       Target
	Qty          float64
	UnitCost     float64
	SourceModule string
	SourceID     string
	Note         string
	ActorID      int64
}

// MovementFilter filters the movement ledger for listing.
type MovementFilter struct {
	CompanyID int64
	Target    Target
	From      time.Time
	To        time.Time
	Limit     int
}

// ErrInvalidQuantity indicates a zero or wrongly signed quantity.
var ErrInvalidQuantity = errors.New("costing: quantity must be non zero")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("costing: unit cost must be >= 0")

// ErrTargetRequired indicates a missing company or target id.
var ErrTargetRequired = errors.New("costing: company and target required")

// ErrSKUTracked is returned for product-level movements against a product
// whose stock is tracked per SKU. Routing those through the product row
// would double count.
var ErrSKUTracked = errors.New("costing: product tracked at SKU level, movement must target a SKU")

// ErrNegativeStock is returned in strict mode when a movement would drive
// on-hand quantity negative. The default policy warns and allows instead.
var ErrNegativeStock = errors.New("costing: negative stock not allowed")
