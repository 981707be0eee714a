package payables

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayableStatus enumerates payable statuses.
type PayableStatus string

const (
	StatusOpen PayableStatus = "OPEN"
	StatusPaid PayableStatus = "PAID"
	StatusVoid PayableStatus = "VOID"
)

// Payable models one accounts-payable obligation. Paid payables are folded
// into the unified cash movement ledger by the synchronizer.
type Payable struct {
	ID           int64
	CompanyID    int64
	SupplierName string
	Description  string
	Amount       decimal.Decimal
	Status       PayableStatus
	CategoryID   int64
	CostCenterID int64
	DueAt        time.Time
	PaidAt       time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PayableInput creates a payable.
type PayableInput struct {
	CompanyID    int64
	SupplierName string
	Description  string
	Amount       decimal.Decimal
	CategoryID   int64
	CostCenterID int64
	DueAt        time.Time
}
