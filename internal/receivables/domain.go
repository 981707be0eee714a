package receivables

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceivableStatus enumerates receivable statuses.
type ReceivableStatus string

const (
	StatusOpen     ReceivableStatus = "OPEN"
	StatusReceived ReceivableStatus = "RECEIVED"
	StatusVoid     ReceivableStatus = "VOID"
)

// Receivable models one accounts-receivable claim. Received amounts feed
// the unified cash movement ledger through the synchronizer.
type Receivable struct {
	ID           int64
	CompanyID    int64
	CustomerName string
	Description  string
	Amount       decimal.Decimal
	Status       ReceivableStatus
	CategoryID   int64
	CostCenterID int64
	DueAt        time.Time
	ReceivedAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReceivableInput creates a receivable.
type ReceivableInput struct {
	CompanyID    int64
	CustomerName string
	Description  string
	Amount       decimal.Decimal
	CategoryID   int64
	CostCenterID int64
	DueAt        time.Time
}

// AgingBucket groups open receivables by how overdue they are.
type AgingBucket struct {
	Label string          `json:"label"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// AgingReport summarizes open receivables by overdue window.
type AgingReport struct {
	CompanyID int64         `json:"company_id"`
	AsOf      time.Time     `json:"as_of"`
	Buckets   []AgingBucket `json:"buckets"`
}
