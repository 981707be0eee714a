package cashsync

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceSystem identifies where a cash movement originated.
type SourceSystem string

const (
	SourceCard        SourceSystem = "CARD"
	SourceBank        SourceSystem = "BANK"
	SourcePayable     SourceSystem = "PAYABLE"
	SourceReceivable  SourceSystem = "RECEIVABLE"
	SourceMarketplace SourceSystem = "MARKETPLACE"
	SourceManual      SourceSystem = "MANUAL"
)

// Direction of a cash movement.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// CashMovement is one row in the unified cash ledger. SourceRef is the
// deterministic identity derived from (system, record); the table carries a
// unique constraint on (source_system, source_ref), which is what makes
// repeated synchronization runs converge instead of duplicating rows.
type CashMovement struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	SourceSystem   SourceSystem    `json:"source_system"`
	SourceRef      uuid.UUID       `json:"source_ref"`
	SourceRecordID string          `json:"source_record_id"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	CategoryID     int64           `json:"category_id,omitempty"`
	CostCenterID   int64           `json:"cost_center_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PendingMovement is a settled source record awaiting its ledger row.
type PendingMovement struct {
	SourceSystem SourceSystem
	RecordID     string
	Direction    Direction
	Amount       decimal.Decimal
	Description  string
	CategoryID   int64
	CostCenterID int64
	OccurredAt   time.Time
}

// Report summarizes one synchronization run.
type Report struct {
	CompanyID         int64     `json:"company_id"`
	PayablesSynced    int       `json:"payables_synced"`
	ReceivablesSynced int       `json:"receivables_synced"`
	MarketplaceSynced int       `json:"marketplace_synced"`
	Skipped           int       `json:"skipped"`
	Errors            []string  `json:"errors,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Synced returns the total number of rows inserted during the run.
func (r Report) Synced() int {
	return r.PayablesSynced + r.ReceivablesSynced + r.MarketplaceSynced
}

// PendingCounts exposes per-source backlog sizes without mutating anything.
type PendingCounts struct {
	Payables    int `json:"payables"`
	Receivables int `json:"receivables"`
	Marketplace int `json:"marketplace"`
}

// Total pending records across sources.
func (p PendingCounts) Total() int {
	return p.Payables + p.Receivables + p.Marketplace
}

// ErrUnknownSource indicates a source system outside the supported set.
var ErrUnknownSource = errors.New("cashsync: unknown source system")
