package categorize

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionSource identifies where an incoming financial transaction came from.
type TransactionSource string

const (
	SourceBank        TransactionSource = "BANK"
	SourceCard        TransactionSource = "CARD"
	SourceMarketplace TransactionSource = "MARKETPLACE"
)

// Transaction is an imported financial transaction awaiting categorization.
type Transaction struct {
	ID           int64
	CompanyID    int64
	Source       TransactionSource
	Kind         string
	Counterpart  string
	Amount       decimal.Decimal
	OccurredAt   time.Time
	CategoryID   int64
	CostCenterID int64
	Reconciled   bool
}

// Rule is a learned association from a normalized establishment-name pattern
// to a category/cost-center pair. The usage counter feeds confidence.
type Rule struct {
	ID            int64
	CompanyID     int64
	Pattern       string
	CategoryID    int64
	CostCenterID  int64
	ResponsibleID int64
	UsageCount    int
	UpdatedAt     time.Time
}

// Confidence derives monotonically from the usage counter, capped at 100.
func (r Rule) Confidence() int {
	conf := r.UsageCount * 20
	if conf > 100 {
		return 100
	}
	return conf
}

// MatchSource tells which strategy produced a suggestion.
type MatchSource string

const (
	MatchExact     MatchSource = "RULE_EXACT"
	MatchContains  MatchSource = "RULE_CONTAINS"
	MatchHeuristic MatchSource = "CHANNEL_HEURISTIC"
)

// Suggestion is a categorization result.
type Suggestion struct {
	CategoryID   int64
	CostCenterID int64
	Confidence   int
	Source       MatchSource
}

// LearnInput records a manual categorization choice.
type LearnInput struct {
	CompanyID     int64
	Establishment string
	CategoryID    int64
	CostCenterID  int64
	ResponsibleID int64
}

// BatchReport aggregates a categorization batch run.
type BatchReport struct {
	Processed     int
	Categorized   int
	Uncategorized int
	Errors        []string
}

// ErrPatternRequired indicates an empty establishment pattern after normalization.
var ErrPatternRequired = errors.New("categorize: establishment pattern required")

// ErrCompanyRequired indicates a missing company id.
var ErrCompanyRequired = errors.New("categorize: company required")

// ErrTargetRequired indicates a learn call without category or cost center.
var ErrTargetRequired = errors.New("categorize: category and cost center required")
