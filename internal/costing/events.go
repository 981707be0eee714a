package costing

import (
	"context"
	"time"
)

// ExitPostedEvent announces a recognized cost of goods sold, ready for
// margin reporting and ledger integration.
type ExitPostedEvent struct {
	CompanyID    int64
	MovementID   int64
	Target       Target
	Qty          float64
	UnitCost     float64
	CogsTotal    float64
	SourceModule string
	SourceID     string
	PostedAt     time.Time
}

// IntegrationHandler receives costing events. Implementations must be
// idempotent per source reference.
type IntegrationHandler interface {
	HandleExitPosted(ctx context.Context, evt ExitPostedEvent) error
}
