package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contaflux-erp/contaflux-erp/internal/costing"
)

// MarginEntry is one recognized COGS amount, keyed by a deterministic
// reference so replays of the same exit collapse into a single row.
type MarginEntry struct {
	CompanyID    int64
	Ref          uuid.UUID
	Target       string
	Qty          float64
	UnitCost     float64
	CogsTotal    float64
	SourceModule string
	SourceID     string
	PostedAt     time.Time
}

// MarginStore persists margin entries. RecordCogs must be idempotent per Ref.
type MarginStore interface {
	RecordCogs(ctx context.Context, entry MarginEntry) error
}

// Hooks wires domain events from the costing module into margin reporting.
type Hooks struct {
	margins MarginStore
}

// NewHooks constructs integration hooks.
func NewHooks(margins MarginStore) *Hooks {
	return &Hooks{margins: margins}
}

// HandleExitPosted records the recognized COGS of a posted exit. A nil
// receiver or an unwired store is a no-op so modules can run standalone.
func (h *Hooks) HandleExitPosted(ctx context.Context, evt costing.ExitPostedEvent) error {
	if h == nil || h.margins == nil {
		return nil
	}
	if evt.PostedAt.IsZero() {
		return errors.New("integration: exit post date required")
	}
	if round2(evt.CogsTotal) == 0 {
		return nil
	}
	return h.margins.RecordCogs(ctx, MarginEntry{
		CompanyID:    evt.CompanyID,
		Ref:          marginRef(evt),
		Target:       evt.Target.String(),
		Qty:          evt.Qty,
		UnitCost:     evt.UnitCost,
		CogsTotal:    round2(evt.CogsTotal),
		SourceModule: evt.SourceModule,
		SourceID:     evt.SourceID,
		PostedAt:     evt.PostedAt,
	})
}

// marginRef derives the deterministic idempotency reference for an exit. The
// key is company-scoped: the same order id on two tenants must yield two
// margin rows. Exits posted without source fields (manual corrections) fall
// back to the movement id, which is unique per row.
func marginRef(evt costing.ExitPostedEvent) uuid.UUID {
	key := fmt.Sprintf("%d:%s:%s", evt.CompanyID, evt.SourceModule, evt.SourceID)
	if evt.SourceID == "" {
		key = fmt.Sprintf("%d:movement:%d", evt.CompanyID, evt.MovementID)
	}
	return uuid.NewSHA1(uuid.Nil, []byte(key))
}

var _ costing.IntegrationHandler = (*Hooks)(nil)
