package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/contaflux-erp/contaflux-erp/internal/costing"
)

type memoryMargins struct {
	rows map[uuid.UUID]MarginEntry
}

func newMemoryMargins() *memoryMargins {
	return &memoryMargins{rows: make(map[uuid.UUID]MarginEntry)}
}

func (m *memoryMargins) RecordCogs(ctx context.Context, entry MarginEntry) error {
	if _, ok := m.rows[entry.Ref]; ok {
		return nil
	}
	m.rows[entry.Ref] = entry
	return nil
}

func exitEvent(companyID, movementID int64, module, sourceID string) costing.ExitPostedEvent {
	return costing.ExitPostedEvent{
		CompanyID:    companyID,
		MovementID:   movementID,
		Target:       costing.Target{Kind: costing.TargetSKU, ID: 7},
		Qty:          2,
		UnitCost:     6,
		CogsTotal:    12,
		SourceModule: module,
		SourceID:     sourceID,
		PostedAt:     time.Now(),
	}
}

func TestSameSaleOnTwoCompaniesKeepsBothMargins(t *testing.T) {
	store := newMemoryMargins()
	hooks := NewHooks(store)
	ctx := context.Background()

	require.NoError(t, hooks.HandleExitPosted(ctx, exitEvent(1, 100, "MARKETPLACE.SHOPEE", "order-123")))
	require.NoError(t, hooks.HandleExitPosted(ctx, exitEvent(2, 200, "MARKETPLACE.SHOPEE", "order-123")))

	require.Len(t, store.rows, 2)
}

func TestManualExitsWithoutSourceGetDistinctRefs(t *testing.T) {
	store := newMemoryMargins()
	hooks := NewHooks(store)
	ctx := context.Background()

	require.NoError(t, hooks.HandleExitPosted(ctx, exitEvent(1, 10, "", "")))
	require.NoError(t, hooks.HandleExitPosted(ctx, exitEvent(1, 11, "", "")))

	require.Len(t, store.rows, 2)
}

func TestReplayedExitCollapsesToOneMargin(t *testing.T) {
	store := newMemoryMargins()
	hooks := NewHooks(store)
	ctx := context.Background()

	evt := exitEvent(1, 100, "MARKETPLACE.SHOPEE", "order-123")
	require.NoError(t, hooks.HandleExitPosted(ctx, evt))
	require.NoError(t, hooks.HandleExitPosted(ctx, evt))

	require.Len(t, store.rows, 1)
}

func TestZeroCogsExitIsSkipped(t *testing.T) {
	store := newMemoryMargins()
	hooks := NewHooks(store)

	evt := exitEvent(1, 100, "MARKETPLACE.SHOPEE", "order-9")
	evt.CogsTotal = 0
	require.NoError(t, hooks.HandleExitPosted(context.Background(), evt))
	require.Empty(t, store.rows)
}
