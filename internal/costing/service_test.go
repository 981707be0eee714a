package costing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	balances   map[string]Balance
	movements  []Movement
	cogs       []CogsRecord
	skuTracked map[int64]bool
	nextID     int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[string]Balance), skuTracked: make(map[int64]bool)}
}

func balanceKey(companyID int64, target Target) string {
	return fmt.Sprintf("%d:%s:%d", companyID, target.Kind, target.ID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBalance(ctx context.Context, companyID int64, target Target) (Balance, error) {
	if bal, ok := r.balances[balanceKey(companyID, target)]; ok {
		return bal, nil
	}
	return Balance{CompanyID: companyID, Target: target}, ErrBalanceNotFound
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	result := make([]Movement, len(r.movements))
	copy(result, r.movements)
	return result, nil
}

func (r *memoryRepo) ListCogs(ctx context.Context, companyID int64, target Target, limit int) ([]CogsRecord, error) {
	result := make([]CogsRecord, len(r.cogs))
	copy(result, r.cogs)
	return result, nil
}

func (tx *memoryTx) ProductTrackedBySKU(ctx context.Context, productID int64) (bool, error) {
	return tx.repo.skuTracked[productID], nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, companyID int64, target Target) (Balance, error) {
	return tx.repo.GetBalance(ctx, companyID, target)
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[balanceKey(balance.CompanyID, balance.Target)] = balance
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

func (tx *memoryTx) InsertCogsRecord(ctx context.Context, rec CogsRecord) (int64, error) {
	tx.repo.nextID++
	rec.ID = tx.repo.nextID
	tx.repo.cogs = append(tx.repo.cogs, rec)
	return rec.ID, nil
}

func newTestService(repo *memoryRepo, cfg ServiceConfig) *Service {
	return NewService(repo, nil, nil, cfg, nil)
}

var sku1 = Target{Kind: TargetSKU, ID: 1}

func TestWeightedAverageOnEntries(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 10, UnitCost: 5.00, Note: "opening"})
	require.NoError(t, err)

	_, err = svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 10, UnitCost: 7.00, Note: "restock"})
	require.NoError(t, err)

	bal, err := svc.GetCurrentCost(ctx, 1, sku1)
	require.NoError(t, err)
	require.InDelta(t, 20.0, bal.Qty, 1e-9)
	require.InDelta(t, 6.00, bal.AvgCost, 1e-9)
}

func TestExitRecognizesCogsWithoutChangingAverage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 10, UnitCost: 5.00})
	require.NoError(t, err)
	_, err = svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 10, UnitCost: 7.00})
	require.NoError(t, err)

	mv, cogs, err := svc.RecordExit(ctx, ExitInput{CompanyID: 1, Target: sku1, Qty: 5, SourceModule: "SALE", SourceID: "sale-77"})
	require.NoError(t, err)
	require.InDelta(t, -5.0, mv.Qty, 1e-9)
	require.InDelta(t, 6.00, mv.UnitCost, 1e-9)
	require.InDelta(t, 5.0, cogs.Qty, 1e-9)
	require.InDelta(t, 6.00, cogs.UnitCost, 1e-9)
	require.InDelta(t, 30.00, cogs.Total, 1e-9)
	require.Equal(t, "SALE", cogs.SourceModule)
	require.Equal(t, "sale-77", cogs.SourceID)

	bal, err := svc.GetCurrentCost(ctx, 1, sku1)
	require.NoError(t, err)
	require.InDelta(t, 15.0, bal.Qty, 1e-9)
	require.InDelta(t, 6.00, bal.AvgCost, 1e-9)
}

func TestWeightedAverageMatchesTotalOverTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	entries := []struct{ qty, cost float64 }{
		{3, 12.50}, {7, 9.90}, {1, 30.00}, {14, 11.25},
	}
	var totalQty, totalCost float64
	for _, e := range entries {
		_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: e.qty, UnitCost: e.cost})
		require.NoError(t, err)
		totalQty += e.qty
		totalCost += e.qty * e.cost
	}

	bal, err := svc.GetCurrentCost(ctx, 1, sku1)
	require.NoError(t, err)
	require.InDelta(t, totalQty, bal.Qty, 1e-9)
	require.InDelta(t, totalCost/totalQty, bal.AvgCost, 1e-9)
}

func TestExitBeyondOnHandWarnsAndFlags(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 2, UnitCost: 10.00})
	require.NoError(t, err)

	mv, _, err := svc.RecordExit(ctx, ExitInput{CompanyID: 1, Target: sku1, Qty: 5, SourceModule: "SALE", SourceID: "sale-1"})
	require.NoError(t, err)
	require.True(t, mv.Flagged)

	bal, err := svc.GetCurrentCost(ctx, 1, sku1)
	require.NoError(t, err)
	require.InDelta(t, -3.0, bal.Qty, 1e-9)
	require.InDelta(t, 10.00, bal.AvgCost, 1e-9)
}

func TestStrictModeBlocksNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{StrictNegativeStock: true})
	ctx := context.Background()

	_, _, err := svc.RecordExit(ctx, ExitInput{CompanyID: 1, Target: sku1, Qty: 1})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Empty(t, repo.movements)
}

func TestExitToZeroKeepsAverage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 4, UnitCost: 25.00})
	require.NoError(t, err)
	_, _, err = svc.RecordExit(ctx, ExitInput{CompanyID: 1, Target: sku1, Qty: 4})
	require.NoError(t, err)

	bal, err := svc.GetCurrentCost(ctx, 1, sku1)
	require.NoError(t, err)
	require.InDelta(t, 0.0, bal.Qty, 1e-9)
	require.InDelta(t, 25.00, bal.AvgCost, 1e-9)

	// A fresh entry after a zero balance restarts the average cleanly.
	_, err = svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 2, UnitCost: 40.00})
	require.NoError(t, err)
	bal, err = svc.GetCurrentCost(ctx, 1, sku1)
	require.NoError(t, err)
	require.InDelta(t, 40.00, bal.AvgCost, 1e-9)
}

func TestZeroQuantityRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 0, UnitCost: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordAdjustment(ctx, AdjustmentInput{CompanyID: 1, Target: sku1, Qty: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = svc.RecordExit(ctx, ExitInput{CompanyID: 1, Target: sku1, Qty: -2})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSKUTrackedProductRejectsProductMovements(t *testing.T) {
	repo := newMemoryRepo()
	repo.skuTracked[9] = true
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: Target{Kind: TargetProduct, ID: 9}, Qty: 1, UnitCost: 1})
	require.ErrorIs(t, err, ErrSKUTracked)

	// The same product moves fine at SKU granularity.
	_, err = svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: Target{Kind: TargetSKU, ID: 91}, Qty: 1, UnitCost: 1})
	require.NoError(t, err)
}

func TestNegativeAdjustmentRecognizesAverage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 10, UnitCost: 3.00})
	require.NoError(t, err)

	mv, err := svc.RecordAdjustment(ctx, AdjustmentInput{CompanyID: 1, Target: sku1, Qty: -4, Note: "shrinkage"})
	require.NoError(t, err)
	require.InDelta(t, 3.00, mv.UnitCost, 1e-9)

	// Adjustments do not create COGS records.
	require.Empty(t, repo.cogs)
}

type captureIntegration struct {
	events []ExitPostedEvent
}

func (c *captureIntegration) HandleExitPosted(ctx context.Context, evt ExitPostedEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func TestExitEmitsIntegrationEvent(t *testing.T) {
	repo := newMemoryRepo()
	capture := &captureIntegration{}
	svc := NewService(repo, nil, nil, ServiceConfig{}, capture)
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, EntryInput{CompanyID: 1, Target: sku1, Qty: 10, UnitCost: 6.00})
	require.NoError(t, err)
	_, _, err = svc.RecordExit(ctx, ExitInput{CompanyID: 1, Target: sku1, Qty: 2, SourceModule: "SALE", SourceID: "sale-5"})
	require.NoError(t, err)

	require.Len(t, capture.events, 1)
	require.InDelta(t, 12.00, capture.events[0].CogsTotal, 1e-9)
	require.Equal(t, "sale-5", capture.events[0].SourceID)
}
