package cashsync

import (
	"context"
	"strconv"

	"github.com/contaflux-erp/contaflux-erp/internal/categorize"
	"github.com/contaflux-erp/contaflux-erp/internal/marketplace"
	"github.com/contaflux-erp/contaflux-erp/internal/payables"
	"github.com/contaflux-erp/contaflux-erp/internal/receivables"
)

// SourcePort is one upstream ledger feeding the synchronizer. ListPending
// must only return records that have no cash movement row yet; the upsert
// still guards against races, the listing is just to keep batches small.
type SourcePort interface {
	System() SourceSystem
	ListPending(ctx context.Context, companyID int64, limit int) ([]PendingMovement, error)
	CountPending(ctx context.Context, companyID int64) (int, error)
}

// PayableSource adapts the payables module.
type PayableSource struct {
	repo payables.RepositoryPort
}

// NewPayableSource builds PayableSource.
func NewPayableSource(repo payables.RepositoryPort) *PayableSource {
	return &PayableSource{repo: repo}
}

func (s *PayableSource) System() SourceSystem { return SourcePayable }

func (s *PayableSource) ListPending(ctx context.Context, companyID int64, limit int) ([]PendingMovement, error) {
	rows, err := s.repo.ListUnsynchronized(ctx, companyID, limit)
	if err != nil {
		return nil, err
	}
	pending := make([]PendingMovement, 0, len(rows))
	for _, p := range rows {
		pending = append(pending, PendingMovement{
			SourceSystem: SourcePayable,
			RecordID:     strconv.FormatInt(p.ID, 10),
			Direction:    DirectionOut,
			Amount:       p.Amount,
			Description:  p.SupplierName + " - " + p.Description,
			CategoryID:   p.CategoryID,
			CostCenterID: p.CostCenterID,
			OccurredAt:   p.PaidAt,
		})
	}
	return pending, nil
}

func (s *PayableSource) CountPending(ctx context.Context, companyID int64) (int, error) {
	return s.repo.CountUnsynchronized(ctx, companyID)
}

// ReceivableSource adapts the receivables module.
type ReceivableSource struct {
	repo receivables.RepositoryPort
}

// NewReceivableSource builds ReceivableSource.
func NewReceivableSource(repo receivables.RepositoryPort) *ReceivableSource {
	return &ReceivableSource{repo: repo}
}

func (s *ReceivableSource) System() SourceSystem { return SourceReceivable }

func (s *ReceivableSource) ListPending(ctx context.Context, companyID int64, limit int) ([]PendingMovement, error) {
	rows, err := s.repo.ListUnsynchronized(ctx, companyID, limit)
	if err != nil {
		return nil, err
	}
	pending := make([]PendingMovement, 0, len(rows))
	for _, rec := range rows {
		pending = append(pending, PendingMovement{
			SourceSystem: SourceReceivable,
			RecordID:     strconv.FormatInt(rec.ID, 10),
			Direction:    DirectionIn,
			Amount:       rec.Amount,
			Description:  rec.CustomerName + " - " + rec.Description,
			CategoryID:   rec.CategoryID,
			CostCenterID: rec.CostCenterID,
			OccurredAt:   rec.ReceivedAt,
		})
	}
	return pending, nil
}

func (s *ReceivableSource) CountPending(ctx context.Context, companyID int64) (int, error) {
	return s.repo.CountUnsynchronized(ctx, companyID)
}

// SettlementLister is the slice of the marketplace repository the
// synchronizer needs.
type SettlementLister interface {
	ListUnsynchronizedSettlements(ctx context.Context, companyID int64, limit int) ([]marketplace.SettlementEvent, error)
	CountUnsynchronizedSettlements(ctx context.Context, companyID int64) (int, error)
}

// SettlementCategorizer classifies settlement events so their ledger rows
// land with category and cost center attached, like payables do.
type SettlementCategorizer interface {
	Categorize(ctx context.Context, tx categorize.Transaction) (*categorize.Suggestion, error)
}

// MarketplaceSource adapts marketplace settlement events. Sales come in,
// everything else (commissions, fees, ads, taxes) goes out.
type MarketplaceSource struct {
	repo        SettlementLister
	categorizer SettlementCategorizer
}

// NewMarketplaceSource builds MarketplaceSource. A nil categorizer syncs
// settlements without category assignment.
func NewMarketplaceSource(repo SettlementLister, categorizer SettlementCategorizer) *MarketplaceSource {
	return &MarketplaceSource{repo: repo, categorizer: categorizer}
}

func (s *MarketplaceSource) System() SourceSystem { return SourceMarketplace }

func (s *MarketplaceSource) ListPending(ctx context.Context, companyID int64, limit int) ([]PendingMovement, error) {
	events, err := s.repo.ListUnsynchronizedSettlements(ctx, companyID, limit)
	if err != nil {
		return nil, err
	}
	pending := make([]PendingMovement, 0, len(events))
	for _, evt := range events {
		direction := DirectionOut
		if evt.Kind == marketplace.SettlementSale {
			direction = DirectionIn
		}
		var categoryID, costCenterID int64
		if s.categorizer != nil {
			suggestion, err := s.categorizer.Categorize(ctx, categorize.Transaction{
				CompanyID:   companyID,
				Source:      categorize.SourceMarketplace,
				Kind:        string(evt.Kind),
				Counterpart: evt.Memo,
				Amount:      evt.Amount,
				OccurredAt:  evt.OccurredAt,
			})
			if err != nil {
				return nil, err
			}
			if suggestion != nil {
				categoryID = suggestion.CategoryID
				costCenterID = suggestion.CostCenterID
			}
		}
		pending = append(pending, PendingMovement{
			SourceSystem: SourceMarketplace,
			RecordID:     strconv.FormatInt(evt.ID, 10),
			Direction:    direction,
			Amount:       evt.Amount.Abs(),
			Description:  string(evt.Channel) + " " + string(evt.Kind) + " " + evt.ExternalID,
			CategoryID:   categoryID,
			CostCenterID: costCenterID,
			OccurredAt:   evt.OccurredAt,
		})
	}
	return pending, nil
}

func (s *MarketplaceSource) CountPending(ctx context.Context, companyID int64) (int, error) {
	return s.repo.CountUnsynchronizedSettlements(ctx, companyID)
}
