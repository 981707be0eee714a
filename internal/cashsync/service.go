package cashsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

const defaultBatchLimit = 500

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service folds settled records from every source system into the unified
// cash ledger. Runs are idempotent: each source record maps to exactly one
// ledger row no matter how many times synchronization executes.
type Service struct {
	repo       RepositoryPort
	sources    []SourcePort
	notifier   Notifier
	audit      AuditPort
	logger     *slog.Logger
	batchLimit int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, sources []SourcePort, notifier Notifier, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		sources:    sources,
		notifier:   notifier,
		audit:      audit,
		logger:     logger,
		batchLimit: defaultBatchLimit,
	}
}

// SyncAll drains the pending backlog of every source for one company.
// Sources run concurrently; a failing record is reported and skipped without
// aborting its batch, and a failing source does not stop the others.
func (s *Service) SyncAll(ctx context.Context, companyID int64) (Report, error) {
	if companyID == 0 {
		return Report{}, shared.ErrCompanyRequired
	}
	report := Report{CompanyID: companyID, StartedAt: time.Now()}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, source := range s.sources {
		source := source
		g.Go(func() error {
			synced, skipped, errs := s.syncSource(gctx, companyID, source)
			mu.Lock()
			defer mu.Unlock()
			switch source.System() {
			case SourcePayable:
				report.PayablesSynced += synced
			case SourceReceivable:
				report.ReceivablesSynced += synced
			case SourceMarketplace:
				report.MarketplaceSynced += synced
			}
			report.Skipped += skipped
			report.Errors = append(report.Errors, errs...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.FinishedAt = time.Now()

	if report.Synced() > 0 {
		if s.notifier != nil {
			s.notifier.CashLedgerChanged(ctx, companyID)
		}
		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				Action:   "cashsync:run",
				Entity:   "cash_movements",
				EntityID: fmt.Sprintf("%d", companyID),
				Meta: map[string]any{
					"synced":  report.Synced(),
					"skipped": report.Skipped,
					"errors":  len(report.Errors),
				},
			})
		}
	}
	s.logger.Info("cash sync finished",
		slog.Int64("company_id", companyID),
		slog.Int("synced", report.Synced()),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)))
	return report, nil
}

func (s *Service) syncSource(ctx context.Context, companyID int64, source SourcePort) (synced, skipped int, errs []string) {
	pending, err := source.ListPending(ctx, companyID, s.batchLimit)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("%s: list pending: %v", source.System(), err)}
	}
	for _, p := range pending {
		movement := CashMovement{
			CompanyID:      companyID,
			SourceSystem:   p.SourceSystem,
			SourceRef:      RefFor(p.SourceSystem, p.RecordID),
			SourceRecordID: p.RecordID,
			Direction:      p.Direction,
			Amount:         p.Amount,
			Description:    p.Description,
			CategoryID:     p.CategoryID,
			CostCenterID:   p.CostCenterID,
			OccurredAt:     p.OccurredAt,
		}
		_, inserted, err := s.repo.Upsert(ctx, movement)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s %s: %v", p.SourceSystem, p.RecordID, err))
			continue
		}
		if inserted {
			synced++
		} else {
			skipped++
		}
	}
	return synced, skipped, errs
}

// CountPending reports the per-source backlog without writing anything.
func (s *Service) CountPending(ctx context.Context, companyID int64) (PendingCounts, error) {
	if companyID == 0 {
		return PendingCounts{}, shared.ErrCompanyRequired
	}
	var counts PendingCounts
	for _, source := range s.sources {
		n, err := source.CountPending(ctx, companyID)
		if err != nil {
			return PendingCounts{}, fmt.Errorf("count pending %s: %w", source.System(), err)
		}
		switch source.System() {
		case SourcePayable:
			counts.Payables = n
		case SourceReceivable:
			counts.Receivables = n
		case SourceMarketplace:
			counts.Marketplace = n
		}
	}
	return counts, nil
}

// ListMovements exposes the unified ledger for a company.
func (s *Service) ListMovements(ctx context.Context, companyID int64, since time.Time, limit int) ([]CashMovement, error) {
	if companyID == 0 {
		return nil, shared.ErrCompanyRequired
	}
	return s.repo.List(ctx, companyID, since, limit)
}
