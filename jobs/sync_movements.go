package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflux-erp/contaflux-erp/internal/cashsync"
	jobmetrics "github.com/contaflux-erp/contaflux-erp/internal/jobs"
)

// SyncRunner is the slice of the synchronizer the job needs.
type SyncRunner interface {
	SyncAll(ctx context.Context, companyID int64) (cashsync.Report, error)
}

// SyncMovementsJob executes cash synchronization runs from the queue.
type SyncMovementsJob struct {
	runner  SyncRunner
	pool    *pgxpool.Pool
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewSyncMovementsJob constructs SyncMovementsJob.
func NewSyncMovementsJob(runner SyncRunner, pool *pgxpool.Pool, metrics *jobmetrics.Metrics, logger *slog.Logger) *SyncMovementsJob {
	return &SyncMovementsJob{runner: runner, pool: pool, metrics: metrics, logger: logger}
}

// Handle processes TaskSyncMovements tasks.
func (j *SyncMovementsJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SyncMovementsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track("sync_movements")

	companies := []int64{payload.CompanyID}
	if payload.CompanyID == 0 {
		ids, err := j.activeCompanies(ctx)
		if err != nil {
			return tracker.End(err)
		}
		companies = ids
	}

	for _, companyID := range companies {
		report, err := j.runner.SyncAll(ctx, companyID)
		if err != nil {
			return tracker.End(err)
		}
		j.metrics.AddSynced(string(cashsync.SourcePayable), companyID, report.PayablesSynced)
		j.metrics.AddSynced(string(cashsync.SourceReceivable), companyID, report.ReceivablesSynced)
		j.metrics.AddSynced(string(cashsync.SourceMarketplace), companyID, report.MarketplaceSynced)
		if len(report.Errors) > 0 {
			j.logger.Warn("sync run finished with errors",
				slog.Int64("company_id", companyID),
				slog.Int("errors", len(report.Errors)))
		}
	}
	return tracker.End(nil)
}

func (j *SyncMovementsJob) activeCompanies(ctx context.Context) ([]int64, error) {
	if j.pool == nil {
		return nil, nil
	}
	rows, err := j.pool.Query(ctx, `SELECT id FROM companies WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
