package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/contaflux-erp/contaflux-erp/internal/categorize"
	jobmetrics "github.com/contaflux-erp/contaflux-erp/internal/jobs"
)

// Reprocessor is the slice of the categorization engine the job needs.
type Reprocessor interface {
	ReprocessHistorical(ctx context.Context, companyID int64) (categorize.BatchReport, error)
}

// CategorizeReprocessJob re-runs categorization over uncategorized history.
type CategorizeReprocessJob struct {
	engine  Reprocessor
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewCategorizeReprocessJob constructs CategorizeReprocessJob.
func NewCategorizeReprocessJob(engine Reprocessor, metrics *jobmetrics.Metrics, logger *slog.Logger) *CategorizeReprocessJob {
	return &CategorizeReprocessJob{engine: engine, metrics: metrics, logger: logger}
}

// Handle processes TaskCategorizeReprocess tasks.
func (j *CategorizeReprocessJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CategorizeReprocessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.CompanyID == 0 {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track("categorize_reprocess")
	report, err := j.engine.ReprocessHistorical(ctx, payload.CompanyID)
	if err != nil {
		return tracker.End(err)
	}
	j.logger.Info("historical reprocess finished",
		slog.Int64("company_id", payload.CompanyID),
		slog.Int("processed", report.Processed),
		slog.Int("categorized", report.Categorized))
	return tracker.End(nil)
}
