package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Notifier lets the refresh job announce that reporting data moved.
type Notifier interface {
	CashLedgerChanged(ctx context.Context, companyID int64)
}

// RefreshReportingViews refreshes the cash-flow materialized views and bumps
// the refresh channel so dashboards reload.
func RefreshReportingViews(ctx context.Context, pool *pgxpool.Pool, notifier Notifier, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	for _, view := range []string{"cash_flow_daily", "cogs_monthly"} {
		if _, err := pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY `+view); err != nil {
			if logger != nil {
				logger.Error("refresh view", slog.String("view", view), slog.Any("error", err))
			}
			return err
		}
	}
	if notifier != nil {
		notifier.CashLedgerChanged(ctx, 0)
	}
	if logger != nil {
		logger.Info("refreshed reporting views", slog.String("job", "views_refresh"))
	}
	return nil
}
