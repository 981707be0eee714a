package cashsync

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// refreshChannel carries company ids whose cash ledger changed.
const refreshChannel = "cashflow.refresh"

// Notifier announces that a company's cash ledger gained rows, so dashboards
// and report caches can refresh.
type Notifier interface {
	CashLedgerChanged(ctx context.Context, companyID int64)
}

// RedisNotifier publishes refresh events over redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisNotifier constructs RedisNotifier. A nil client degrades to no-op.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

// CashLedgerChanged publishes the company id on the refresh channel.
func (n *RedisNotifier) CashLedgerChanged(ctx context.Context, companyID int64) {
	if n == nil || n.client == nil {
		return
	}
	if err := n.client.Publish(ctx, refreshChannel, strconv.FormatInt(companyID, 10)).Err(); err != nil {
		n.logger.Warn("cash refresh publish failed",
			slog.Int64("company_id", companyID),
			slog.Any("error", err))
	}
}
