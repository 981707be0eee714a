package integration

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MarginRepository stores margin entries in PostgreSQL.
type MarginRepository struct {
	pool *pgxpool.Pool
}

// NewMarginRepository constructs MarginRepository.
func NewMarginRepository(pool *pgxpool.Pool) *MarginRepository {
	return &MarginRepository{pool: pool}
}

// RecordCogs inserts the entry; a replayed reference is silently skipped.
func (r *MarginRepository) RecordCogs(ctx context.Context, entry MarginEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO margin_entries
			(company_id, ref, target, qty, unit_cost, cogs_total, source_module, source_id, posted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (ref) DO NOTHING`,
		entry.CompanyID, entry.Ref, entry.Target, entry.Qty, entry.UnitCost,
		entry.CogsTotal, entry.SourceModule, entry.SourceID, entry.PostedAt)
	return err
}
