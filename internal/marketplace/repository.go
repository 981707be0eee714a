package marketplace

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists marketplace mappings and settlement events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetMapping fetches the mapping for (company, channel, externalSKU).
func (r *Repository) GetMapping(ctx context.Context, companyID int64, channel Channel, externalSKU string) (Mapping, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_id, channel, external_sku, product_id, sku_id, mapped_automatically, created_at, updated_at
		FROM marketplace_product_mappings
		WHERE company_id = $1 AND channel = $2 AND external_sku = $3`,
		companyID, string(channel), externalSKU)
	return scanMapping(row)
}

// SaveManualMapping upserts a user-approved mapping. Manual mappings always
// replace whatever is stored for the key.
func (r *Repository) SaveManualMapping(ctx context.Context, input MappingInput) (Mapping, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO marketplace_product_mappings
			(company_id, channel, external_sku, product_id, sku_id, mapped_automatically, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NOW(), NOW())
		ON CONFLICT (company_id, channel, external_sku)
		DO UPDATE SET product_id = EXCLUDED.product_id, sku_id = EXCLUDED.sku_id,
		              mapped_automatically = FALSE, updated_at = NOW()
		RETURNING id, company_id, channel, external_sku, product_id, sku_id, mapped_automatically, created_at, updated_at`,
		input.CompanyID, string(input.Channel), input.ExternalSKU, input.ProductID, input.SKUID)
	return scanMapping(row)
}

// SaveAutomaticMapping upserts a system-suggested mapping. The conflict
// branch only fires for rows that are still automatic, so a manual mapping
// is never silently overwritten; when the update is skipped the stored
// manual row is returned instead.
func (r *Repository) SaveAutomaticMapping(ctx context.Context, input MappingInput) (Mapping, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO marketplace_product_mappings
			(company_id, channel, external_sku, product_id, sku_id, mapped_automatically, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		ON CONFLICT (company_id, channel, external_sku)
		DO UPDATE SET product_id = EXCLUDED.product_id, sku_id = EXCLUDED.sku_id, updated_at = NOW()
		WHERE marketplace_product_mappings.mapped_automatically
		RETURNING id, company_id, channel, external_sku, product_id, sku_id, mapped_automatically, created_at, updated_at`,
		input.CompanyID, string(input.Channel), input.ExternalSKU, input.ProductID, input.SKUID)
	mapping, err := scanMapping(row)
	if errors.Is(err, ErrMappingNotFound) {
		// Conflict against a manual row: nothing updated, read it back.
		return r.GetMapping(ctx, input.CompanyID, input.Channel, input.ExternalSKU)
	}
	return mapping, err
}

// ListSKUCandidates lists internal SKUs for heuristic description matching.
func (r *Repository) ListSKUCandidates(ctx context.Context, companyID int64) ([]SKUCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.product_id, s.description
		FROM skus s
		JOIN products p ON p.id = s.product_id
		WHERE p.company_id = $1 AND s.active`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []SKUCandidate
	for rows.Next() {
		var c SKUCandidate
		if err := rows.Scan(&c.SKUID, &c.ProductID, &c.Description); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListUnsynchronizedSettlements lists settlement events not yet folded into
// the unified cash movement ledger.
func (r *Repository) ListUnsynchronizedSettlements(ctx context.Context, companyID int64, limit int) ([]SettlementEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.company_id, s.channel, s.kind, s.external_id, s.amount, s.occurred_at, s.memo
		FROM marketplace_settlements s
		WHERE s.company_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM cash_movements cm
			WHERE cm.source_system = 'MARKETPLACE' AND cm.source_record_id = s.id::text
		  )
		ORDER BY s.occurred_at
		LIMIT $2`,
		companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []SettlementEvent
	for rows.Next() {
		var evt SettlementEvent
		var channel, kind string
		var amount decimal.Decimal
		if err := rows.Scan(&evt.ID, &evt.CompanyID, &channel, &kind, &evt.ExternalID, &amount, &evt.OccurredAt, &evt.Memo); err != nil {
			return nil, err
		}
		evt.Channel = Channel(channel)
		evt.Kind = SettlementKind(kind)
		evt.Amount = amount
		events = append(events, evt)
	}
	return events, rows.Err()
}

// CountUnsynchronizedSettlements counts pending settlement events.
func (r *Repository) CountUnsynchronizedSettlements(ctx context.Context, companyID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM marketplace_settlements s
		WHERE s.company_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM cash_movements cm
			WHERE cm.source_system = 'MARKETPLACE' AND cm.source_record_id = s.id::text
		  )`,
		companyID).Scan(&count)
	return count, err
}

func scanMapping(row pgx.Row) (Mapping, error) {
	var m Mapping
	var channel string
	err := row.Scan(&m.ID, &m.CompanyID, &channel, &m.ExternalSKU, &m.ProductID, &m.SKUID,
		&m.MappedAutomatically, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mapping{}, ErrMappingNotFound
		}
		return Mapping{}, err
	}
	m.Channel = Channel(channel)
	return m, nil
}
