package cashsync

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort persists unified cash movements.
type RepositoryPort interface {
	Upsert(ctx context.Context, movement CashMovement) (CashMovement, bool, error)
	List(ctx context.Context, companyID int64, since time.Time, limit int) ([]CashMovement, error)
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts the movement, or leaves the existing row untouched when the
// same (source_system, source_ref) pair was already synchronized. The second
// return value reports whether a new row was created; xmax = 0 only holds for
// freshly inserted tuples.
func (r *Repository) Upsert(ctx context.Context, m CashMovement) (CashMovement, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO cash_movements
			(company_id, source_system, source_ref, source_record_id, direction, amount,
			 description, category_id, cost_center_id, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0), NULLIF($9, 0), $10, NOW())
		ON CONFLICT (source_system, source_ref) DO UPDATE SET source_ref = EXCLUDED.source_ref
		RETURNING id, created_at, (xmax = 0) AS inserted`,
		m.CompanyID, m.SourceSystem, m.SourceRef, m.SourceRecordID, m.Direction, m.Amount,
		m.Description, m.CategoryID, m.CostCenterID, m.OccurredAt)

	var inserted bool
	if err := row.Scan(&m.ID, &m.CreatedAt, &inserted); err != nil {
		return CashMovement{}, false, err
	}
	return m, inserted, nil
}

// List returns cash movements since a point in time, newest first.
func (r *Repository) List(ctx context.Context, companyID int64, since time.Time, limit int) ([]CashMovement, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, source_system, source_ref, source_record_id, direction, amount,
		       description, COALESCE(category_id, 0), COALESCE(cost_center_id, 0), occurred_at, created_at
		FROM cash_movements
		WHERE company_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3`,
		companyID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]CashMovement, error) {
	var result []CashMovement
	for rows.Next() {
		var m CashMovement
		var system, direction string
		if err := rows.Scan(&m.ID, &m.CompanyID, &system, &m.SourceRef, &m.SourceRecordID, &direction,
			&m.Amount, &m.Description, &m.CategoryID, &m.CostCenterID, &m.OccurredAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SourceSystem = SourceSystem(system)
		m.Direction = Direction(direction)
		result = append(result, m)
	}
	return result, rows.Err()
}
