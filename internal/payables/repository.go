package payables

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// Repository persists payables in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const payableColumns = `id, company_id, supplier_name, description, amount, status,
	COALESCE(category_id, 0), COALESCE(cost_center_id, 0), due_at,
	COALESCE(paid_at, 'epoch'::timestamptz), created_at, updated_at`

// Create inserts a new open payable.
func (r *Repository) Create(ctx context.Context, input PayableInput) (Payable, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payables
			(company_id, supplier_name, description, amount, status, category_id, cost_center_id, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'OPEN', NULLIF($5, 0), NULLIF($6, 0), $7, NOW(), NOW())
		RETURNING `+payableColumns,
		input.CompanyID, input.SupplierName, input.Description, input.Amount,
		input.CategoryID, input.CostCenterID, input.DueAt)
	return scanPayable(row)
}

// MarkPaid transitions a payable to PAID.
func (r *Repository) MarkPaid(ctx context.Context, companyID, id int64, paidAt time.Time) (Payable, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE payables
		SET status = 'PAID', paid_at = $3, updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND status = 'OPEN'
		RETURNING `+payableColumns,
		companyID, id, paidAt)
	payable, err := scanPayable(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payable{}, shared.ErrNotFound
	}
	return payable, err
}

// List returns payables for a company, newest first.
func (r *Repository) List(ctx context.Context, companyID int64) ([]Payable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+payableColumns+`
		FROM payables
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT 500`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayables(rows)
}

// ListUnsynchronized lists paid payables not yet folded into the unified
// cash movement ledger.
func (r *Repository) ListUnsynchronized(ctx context.Context, companyID int64, limit int) ([]Payable, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+payableColumns+`
		FROM payables p
		WHERE p.company_id = $1 AND p.status = 'PAID'
		  AND NOT EXISTS (
			SELECT 1 FROM cash_movements cm
			WHERE cm.source_system = 'PAYABLE' AND cm.source_record_id = p.id::text
		  )
		ORDER BY p.paid_at
		LIMIT $2`,
		companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayables(rows)
}

// CountUnsynchronized counts paid payables pending sync.
func (r *Repository) CountUnsynchronized(ctx context.Context, companyID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM payables p
		WHERE p.company_id = $1 AND p.status = 'PAID'
		  AND NOT EXISTS (
			SELECT 1 FROM cash_movements cm
			WHERE cm.source_system = 'PAYABLE' AND cm.source_record_id = p.id::text
		  )`,
		companyID).Scan(&count)
	return count, err
}

func scanPayable(row pgx.Row) (Payable, error) {
	var p Payable
	var status string
	err := row.Scan(&p.ID, &p.CompanyID, &p.SupplierName, &p.Description, &p.Amount, &status,
		&p.CategoryID, &p.CostCenterID, &p.DueAt, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payable{}, err
	}
	p.Status = PayableStatus(status)
	return p, nil
}

func scanPayables(rows pgx.Rows) ([]Payable, error) {
	var result []Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
