package receivables

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// Repository persists receivables in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const receivableColumns = `id, company_id, customer_name, description, amount, status,
	COALESCE(category_id, 0), COALESCE(cost_center_id, 0), due_at,
	COALESCE(received_at, 'epoch'::timestamptz), created_at, updated_at`

// Create inserts a new open receivable.
func (r *Repository) Create(ctx context.Context, input ReceivableInput) (Receivable, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO receivables
			(company_id, customer_name, description, amount, status, category_id, cost_center_id, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'OPEN', NULLIF($5, 0), NULLIF($6, 0), $7, NOW(), NOW())
		RETURNING `+receivableColumns,
		input.CompanyID, input.CustomerName, input.Description, input.Amount,
		input.CategoryID, input.CostCenterID, input.DueAt)
	return scanReceivable(row)
}

// MarkReceived transitions a receivable to RECEIVED.
func (r *Repository) MarkReceived(ctx context.Context, companyID, id int64, receivedAt time.Time) (Receivable, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE receivables
		SET status = 'RECEIVED', received_at = $3, updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND status = 'OPEN'
		RETURNING `+receivableColumns,
		companyID, id, receivedAt)
	receivable, err := scanReceivable(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receivable{}, shared.ErrNotFound
	}
	return receivable, err
}

// List returns receivables for a company, newest first.
func (r *Repository) List(ctx context.Context, companyID int64) ([]Receivable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+receivableColumns+`
		FROM receivables
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT 500`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReceivables(rows)
}

// ListOpen returns open receivables ordered by due date.
func (r *Repository) ListOpen(ctx context.Context, companyID int64) ([]Receivable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+receivableColumns+`
		FROM receivables
		WHERE company_id = $1 AND status = 'OPEN'
		ORDER BY due_at`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReceivables(rows)
}

// ListUnsynchronized lists received receivables not yet folded into the
// unified cash movement ledger.
func (r *Repository) ListUnsynchronized(ctx context.Context, companyID int64, limit int) ([]Receivable, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+receivableColumns+`
		FROM receivables rc
		WHERE rc.company_id = $1 AND rc.status = 'RECEIVED'
		  AND NOT EXISTS (
			SELECT 1 FROM cash_movements cm
			WHERE cm.source_system = 'RECEIVABLE' AND cm.source_record_id = rc.id::text
		  )
		ORDER BY rc.received_at
		LIMIT $2`,
		companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReceivables(rows)
}

// CountUnsynchronized counts received receivables pending sync.
func (r *Repository) CountUnsynchronized(ctx context.Context, companyID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM receivables rc
		WHERE rc.company_id = $1 AND rc.status = 'RECEIVED'
		  AND NOT EXISTS (
			SELECT 1 FROM cash_movements cm
			WHERE cm.source_system = 'RECEIVABLE' AND cm.source_record_id = rc.id::text
		  )`,
		companyID).Scan(&count)
	return count, err
}

func scanReceivable(row pgx.Row) (Receivable, error) {
	var rec Receivable
	var status string
	err := row.Scan(&rec.ID, &rec.CompanyID, &rec.CustomerName, &rec.Description, &rec.Amount, &status,
		&rec.CategoryID, &rec.CostCenterID, &rec.DueAt, &rec.ReceivedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Receivable{}, err
	}
	rec.Status = ReceivableStatus(status)
	return rec, nil
}

func scanReceivables(rows pgx.Rows) ([]Receivable, error) {
	var result []Receivable
	for rows.Next() {
		rec, err := scanReceivable(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
