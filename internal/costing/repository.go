package costing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflux-erp/contaflux-erp/internal/platform/db"
)

// ErrBalanceNotFound indicates a missing cost ledger row.
var ErrBalanceNotFound = errors.New("costing: balance not found")

// Repository persists costing data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	ProductTrackedBySKU(ctx context.Context, productID int64) (bool, error)
	GetBalanceForUpdate(ctx context.Context, companyID int64, target Target) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
	InsertCogsRecord(ctx context.Context, rec CogsRecord) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction. The
// balance row lock taken by GetBalanceForUpdate serializes concurrent
// movements against the same target.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetBalance reads the current cost ledger row without locking.
func (r *Repository) GetBalance(ctx context.Context, companyID int64, target Target) (Balance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT qty, avg_cost, updated_at
		FROM stock_balances
		WHERE company_id = $1 AND target_kind = $2 AND target_id = $3`,
		companyID, string(target.Kind), target.ID)
	bal := Balance{CompanyID: companyID, Target: target}
	if err := row.Scan(&bal.Qty, &bal.AvgCost, &bal.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bal, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

// ListMovements lists movement ledger rows, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, target_kind, target_id, tx_type, qty, unit_cost,
		       flagged, source_module, source_id, note, posted_at, created_by
		FROM stock_movements
		WHERE company_id = $1 AND target_kind = $2 AND target_id = $3
		  AND ($4::timestamptz IS NULL OR posted_at >= $4)
		  AND ($5::timestamptz IS NULL OR posted_at <= $5)
		ORDER BY posted_at DESC, id DESC
		LIMIT $6`,
		filter.CompanyID, string(filter.Target.Kind), filter.Target.ID,
		nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Movement
	for rows.Next() {
		var mv Movement
		var kind string
		if err := rows.Scan(&mv.ID, &mv.CompanyID, &kind, &mv.Target.ID, &mv.Type, &mv.Qty, &mv.UnitCost,
			&mv.Flagged, &mv.SourceModule, &mv.SourceID, &mv.Note, &mv.PostedAt, &mv.CreatedBy); err != nil {
			return nil, err
		}
		mv.Target.Kind = TargetKind(kind)
		result = append(result, mv)
	}
	return result, rows.Err()
}

// ListCogs lists recognized COGS records, newest first.
func (r *Repository) ListCogs(ctx context.Context, companyID int64, target Target, limit int) ([]CogsRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, movement_id, target_kind, target_id, qty, unit_cost,
		       total, source_module, source_id, recognized_at
		FROM cogs_records
		WHERE company_id = $1 AND target_kind = $2 AND target_id = $3
		ORDER BY recognized_at DESC, id DESC
		LIMIT $4`,
		companyID, string(target.Kind), target.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CogsRecord
	for rows.Next() {
		var rec CogsRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.CompanyID, &rec.MovementID, &kind, &rec.Target.ID, &rec.Qty,
			&rec.UnitCost, &rec.Total, &rec.SourceModule, &rec.SourceID, &rec.RecognizedAt); err != nil {
			return nil, err
		}
		rec.Target.Kind = TargetKind(kind)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *txRepo) ProductTrackedBySKU(ctx context.Context, productID int64) (bool, error) {
	var tracked bool
	err := r.tx.QueryRow(ctx, `SELECT sku_tracked FROM products WHERE id = $1`, productID).Scan(&tracked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return tracked, nil
}

func (r *txRepo) GetBalanceForUpdate(ctx context.Context, companyID int64, target Target) (Balance, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT qty, avg_cost, updated_at
		FROM stock_balances
		WHERE company_id = $1 AND target_kind = $2 AND target_id = $3
		FOR UPDATE`,
		companyID, string(target.Kind), target.ID)
	bal := Balance{CompanyID: companyID, Target: target}
	if err := row.Scan(&bal.Qty, &bal.AvgCost, &bal.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bal, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (r *txRepo) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO stock_balances (company_id, target_kind, target_id, qty, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (company_id, target_kind, target_id)
		DO UPDATE SET qty = EXCLUDED.qty, avg_cost = EXCLUDED.avg_cost, updated_at = NOW()`,
		balance.CompanyID, string(balance.Target.Kind), balance.Target.ID, balance.Qty, balance.AvgCost)
	return err
}

func (r *txRepo) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO stock_movements
			(company_id, target_kind, target_id, tx_type, qty, unit_cost, flagged,
			 source_module, source_id, note, posted_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		mv.CompanyID, string(mv.Target.Kind), mv.Target.ID, string(mv.Type), mv.Qty, mv.UnitCost,
		mv.Flagged, mv.SourceModule, mv.SourceID, mv.Note, mv.PostedAt, mv.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) InsertCogsRecord(ctx context.Context, rec CogsRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO cogs_records
			(company_id, movement_id, target_kind, target_id, qty, unit_cost, total,
			 source_module, source_id, recognized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		rec.CompanyID, rec.MovementID, string(rec.Target.Kind), rec.Target.ID, rec.Qty, rec.UnitCost,
		rec.Total, rec.SourceModule, rec.SourceID, rec.RecognizedAt).Scan(&id)
	return id, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
