package categorize

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists categorization rules and applies categorizations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRules lists all learned rules for a company.
func (r *Repository) ListRules(ctx context.Context, companyID int64) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, pattern, category_id, cost_center_id, responsible_id, usage_count, updated_at
		FROM categorization_rules
		WHERE company_id = $1
		ORDER BY pattern`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.CompanyID, &rule.Pattern, &rule.CategoryID,
			&rule.CostCenterID, &rule.ResponsibleID, &rule.UsageCount, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// LearnRule upserts a rule keyed by the normalized pattern: existing rules
// get usage_count+1 and their targets overwritten, new ones start at 1.
func (r *Repository) LearnRule(ctx context.Context, companyID int64, pattern string, categoryID, costCenterID, responsibleID int64) (Rule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO categorization_rules
			(company_id, pattern, category_id, cost_center_id, responsible_id, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
		ON CONFLICT (company_id, pattern)
		DO UPDATE SET usage_count = categorization_rules.usage_count + 1,
		              category_id = EXCLUDED.category_id,
		              cost_center_id = EXCLUDED.cost_center_id,
		              responsible_id = EXCLUDED.responsible_id,
		              updated_at = NOW()
		RETURNING id, company_id, pattern, category_id, cost_center_id, responsible_id, usage_count, updated_at`,
		companyID, pattern, categoryID, costCenterID, responsibleID)
	var rule Rule
	err := row.Scan(&rule.ID, &rule.CompanyID, &rule.Pattern, &rule.CategoryID,
		&rule.CostCenterID, &rule.ResponsibleID, &rule.UsageCount, &rule.UpdatedAt)
	return rule, err
}

// FindOrCreateCategoryByName resolves a category id by name, creating the
// category when absent. Two concurrent creators race on the unique name
// constraint; the loser re-reads the winner's row.
func (r *Repository) FindOrCreateCategoryByName(ctx context.Context, companyID int64, name string) (int64, error) {
	return r.findOrCreateNamed(ctx, "categories", companyID, name)
}

// FindOrCreateCostCenterByName resolves a cost center id by name, creating
// it when absent, with the same retry-on-conflict policy as categories.
func (r *Repository) FindOrCreateCostCenterByName(ctx context.Context, companyID int64, name string) (int64, error) {
	return r.findOrCreateNamed(ctx, "cost_centers", companyID, name)
}

func (r *Repository) findOrCreateNamed(ctx context.Context, table string, companyID int64, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM `+table+` WHERE company_id = $1 AND name = $2`,
		companyID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO `+table+` (company_id, name, created_at) VALUES ($1, $2, NOW()) RETURNING id`,
		companyID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// Lost the create race; the row exists now.
		err = r.pool.QueryRow(ctx,
			`SELECT id FROM `+table+` WHERE company_id = $1 AND name = $2`,
			companyID, name).Scan(&id)
		return id, err
	}
	return 0, err
}

// ListUncategorized lists transactions with no category assigned yet.
func (r *Repository) ListUncategorized(ctx context.Context, companyID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, source, kind, counterpart, amount, occurred_at,
		       COALESCE(category_id, 0), COALESCE(cost_center_id, 0), reconciled
		FROM financial_transactions
		WHERE company_id = $1 AND category_id IS NULL
		ORDER BY occurred_at
		LIMIT $2`,
		companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		var source string
		if err := rows.Scan(&tx.ID, &tx.CompanyID, &source, &tx.Kind, &tx.Counterpart, &tx.Amount,
			&tx.OccurredAt, &tx.CategoryID, &tx.CostCenterID, &tx.Reconciled); err != nil {
			return nil, err
		}
		tx.Source = TransactionSource(source)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ApplyCategorization writes the chosen category/cost-center pair onto a
// transaction and optionally marks it reconciled.
func (r *Repository) ApplyCategorization(ctx context.Context, txID int64, categoryID, costCenterID int64, reconciled bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE financial_transactions
		SET category_id = $2, cost_center_id = $3, reconciled = $4, updated_at = NOW()
		WHERE id = $1`,
		txID, categoryID, costCenterID, reconciled)
	return err
}
