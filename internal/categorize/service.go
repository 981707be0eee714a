package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// RepositoryPort abstracts rule and transaction persistence.
type RepositoryPort interface {
	ListRules(ctx context.Context, companyID int64) ([]Rule, error)
	LearnRule(ctx context.Context, companyID int64, pattern string, categoryID, costCenterID, responsibleID int64) (Rule, error)
	FindOrCreateCategoryByName(ctx context.Context, companyID int64, name string) (int64, error)
	FindOrCreateCostCenterByName(ctx context.Context, companyID int64, name string) (int64, error)
	ListUncategorized(ctx context.Context, companyID int64, limit int) ([]Transaction, error)
	ApplyCategorization(ctx context.Context, txID int64, categoryID, costCenterID int64, reconciled bool) error
}

// Marketplace settlement kinds map deterministically onto fixed category
// names. Categories are resolved by name, never by hardcoded id, so the
// mapping survives database re-seeding.
var marketplaceKindCategories = map[string]string{
	"COMMISSION":   "Comissões de Marketplace",
	"SHIPPING_FEE": "Fretes de Marketplace",
	"AD_SPEND":     "Anúncios e Publicidade",
	"TAX":          "Impostos sobre Vendas",
}

const marketplaceCostCenter = "Marketplace"

// Service is the auto-categorization engine.
type Service struct {
	repo          RepositoryPort
	cache         *RuleCache
	logger        *slog.Logger
	minConfidence int
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// MinConfidence is the threshold below which a suggestion is not applied
	// automatically during batch processing. Zero falls back to 40.
	MinConfidence int
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *RuleCache, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	min := cfg.MinConfidence
	if min <= 0 {
		min = 40
	}
	return &Service{repo: repo, cache: cache, logger: logger, minConfidence: min}
}

// Categorize classifies a transaction into a category/cost-center pair. It
// returns nil when neither the learned rules nor the channel heuristics
// produce a match; that is a data-quality flag, not an error.
func (s *Service) Categorize(ctx context.Context, tx Transaction) (*Suggestion, error) {
	if tx.CompanyID == 0 {
		return nil, ErrCompanyRequired
	}
	if tx.Source == SourceMarketplace {
		if suggestion, err := s.categorizeMarketplace(ctx, tx); suggestion != nil || err != nil {
			return suggestion, err
		}
	}
	return s.categorizeByRules(ctx, tx)
}

func (s *Service) categorizeMarketplace(ctx context.Context, tx Transaction) (*Suggestion, error) {
	categoryName, ok := marketplaceKindCategories[tx.Kind]
	if !ok {
		return nil, nil
	}
	categoryID, err := s.repo.FindOrCreateCategoryByName(ctx, tx.CompanyID, categoryName)
	if err != nil {
		return nil, err
	}
	costCenterID, err := s.repo.FindOrCreateCostCenterByName(ctx, tx.CompanyID, marketplaceCostCenter)
	if err != nil {
		return nil, err
	}
	return &Suggestion{
		CategoryID:   categoryID,
		CostCenterID: costCenterID,
		Confidence:   100,
		Source:       MatchHeuristic,
	}, nil
}

func (s *Service) categorizeByRules(ctx context.Context, tx Transaction) (*Suggestion, error) {
	pattern := shared.NormalizeName(tx.Counterpart)
	if pattern == "" {
		return nil, nil
	}
	rules, err := s.loadRules(ctx, tx.CompanyID)
	if err != nil {
		return nil, err
	}

	var contained *Rule
	for i := range rules {
		rule := rules[i]
		if rule.Pattern == pattern {
			return &Suggestion{
				CategoryID:   rule.CategoryID,
				CostCenterID: rule.CostCenterID,
				Confidence:   rule.Confidence(),
				Source:       MatchExact,
			}, nil
		}
		if contained == nil && rule.Pattern != "" &&
			(strings.Contains(pattern, rule.Pattern) || strings.Contains(rule.Pattern, pattern)) {
			contained = &rules[i]
		}
	}
	if contained != nil {
		// Substring containment is a heuristic; halve the confidence so
		// borderline matches stay below the auto-apply threshold.
		return &Suggestion{
			CategoryID:   contained.CategoryID,
			CostCenterID: contained.CostCenterID,
			Confidence:   contained.Confidence() / 2,
			Source:       MatchContains,
		}, nil
	}
	return nil, nil
}

// Learn upserts a rule from a manual categorization choice: an existing
// pattern gets its usage counter incremented and its targets overwritten
// with the latest choice; a new pattern starts at usage 1. The rule cache
// is invalidated afterward.
func (s *Service) Learn(ctx context.Context, input LearnInput) (Rule, error) {
	if input.CompanyID == 0 {
		return Rule{}, ErrCompanyRequired
	}
	if input.CategoryID == 0 || input.CostCenterID == 0 {
		return Rule{}, ErrTargetRequired
	}
	pattern := shared.NormalizeName(input.Establishment)
	if pattern == "" {
		return Rule{}, ErrPatternRequired
	}
	rule, err := s.repo.LearnRule(ctx, input.CompanyID, pattern, input.CategoryID, input.CostCenterID, input.ResponsibleID)
	if err != nil {
		return Rule{}, err
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("rule cache clear", slog.Any("error", err))
	}
	return rule, nil
}

// ProcessBatch categorizes newly imported transactions. Confident matches
// are applied and the transaction marked reconciled; per-record failures go
// into the report without aborting siblings.
func (s *Service) ProcessBatch(ctx context.Context, txs []Transaction) (BatchReport, error) {
	report := BatchReport{}
	for _, tx := range txs {
		report.Processed++
		if err := s.processOne(ctx, tx, &report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("transaction %d: %v", tx.ID, err))
		}
	}
	return report, nil
}

// ReprocessHistorical re-evaluates previously uncategorized transactions
// against the current rule set. The cache is cleared first so freshly
// learned rules apply. Idempotent: transactions categorized on one run are
// no longer uncategorized on the next.
func (s *Service) ReprocessHistorical(ctx context.Context, companyID int64) (BatchReport, error) {
	if companyID == 0 {
		return BatchReport{}, ErrCompanyRequired
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("rule cache clear", slog.Any("error", err))
	}
	txs, err := s.repo.ListUncategorized(ctx, companyID, 1000)
	if err != nil {
		return BatchReport{}, err
	}
	return s.ProcessBatch(ctx, txs)
}

func (s *Service) processOne(ctx context.Context, tx Transaction, report *BatchReport) error {
	suggestion, err := s.Categorize(ctx, tx)
	if err != nil {
		return err
	}
	if suggestion == nil || suggestion.Confidence < s.minConfidence {
		report.Uncategorized++
		return nil
	}
	if err := s.repo.ApplyCategorization(ctx, tx.ID, suggestion.CategoryID, suggestion.CostCenterID, true); err != nil {
		return err
	}
	report.Categorized++
	return nil
}

func (s *Service) loadRules(ctx context.Context, companyID int64) ([]Rule, error) {
	return s.cache.FetchRules(ctx, companyID, func(ctx context.Context) ([]Rule, error) {
		return s.repo.ListRules(ctx, companyID)
	})
}
