package categorize

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryRuleRepo struct {
	rules        map[string]Rule
	categories   map[string]int64
	costCenters  map[string]int64
	transactions map[int64]*Transaction
	nextID       int64
	listCalls    int
}

func newMemoryRuleRepo() *memoryRuleRepo {
	return &memoryRuleRepo{
		rules:        make(map[string]Rule),
		categories:   make(map[string]int64),
		costCenters:  make(map[string]int64),
		transactions: make(map[int64]*Transaction),
	}
}

func (r *memoryRuleRepo) ListRules(ctx context.Context, companyID int64) ([]Rule, error) {
	r.listCalls++
	var rules []Rule
	for _, rule := range r.rules {
		if rule.CompanyID == companyID {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func (r *memoryRuleRepo) LearnRule(ctx context.Context, companyID int64, pattern string, categoryID, costCenterID, responsibleID int64) (Rule, error) {
	key := fmt.Sprintf("%d:%s", companyID, pattern)
	if existing, ok := r.rules[key]; ok {
		existing.UsageCount++
		existing.CategoryID = categoryID
		existing.CostCenterID = costCenterID
		existing.ResponsibleID = responsibleID
		existing.UpdatedAt = time.Now()
		r.rules[key] = existing
		return existing, nil
	}
	r.nextID++
	rule := Rule{
		ID:            r.nextID,
		CompanyID:     companyID,
		Pattern:       pattern,
		CategoryID:    categoryID,
		CostCenterID:  costCenterID,
		ResponsibleID: responsibleID,
		UsageCount:    1,
		UpdatedAt:     time.Now(),
	}
	r.rules[key] = rule
	return rule, nil
}

func (r *memoryRuleRepo) FindOrCreateCategoryByName(ctx context.Context, companyID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d:%s", companyID, name)
	if id, ok := r.categories[key]; ok {
		return id, nil
	}
	r.nextID++
	r.categories[key] = r.nextID
	return r.nextID, nil
}

func (r *memoryRuleRepo) FindOrCreateCostCenterByName(ctx context.Context, companyID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d:%s", companyID, name)
	if id, ok := r.costCenters[key]; ok {
		return id, nil
	}
	r.nextID++
	r.costCenters[key] = r.nextID
	return r.nextID, nil
}

func (r *memoryRuleRepo) ListUncategorized(ctx context.Context, companyID int64, limit int) ([]Transaction, error) {
	var txs []Transaction
	for _, tx := range r.transactions {
		if tx.CompanyID == companyID && tx.CategoryID == 0 {
			txs = append(txs, *tx)
		}
	}
	return txs, nil
}

func (r *memoryRuleRepo) ApplyCategorization(ctx context.Context, txID int64, categoryID, costCenterID int64, reconciled bool) error {
	tx, ok := r.transactions[txID]
	if !ok {
		return fmt.Errorf("transaction %d not found", txID)
	}
	tx.CategoryID = categoryID
	tx.CostCenterID = costCenterID
	tx.Reconciled = reconciled
	return nil
}

func newTestEngine(t *testing.T, repo RepositoryPort) (*Service, *RuleCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRuleCache(client, time.Minute)
	return NewService(repo, cache, nil, ServiceConfig{}), cache
}

func TestNormalizationDrivesExactMatch(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	_, err := svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "Pão de Açúcar  S.A.", CategoryID: 10, CostCenterID: 20})
	require.NoError(t, err)

	suggestion, err := svc.Categorize(ctx, Transaction{CompanyID: 1, Source: SourceCard, Counterpart: "PAO DE ACUCAR SA"})
	require.NoError(t, err)
	require.NotNil(t, suggestion)
	require.Equal(t, MatchExact, suggestion.Source)
	require.Equal(t, int64(10), suggestion.CategoryID)
	require.Equal(t, int64(20), suggestion.CostCenterID)
	require.Equal(t, 20, suggestion.Confidence)
}

func TestConfidenceIsMonotonicAndCapped(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	previous := 0
	for i := 0; i < 8; i++ {
		rule, err := svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "Posto Ipiranga", CategoryID: 10, CostCenterID: 20})
		require.NoError(t, err)
		require.GreaterOrEqual(t, rule.Confidence(), previous)
		require.LessOrEqual(t, rule.Confidence(), 100)
		previous = rule.Confidence()
	}
	require.Equal(t, 100, previous)
}

func TestLearnOverwritesTargetsLastWriteWins(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	_, err := svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "Uber", CategoryID: 10, CostCenterID: 20})
	require.NoError(t, err)
	rule, err := svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "Uber", CategoryID: 11, CostCenterID: 21})
	require.NoError(t, err)
	require.Equal(t, int64(11), rule.CategoryID)
	require.Equal(t, int64(21), rule.CostCenterID)
	require.Equal(t, 2, rule.UsageCount)
}

func TestContainmentFallbackHasLowerConfidence(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "Mercado Central", CategoryID: 10, CostCenterID: 20})
		require.NoError(t, err)
	}

	suggestion, err := svc.Categorize(ctx, Transaction{CompanyID: 1, Source: SourceBank, Counterpart: "Mercado Central Loja 12"})
	require.NoError(t, err)
	require.NotNil(t, suggestion)
	require.Equal(t, MatchContains, suggestion.Source)
	require.Equal(t, 50, suggestion.Confidence)
}

func TestMarketplaceHeuristicResolvesByName(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	first, err := svc.Categorize(ctx, Transaction{CompanyID: 1, Source: SourceMarketplace, Kind: "COMMISSION"})
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, MatchHeuristic, first.Source)
	require.Equal(t, 100, first.Confidence)

	// Same kind resolves to the same category row, not a duplicate.
	second, err := svc.Categorize(ctx, Transaction{CompanyID: 1, Source: SourceMarketplace, Kind: "COMMISSION"})
	require.NoError(t, err)
	require.Equal(t, first.CategoryID, second.CategoryID)
	require.Equal(t, first.CostCenterID, second.CostCenterID)
	require.Len(t, repo.categories, 1)
}

func TestUnknownCounterpartReturnsNil(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)

	suggestion, err := svc.Categorize(context.Background(), Transaction{CompanyID: 1, Source: SourceBank, Counterpart: "Estabelecimento Desconhecido"})
	require.NoError(t, err)
	require.Nil(t, suggestion)
}

func TestProcessBatchAppliesConfidentMatches(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "Correios", CategoryID: 10, CostCenterID: 20})
		require.NoError(t, err)
	}
	repo.transactions[1] = &Transaction{ID: 1, CompanyID: 1, Source: SourceBank, Counterpart: "CORREIOS"}
	repo.transactions[2] = &Transaction{ID: 2, CompanyID: 1, Source: SourceBank, Counterpart: "Quem?"}

	report, err := svc.ProcessBatch(ctx, []Transaction{*repo.transactions[1], *repo.transactions[2]})
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 1, report.Categorized)
	require.Equal(t, 1, report.Uncategorized)
	require.Empty(t, report.Errors)

	require.Equal(t, int64(10), repo.transactions[1].CategoryID)
	require.True(t, repo.transactions[1].Reconciled)
	require.False(t, repo.transactions[2].Reconciled)
}

func TestReprocessHistoricalIsIdempotent(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "Netflix", CategoryID: 10, CostCenterID: 20})
		require.NoError(t, err)
	}
	repo.transactions[1] = &Transaction{ID: 1, CompanyID: 1, Source: SourceCard, Counterpart: "NETFLIX"}

	first, err := svc.ReprocessHistorical(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, first.Categorized)

	second, err := svc.ReprocessHistorical(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, second.Processed)
	require.Equal(t, 0, second.Categorized)
}

func TestLearnInvalidatesRuleCache(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc, _ := newTestEngine(t, repo)
	ctx := context.Background()

	// Prime the cache with an empty rule set.
	_, err := svc.Categorize(ctx, Transaction{CompanyID: 1, Source: SourceBank, Counterpart: "iFood"})
	require.NoError(t, err)
	calls := repo.listCalls

	_, err = svc.Learn(ctx, LearnInput{CompanyID: 1, Establishment: "iFood", CategoryID: 10, CostCenterID: 20})
	require.NoError(t, err)

	suggestion, err := svc.Categorize(ctx, Transaction{CompanyID: 1, Source: SourceBank, Counterpart: "iFood"})
	require.NoError(t, err)
	require.NotNil(t, suggestion)
	require.Greater(t, repo.listCalls, calls)
}
