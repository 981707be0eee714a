package marketplace

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contaflux-erp/contaflux-erp/internal/costing"
)

type memoryMappingRepo struct {
	mappings   map[string]Mapping
	candidates []SKUCandidate
	nextID     int64
}

func newMemoryMappingRepo() *memoryMappingRepo {
	return &memoryMappingRepo{mappings: make(map[string]Mapping)}
}

func mappingKey(companyID int64, channel Channel, externalSKU string) string {
	return fmt.Sprintf("%d:%s:%s", companyID, channel, externalSKU)
}

func (r *memoryMappingRepo) GetMapping(ctx context.Context, companyID int64, channel Channel, externalSKU string) (Mapping, error) {
	if m, ok := r.mappings[mappingKey(companyID, channel, externalSKU)]; ok {
		return m, nil
	}
	return Mapping{}, ErrMappingNotFound
}

func (r *memoryMappingRepo) SaveManualMapping(ctx context.Context, input MappingInput) (Mapping, error) {
	r.nextID++
	m := Mapping{
		ID:          r.nextID,
		CompanyID:   input.CompanyID,
		Channel:     input.Channel,
		ExternalSKU: input.ExternalSKU,
		ProductID:   input.ProductID,
		SKUID:       input.SKUID,
	}
	r.mappings[mappingKey(input.CompanyID, input.Channel, input.ExternalSKU)] = m
	return m, nil
}

func (r *memoryMappingRepo) SaveAutomaticMapping(ctx context.Context, input MappingInput) (Mapping, error) {
	key := mappingKey(input.CompanyID, input.Channel, input.ExternalSKU)
	if existing, ok := r.mappings[key]; ok && !existing.MappedAutomatically {
		return existing, nil
	}
	r.nextID++
	m := Mapping{
		ID:                  r.nextID,
		CompanyID:           input.CompanyID,
		Channel:             input.Channel,
		ExternalSKU:         input.ExternalSKU,
		ProductID:           input.ProductID,
		SKUID:               input.SKUID,
		MappedAutomatically: true,
	}
	r.mappings[key] = m
	return m, nil
}

func (r *memoryMappingRepo) ListSKUCandidates(ctx context.Context, companyID int64) ([]SKUCandidate, error) {
	return r.candidates, nil
}

type fakeStock struct {
	exits   []costing.ExitInput
	failFor string
}

func (s *fakeStock) RecordExit(ctx context.Context, input costing.ExitInput) (costing.Movement, costing.CogsRecord, error) {
	if s.failFor != "" && input.SourceID == s.failFor {
		return costing.Movement{}, costing.CogsRecord{}, errors.New("boom")
	}
	s.exits = append(s.exits, input)
	return costing.Movement{ID: int64(len(s.exits))}, costing.CogsRecord{}, nil
}

func TestResolveExactMapping(t *testing.T) {
	repo := newMemoryMappingRepo()
	_, err := repo.SaveManualMapping(context.Background(), MappingInput{CompanyID: 1, Channel: ChannelShopee, ExternalSKU: "EXT-1", SKUID: 42, ProductID: 4})
	require.NoError(t, err)

	resolver := NewResolver(repo, &fakeStock{}, nil, 0)
	res, err := resolver.Resolve(context.Background(), 1, ChannelShopee, "EXT-1", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, int64(42), res.SKUID)
	require.False(t, res.Automatic)
}

func TestResolveHeuristicPersistsAutomaticMapping(t *testing.T) {
	repo := newMemoryMappingRepo()
	repo.candidates = []SKUCandidate{
		{SKUID: 7, ProductID: 2, Description: "Camiseta Básica Azul M"},
		{SKUID: 8, ProductID: 2, Description: "Caneca Cerâmica Branca 300ml"},
	}
	resolver := NewResolver(repo, &fakeStock{}, nil, 0)

	res, err := resolver.Resolve(context.Background(), 1, ChannelMercadoLivre, "MLB-999", "camiseta basica azul m")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, int64(7), res.SKUID)
	require.True(t, res.Automatic)

	stored, err := repo.GetMapping(context.Background(), 1, ChannelMercadoLivre, "MLB-999")
	require.NoError(t, err)
	require.True(t, stored.MappedAutomatically)
}

func TestManualMappingBeatsAutomatic(t *testing.T) {
	repo := newMemoryMappingRepo()
	repo.candidates = []SKUCandidate{{SKUID: 7, ProductID: 2, Description: "Camiseta Básica Azul M"}}
	resolver := NewResolver(repo, &fakeStock{}, nil, 0)
	ctx := context.Background()

	// Automatic suggestion lands first.
	_, err := resolver.Resolve(ctx, 1, ChannelShopee, "EXT-2", "camiseta basica azul")
	require.NoError(t, err)

	// User corrects it.
	_, err = resolver.MapManually(ctx, MappingInput{CompanyID: 1, Channel: ChannelShopee, ExternalSKU: "EXT-2", SKUID: 55, ProductID: 9})
	require.NoError(t, err)

	// A later automatic match must not overwrite the manual choice.
	res, err := resolver.Resolve(ctx, 1, ChannelShopee, "EXT-2", "camiseta basica azul")
	require.NoError(t, err)
	require.Equal(t, int64(55), res.SKUID)
	require.False(t, res.Automatic)
}

func TestUnmappedSKUFlagsLineWithoutAbortingBatch(t *testing.T) {
	repo := newMemoryMappingRepo()
	_, err := repo.SaveManualMapping(context.Background(), MappingInput{CompanyID: 1, Channel: ChannelShopee, ExternalSKU: "KNOWN", SKUID: 3, ProductID: 1})
	require.NoError(t, err)
	stock := &fakeStock{}
	resolver := NewResolver(repo, stock, nil, 0)

	report, err := resolver.ImportSales(context.Background(), []SaleLine{
		{CompanyID: 1, Channel: ChannelShopee, SaleID: "S1", ExternalSKU: "KNOWN", Qty: 2},
		{CompanyID: 1, Channel: ChannelShopee, SaleID: "S2", ExternalSKU: "UNKNOWN", Qty: 1},
		{CompanyID: 1, Channel: ChannelShopee, SaleID: "S3", ExternalSKU: "KNOWN", Qty: 1},
	})
	require.NoError(t, err)
	require.Equal(t, 2, report.Resolved)
	require.Equal(t, 1, report.NoProduct)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, LineNoProduct, report.Lines[1].Status)
	require.Equal(t, "sem produto", report.Lines[1].Detail)
	require.Len(t, stock.exits, 2)
}

func TestFailingLineIsIsolated(t *testing.T) {
	repo := newMemoryMappingRepo()
	_, err := repo.SaveManualMapping(context.Background(), MappingInput{CompanyID: 1, Channel: ChannelShopee, ExternalSKU: "KNOWN", SKUID: 3, ProductID: 1})
	require.NoError(t, err)
	stock := &fakeStock{failFor: "S1"}
	resolver := NewResolver(repo, stock, nil, 0)

	report, err := resolver.ImportSales(context.Background(), []SaleLine{
		{CompanyID: 1, Channel: ChannelShopee, SaleID: "S1", ExternalSKU: "KNOWN", Qty: 2},
		{CompanyID: 1, Channel: ChannelShopee, SaleID: "S2", ExternalSKU: "KNOWN", Qty: 1},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Resolved)
}

func TestExitTargetsSKUWhenMapped(t *testing.T) {
	repo := newMemoryMappingRepo()
	_, err := repo.SaveManualMapping(context.Background(), MappingInput{CompanyID: 1, Channel: ChannelAmazon, ExternalSKU: "A-1", SKUID: 3, ProductID: 1})
	require.NoError(t, err)
	stock := &fakeStock{}
	resolver := NewResolver(repo, stock, nil, 0)

	_, err = resolver.ImportSales(context.Background(), []SaleLine{
		{CompanyID: 1, Channel: ChannelAmazon, SaleID: "S9", ExternalSKU: "A-1", Qty: 4},
	})
	require.NoError(t, err)
	require.Len(t, stock.exits, 1)
	require.Equal(t, costing.TargetSKU, stock.exits[0].Target.Kind)
	require.Equal(t, int64(3), stock.exits[0].Target.ID)
	require.Equal(t, "MARKETPLACE.AMAZON", stock.exits[0].SourceModule)
	require.Equal(t, "S9", stock.exits[0].SourceID)
}
