package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contaflux-erp/contaflux-erp/internal/costing"
	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// RepositoryPort abstracts mapping persistence for the resolver.
type RepositoryPort interface {
	GetMapping(ctx context.Context, companyID int64, channel Channel, externalSKU string) (Mapping, error)
	SaveManualMapping(ctx context.Context, input MappingInput) (Mapping, error)
	SaveAutomaticMapping(ctx context.Context, input MappingInput) (Mapping, error)
	ListSKUCandidates(ctx context.Context, companyID int64) ([]SKUCandidate, error)
}

// StockRecorder is the slice of the costing service the resolver drives.
type StockRecorder interface {
	RecordExit(ctx context.Context, input costing.ExitInput) (costing.Movement, costing.CogsRecord, error)
}

// ErrMappingNotFound indicates no mapping row for the key.
var ErrMappingNotFound = errors.New("marketplace: mapping not found")

// Resolver maps marketplace sale lines to internal products and posts the
// matching stock exits.
type Resolver struct {
	repo   RepositoryPort
	stock  StockRecorder
	logger *slog.Logger
	minSim float64
}

// NewResolver builds Resolver. minSimilarity below or equal zero falls back
// to the default threshold.
func NewResolver(repo RepositoryPort, stock StockRecorder, logger *slog.Logger, minSimilarity float64) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if minSimilarity <= 0 {
		minSimilarity = 0.6
	}
	return &Resolver{repo: repo, stock: stock, logger: logger, minSim: minSimilarity}
}

// Resolve translates (company, channel, externalSKU) to an internal product
// or SKU. Order: exact mapping, then heuristic description match, then nil.
// A heuristic hit is persisted as an automatic mapping so the next import
// resolves directly; it never replaces an existing manual mapping.
func (r *Resolver) Resolve(ctx context.Context, companyID int64, channel Channel, externalSKU string, description string) (*Resolution, error) {
	if companyID == 0 || channel == "" || externalSKU == "" {
		return nil, ErrMappingKeyRequired
	}
	mapping, err := r.repo.GetMapping(ctx, companyID, channel, externalSKU)
	if err == nil {
		return &Resolution{ProductID: mapping.ProductID, SKUID: mapping.SKUID, Automatic: mapping.MappedAutomatically}, nil
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return nil, err
	}

	candidate, ok, err := r.bestCandidate(ctx, companyID, externalSKU, description)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	saved, err := r.repo.SaveAutomaticMapping(ctx, MappingInput{
		CompanyID:   companyID,
		Channel:     channel,
		ExternalSKU: externalSKU,
		ProductID:   candidate.ProductID,
		SKUID:       candidate.SKUID,
	})
	if err != nil {
		return nil, err
	}
	return &Resolution{ProductID: saved.ProductID, SKUID: saved.SKUID, Automatic: true}, nil
}

// MapManually records a user-approved mapping. It always wins over any
// automatic suggestion for the same key.
func (r *Resolver) MapManually(ctx context.Context, input MappingInput) (Mapping, error) {
	if input.CompanyID == 0 || input.Channel == "" || input.ExternalSKU == "" {
		return Mapping{}, ErrMappingKeyRequired
	}
	if input.ProductID == 0 && input.SKUID == 0 {
		return Mapping{}, ErrMappingTargetRequired
	}
	return r.repo.SaveManualMapping(ctx, input)
}

// ImportSales processes a batch of sale lines: resolve, post exit, flag the
// unresolved ones. One failing line never aborts its siblings.
func (r *Resolver) ImportSales(ctx context.Context, lines []SaleLine) (ImportReport, error) {
	report := ImportReport{}
	for _, line := range lines {
		result := r.importLine(ctx, line)
		switch result.Status {
		case LineResolved:
			report.Resolved++
		case LineNoProduct:
			report.NoProduct++
		case LineFailed:
			report.Failed++
		}
		report.Lines = append(report.Lines, result)
	}
	return report, nil
}

func (r *Resolver) importLine(ctx context.Context, line SaleLine) LineResult {
	result := LineResult{SaleID: line.SaleID, ExternalSKU: line.ExternalSKU}
	if line.Qty <= 0 {
		result.Status = LineFailed
		result.Detail = "quantity must be positive"
		return result
	}
	resolution, err := r.Resolve(ctx, line.CompanyID, line.Channel, line.ExternalSKU, line.Description)
	if err != nil {
		result.Status = LineFailed
		result.Detail = err.Error()
		return result
	}
	if resolution == nil {
		r.logger.Info("sale line without product",
			slog.String("channel", string(line.Channel)),
			slog.String("external_sku", line.ExternalSKU),
			slog.String("sale_id", line.SaleID))
		result.Status = LineNoProduct
		result.Detail = "sem produto"
		return result
	}

	target := costing.Target{Kind: costing.TargetProduct, ID: resolution.ProductID}
	if resolution.SKUID != 0 {
		target = costing.Target{Kind: costing.TargetSKU, ID: resolution.SKUID}
	}
	_, _, err = r.stock.RecordExit(ctx, costing.ExitInput{
		CompanyID:    line.CompanyID,
		Target:       target,
		Qty:          line.Qty,
		SourceModule: fmt.Sprintf("MARKETPLACE.%s", line.Channel),
		SourceID:     line.SaleID,
		Note:         line.Description,
	})
	if err != nil {
		result.Status = LineFailed
		result.Detail = err.Error()
		return result
	}
	result.Status = LineResolved
	return result
}

func (r *Resolver) bestCandidate(ctx context.Context, companyID int64, externalSKU, description string) (SKUCandidate, bool, error) {
	if description == "" {
		return SKUCandidate{}, false, nil
	}
	candidates, err := r.repo.ListSKUCandidates(ctx, companyID)
	if err != nil {
		return SKUCandidate{}, false, err
	}
	wanted := shared.NameTokens(description)
	if len(wanted) == 0 {
		return SKUCandidate{}, false, nil
	}
	var best SKUCandidate
	bestScore := 0.0
	for _, cand := range candidates {
		score := tokenSimilarity(wanted, shared.NameTokens(cand.Description))
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	if bestScore < r.minSim {
		return SKUCandidate{}, false, nil
	}
	return best, true, nil
}

// tokenSimilarity is the Jaccard index over normalized name tokens.
func tokenSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, tok := range b {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
