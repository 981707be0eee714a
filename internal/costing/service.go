package costing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/contaflux-erp/contaflux-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, companyID int64, target Target) (Balance, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListCogs(ctx context.Context, companyID int64, target Target, limit int) ([]CogsRecord, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the cost ledger, movement recorder and COGS registry.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	logger      *slog.Logger
	strictStock bool
	integration IntegrationHandler
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// StrictNegativeStock hard-blocks movements that would drive on-hand
	// quantity negative. Off by default: the surrounding business accepts
	// pre-registered sales before opening inventory is reconciled, so the
	// default policy is warn-and-allow.
	StrictNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, cfg ServiceConfig, integration IntegrationHandler) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, strictStock: cfg.StrictNegativeStock, integration: integration}
}

// GetCurrentCost returns the weighted-average unit cost and on-hand quantity
// for a target. A target that never moved reads as zero cost, zero quantity.
func (s *Service) GetCurrentCost(ctx context.Context, companyID int64, target Target) (Balance, error) {
	if companyID == 0 || target.ID == 0 {
		return Balance{}, ErrTargetRequired
	}
	bal, err := s.repo.GetBalance(ctx, companyID, target)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return Balance{CompanyID: companyID, Target: target}, nil
		}
		return Balance{}, err
	}
	return bal, nil
}

// RecordEntry posts an inbound movement and recomputes the weighted average.
func (s *Service) RecordEntry(ctx context.Context, input EntryInput) (Movement, error) {
	if input.CompanyID == 0 || input.Target.ID == 0 {
		return Movement{}, ErrTargetRequired
	}
	if input.Qty <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return Movement{}, ErrInvalidUnitCost
	}
	mv, _, err := s.postMovement(ctx, movementParams{
		CompanyID:    input.CompanyID,
		Target:       input.Target,
		QtyChange:    input.Qty,
		UnitCost:     input.UnitCost,
		TxType:       MovementEntry,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Note:         input.Note,
		ActorID:      input.ActorID,
	})
	return mv, err
}

// RecordExit posts an outbound movement and appends exactly one COGS record
// at the ledger's cost at the instant of the call. The average cost is not
// recomputed on exits.
func (s *Service) RecordExit(ctx context.Context, input ExitInput) (Movement, CogsRecord, error) {
	if input.CompanyID == 0 || input.Target.ID == 0 {
		return Movement{}, CogsRecord{}, ErrTargetRequired
	}
	if input.Qty <= 0 {
		return Movement{}, CogsRecord{}, ErrInvalidQuantity
	}
	mv, cogs, err := s.postMovement(ctx, movementParams{
		CompanyID:    input.CompanyID,
		Target:       input.Target,
		QtyChange:    -input.Qty,
		TxType:       MovementExit,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Note:         input.Note,
		ActorID:      input.ActorID,
	})
	if err != nil {
		return Movement{}, CogsRecord{}, err
	}
	if s.integration != nil {
		evt := ExitPostedEvent{
			CompanyID:    mv.CompanyID,
			MovementID:   mv.ID,
			Target:       mv.Target,
			Qty:          input.Qty,
			UnitCost:     cogs.UnitCost,
			CogsTotal:    cogs.Total,
			SourceModule: mv.SourceModule,
			SourceID:     mv.SourceID,
			PostedAt:     mv.PostedAt,
		}
		if err := s.integration.HandleExitPosted(ctx, evt); err != nil {
			return Movement{}, CogsRecord{}, err
		}
	}
	return mv, cogs, nil
}

// RecordAdjustment posts a signed manual correction. Positive adjustments
// behave like entries and require a unit cost; negative ones behave like
// exits and recognize the current average.
func (s *Service) RecordAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if input.CompanyID == 0 || input.Target.ID == 0 {
		return Movement{}, ErrTargetRequired
	}
	if math.Abs(input.Qty) < 1e-9 {
		return Movement{}, ErrInvalidQuantity
	}
	if input.Qty > 0 && input.UnitCost < 0 {
		return Movement{}, ErrInvalidUnitCost
	}
	mv, _, err := s.postMovement(ctx, movementParams{
		CompanyID:    input.CompanyID,
		Target:       input.Target,
		QtyChange:    input.Qty,
		UnitCost:     input.UnitCost,
		TxType:       MovementAdjust,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Note:         input.Note,
		ActorID:      input.ActorID,
	})
	return mv, err
}

// ListMovements lists the movement ledger for a target.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.CompanyID == 0 || filter.Target.ID == 0 {
		return nil, ErrTargetRequired
	}
	return s.repo.ListMovements(ctx, filter)
}

// ListCogs lists recognized COGS records for a target.
func (s *Service) ListCogs(ctx context.Context, companyID int64, target Target, limit int) ([]CogsRecord, error) {
	if companyID == 0 || target.ID == 0 {
		return nil, ErrTargetRequired
	}
	return s.repo.ListCogs(ctx, companyID, target, limit)
}

type movementParams struct {
	CompanyID    int64
	Target       Target
	QtyChange    float64
	UnitCost     float64
	TxType       MovementType
	SourceModule string
	SourceID     string
	Note         string
	ActorID      int64
}

func (s *Service) postMovement(ctx context.Context, params movementParams) (Movement, CogsRecord, error) {
	now := time.Now().UTC()
	var mv Movement
	var cogs CogsRecord

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if params.Target.Kind == TargetProduct {
			tracked, err := tx.ProductTrackedBySKU(ctx, params.Target.ID)
			if err != nil {
				return err
			}
			if tracked {
				return ErrSKUTracked
			}
		}
		balance, err := tx.GetBalanceForUpdate(ctx, params.CompanyID, params.Target)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{CompanyID: params.CompanyID, Target: params.Target}
		}
		qtyChange := params.QtyChange
		newQty := balance.Qty + qtyChange
		if math.Abs(newQty) < 1e-9 {
			newQty = 0
		}
		flagged := false
		if newQty < 0 {
			if s.strictStock {
				return ErrNegativeStock
			}
			flagged = true
			s.logger.Warn("stock going negative",
				slog.Int64("company_id", params.CompanyID),
				slog.String("target", params.Target.String()),
				slog.Float64("qty_on_hand", balance.Qty),
				slog.Float64("qty_change", qtyChange))
		}
		unitCost := params.UnitCost
		newAvg := balance.AvgCost
		if qtyChange > 0 && newQty > 0 {
			newAvg = (balance.Qty*balance.AvgCost + qtyChange*unitCost) / newQty
		}
		if qtyChange < 0 {
			// Exits recognize the running average and never recompute it.
			unitCost = balance.AvgCost
		}

		mv = Movement{
			CompanyID:    params.CompanyID,
			Target:       params.Target,
			Type:         params.TxType,
			Qty:          qtyChange,
			UnitCost:     unitCost,
			Flagged:      flagged,
			SourceModule: params.SourceModule,
			SourceID:     params.SourceID,
			Note:         params.Note,
			PostedAt:     now,
			CreatedBy:    params.ActorID,
		}
		mvID, err := tx.InsertMovement(ctx, mv)
		if err != nil {
			return err
		}
		mv.ID = mvID

		if params.TxType == MovementExit {
			cogs = CogsRecord{
				CompanyID:    params.CompanyID,
				MovementID:   mvID,
				Target:       params.Target,
				Qty:          -qtyChange,
				UnitCost:     unitCost,
				Total:        round2(-qtyChange * unitCost),
				SourceModule: params.SourceModule,
				SourceID:     params.SourceID,
				RecognizedAt: now,
			}
			cogsID, err := tx.InsertCogsRecord(ctx, cogs)
			if err != nil {
				return err
			}
			cogs.ID = cogsID
		}

		balance.Qty = newQty
		balance.AvgCost = newAvg
		balance.UpdatedAt = now
		return tx.UpsertBalance(ctx, balance)
	})
	if err != nil {
		return Movement{}, CogsRecord{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  params.ActorID,
			Action:   fmt.Sprintf("costing:%s", params.TxType),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", mv.ID),
			Meta: map[string]any{
				"company_id": params.CompanyID,
				"target":     params.Target.String(),
				"qty":        params.QtyChange,
				"flagged":    mv.Flagged,
			},
		})
	}
	return mv, cogs, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
