package payables

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines data access methods for payables.
type RepositoryPort interface {
	Create(ctx context.Context, input PayableInput) (Payable, error)
	MarkPaid(ctx context.Context, companyID, id int64, paidAt time.Time) (Payable, error)
	List(ctx context.Context, companyID int64) ([]Payable, error)
	ListUnsynchronized(ctx context.Context, companyID int64, limit int) ([]Payable, error)
	CountUnsynchronized(ctx context.Context, companyID int64) (int, error)
}

// Service handles payables business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new payable.
func (s *Service) Create(ctx context.Context, input PayableInput) (Payable, error) {
	if input.CompanyID == 0 {
		return Payable{}, errors.New("payables: company required")
	}
	if input.SupplierName == "" {
		return Payable{}, errors.New("payables: supplier name required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return Payable{}, errors.New("payables: amount must be positive")
	}
	return s.repo.Create(ctx, input)
}

// MarkPaid settles a payable; from then on it is eligible for cash sync.
func (s *Service) MarkPaid(ctx context.Context, companyID, id int64, paidAt time.Time) (Payable, error) {
	if companyID == 0 || id == 0 {
		return Payable{}, errors.New("payables: company and id required")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	return s.repo.MarkPaid(ctx, companyID, id, paidAt)
}

// List returns all payables for a company.
func (s *Service) List(ctx context.Context, companyID int64) ([]Payable, error) {
	return s.repo.List(ctx, companyID)
}
