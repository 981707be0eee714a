package receivables

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines data access methods for receivables.
type RepositoryPort interface {
	Create(ctx context.Context, input ReceivableInput) (Receivable, error)
	MarkReceived(ctx context.Context, companyID, id int64, receivedAt time.Time) (Receivable, error)
	List(ctx context.Context, companyID int64) ([]Receivable, error)
	ListOpen(ctx context.Context, companyID int64) ([]Receivable, error)
	ListUnsynchronized(ctx context.Context, companyID int64, limit int) ([]Receivable, error)
	CountUnsynchronized(ctx context.Context, companyID int64) (int, error)
}

// Service handles receivables business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new receivable.
func (s *Service) Create(ctx context.Context, input ReceivableInput) (Receivable, error) {
	if input.CompanyID == 0 {
		return Receivable{}, errors.New("receivables: company required")
	}
	if input.CustomerName == "" {
		return Receivable{}, errors.New("receivables: customer name required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return Receivable{}, errors.New("receivables: amount must be positive")
	}
	return s.repo.Create(ctx, input)
}

// MarkReceived settles a receivable; from then on it is eligible for cash sync.
func (s *Service) MarkReceived(ctx context.Context, companyID, id int64, receivedAt time.Time) (Receivable, error) {
	if companyID == 0 || id == 0 {
		return Receivable{}, errors.New("receivables: company and id required")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return s.repo.MarkReceived(ctx, companyID, id, receivedAt)
}

// List returns all receivables for a company.
func (s *Service) List(ctx context.Context, companyID int64) ([]Receivable, error) {
	return s.repo.List(ctx, companyID)
}

// Aging buckets open receivables by days overdue as of now.
func (s *Service) Aging(ctx context.Context, companyID int64) (AgingReport, error) {
	open, err := s.repo.ListOpen(ctx, companyID)
	if err != nil {
		return AgingReport{}, err
	}
	now := time.Now()
	buckets := []AgingBucket{
		{Label: "current", Total: decimal.Zero},
		{Label: "1-30", Total: decimal.Zero},
		{Label: "31-60", Total: decimal.Zero},
		{Label: "61-90", Total: decimal.Zero},
		{Label: "90+", Total: decimal.Zero},
	}
	for _, rec := range open {
		idx := 0
		if rec.DueAt.Before(now) {
			overdue := int(now.Sub(rec.DueAt).Hours() / 24)
			switch {
			case overdue <= 30:
				idx = 1
			case overdue <= 60:
				idx = 2
			case overdue <= 90:
				idx = 3
			default:
				idx = 4
			}
		}
		buckets[idx].Count++
		buckets[idx].Total = buckets[idx].Total.Add(rec.Amount)
	}
	return AgingReport{CompanyID: companyID, AsOf: now, Buckets: buckets}, nil
}
