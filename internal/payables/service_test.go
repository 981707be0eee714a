package payables

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	lastPaidAt time.Time
}

func (f *fakeRepo) Create(ctx context.Context, input PayableInput) (Payable, error) {
	return Payable{ID: 1, CompanyID: input.CompanyID, SupplierName: input.SupplierName, Amount: input.Amount, Status: StatusOpen}, nil
}

func (f *fakeRepo) MarkPaid(ctx context.Context, companyID, id int64, paidAt time.Time) (Payable, error) {
	f.lastPaidAt = paidAt
	return Payable{ID: id, CompanyID: companyID, Status: StatusPaid, PaidAt: paidAt}, nil
}

func (f *fakeRepo) List(ctx context.Context, companyID int64) ([]Payable, error) {
	return nil, nil
}

func (f *fakeRepo) ListUnsynchronized(ctx context.Context, companyID int64, limit int) ([]Payable, error) {
	return nil, nil
}

func (f *fakeRepo) CountUnsynchronized(ctx context.Context, companyID int64) (int, error) {
	return 0, nil
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := NewService(&fakeRepo{})

	_, err := svc.Create(context.Background(), PayableInput{SupplierName: "Supplies Co", Amount: decimal.NewFromInt(5)})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), PayableInput{CompanyID: 1, Amount: decimal.NewFromInt(5)})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), PayableInput{CompanyID: 1, SupplierName: "Supplies Co", Amount: decimal.NewFromInt(-5)})
	require.Error(t, err)

	p, err := svc.Create(context.Background(), PayableInput{CompanyID: 1, SupplierName: "Supplies Co", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, p.Status)
}

func TestMarkPaidDefaultsTimestamp(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	before := time.Now()
	p, err := svc.MarkPaid(context.Background(), 1, 7, time.Time{})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, p.Status)
	require.False(t, repo.lastPaidAt.Before(before))

	_, err = svc.MarkPaid(context.Background(), 0, 7, time.Time{})
	require.Error(t, err)
}
