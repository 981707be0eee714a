package cashsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryLedger struct {
	mu       sync.Mutex
	rows     map[string]CashMovement
	nextID   int64
	failRefs map[string]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: make(map[string]CashMovement), failRefs: make(map[string]bool)}
}

func (l *memoryLedger) Upsert(ctx context.Context, m CashMovement) (CashMovement, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := string(m.SourceSystem) + ":" + m.SourceRef.String()
	if l.failRefs[m.SourceRecordID] {
		return CashMovement{}, false, errors.New("storage unavailable")
	}
	if existing, ok := l.rows[key]; ok {
		return existing, false, nil
	}
	l.nextID++
	m.ID = l.nextID
	m.CreatedAt = time.Now()
	l.rows[key] = m
	return m, true, nil
}

func (l *memoryLedger) List(ctx context.Context, companyID int64, since time.Time, limit int) ([]CashMovement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []CashMovement
	for _, m := range l.rows {
		if m.CompanyID == companyID {
			result = append(result, m)
		}
	}
	return result, nil
}

// fakeSource serves a fixed pending set minus whatever the ledger already
// holds, mirroring the NOT EXISTS listing the real sources run.
type fakeSource struct {
	system  SourceSystem
	pending []PendingMovement
	ledger  *memoryLedger
	listErr error
}

func (s *fakeSource) System() SourceSystem { return s.system }

func (s *fakeSource) ListPending(ctx context.Context, companyID int64, limit int) ([]PendingMovement, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []PendingMovement
	for _, p := range s.pending {
		key := string(p.SourceSystem) + ":" + RefFor(p.SourceSystem, p.RecordID).String()
		s.ledger.mu.Lock()
		_, synced := s.ledger.rows[key]
		s.ledger.mu.Unlock()
		if !synced {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeSource) CountPending(ctx context.Context, companyID int64) (int, error) {
	pending, err := s.ListPending(ctx, companyID, 0)
	return len(pending), err
}

type recordingNotifier struct {
	calls int
}

func (n *recordingNotifier) CashLedgerChanged(ctx context.Context, companyID int64) {
	n.calls++
}

func pendingPayable(id string, amount float64) PendingMovement {
	return PendingMovement{
		SourceSystem: SourcePayable,
		RecordID:     id,
		Direction:    DirectionOut,
		Amount:       decimal.NewFromFloat(amount),
		Description:  "fornecedor",
		OccurredAt:   time.Now(),
	}
}

func pendingReceivable(id string, amount float64) PendingMovement {
	return PendingMovement{
		SourceSystem: SourceReceivable,
		RecordID:     id,
		Direction:    DirectionIn,
		Amount:       decimal.NewFromFloat(amount),
		Description:  "cliente",
		OccurredAt:   time.Now(),
	}
}

func newTestService(ledger *memoryLedger, notifier Notifier, sources ...SourcePort) *Service {
	return NewService(ledger, sources, notifier, nil, slog.Default())
}

func TestSyncAllIsIdempotent(t *testing.T) {
	ledger := newMemoryLedger()
	payables := &fakeSource{system: SourcePayable, ledger: ledger,
		pending: []PendingMovement{pendingPayable("1", 100), pendingPayable("2", 55.5)}}
	receivables := &fakeSource{system: SourceReceivable, ledger: ledger,
		pending: []PendingMovement{pendingReceivable("7", 200)}}
	svc := newTestService(ledger, nil, payables, receivables)

	first, err := svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, first.PayablesSynced)
	require.Equal(t, 1, first.ReceivablesSynced)
	require.Empty(t, first.Errors)
	require.Len(t, ledger.rows, 3)

	second, err := svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, second.Synced())
	require.Len(t, ledger.rows, 3)
}

func TestTwiceSyncedRecordYieldsOneRow(t *testing.T) {
	ledger := newMemoryLedger()
	svc := newTestService(ledger, nil)

	movement := CashMovement{
		CompanyID:      1,
		SourceSystem:   SourceReceivable,
		SourceRef:      RefFor(SourceReceivable, "42"),
		SourceRecordID: "42",
		Direction:      DirectionIn,
		Amount:         decimal.NewFromInt(300),
		OccurredAt:     time.Now(),
	}
	_, inserted, err := ledger.Upsert(context.Background(), movement)
	require.NoError(t, err)
	require.True(t, inserted)

	_, inserted, err = ledger.Upsert(context.Background(), movement)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Len(t, ledger.rows, 1)

	rows, err := svc.ListMovements(context.Background(), 1, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDeterministicRefIsStable(t *testing.T) {
	a := RefFor(SourcePayable, "10")
	b := RefFor(SourcePayable, "10")
	require.Equal(t, a, b)

	require.NotEqual(t, RefFor(SourcePayable, "10"), RefFor(SourceReceivable, "10"))
	require.NotEqual(t, RefFor(SourcePayable, "10"), RefFor(SourcePayable, "11"))
}

func TestFailingRecordDoesNotAbortBatch(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.failRefs["2"] = true
	payables := &fakeSource{system: SourcePayable, ledger: ledger,
		pending: []PendingMovement{pendingPayable("1", 10), pendingPayable("2", 20), pendingPayable("3", 30)}}
	svc := newTestService(ledger, nil, payables)

	report, err := svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, report.PayablesSynced)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "PAYABLE 2")

	// The failed record is picked up once the storage recovers.
	delete(ledger.failRefs, "2")
	retry, err := svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, retry.PayablesSynced)
	require.Empty(t, retry.Errors)
}

func TestFailingSourceDoesNotStopOthers(t *testing.T) {
	ledger := newMemoryLedger()
	payables := &fakeSource{system: SourcePayable, ledger: ledger, listErr: errors.New("boom")}
	receivables := &fakeSource{system: SourceReceivable, ledger: ledger,
		pending: []PendingMovement{pendingReceivable("7", 200)}}
	svc := newTestService(ledger, nil, payables, receivables)

	report, err := svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, report.PayablesSynced)
	require.Equal(t, 1, report.ReceivablesSynced)
	require.Len(t, report.Errors, 1)
}

func TestNotifierFiresOnlyWhenRowsInserted(t *testing.T) {
	ledger := newMemoryLedger()
	notifier := &recordingNotifier{}
	payables := &fakeSource{system: SourcePayable, ledger: ledger,
		pending: []PendingMovement{pendingPayable("1", 10)}}
	svc := newTestService(ledger, notifier, payables)

	_, err := svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, notifier.calls)

	_, err = svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, notifier.calls)
}

func TestCountPendingReflectsBacklog(t *testing.T) {
	ledger := newMemoryLedger()
	payables := &fakeSource{system: SourcePayable, ledger: ledger,
		pending: []PendingMovement{pendingPayable("1", 10), pendingPayable("2", 20)}}
	receivables := &fakeSource{system: SourceReceivable, ledger: ledger,
		pending: []PendingMovement{pendingReceivable("7", 200)}}
	svc := newTestService(ledger, nil, payables, receivables)

	counts, err := svc.CountPending(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, counts.Payables)
	require.Equal(t, 1, counts.Receivables)
	require.Equal(t, 3, counts.Total())

	_, err = svc.SyncAll(context.Background(), 1)
	require.NoError(t, err)

	counts, err = svc.CountPending(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, counts.Total())
}
