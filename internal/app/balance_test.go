package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
)

// fakeLedger serves scripted ledger responses and counts attempts.
type fakeLedger struct {
	entries  []domain.LedgerEntry
	err      error
	failures int

	calls int
}

func (f *fakeLedger) ListOutstanding(ctx context.Context, clientID uuid.UUID) ([]domain.LedgerEntry, error) {
	f.calls++
	if f.err != nil && (f.failures == 0 || f.calls <= f.failures) {
		return nil, f.err
	}
	return f.entries, nil
}

func TestHasSufficientCredit_Boundary(t *testing.T) {
	clientID := uuid.New()
	client := &domain.Client{ID: clientID, CreditCeiling: 100000}

	testCases := []struct {
		name        string
		outstanding []int64
		amount      int64
		want        bool
	}{
		{name: "no outstanding, amount within ceiling", amount: 100000, want: true},
		{name: "no outstanding, amount over ceiling", amount: 100001, want: false},
		{name: "outstanding plus amount exactly at ceiling", outstanding: []int64{40000, 20000}, amount: 40000, want: true},
		{name: "outstanding plus amount one over ceiling", outstanding: []int64{40000, 20000}, amount: 40001, want: false},
		{name: "outstanding alone exceeds ceiling", outstanding: []int64{150000}, amount: 0, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &fakeLedger{}
			for _, total := range tc.outstanding {
				ledger.entries = append(ledger.entries, domain.LedgerEntry{ClientID: clientID, Total: total})
			}
			oracle := NewBalanceOracle(ledger, time.Second, 0)
			if got := oracle.HasSufficientCredit(context.Background(), client, tc.amount); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestOutstandingTotal_DegradesToZeroOnLedgerFailure(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("pedido-service unavailable")}
	oracle := NewBalanceOracle(ledger, time.Second, 0)

	if total := oracle.OutstandingTotal(context.Background(), uuid.New()); total != 0 {
		t.Fatalf("expected degraded total of 0, got %d", total)
	}

	// With a zero outstanding total the check narrows to the ceiling alone.
	client := &domain.Client{ID: uuid.New(), CreditCeiling: 50000}
	if !oracle.HasSufficientCredit(context.Background(), client, 50000) {
		t.Fatal("expected degraded check to pass within the ceiling")
	}
	if oracle.HasSufficientCredit(context.Background(), client, 50001) {
		t.Fatal("expected degraded check to still enforce the ceiling")
	}
}

func TestOutstandingTotal_RetriesTransientFailures(t *testing.T) {
	clientID := uuid.New()
	ledger := &fakeLedger{
		err:      errors.New("connection reset"),
		failures: 2,
		entries:  []domain.LedgerEntry{{ClientID: clientID, Total: 30000}},
	}
	oracle := NewBalanceOracle(ledger, time.Second, 2)
	oracle.retryBackoff = time.Millisecond

	if total := oracle.OutstandingTotal(context.Background(), clientID); total != 30000 {
		t.Fatalf("expected total from the successful retry, got %d", total)
	}
	if ledger.calls != 3 {
		t.Fatalf("expected two failed attempts plus one success, got %d calls", ledger.calls)
	}
}

func TestOutstandingTotal_ExhaustedRetriesDegrade(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("connection reset")}
	oracle := NewBalanceOracle(ledger, time.Second, 1)
	oracle.retryBackoff = time.Millisecond

	if total := oracle.OutstandingTotal(context.Background(), uuid.New()); total != 0 {
		t.Fatalf("expected degraded total of 0, got %d", total)
	}
	if ledger.calls != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d calls", ledger.calls)
	}
}
