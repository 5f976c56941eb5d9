package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
	"github.com/obraflow/workorder-service/internal/store"
)

func validClientFixture() *domain.Client {
	return &domain.Client{
		FirstName:           "Ana",
		LastName:            "Gomez",
		NationalID:          401234567,
		BirthDate:           time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC),
		Street:              "Av. Siempreviva",
		StreetNumber:        "742",
		PhoneNumber:         "1144556677",
		Email:               "ana@example.com",
		CreditCeiling:       100000,
		MaxActiveWorkOrders: 2,
	}
}

func TestCreateClient_AssignsIDAndZeroesCounter(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	fixture := validClientFixture()
	fixture.ActiveWorkOrders = 7

	created, err := svc.CreateClient(context.Background(), fixture)
	if err != nil {
		t.Fatalf("CreateClient returned error: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected a generated id")
	}
	if created.ActiveWorkOrders != 0 {
		t.Fatalf("expected counter reset on creation, got %d", created.ActiveWorkOrders)
	}
}

func TestCreateClient_RejectsDuplicateNationalID(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	if _, err := svc.CreateClient(context.Background(), validClientFixture()); err != nil {
		t.Fatalf("CreateClient returned error: %v", err)
	}

	duplicate := validClientFixture()
	duplicate.Email = "otra@example.com"
	duplicate.PhoneNumber = "1155667788"
	if _, err := svc.CreateClient(context.Background(), duplicate); !errors.Is(err, store.ErrDuplicateClient) {
		t.Fatalf("expected ErrDuplicateClient, got %v", err)
	}
}

func TestCreateClient_RejectsInvalidFields(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	fixture := validClientFixture()
	fixture.PhoneNumber = "123"

	_, err := svc.CreateClient(context.Background(), fixture)
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validationErr.Field != "phone_number" {
		t.Fatalf("expected phone_number field, got %q", validationErr.Field)
	}
	if len(repo.clients) != 0 {
		t.Fatal("expected no persistence for an invalid client")
	}
}

func TestUpdateClient_DoesNotTouchAdmissionCounters(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	client := seedClient(t, repo, 100000, 1)
	client.BirthDate = time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)

	order := submitOrder(t, svc, client.ID, 60000, "-34.60,-58.38")
	if order.Status != domain.StatusActive {
		t.Fatalf("expected active fixture, got %q", order.Status)
	}

	client.FirstName = "Mariana"
	client.CreditCeiling = 999999
	client.ActiveWorkOrders = 0
	if _, err := svc.UpdateClient(context.Background(), client); err != nil {
		t.Fatalf("UpdateClient returned error: %v", err)
	}

	stored, _ := repo.FindClientByID(context.Background(), client.ID)
	if stored.FirstName != "Mariana" {
		t.Fatalf("expected descriptive field updated, got %q", stored.FirstName)
	}
	if stored.ActiveWorkOrders != 1 {
		t.Fatalf("expected counter untouched by update, got %d", stored.ActiveWorkOrders)
	}
	if stored.CreditCeiling != 40000 {
		t.Fatalf("expected reservation untouched by update, got ceiling %d", stored.CreditCeiling)
	}
}

func TestUpdateClient_RejectsNationalIDTakenByAnother(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	first, err := svc.CreateClient(context.Background(), validClientFixture())
	if err != nil {
		t.Fatalf("CreateClient returned error: %v", err)
	}

	other := validClientFixture()
	other.NationalID = 409876543
	other.PhoneNumber = "1155667788"
	other.Email = "otra@example.com"
	second, err := svc.CreateClient(context.Background(), other)
	if err != nil {
		t.Fatalf("CreateClient returned error: %v", err)
	}

	second.NationalID = first.NationalID
	if _, err := svc.UpdateClient(context.Background(), second); !errors.Is(err, store.ErrDuplicateClient) {
		t.Fatalf("expected ErrDuplicateClient, got %v", err)
	}
}

func TestDeleteClient_EvictsLockEntry(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	client := seedClient(t, repo, 100000, 1)

	// Touch the client so a lock entry exists.
	submitOrder(t, svc, client.ID, 10000, "-34.60,-58.38")
	svc.locksMu.Lock()
	_, present := svc.locks[client.ID]
	svc.locksMu.Unlock()
	if !present {
		t.Fatal("expected a lock entry after admission activity")
	}

	if err := svc.DeleteClient(context.Background(), client.ID); err != nil {
		t.Fatalf("DeleteClient returned error: %v", err)
	}

	svc.locksMu.Lock()
	_, present = svc.locks[client.ID]
	svc.locksMu.Unlock()
	if present {
		t.Fatal("expected the lock entry to be evicted with the client")
	}
}

func TestCheckCredit_CombinesCeilingAndLedger(t *testing.T) {
	repo := newMemRepo()
	client := seedClient(t, repo, 100000, 1)

	ledger := &fakeLedger{entries: []domain.LedgerEntry{
		{ClientID: client.ID, Total: 30000},
		{ClientID: client.ID, Total: 20000},
	}}
	oracle := NewBalanceOracle(ledger, time.Second, 0)
	svc := NewService(repo, oracle, nil, "workorder.events", 0)

	ok, err := svc.CheckCredit(context.Background(), client.ID, 50000)
	if err != nil {
		t.Fatalf("CheckCredit returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected sufficient credit at the exact boundary")
	}

	ok, err = svc.CheckCredit(context.Background(), client.ID, 50001)
	if err != nil {
		t.Fatalf("CheckCredit returned error: %v", err)
	}
	if ok {
		t.Fatal("expected insufficient credit past the boundary")
	}
}

func TestCheckCredit_UnknownClient(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	if _, err := svc.CheckCredit(context.Background(), uuid.New(), 1000); !errors.Is(err, store.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}
