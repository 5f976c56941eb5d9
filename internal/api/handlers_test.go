package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/app"
	"github.com/obraflow/workorder-service/internal/domain"
	"github.com/obraflow/workorder-service/internal/store"
)

// handlerRepoStub is an in-memory Repository covering the paths the handlers
// exercise. Unimplemented methods panic through the embedded interface.
type handlerRepoStub struct {
	store.Repository

	mu       sync.Mutex
	clients  map[uuid.UUID]*domain.Client
	orders   map[uuid.UUID]*domain.WorkOrder
	orderSeq []uuid.UUID
}

func newHandlerRepoStub() *handlerRepoStub {
	return &handlerRepoStub{
		clients: make(map[uuid.UUID]*domain.Client),
		orders:  make(map[uuid.UUID]*domain.WorkOrder),
	}
}

func (r *handlerRepoStub) CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *client
	r.clients[client.ID] = &copied
	result := copied
	return &result, nil
}

func (r *handlerRepoStub) FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, store.ErrClientNotFound
	}
	copied := *client
	return &copied, nil
}

func (r *handlerRepoStub) FindClientByNationalID(ctx context.Context, nationalID int64) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, client := range r.clients {
		if client.NationalID == nationalID {
			copied := *client
			return &copied, nil
		}
	}
	return nil, store.ErrClientNotFound
}

func (r *handlerRepoStub) UpdateClientUsage(ctx context.Context, clientID uuid.UUID, activeWorkOrders int, creditCeiling int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok {
		return store.ErrClientNotFound
	}
	client.ActiveWorkOrders = activeWorkOrders
	client.CreditCeiling = creditCeiling
	return nil
}

func (r *handlerRepoStub) CreateWorkOrder(ctx context.Context, order *domain.WorkOrder) (*domain.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *order
	r.orders[order.ID] = &copied
	r.orderSeq = append(r.orderSeq, order.ID)
	result := copied
	return &result, nil
}

func (r *handlerRepoStub) FindWorkOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, store.ErrWorkOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *handlerRepoStub) FindFirstPendingWorkOrder(ctx context.Context, clientID uuid.UUID) (*domain.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.orderSeq {
		order, ok := r.orders[id]
		if ok && order.ClientID == clientID && order.Status == domain.StatusPending {
			copied := *order
			return &copied, nil
		}
	}
	return nil, store.ErrWorkOrderNotFound
}

func (r *handlerRepoStub) UpdateWorkOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return store.ErrWorkOrderNotFound
	}
	order.Status = status
	return nil
}

// stubLedger serves a fixed outstanding total.
type stubLedger struct {
	total int64
}

func (s stubLedger) ListOutstanding(ctx context.Context, clientID uuid.UUID) ([]domain.LedgerEntry, error) {
	if s.total == 0 {
		return nil, nil
	}
	return []domain.LedgerEntry{{ClientID: clientID, Total: s.total}}, nil
}

func newTestServer(repo *handlerRepoStub, ledger app.LedgerReader) *httptest.Server {
	oracle := app.NewBalanceOracle(ledger, time.Second, 0)
	service := app.NewService(repo, oracle, nil, "workorder.events", 0)
	return httptest.NewServer(Routes(NewWorkOrderHandlers(service)))
}

func seedHandlerClient(t *testing.T, repo *handlerRepoStub, creditCeiling int64, maxActive int) *domain.Client {
	t.Helper()
	client := &domain.Client{
		ID:                  uuid.New(),
		FirstName:           "Ana",
		LastName:            "Gomez",
		NationalID:          401234567,
		BirthDate:           time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC),
		PhoneNumber:         "1144556677",
		Email:               "ana@example.com",
		CreditCeiling:       creditCeiling,
		MaxActiveWorkOrders: maxActive,
	}
	if _, err := repo.CreateClient(context.Background(), client); err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	return client
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestSubmitWorkOrderHandler_RefusedOrderReturnsPendingWithReason(t *testing.T) {
	repo := newHandlerRepoStub()
	server := newTestServer(repo, stubLedger{})
	defer server.Close()

	client := seedHandlerClient(t, repo, 100000, 1)

	resp := postJSON(t, server.URL+"/work-orders", map[string]interface{}{
		"client_id":        client.ID.String(),
		"address":          "Av. Siempreviva 742",
		"coordinates":      "-34.60,-58.38",
		"estimated_budget": 150000,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created domain.WorkOrder
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %q", created.Status)
	}
	if created.StatusReason != domain.ReasonCreditExceeded {
		t.Fatalf("expected credit_exceeded reason, got %q", created.StatusReason)
	}
}

func TestSubmitWorkOrderHandler_InvalidCoordinatesIs400(t *testing.T) {
	repo := newHandlerRepoStub()
	server := newTestServer(repo, stubLedger{})
	defer server.Close()

	client := seedHandlerClient(t, repo, 100000, 1)

	resp := postJSON(t, server.URL+"/work-orders", map[string]interface{}{
		"client_id":        client.ID.String(),
		"coordinates":      "91,200",
		"estimated_budget": 1000,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["field"] != "coordinates" {
		t.Fatalf("expected failing field coordinates, got %q", body["field"])
	}
}

func TestSubmitWorkOrderHandler_UnknownClientIs404(t *testing.T) {
	repo := newHandlerRepoStub()
	server := newTestServer(repo, stubLedger{})
	defer server.Close()

	resp := postJSON(t, server.URL+"/work-orders", map[string]interface{}{
		"client_id":        uuid.New().String(),
		"coordinates":      "-34.60,-58.38",
		"estimated_budget": 1000,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFinishWorkOrderHandler_NonActiveOrderIs409(t *testing.T) {
	repo := newHandlerRepoStub()
	server := newTestServer(repo, stubLedger{})
	defer server.Close()

	client := seedHandlerClient(t, repo, 100000, 1)

	// Refused on credit, so the order stays pending.
	resp := postJSON(t, server.URL+"/work-orders", map[string]interface{}{
		"client_id":        client.ID.String(),
		"coordinates":      "-34.60,-58.38",
		"estimated_budget": 150000,
	})
	var created domain.WorkOrder
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	resp.Body.Close()

	finishResp := postJSON(t, fmt.Sprintf("%s/work-orders/%s/finish", server.URL, created.ID), nil)
	defer finishResp.Body.Close()

	if finishResp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", finishResp.StatusCode)
	}
}

func TestFinishWorkOrderHandler_ActiveOrderFinishes(t *testing.T) {
	repo := newHandlerRepoStub()
	server := newTestServer(repo, stubLedger{})
	defer server.Close()

	client := seedHandlerClient(t, repo, 100000, 1)

	resp := postJSON(t, server.URL+"/work-orders", map[string]interface{}{
		"client_id":        client.ID.String(),
		"coordinates":      "-34.60,-58.38",
		"estimated_budget": 60000,
	})
	var created domain.WorkOrder
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	resp.Body.Close()
	if created.Status != domain.StatusActive {
		t.Fatalf("expected active fixture, got %q", created.Status)
	}

	finishResp := postJSON(t, fmt.Sprintf("%s/work-orders/%s/finish", server.URL, created.ID), nil)
	defer finishResp.Body.Close()

	if finishResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", finishResp.StatusCode)
	}
	var finished domain.WorkOrder
	if err := json.NewDecoder(finishResp.Body).Decode(&finished); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if finished.Status != domain.StatusFinished {
		t.Fatalf("expected finished status, got %q", finished.Status)
	}
}

func TestCheckCreditHandler_CombinesCeilingAndLedger(t *testing.T) {
	repo := newHandlerRepoStub()
	server := newTestServer(repo, stubLedger{total: 60000})
	defer server.Close()

	client := seedHandlerClient(t, repo, 100000, 1)

	resp, err := http.Get(fmt.Sprintf("%s/clients/%s/credit-check?amount=40000", server.URL, client.ID))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body creditCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.Sufficient {
		t.Fatal("expected sufficient credit at the exact boundary")
	}

	over, err := http.Get(fmt.Sprintf("%s/clients/%s/credit-check?amount=40001", server.URL, client.ID))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer over.Body.Close()
	if err := json.NewDecoder(over.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Sufficient {
		t.Fatal("expected insufficient credit past the boundary")
	}
}

func TestCreateClientHandler_BadBirthDateIs400(t *testing.T) {
	repo := newHandlerRepoStub()
	server := newTestServer(repo, stubLedger{})
	defer server.Close()

	resp := postJSON(t, server.URL+"/clients", map[string]interface{}{
		"first_name":             "Ana",
		"last_name":              "Gomez",
		"national_id":            401234567,
		"birth_date":             "15/06/1990",
		"phone_number":           "1144556677",
		"email":                  "ana@example.com",
		"credit_ceiling":         100000,
		"max_active_work_orders": 2,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["field"] != "birth_date" {
		t.Fatalf("expected failing field birth_date, got %q", body["field"])
	}
}
