package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
)

// recordingInvalidator captures cache invalidations.
type recordingInvalidator struct {
	invalidated []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, clientID uuid.UUID) {
	r.invalidated = append(r.invalidated, clientID)
}

func TestOrderEventConsumer_SettlementInvalidatesCache(t *testing.T) {
	cache := &recordingInvalidator{}
	consumer := NewOrderEventConsumer(cache)

	clientID := uuid.New()
	body, err := json.Marshal(domain.OrderSettlementEvent{
		EventID:  uuid.NewString(),
		OrderID:  uuid.NewString(),
		ClientID: clientID.String(),
		Status:   "settled",
		Total:    30000,
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	if !consumer.HandleMessage(body) {
		t.Fatal("expected ack for a valid event")
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != clientID {
		t.Fatalf("expected one invalidation for %s, got %v", clientID, cache.invalidated)
	}
}

func TestOrderEventConsumer_MalformedPayloadIsDropped(t *testing.T) {
	cache := &recordingInvalidator{}
	consumer := NewOrderEventConsumer(cache)

	if !consumer.HandleMessage([]byte("{not json")) {
		t.Fatal("expected malformed payload to be acknowledged and dropped")
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("expected no invalidation, got %v", cache.invalidated)
	}
}

func TestOrderEventConsumer_MissingClientIDIsDropped(t *testing.T) {
	cache := &recordingInvalidator{}
	consumer := NewOrderEventConsumer(cache)

	body, err := json.Marshal(domain.OrderSettlementEvent{
		EventID: uuid.NewString(),
		OrderID: uuid.NewString(),
		Status:  "settled",
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	if !consumer.HandleMessage(body) {
		t.Fatal("expected event without client id to be acknowledged and dropped")
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("expected no invalidation, got %v", cache.invalidated)
	}
}
