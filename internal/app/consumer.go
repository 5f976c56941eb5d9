/**
 * @description
 * This file implements the consumer side of the pedido-service integration.
 * The pedido-service publishes an event whenever an outstanding order
 * settles or is cancelled; either way the client's ledger exposure changed,
 * so the cached outstanding total is dropped and the next credit check
 * fetches fresh data.
 */

package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
)

// ledgerInvalidator is the slice of the ledger cache the consumer needs.
type ledgerInvalidator interface {
	Invalidate(ctx context.Context, clientID uuid.UUID)
}

// OrderEventConsumer reacts to order settlement events from the
// pedido-service.
type OrderEventConsumer struct {
	cache ledgerInvalidator
}

// NewOrderEventConsumer creates a consumer over the given ledger cache.
func NewOrderEventConsumer(cache ledgerInvalidator) *OrderEventConsumer {
	return &OrderEventConsumer{cache: cache}
}

// HandleMessage processes one settlement event. It returns true to
// acknowledge the delivery; malformed events are acknowledged and dropped
// because requeueing them can never succeed.
func (c *OrderEventConsumer) HandleMessage(body []byte) bool {
	var event domain.OrderSettlementEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=order_consumer msg=\"failed to unmarshal event; dropping\" err=%v", err)
		return true
	}

	clientID, err := uuid.Parse(event.ClientID)
	if err != nil {
		log.Printf("level=warn component=order_consumer msg=\"event carries no usable client id; dropping\" order_id=%s client_id=%q", event.OrderID, event.ClientID)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.cache.Invalidate(ctx, clientID)
	log.Printf("level=info component=order_consumer msg=\"ledger cache invalidated\" client_id=%s order_id=%s status=%s", clientID, event.OrderID, event.Status)
	return true
}
