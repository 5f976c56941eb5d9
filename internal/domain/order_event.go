package domain

import "time"

// OrderSettlementEvent represents the message the pedido-service emits when
// an outstanding order changes state. The work-order service consumes it to
// drop the client's cached outstanding total.
type OrderSettlementEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OrderID    string    `json:"order_id"`
	ClientID   string    `json:"client_id"`
	Status     string    `json:"status"`
	Total      int64     `json:"total"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}
