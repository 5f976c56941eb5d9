/**
 * @description
 * This package provides a client for the external pedido-service (order
 * ledger). It encapsulates the HTTP call that lists a client's
 * not-yet-settled orders, which the balance oracle aggregates when deciding
 * whether a client has enough remaining credit.
 */
package orderclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
)

// Client is a client for the pedido-service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new pedido-service client. The timeout bounds every
// ledger fetch; the balance check must never hang on a slow upstream.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// outstandingOrder mirrors one element of the pedido-service response. Only
// the numeric `total` field matters to the balance oracle; `total` is
// expressed in whole currency units by the upstream.
type outstandingOrder struct {
	ClientID string  `json:"client_id"`
	Total    float64 `json:"total"`
}

// ListOutstanding fetches every not-yet-settled order the pedido-service
// tracks for a client. Totals are converted to centavos.
func (c *Client) ListOutstanding(ctx context.Context, clientID uuid.UUID) ([]domain.LedgerEntry, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("pedido service base url is empty")
	}

	url := fmt.Sprintf("%s/api/pedidos/cliente/%s", c.baseURL, clientID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to pedido service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("pedido service returned error status %d", resp.StatusCode)
	}

	var orders []outstandingOrder
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	entries := make([]domain.LedgerEntry, 0, len(orders))
	for _, order := range orders {
		entries = append(entries, domain.LedgerEntry{
			ClientID: clientID,
			Total:    int64(math.Round(order.Total * 100)),
		})
	}
	return entries, nil
}
