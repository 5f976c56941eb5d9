/**
 * @description
 * This file implements the balance oracle: the credit check that combines a
 * client's local credit ceiling with the sum of their not-yet-settled orders
 * tracked by the external pedido-service.
 *
 * The ledger fetch is advisory at the instant of the call; nothing is
 * reserved or locked upstream. The fetch runs under a bounded timeout with a
 * small retry, and its failure degrades the check to the ceiling alone
 * rather than aborting admission. That fail-open posture mirrors the
 * upstream contract this service has always had; the warning log makes the
 * exposure visible.
 *
 * @dependencies
 * - internal/domain: Domain models.
 * - github.com/redis/go-redis/v9: Optional short-TTL cache of the
 *   outstanding total, so bursts of admissions for one client do not hammer
 *   the pedido-service.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LedgerReader is the port through which the oracle reaches the external
// order ledger. The HTTP implementation lives in pkg/orderclient; tests
// substitute deterministic fakes.
type LedgerReader interface {
	ListOutstanding(ctx context.Context, clientID uuid.UUID) ([]domain.LedgerEntry, error)
}

// BalanceOracle decides whether a client has enough remaining credit for a
// prospective commitment amount.
type BalanceOracle struct {
	ledger       LedgerReader
	cache        *LedgerCache
	fetchTimeout time.Duration
	fetchRetries int
	retryBackoff time.Duration
}

// NewBalanceOracle creates a balance oracle over the given ledger port.
// retries is the number of additional attempts after a failed fetch.
func NewBalanceOracle(ledger LedgerReader, fetchTimeout time.Duration, retries int) *BalanceOracle {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &BalanceOracle{
		ledger:       ledger,
		fetchTimeout: fetchTimeout,
		fetchRetries: retries,
		retryBackoff: 100 * time.Millisecond,
	}
}

// SetCache attaches an optional outstanding-total cache.
func (o *BalanceOracle) SetCache(cache *LedgerCache) {
	o.cache = cache
}

// HasSufficientCredit reports whether the client's credit ceiling covers the
// sum of their outstanding ledger amounts plus the prospective amount.
func (o *BalanceOracle) HasSufficientCredit(ctx context.Context, client *domain.Client, amount int64) bool {
	total := o.OutstandingTotal(ctx, client.ID)
	return client.CreditCeiling >= total+amount
}

// OutstandingTotal sums the client's not-yet-settled ledger amounts. On
// upstream failure it returns zero, narrowing the credit check to the
// ceiling alone.
func (o *BalanceOracle) OutstandingTotal(ctx context.Context, clientID uuid.UUID) int64 {
	if cached, ok := o.cache.Get(ctx, clientID); ok {
		return cached
	}

	entries, err := o.fetchWithRetry(ctx, clientID)
	if err != nil {
		log.Printf("level=warn component=balance_oracle msg=\"ledger fetch failed; treating outstanding total as zero\" client_id=%s err=%v", clientID, err)
		return 0
	}

	var total int64
	for _, entry := range entries {
		total += entry.Total
	}

	o.cache.Set(ctx, clientID, total)
	return total
}

func (o *BalanceOracle) fetchWithRetry(ctx context.Context, clientID uuid.UUID) ([]domain.LedgerEntry, error) {
	var lastErr error
	for attempt := 0; attempt <= o.fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.retryBackoff * time.Duration(attempt)):
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
		entries, err := o.ledger.ListOutstanding(fetchCtx, clientID)
		cancel()
		if err == nil {
			return entries, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("ledger fetch failed after %d attempts: %w", o.fetchRetries+1, lastErr)
}

// LedgerCache caches a client's outstanding-ledger total in Redis for a
// short TTL. All methods are safe on a nil receiver so the oracle works
// unchanged when Redis is not configured.
type LedgerCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLedgerCache creates a cache with the given key prefix and TTL.
func NewLedgerCache(client redis.UniversalClient, prefix string, ttl time.Duration) *LedgerCache {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "workorder:ledger_total"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &LedgerCache{client: client, prefix: trimmedPrefix, ttl: ttl}
}

func (c *LedgerCache) key(clientID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", c.prefix, clientID)
}

// Get returns the cached total for a client, if present.
func (c *LedgerCache) Get(ctx context.Context, clientID uuid.UUID) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, c.key(clientID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("level=warn component=ledger_cache msg=\"cache read failed\" client_id=%s err=%v", clientID, err)
		}
		return 0, false
	}
	total, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}

// Set stores the total for a client. Failures are logged and ignored; the
// cache is an optimization, never a source of truth.
func (c *LedgerCache) Set(ctx context.Context, clientID uuid.UUID, total int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, c.key(clientID), strconv.FormatInt(total, 10), c.ttl).Err(); err != nil {
		log.Printf("level=warn component=ledger_cache msg=\"cache write failed\" client_id=%s err=%v", clientID, err)
	}
}

// Invalidate drops the cached total for a client, forcing the next credit
// check to re-fetch from the ledger.
func (c *LedgerCache) Invalidate(ctx context.Context, clientID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.key(clientID)).Err(); err != nil {
		log.Printf("level=warn component=ledger_cache msg=\"cache invalidation failed\" client_id=%s err=%v", clientID, err)
	}
}
