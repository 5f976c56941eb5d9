/**
 * @description
 * This file contains the core business logic for the work-order service. The
 * `Service` struct orchestrates client management and work-order admission,
 * coordinating between the database repository, the external order ledger,
 * and the message broker.
 *
 * Key features:
 * - Client CRUD with field validation and duplicate national-id detection.
 * - Hosts the admission state machine (admission.go) and the balance oracle
 *   (balance.go) behind a per-client critical section.
 * - Publishes lifecycle events to RabbitMQ for asynchronous consumers.
 *
 * @dependencies
 * - context, errors, fmt, log, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
	"github.com/obraflow/workorder-service/internal/store"
	"github.com/obraflow/workorder-service/pkg/rabbitmq"
)

var (
	// ErrWorkOrderNotActive is returned when finish is called on a work
	// order that is not in the active state.
	ErrWorkOrderNotActive = errors.New("work order is not active")
	// ErrWorkOrderFinished is returned when a terminal work order is
	// submitted for update; finished orders never re-enter the queue.
	ErrWorkOrderFinished = errors.New("work order is already finished")
)

// Service provides the core business logic for clients and work orders.
type Service struct {
	repo          store.Repository
	oracle        *BalanceOracle
	eventProducer rabbitmq.Publisher
	eventExchange string

	// maxAllowedOverdraft is the configured floor the ceiling check
	// compares against when admitting a work order.
	maxAllowedOverdraft int64

	// locks serializes admission decisions per client. Work orders for
	// different clients proceed independently.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewService creates a new work-order service instance.
func NewService(repo store.Repository, oracle *BalanceOracle, producer rabbitmq.Publisher, eventExchange string, maxAllowedOverdraft int64) *Service {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:                repo,
		oracle:              oracle,
		eventProducer:       producer,
		eventExchange:       eventExchange,
		maxAllowedOverdraft: maxAllowedOverdraft,
		locks:               make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockClient acquires the mutex guarding a client's admission state and
// returns its release function. The read-check-mutate sequence in promote
// and finish must run entirely inside this critical section.
func (s *Service) lockClient(clientID uuid.UUID) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[clientID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[clientID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// CreateClient validates and persists a new client. A national id already
// registered to another client is reported as a conflict before any write.
func (s *Service) CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	if err := client.Validate(time.Now()); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindClientByNationalID(ctx, client.NationalID); err == nil {
		return nil, store.ErrDuplicateClient
	} else if !errors.Is(err, store.ErrClientNotFound) {
		return nil, fmt.Errorf("failed to check national id uniqueness: %w", err)
	}

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	client.ActiveWorkOrders = 0

	created, err := s.repo.CreateClient(ctx, client)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"client created\" client_id=%s national_id=%d", created.ID, created.NationalID)
	return created, nil
}

// GetClient retrieves a client by id.
func (s *Service) GetClient(ctx context.Context, clientID uuid.UUID) (*domain.Client, error) {
	return s.repo.FindClientByID(ctx, clientID)
}

// GetClientByNationalID retrieves a client by national id.
func (s *Service) GetClientByNationalID(ctx context.Context, nationalID int64) (*domain.Client, error) {
	return s.repo.FindClientByNationalID(ctx, nationalID)
}

// ListClients returns clients in creation order.
func (s *Service) ListClients(ctx context.Context, limit, offset int) ([]domain.Client, error) {
	return s.repo.ListClients(ctx, limit, offset)
}

// UpdateClient validates and persists changes to a client's descriptive
// fields. The admission counters are not writable through this path.
func (s *Service) UpdateClient(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	if err := client.Validate(time.Now()); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindClientByID(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if existing.NationalID != client.NationalID {
		if _, err := s.repo.FindClientByNationalID(ctx, client.NationalID); err == nil {
			return nil, store.ErrDuplicateClient
		} else if !errors.Is(err, store.ErrClientNotFound) {
			return nil, fmt.Errorf("failed to check national id uniqueness: %w", err)
		}
	}

	return s.repo.UpdateClient(ctx, client)
}

// DeleteClient removes a client and, through the schema's cascade, their
// work orders. The client's lock entry is evicted once the row is gone;
// stragglers re-create a mutex and then fail on the missing row.
func (s *Service) DeleteClient(ctx context.Context, clientID uuid.UUID) error {
	unlock := s.lockClient(clientID)
	defer unlock()

	if err := s.repo.DeleteClient(ctx, clientID); err != nil {
		return err
	}

	s.locksMu.Lock()
	delete(s.locks, clientID)
	s.locksMu.Unlock()
	return nil
}

// CheckCredit reports whether a client could commit the given amount,
// considering both the local ceiling and the external order ledger.
func (s *Service) CheckCredit(ctx context.Context, clientID uuid.UUID, amount int64) (bool, error) {
	client, err := s.repo.FindClientByID(ctx, clientID)
	if err != nil {
		return false, err
	}
	return s.oracle.HasSufficientCredit(ctx, client, amount), nil
}

func (s *Service) publishWorkOrderEvent(ctx context.Context, order *domain.WorkOrder) {
	event := rabbitmq.WorkOrderEvent{
		WorkOrderID:     order.ID,
		ClientID:        order.ClientID,
		Status:          order.Status,
		Reason:          order.StatusReason,
		EstimatedBudget: order.EstimatedBudget,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.eventProducer.PublishWorkOrderEvent(ctx, s.eventExchange, event); err != nil {
		log.Printf("level=warn component=service msg=\"work order event publish failed\" work_order_id=%s status=%s err=%v", order.ID, order.Status, err)
	}
}
