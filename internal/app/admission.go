/**
 * @description
 * This file implements the work-order admission state machine: the policy
 * that decides whether a submitted or re-evaluated work order may become
 * active, given the owning client's two capacity limits (credit ceiling and
 * maximum concurrently active work orders), and that promotes the next
 * queued order when capacity frees up.
 *
 * Lifecycle: pending -> active -> finished. Every submission starts pending;
 * a refused promotion leaves the order pending and is a normal outcome, not
 * an error. Finished is terminal.
 *
 * All read-check-mutate sequences run inside the per-client critical section
 * acquired via Service.lockClient, so two concurrent promotions can never
 * both observe spare capacity and both commit.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
	"github.com/obraflow/workorder-service/internal/store"
)

// SubmitWorkOrder validates, persists, and attempts to admit a new work
// order. Validation and owner-lookup failures abort before any write; a
// refused admission leaves the persisted order pending with the refusal
// reason attached.
func (s *Service) SubmitWorkOrder(ctx context.Context, order *domain.WorkOrder) (*domain.WorkOrder, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindClientByID(ctx, order.ClientID); err != nil {
		return nil, err
	}

	unlock := s.lockClient(order.ClientID)
	defer unlock()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	// Every submission enters the queue as pending, whatever the caller sent.
	order.Status = domain.StatusPending

	created, err := s.repo.CreateWorkOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	reason, err := s.promote(ctx, created)
	if err != nil {
		return nil, err
	}
	created.StatusReason = reason

	log.Printf("level=info component=admission msg=\"work order submitted\" work_order_id=%s client_id=%s status=%s reason=%s", created.ID, created.ClientID, created.Status, reason)
	s.publishWorkOrderEvent(ctx, created)
	return created, nil
}

// promote attempts the pending -> active transition. It must be called with
// the owner's lock held. The returned reason reports the decision:
// activated, capacity_exceeded, or credit_exceeded. Promoting an order that
// is already active is a no-op so replays never double-count.
func (s *Service) promote(ctx context.Context, order *domain.WorkOrder) (string, error) {
	if order.Status == domain.StatusActive {
		return domain.ReasonActivated, nil
	}
	if order.Status != domain.StatusPending {
		return "", fmt.Errorf("cannot promote work order in state %q", order.Status)
	}

	// Counters are re-read inside the critical section; a stale snapshot
	// here is exactly the interleaving the lock exists to prevent.
	client, err := s.repo.FindClientByID(ctx, order.ClientID)
	if err != nil {
		return "", err
	}

	if client.ActiveWorkOrders+1 > client.MaxActiveWorkOrders {
		return domain.ReasonCapacityExceeded, nil
	}
	if client.CreditCeiling-order.EstimatedBudget < s.maxAllowedOverdraft {
		return domain.ReasonCreditExceeded, nil
	}

	client.IncrementActive()
	client.Reserve(order.EstimatedBudget)
	if err := s.repo.UpdateClientUsage(ctx, client.ID, client.ActiveWorkOrders, client.CreditCeiling); err != nil {
		return "", fmt.Errorf("failed to persist client usage: %w", err)
	}
	if err := s.repo.UpdateWorkOrderStatus(ctx, order.ID, domain.StatusActive); err != nil {
		// Roll the reservation back so counters and orders stay consistent.
		client.DecrementActive()
		client.Release(order.EstimatedBudget)
		if revertErr := s.repo.UpdateClientUsage(ctx, client.ID, client.ActiveWorkOrders, client.CreditCeiling); revertErr != nil {
			log.Printf("level=error component=admission msg=\"usage revert failed after activation failure\" client_id=%s err=%v", client.ID, revertErr)
		}
		return "", fmt.Errorf("failed to activate work order: %w", err)
	}

	order.Status = domain.StatusActive
	return domain.ReasonActivated, nil
}

// FinishWorkOrder moves an active work order to the terminal finished state,
// frees its slot on the owner's active counter, and promotes at most one
// queued work order of the same client. A refused promotion leaves that
// candidate pending; it is not retried until the next finish or an explicit
// re-submission.
func (s *Service) FinishWorkOrder(ctx context.Context, orderID uuid.UUID) (*domain.WorkOrder, error) {
	order, err := s.repo.FindWorkOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockClient(order.ClientID)
	defer unlock()

	// Re-read inside the critical section; a concurrent finish may have
	// consumed this order between the lookup and the lock.
	order, err = s.repo.FindWorkOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusActive {
		return nil, ErrWorkOrderNotActive
	}

	client, err := s.repo.FindClientByID(ctx, order.ClientID)
	if err != nil {
		return nil, err
	}

	client.DecrementActive()
	if client.ActiveWorkOrders < 0 {
		log.Printf("level=error component=admission msg=\"active counter underflow corrected\" client_id=%s", client.ID)
		client.ActiveWorkOrders = 0
	}
	// Free the slot before marking the order finished. If the counter write
	// fails the order stays active and the finish can simply be retried.
	if err := s.repo.UpdateClientUsage(ctx, client.ID, client.ActiveWorkOrders, client.CreditCeiling); err != nil {
		return nil, fmt.Errorf("failed to persist client usage: %w", err)
	}

	if err := s.repo.UpdateWorkOrderStatus(ctx, order.ID, domain.StatusFinished); err != nil {
		client.IncrementActive()
		if revertErr := s.repo.UpdateClientUsage(ctx, client.ID, client.ActiveWorkOrders, client.CreditCeiling); revertErr != nil {
			log.Printf("level=error component=admission msg=\"usage revert failed after finish failure\" client_id=%s err=%v", client.ID, revertErr)
		}
		return nil, fmt.Errorf("failed to finish work order: %w", err)
	}
	order.Status = domain.StatusFinished

	log.Printf("level=info component=admission msg=\"work order finished\" work_order_id=%s client_id=%s active=%d", order.ID, client.ID, client.ActiveWorkOrders)
	s.publishWorkOrderEvent(ctx, order)

	s.promoteNextPending(ctx, client.ID)
	return order, nil
}

// promoteNextPending promotes the client's oldest pending work order, if
// any. Called with the client's lock held. A failed or refused promotion is
// logged and swallowed: the finish that triggered the cascade has already
// happened and is not reverted.
func (s *Service) promoteNextPending(ctx context.Context, clientID uuid.UUID) {
	next, err := s.repo.FindFirstPendingWorkOrder(ctx, clientID)
	if err != nil {
		if !errors.Is(err, store.ErrWorkOrderNotFound) {
			log.Printf("level=warn component=admission msg=\"pending lookup failed during cascade\" client_id=%s err=%v", clientID, err)
		}
		return
	}

	reason, err := s.promote(ctx, next)
	if err != nil {
		log.Printf("level=warn component=admission msg=\"cascade promotion failed\" work_order_id=%s client_id=%s err=%v", next.ID, clientID, err)
		return
	}
	next.StatusReason = reason
	log.Printf("level=info component=admission msg=\"cascade promotion evaluated\" work_order_id=%s client_id=%s status=%s reason=%s", next.ID, clientID, next.Status, reason)
	if next.Status == domain.StatusActive {
		s.publishWorkOrderEvent(ctx, next)
	}
}

// UpdateWorkOrder re-evaluates an existing, non-terminal work order with new
// data. An active order first gives back its slot and reservation, then the
// updated order re-enters admission as pending, so the checks run against
// the new budget. Finished orders are terminal and cannot be updated.
func (s *Service) UpdateWorkOrder(ctx context.Context, order *domain.WorkOrder) (*domain.WorkOrder, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindWorkOrderByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing.Status == domain.StatusFinished {
		return nil, ErrWorkOrderFinished
	}

	unlock := s.lockClient(existing.ClientID)
	defer unlock()

	// owner is non-nil only when a reservation was given back and may need
	// to be re-taken if the order write fails below.
	var owner *domain.Client
	originalBudget := existing.EstimatedBudget
	if existing.Status == domain.StatusActive {
		owner, err = s.repo.FindClientByID(ctx, existing.ClientID)
		if err != nil {
			return nil, err
		}
		owner.DecrementActive()
		owner.Release(originalBudget)
		if err := s.repo.UpdateClientUsage(ctx, owner.ID, owner.ActiveWorkOrders, owner.CreditCeiling); err != nil {
			return nil, fmt.Errorf("failed to persist client usage: %w", err)
		}
	}

	existing.Address = order.Address
	existing.Coordinates = order.Coordinates
	existing.EstimatedBudget = order.EstimatedBudget
	existing.Status = domain.StatusPending

	updated, err := s.repo.UpdateWorkOrder(ctx, existing)
	if err != nil {
		if owner != nil {
			owner.IncrementActive()
			owner.Reserve(originalBudget)
			if revertErr := s.repo.UpdateClientUsage(ctx, owner.ID, owner.ActiveWorkOrders, owner.CreditCeiling); revertErr != nil {
				log.Printf("level=error component=admission msg=\"usage revert failed after update failure\" client_id=%s err=%v", owner.ID, revertErr)
			}
		}
		return nil, err
	}

	reason, err := s.promote(ctx, updated)
	if err != nil {
		return nil, err
	}
	updated.StatusReason = reason

	log.Printf("level=info component=admission msg=\"work order re-evaluated\" work_order_id=%s client_id=%s status=%s reason=%s", updated.ID, updated.ClientID, updated.Status, reason)
	s.publishWorkOrderEvent(ctx, updated)
	return updated, nil
}

// GetWorkOrder retrieves a work order by id.
func (s *Service) GetWorkOrder(ctx context.Context, orderID uuid.UUID) (*domain.WorkOrder, error) {
	return s.repo.FindWorkOrderByID(ctx, orderID)
}

// ListWorkOrders returns work orders in submission order.
func (s *Service) ListWorkOrders(ctx context.Context, limit, offset int) ([]domain.WorkOrder, error) {
	return s.repo.ListWorkOrders(ctx, limit, offset)
}

// ListWorkOrdersByClient returns a client's work orders in submission order.
func (s *Service) ListWorkOrdersByClient(ctx context.Context, clientID uuid.UUID) ([]domain.WorkOrder, error) {
	return s.repo.ListWorkOrdersByClientID(ctx, clientID)
}

// DeleteWorkOrder removes a work order. Deleting an active order cancels its
// commitment: the slot and the reserved credit go back to the owner.
func (s *Service) DeleteWorkOrder(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.repo.FindWorkOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	unlock := s.lockClient(order.ClientID)
	defer unlock()

	if order.Status == domain.StatusActive {
		client, err := s.repo.FindClientByID(ctx, order.ClientID)
		if err != nil {
			return err
		}
		client.DecrementActive()
		client.Release(order.EstimatedBudget)
		if err := s.repo.UpdateClientUsage(ctx, client.ID, client.ActiveWorkOrders, client.CreditCeiling); err != nil {
			return fmt.Errorf("failed to persist client usage: %w", err)
		}
	}

	return s.repo.DeleteWorkOrder(ctx, orderID)
}
