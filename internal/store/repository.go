/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access the work-order service needs. Defining an interface
 * decouples the admission logic from the PostgreSQL implementation and lets
 * tests substitute deterministic stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Client catalog
	CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error)
	FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error)
	FindClientByNationalID(ctx context.Context, nationalID int64) (*domain.Client, error)
	ListClients(ctx context.Context, limit, offset int) ([]domain.Client, error)
	UpdateClient(ctx context.Context, client *domain.Client) (*domain.Client, error)
	// UpdateClientUsage persists the counters the admission path maintains
	// (active work orders, remaining credit ceiling). Only called from inside
	// the per-client critical section.
	UpdateClientUsage(ctx context.Context, clientID uuid.UUID, activeWorkOrders int, creditCeiling int64) error
	DeleteClient(ctx context.Context, clientID uuid.UUID) error

	// Work order catalog
	CreateWorkOrder(ctx context.Context, order *domain.WorkOrder) (*domain.WorkOrder, error)
	FindWorkOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.WorkOrder, error)
	ListWorkOrders(ctx context.Context, limit, offset int) ([]domain.WorkOrder, error)
	ListWorkOrdersByClientID(ctx context.Context, clientID uuid.UUID) ([]domain.WorkOrder, error)
	// FindFirstPendingWorkOrder returns the client's oldest pending work
	// order by (created_at, id), or ErrWorkOrderNotFound when none is queued.
	FindFirstPendingWorkOrder(ctx context.Context, clientID uuid.UUID) (*domain.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, order *domain.WorkOrder) (*domain.WorkOrder, error)
	UpdateWorkOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error
	DeleteWorkOrder(ctx context.Context, orderID uuid.UUID) error
}
