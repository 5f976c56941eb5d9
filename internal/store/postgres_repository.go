/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed for the client and work-order
 * catalogs, including the FIFO pending-order lookup the promotion cascade
 * relies on.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obraflow/workorder-service/internal/domain"
)

var (
	ErrClientNotFound       = errors.New("client not found")
	ErrWorkOrderNotFound    = errors.New("work order not found")
	ErrDuplicateClient      = errors.New("client with this national id and phone number already exists")
	ErrDuplicateCoordinates = errors.New("work order with these coordinates already exists")
)

// Unique constraint names from migrations/0001_init.sql, used to map
// 23505 violations to the right conflict error.
const (
	clientIdentityConstraint      = "clients_national_id_phone_number_key"
	workOrderCoordinateConstraint = "work_orders_coordinates_key"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case workOrderCoordinateConstraint:
			return ErrDuplicateCoordinates
		default:
			return ErrDuplicateClient
		}
	}
	return err
}

const clientColumns = `id, first_name, last_name, national_id, birth_date, street, street_number,
		phone_number, email, credit_ceiling, active_work_orders, max_active_work_orders, created_at, updated_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.NationalID, &c.BirthDate, &c.Street, &c.StreetNumber,
		&c.PhoneNumber, &c.Email, &c.CreditCeiling, &c.ActiveWorkOrders, &c.MaxActiveWorkOrders,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateClient inserts a new client row. A unique violation on the
// (national_id, phone_number) pair is surfaced as ErrDuplicateClient.
func (r *PostgresRepository) CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	query := `
		INSERT INTO clients (id, first_name, last_name, national_id, birth_date, street, street_number,
			phone_number, email, credit_ceiling, active_work_orders, max_active_work_orders)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + clientColumns
	row := r.db.QueryRow(ctx, query,
		client.ID, client.FirstName, client.LastName, client.NationalID, client.BirthDate,
		client.Street, client.StreetNumber, client.PhoneNumber, client.Email,
		client.CreditCeiling, client.ActiveWorkOrders, client.MaxActiveWorkOrders,
	)
	created, err := scanClient(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return created, nil
}

// FindClientByID retrieves a client from the database by their ID.
func (r *PostgresRepository) FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	return scanClient(r.db.QueryRow(ctx, query, clientID))
}

// FindClientByNationalID retrieves a client from the database by their national id.
func (r *PostgresRepository) FindClientByNationalID(ctx context.Context, nationalID int64) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE national_id = $1`
	return scanClient(r.db.QueryRow(ctx, query, nationalID))
}

// ListClients returns clients ordered by creation time. limit <= 0 means no limit.
func (r *PostgresRepository) ListClients(ctx context.Context, limit, offset int) ([]domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at, id OFFSET $1`
	args := []interface{}{offset}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// UpdateClient persists the client's descriptive fields. The admission
// counters are deliberately excluded; they change only through
// UpdateClientUsage.
func (r *PostgresRepository) UpdateClient(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	query := `
		UPDATE clients
		SET first_name = $2, last_name = $3, national_id = $4, birth_date = $5, street = $6,
			street_number = $7, phone_number = $8, email = $9, max_active_work_orders = $10,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + clientColumns
	row := r.db.QueryRow(ctx, query,
		client.ID, client.FirstName, client.LastName, client.NationalID, client.BirthDate,
		client.Street, client.StreetNumber, client.PhoneNumber, client.Email,
		client.MaxActiveWorkOrders,
	)
	updated, err := scanClient(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return updated, nil
}

// UpdateClientUsage persists the admission counters for a client.
func (r *PostgresRepository) UpdateClientUsage(ctx context.Context, clientID uuid.UUID, activeWorkOrders int, creditCeiling int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE clients SET active_work_orders = $2, credit_ceiling = $3, updated_at = now() WHERE id = $1`,
		clientID, activeWorkOrders, creditCeiling,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

// DeleteClient removes a client row by id.
func (r *PostgresRepository) DeleteClient(ctx context.Context, clientID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

const workOrderColumns = `id, client_id, address, coordinates, estimated_budget, status, created_at, updated_at`

func scanWorkOrder(row pgx.Row) (*domain.WorkOrder, error) {
	var w domain.WorkOrder
	err := row.Scan(
		&w.ID, &w.ClientID, &w.Address, &w.Coordinates, &w.EstimatedBudget, &w.Status,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWorkOrderNotFound
		}
		return nil, err
	}
	return &w, nil
}

// CreateWorkOrder inserts a new work order row. A unique violation on the
// coordinates column is surfaced as ErrDuplicateCoordinates.
func (r *PostgresRepository) CreateWorkOrder(ctx context.Context, order *domain.WorkOrder) (*domain.WorkOrder, error) {
	query := `
		INSERT INTO work_orders (id, client_id, address, coordinates, estimated_budget, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + workOrderColumns
	row := r.db.QueryRow(ctx, query,
		order.ID, order.ClientID, order.Address, order.Coordinates, order.EstimatedBudget, order.Status,
	)
	created, err := scanWorkOrder(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return created, nil
}

// FindWorkOrderByID retrieves a work order from the database by its ID.
func (r *PostgresRepository) FindWorkOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1`
	return scanWorkOrder(r.db.QueryRow(ctx, query, orderID))
}

// ListWorkOrders returns work orders ordered by creation time. limit <= 0 means no limit.
func (r *PostgresRepository) ListWorkOrders(ctx context.Context, limit, offset int) ([]domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders ORDER BY created_at, id OFFSET $1`
	args := []interface{}{offset}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.WorkOrder{}
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *w)
	}
	return orders, rows.Err()
}

// ListWorkOrdersByClientID returns all of a client's work orders in submission order.
func (r *PostgresRepository) ListWorkOrdersByClientID(ctx context.Context, clientID uuid.UUID) ([]domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE client_id = $1 ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.WorkOrder{}
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *w)
	}
	return orders, rows.Err()
}

// FindFirstPendingWorkOrder returns the client's oldest pending work order.
// The (created_at, id) ordering makes promotion selection a stable FIFO.
func (r *PostgresRepository) FindFirstPendingWorkOrder(ctx context.Context, clientID uuid.UUID) (*domain.WorkOrder, error) {
	query := `
		SELECT ` + workOrderColumns + `
		FROM work_orders
		WHERE client_id = $1 AND status = $2
		ORDER BY created_at, id
		LIMIT 1`
	return scanWorkOrder(r.db.QueryRow(ctx, query, clientID, domain.StatusPending))
}

// UpdateWorkOrder persists the work order's descriptive fields and status.
func (r *PostgresRepository) UpdateWorkOrder(ctx context.Context, order *domain.WorkOrder) (*domain.WorkOrder, error) {
	query := `
		UPDATE work_orders
		SET address = $2, coordinates = $3, estimated_budget = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + workOrderColumns
	row := r.db.QueryRow(ctx, query,
		order.ID, order.Address, order.Coordinates, order.EstimatedBudget, order.Status,
	)
	updated, err := scanWorkOrder(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return updated, nil
}

// UpdateWorkOrderStatus transitions a work order to the given lifecycle state.
func (r *PostgresRepository) UpdateWorkOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE work_orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkOrderNotFound
	}
	return nil
}

// DeleteWorkOrder removes a work order row by id.
func (r *PostgresRepository) DeleteWorkOrder(ctx context.Context, orderID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM work_orders WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkOrderNotFound
	}
	return nil
}
