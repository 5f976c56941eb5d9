/**
 * @description
 * This file defines the work order domain model and its lifecycle states.
 * A work order is a client-commissioned project with an estimated budget;
 * whether it may run is decided by the admission logic in internal/app.
 *
 * State machine: every submitted work order starts as `pending`. It becomes
 * `active` only when the owning client has both spare concurrency capacity
 * and enough credit, and `finished` is terminal.
 */

package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Work order lifecycle states.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Admission refusal reasons attached to work orders left in the pending state.
// They describe normal outcomes of the admission checks, not errors.
const (
	ReasonActivated        = "activated"
	ReasonCapacityExceeded = "capacity_exceeded"
	ReasonCreditExceeded   = "credit_exceeded"
)

// WorkOrder represents a client-commissioned project.
// This struct maps directly to the `work_orders` table in the database.
type WorkOrder struct {
	ID              uuid.UUID `json:"id"`
	ClientID        uuid.UUID `json:"client_id"`
	Address         string    `json:"address"`
	Coordinates     string    `json:"coordinates"` // "latitude,longitude", unique per order
	EstimatedBudget int64     `json:"estimated_budget"` // in centavos
	Status          string    `json:"status"`
	// StatusReason explains the latest admission decision; it is not persisted.
	StatusReason string    `json:"status_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LedgerEntry is one not-yet-settled order tracked for a client by the
// external order service. Read-only input to the balance oracle; never
// persisted here.
type LedgerEntry struct {
	ClientID uuid.UUID `json:"client_id"`
	Total    int64     `json:"total"` // in centavos
}

// coordinatesPattern accepts "latitude,longitude" with latitude in [-90,90]
// and longitude in [-180,180], decimals optional.
var coordinatesPattern = regexp.MustCompile(`^[+-]?([0-8]?\d(\.\d+)?|90(\.0+)?),[+-]?((\d?\d|1[0-7]\d)(\.\d+)?|180(\.0+)?)$`)

// Validate checks the work order's data shape. Admission (capacity and
// credit) is a separate concern and is not evaluated here.
func (w *WorkOrder) Validate() error {
	if err := ValidateCoordinates(w.Coordinates); err != nil {
		return err
	}
	if w.EstimatedBudget < 0 {
		return &ValidationError{Field: "estimated_budget", Reason: "must not be negative"}
	}
	return nil
}

// ValidateCoordinates enforces the "lat,long" range-checked format.
func ValidateCoordinates(coordinates string) error {
	if coordinates == "" {
		return &ValidationError{Field: "coordinates", Reason: "must not be empty"}
	}
	if !coordinatesPattern.MatchString(coordinates) {
		return &ValidationError{Field: "coordinates", Reason: "must be \"latitude,longitude\" with latitude in [-90,90] and longitude in [-180,180]"}
	}
	return nil
}
