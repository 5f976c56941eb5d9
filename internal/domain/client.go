/**
 * @description
 * This file defines the client (account holder) domain model and its field
 * validation rules. A client commissions work orders; the credit ceiling and
 * the active work-order counters on this struct are the resource limits the
 * admission logic enforces.
 *
 * @notes
 * - Monetary amounts are stored as `int64` in centavos (the smallest currency
 *   unit), which avoids floating-point inaccuracies with financial data.
 * - The counters (`ActiveWorkOrders`, `CreditCeiling`) are mutated only by the
 *   admission code path in internal/app; handlers never touch them directly.
 */

package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Client represents an account holder who commissions work orders.
// This struct maps directly to the `clients` table in the database.
type Client struct {
	ID                  uuid.UUID `json:"id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	NationalID          int64     `json:"national_id"`
	BirthDate           time.Time `json:"birth_date"`
	Street              string    `json:"street"`
	StreetNumber        string    `json:"street_number"`
	PhoneNumber         string    `json:"phone_number"`
	Email               string    `json:"email"`
	CreditCeiling       int64     `json:"credit_ceiling"` // in centavos
	ActiveWorkOrders    int       `json:"active_work_orders"`
	MaxActiveWorkOrders int       `json:"max_active_work_orders"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ValidationError reports a malformed field on an incoming entity. The
// operation that triggered validation is aborted before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	emailPattern = regexp.MustCompile(`^[\w\-.]+@([\w-]+\.)+[\w-]{2,4}$`)
)

// Reserve commits part of the client's credit ceiling to a work order.
// Plain arithmetic; policy (whether the reservation is allowed) lives with
// the caller.
func (c *Client) Reserve(amount int64) {
	c.CreditCeiling -= amount
}

// Release returns previously reserved credit to the ceiling.
func (c *Client) Release(amount int64) {
	c.CreditCeiling += amount
}

// IncrementActive bumps the count of work orders in the active state.
func (c *Client) IncrementActive() {
	c.ActiveWorkOrders++
}

// DecrementActive lowers the count of work orders in the active state.
func (c *Client) DecrementActive() {
	c.ActiveWorkOrders--
}

// Validate checks every client field and returns a ValidationError naming the
// first malformed one. National IDs must carry at least nine digits, phone
// numbers exactly ten, email must match the address pattern, and the client
// must be an adult with a birth date in the past.
func (c *Client) Validate(now time.Time) error {
	if err := ValidateNationalID(c.NationalID); err != nil {
		return err
	}
	if err := ValidateBirthDate(c.BirthDate, now); err != nil {
		return err
	}
	if err := ValidatePhoneNumber(c.PhoneNumber); err != nil {
		return err
	}
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	if c.CreditCeiling < 0 {
		return &ValidationError{Field: "credit_ceiling", Reason: "must not be negative"}
	}
	if c.MaxActiveWorkOrders < 0 {
		return &ValidationError{Field: "max_active_work_orders", Reason: "must not be negative"}
	}
	return nil
}

// ValidateNationalID enforces the digit-count rule for national identity
// numbers.
func ValidateNationalID(nationalID int64) error {
	if nationalID <= 0 {
		return &ValidationError{Field: "national_id", Reason: "must be a positive number"}
	}
	if len(fmt.Sprintf("%d", nationalID)) <= 8 {
		return &ValidationError{Field: "national_id", Reason: "must have more than eight digits"}
	}
	return nil
}

// ValidateBirthDate rejects zero or future dates and clients under 18.
func ValidateBirthDate(birthDate time.Time, now time.Time) error {
	if birthDate.IsZero() {
		return &ValidationError{Field: "birth_date", Reason: "must not be empty"}
	}
	if birthDate.After(now) {
		return &ValidationError{Field: "birth_date", Reason: "must not be in the future"}
	}
	if birthDate.AddDate(18, 0, 0).After(now) {
		return &ValidationError{Field: "birth_date", Reason: "client must be at least 18 years old"}
	}
	return nil
}

// ValidatePhoneNumber enforces the ten-digit local phone format (area code
// without the leading 0, number without the mobile 15 prefix).
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return &ValidationError{Field: "phone_number", Reason: "must not be empty"}
	}
	if !phonePattern.MatchString(phone) {
		return &ValidationError{Field: "phone_number", Reason: "must be exactly ten digits"}
	}
	return nil
}

// ValidateEmail enforces the address pattern.
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "does not match the expected address format"}
	}
	return nil
}
