/**
 * @description
 * This file contains the HTTP handlers for the work-order service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/obraflow/workorder-service/internal/app"
	"github.com/obraflow/workorder-service/internal/domain"
	"github.com/obraflow/workorder-service/internal/store"
)

// WorkOrderHandlers holds the application service that handlers will use.
type WorkOrderHandlers struct {
	service *app.Service
}

// NewWorkOrderHandlers creates a new instance of WorkOrderHandlers.
func NewWorkOrderHandlers(service *app.Service) *WorkOrderHandlers {
	return &WorkOrderHandlers{service: service}
}

// clientPayload is the DTO for creating or updating a client. The birth date
// travels as "YYYY-MM-DD"; monetary amounts are centavos.
type clientPayload struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	NationalID          int64  `json:"national_id"`
	BirthDate           string `json:"birth_date"`
	Street              string `json:"street"`
	StreetNumber        string `json:"street_number"`
	PhoneNumber         string `json:"phone_number"`
	Email               string `json:"email"`
	CreditCeiling       int64  `json:"credit_ceiling"`
	MaxActiveWorkOrders int    `json:"max_active_work_orders"`
}

func (p *clientPayload) toDomain() (*domain.Client, error) {
	birthDate, err := time.Parse("2006-01-02", p.BirthDate)
	if err != nil {
		return nil, &domain.ValidationError{Field: "birth_date", Reason: "must be a date in YYYY-MM-DD format"}
	}
	return &domain.Client{
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		NationalID:          p.NationalID,
		BirthDate:           birthDate,
		Street:              p.Street,
		StreetNumber:        p.StreetNumber,
		PhoneNumber:         p.PhoneNumber,
		Email:               p.Email,
		CreditCeiling:       p.CreditCeiling,
		MaxActiveWorkOrders: p.MaxActiveWorkOrders,
	}, nil
}

// workOrderPayload is the DTO for submitting or re-evaluating a work order.
type workOrderPayload struct {
	ClientID        string `json:"client_id"`
	Address         string `json:"address"`
	Coordinates     string `json:"coordinates"`
	EstimatedBudget int64  `json:"estimated_budget"`
}

// creditCheckResponse is returned by the credit-check endpoint.
type creditCheckResponse struct {
	ClientID   string `json:"client_id"`
	Amount     int64  `json:"amount"`
	Sufficient bool   `json:"sufficient"`
}

// CreateClientHandler handles requests to register a new client.
func (h *WorkOrderHandlers) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var payload clientPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	client, err := payload.toDomain()
	if err != nil {
		h.handleServiceError(w, err, "create_client")
		return
	}

	created, err := h.service.CreateClient(r.Context(), client)
	if err != nil {
		h.handleServiceError(w, err, "create_client")
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// ListClientsHandler returns clients in creation order with optional
// limit/offset pagination.
func (h *WorkOrderHandlers) ListClientsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.parsePagination(w, r)
	if !ok {
		return
	}

	clients, err := h.service.ListClients(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(w, err, "list_clients")
		return
	}
	h.writeJSON(w, http.StatusOK, clients)
}

// GetClientHandler returns a single client by id.
func (h *WorkOrderHandlers) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.parseUUIDParam(w, r, "clientID")
	if !ok {
		return
	}

	client, err := h.service.GetClient(r.Context(), clientID)
	if err != nil {
		h.handleServiceError(w, err, "get_client")
		return
	}
	h.writeJSON(w, http.StatusOK, client)
}

// GetClientByNationalIDHandler returns a single client by national id.
func (h *WorkOrderHandlers) GetClientByNationalIDHandler(w http.ResponseWriter, r *http.Request) {
	nationalID, err := strconv.ParseInt(chi.URLParam(r, "nationalID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid national id")
		return
	}

	client, err := h.service.GetClientByNationalID(r.Context(), nationalID)
	if err != nil {
		h.handleServiceError(w, err, "get_client_by_national_id")
		return
	}
	h.writeJSON(w, http.StatusOK, client)
}

// UpdateClientHandler updates a client's descriptive fields.
func (h *WorkOrderHandlers) UpdateClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.parseUUIDParam(w, r, "clientID")
	if !ok {
		return
	}

	var payload clientPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	client, err := payload.toDomain()
	if err != nil {
		h.handleServiceError(w, err, "update_client")
		return
	}
	client.ID = clientID

	updated, err := h.service.UpdateClient(r.Context(), client)
	if err != nil {
		h.handleServiceError(w, err, "update_client")
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteClientHandler removes a client.
func (h *WorkOrderHandlers) DeleteClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.parseUUIDParam(w, r, "clientID")
	if !ok {
		return
	}

	if err := h.service.DeleteClient(r.Context(), clientID); err != nil {
		h.handleServiceError(w, err, "delete_client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckCreditHandler reports whether a client could commit the given amount,
// combining the local ceiling with the external order ledger.
func (h *WorkOrderHandlers) CheckCreditHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.parseUUIDParam(w, r, "clientID")
	if !ok {
		return
	}

	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount < 0 {
		h.writeError(w, http.StatusBadRequest, "Query parameter amount must be a non-negative integer in centavos")
		return
	}

	sufficient, err := h.service.CheckCredit(r.Context(), clientID, amount)
	if err != nil {
		h.handleServiceError(w, err, "credit_check")
		return
	}
	h.writeJSON(w, http.StatusOK, creditCheckResponse{
		ClientID:   clientID.String(),
		Amount:     amount,
		Sufficient: sufficient,
	})
}

// ListClientWorkOrdersHandler returns a client's work orders in submission order.
func (h *WorkOrderHandlers) ListClientWorkOrdersHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.parseUUIDParam(w, r, "clientID")
	if !ok {
		return
	}

	orders, err := h.service.ListWorkOrdersByClient(r.Context(), clientID)
	if err != nil {
		h.handleServiceError(w, err, "list_client_work_orders")
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// SubmitWorkOrderHandler handles requests to submit a new work order. A work
// order refused on capacity or credit is still created; the response carries
// status "pending" and the refusal reason.
func (h *WorkOrderHandlers) SubmitWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload workOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	clientID, err := uuid.Parse(payload.ClientID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid client id")
		return
	}

	order := &domain.WorkOrder{
		ClientID:        clientID,
		Address:         payload.Address,
		Coordinates:     payload.Coordinates,
		EstimatedBudget: payload.EstimatedBudget,
	}

	created, err := h.service.SubmitWorkOrder(r.Context(), order)
	if err != nil {
		h.handleServiceError(w, err, "submit_work_order")
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// ListWorkOrdersHandler returns work orders in submission order.
func (h *WorkOrderHandlers) ListWorkOrdersHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.parsePagination(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListWorkOrders(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(w, err, "list_work_orders")
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetWorkOrderHandler returns a single work order by id.
func (h *WorkOrderHandlers) GetWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.parseUUIDParam(w, r, "workOrderID")
	if !ok {
		return
	}

	order, err := h.service.GetWorkOrder(r.Context(), orderID)
	if err != nil {
		h.handleServiceError(w, err, "get_work_order")
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// UpdateWorkOrderHandler re-evaluates an existing work order with new data.
func (h *WorkOrderHandlers) UpdateWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.parseUUIDParam(w, r, "workOrderID")
	if !ok {
		return
	}

	var payload workOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	order := &domain.WorkOrder{
		ID:              orderID,
		Address:         payload.Address,
		Coordinates:     payload.Coordinates,
		EstimatedBudget: payload.EstimatedBudget,
	}

	updated, err := h.service.UpdateWorkOrder(r.Context(), order)
	if err != nil {
		h.handleServiceError(w, err, "update_work_order")
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteWorkOrderHandler removes a work order.
func (h *WorkOrderHandlers) DeleteWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.parseUUIDParam(w, r, "workOrderID")
	if !ok {
		return
	}

	if err := h.service.DeleteWorkOrder(r.Context(), orderID); err != nil {
		h.handleServiceError(w, err, "delete_work_order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FinishWorkOrderHandler moves an active work order to its terminal state
// and triggers the promotion cascade for the owner's queue.
func (h *WorkOrderHandlers) FinishWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.parseUUIDParam(w, r, "workOrderID")
	if !ok {
		return
	}

	finished, err := h.service.FinishWorkOrder(r.Context(), orderID)
	if err != nil {
		h.handleServiceError(w, err, "finish_work_order")
		return
	}
	h.writeJSON(w, http.StatusOK, finished)
}

func (h *WorkOrderHandlers) parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func (h *WorkOrderHandlers) parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return 0, 0, false
		}
		limit = parsed
	}
	if raw := q.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid offset")
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}

// handleServiceError maps service and store errors to HTTP statuses.
// Validation problems report the failing field; capacity and credit
// refusals never land here because they are not errors.
func (h *WorkOrderHandlers) handleServiceError(w http.ResponseWriter, err error, endpoint string) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.Is(err, store.ErrClientNotFound), errors.Is(err, store.ErrWorkOrderNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateClient), errors.Is(err, store.ErrDuplicateCoordinates):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrWorkOrderNotActive), errors.Is(err, app.ErrWorkOrderFinished):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"request failed\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *WorkOrderHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WorkOrderHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
