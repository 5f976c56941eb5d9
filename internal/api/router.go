/**
 * @description
 * This file sets up the HTTP router for the work-order service. It defines
 * the API endpoints and associates them with their corresponding handlers.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the router for the work-order service.
func Routes(h *WorkOrderHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.CreateClientHandler)
		r.Get("/", h.ListClientsHandler)
		r.Get("/national-id/{nationalID}", h.GetClientByNationalIDHandler)
		r.Route("/{clientID}", func(r chi.Router) {
			r.Get("/", h.GetClientHandler)
			r.Put("/", h.UpdateClientHandler)
			r.Delete("/", h.DeleteClientHandler)
			r.Get("/credit-check", h.CheckCreditHandler)
			r.Get("/work-orders", h.ListClientWorkOrdersHandler)
		})
	})

	r.Route("/work-orders", func(r chi.Router) {
		r.Post("/", h.SubmitWorkOrderHandler)
		r.Get("/", h.ListWorkOrdersHandler)
		r.Route("/{workOrderID}", func(r chi.Router) {
			r.Get("/", h.GetWorkOrderHandler)
			r.Put("/", h.UpdateWorkOrderHandler)
			r.Delete("/", h.DeleteWorkOrderHandler)
			r.Post("/finish", h.FinishWorkOrderHandler)
		})
	})

	return r
}
