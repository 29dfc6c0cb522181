package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yourbite/pos-api/internal/database"
)

// CustomerStore defines the database methods needed by customer handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]database.Customer, error)
	GetCustomer(ctx context.Context, id string) (database.Customer, error)
}

// CustomerHandler serves the customer directory. Customers are only written
// by order submission, so the endpoints are read-only.
type CustomerHandler struct {
	store CustomerStore
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer endpoints on the given Chi router.
// Expected to be mounted at /customers.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// --- Helpers ---

// matchesCustomer reports whether the name contains q (case-insensitive) or
// the phone contains q.
func matchesCustomer(c database.Customer, q string) bool {
	return strings.Contains(strings.ToLower(c.Name), strings.ToLower(q)) ||
		strings.Contains(c.Phone, q)
}

// --- Handlers ---

// List returns customers, most recent order first, with optional ?search=.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.store.ListCustomers(r.Context())
	if err != nil {
		writeInternalError(w, "list customers", err)
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("search")); q != "" {
		filtered := customers[:0]
		for _, c := range customers {
			if matchesCustomer(c, q) {
				filtered = append(filtered, c)
			}
		}
		customers = filtered
	}

	writeJSON(w, http.StatusOK, RenderCustomers(customers))
}

// Get returns a single customer by ID.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	customer, err := h.store.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		writeInternalError(w, "get customer", err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}
