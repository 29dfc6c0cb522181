package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yourbite/pos-api/internal/checkout"
	"github.com/yourbite/pos-api/internal/database"
)

// DishLookup resolves the dish a till adds to its cart.
// Satisfied by *database.Queries; narrow interface for testability.
type DishLookup interface {
	GetDish(ctx context.Context, id string) (database.Dish, error)
}

// CheckoutHandler exposes checkout sessions: one cart plus the customer
// capture step per till.
type CheckoutHandler struct {
	sessions  *checkout.Registry
	dishes    DishLookup
	submitter checkout.Submitter
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(sessions *checkout.Registry, dishes DishLookup, submitter checkout.Submitter) *CheckoutHandler {
	return &CheckoutHandler{sessions: sessions, dishes: dishes, submitter: submitter}
}

// RegisterRoutes registers checkout endpoints on the given Chi router.
// Expected to be mounted at /checkout/sessions.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{sid}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.SetCartOpen)
		r.Delete("/", h.Delete)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{index}", h.UpdateItem)
		r.Delete("/items/{index}", h.RemoveItem)
		r.Post("/place", h.Place)
		r.Put("/customer", h.SetCustomer)
		r.Post("/confirm", h.Confirm)
		r.Post("/cancel", h.Cancel)
	})
}

// --- Request / Response types ---

type addItemRequest struct {
	DishID string `json:"dish_id"`
}

type updateItemRequest struct {
	Quantity int32 `json:"quantity"`
}

type cartOpenRequest struct {
	CartOpen *bool `json:"cart_open"`
}

type customerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type cartLineResponse struct {
	DishID   string `json:"dish_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int32  `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

type sessionResponse struct {
	ID             string                `json:"id"`
	State          string                `json:"state"`
	CartOpen       bool                  `json:"cart_open"`
	Lines          []cartLineResponse    `json:"lines"`
	ItemCount      int64                 `json:"item_count"`
	Total          string                `json:"total"`
	Customer       checkout.CustomerInfo `json:"customer"`
	PendingOrderID string                `json:"pending_order_id,omitempty"`
	LastOrder      *orderResponse        `json:"last_order,omitempty"`
	LastError      string                `json:"last_error,omitempty"`
}

func toSessionResponse(v checkout.View) sessionResponse {
	resp := sessionResponse{
		ID:             v.ID,
		State:          string(v.State),
		CartOpen:       v.CartOpen,
		Lines:          make([]cartLineResponse, len(v.Lines)),
		Total:          money(v.Total),
		Customer:       v.Customer,
		PendingOrderID: v.PendingOrderID,
		LastError:      v.LastError,
	}
	for i, l := range v.Lines {
		resp.Lines[i] = cartLineResponse{
			DishID:   l.DishID,
			Name:     l.Name,
			Price:    money(l.Price),
			Quantity: l.Quantity,
			Subtotal: money(l.Subtotal()),
		}
		resp.ItemCount += int64(l.Quantity)
	}
	if v.LastOrder != nil {
		o := toOrderResponse(*v.LastOrder)
		resp.LastOrder = &o
	}
	return resp
}

// --- Helpers ---

func (h *CheckoutHandler) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	s, ok := h.sessions.Get(chi.URLParam(r, "sid"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "checkout session not found"})
		return nil, false
	}
	return s, true
}

// writeSessionResult maps session guard errors to a status code.
func writeSessionResult(w http.ResponseWriter, v checkout.View, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toSessionResponse(v))
	case errors.Is(err, checkout.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrDishUnavailable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrSubmitInProgress), errors.Is(err, checkout.ErrNotCapturing):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeInternalError(w, "checkout session "+v.ID, err)
	}
}

// --- Handlers ---

// Create opens a new session with an empty cart.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, toSessionResponse(s.View()))
}

// Get returns the current cart, capture fields and state.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s.View()))
}

// SetCartOpen shows or hides the cart panel.
func (h *CheckoutHandler) SetCartOpen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req cartOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CartOpen == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart_open is required"})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(s.SetCartOpen(*req.CartOpen)))
}

// Delete abandons the session and its cart.
func (h *CheckoutHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "sid")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "checkout session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds one unit of a catalog dish to the cart.
func (h *CheckoutHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DishID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dish_id is required"})
		return
	}

	dish, err := h.dishes.GetDish(r.Context(), req.DishID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeInternalError(w, "get dish", err)
		return
	}

	v, err := s.AddDish(dish)
	writeSessionResult(w, v, err)
}

// UpdateItem sets the quantity of a cart line. Quantities below 1 are rejected.
func (h *CheckoutHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, ok := indexParam(r, "index")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item index"})
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	v, err := s.UpdateQuantity(idx, req.Quantity)
	writeSessionResult(w, v, err)
}

// RemoveItem deletes a cart line.
func (h *CheckoutHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, ok := indexParam(r, "index")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item index"})
		return
	}

	v, err := s.RemoveLine(idx)
	writeSessionResult(w, v, err)
}

// Place opens customer capture for a non-empty cart.
func (h *CheckoutHandler) Place(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	v, err := s.PlaceOrder()
	writeSessionResult(w, v, err)
}

// SetCustomer fills the optional name and phone.
func (h *CheckoutHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	v, err := s.SetCustomer(checkout.CustomerInfo{Name: req.Name, Phone: req.Phone})
	writeSessionResult(w, v, err)
}

// Confirm submits the cart as an order. On failure the cart and customer
// fields stay in the session so the request can be retried.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	v, err := s.Confirm(r.Context(), h.submitter)
	if err != nil {
		writeSessionResult(w, v, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(v))
}

// Cancel leaves customer capture and returns to the cart.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	v, err := s.CancelCapture()
	writeSessionResult(w, v, err)
}
