package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/service"
)

// idempotencyNamespace scopes order IDs derived from Idempotency-Key headers.
var idempotencyNamespace = uuid.MustParse("6f1c1a52-3b7e-4f0e-9a43-2d5c8e0b7a11")

// OrderSubmitter defines the service methods needed to place orders.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderSubmitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
}

// OrderBoard defines the board methods needed by order handlers.
// Satisfied by *service.Board; narrow interface for testability.
type OrderBoard interface {
	Orders(ctx context.Context, filter string) ([]database.Order, error)
	Counts(ctx context.Context) (map[string]int, error)
	SetStatus(ctx context.Context, id string, status database.OrderStatus) (database.Order, error)
	Cancel(ctx context.Context, id string, confirmed bool) error
	MarkAllPendingDelivered(ctx context.Context, confirmed bool) (*service.BulkResult, error)
	BeginEdit(ctx context.Context, id string) (service.Draft, error)
	Draft(id string) (service.Draft, error)
	SetDraftQuantity(id string, i int, qty int32) (service.Draft, error)
	RemoveDraftLine(id string, i int) (service.Draft, error)
	AddDraftDish(id string, dish database.Dish) (service.Draft, error)
	SaveEdit(ctx context.Context, id string) (database.Order, error)
	DiscardEdit(id string) bool
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (database.Order, error)
	GetDish(ctx context.Context, id string) (database.Dish, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderSubmitter
	board OrderBoard
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderSubmitter, board OrderBoard, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, board: board, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/counts", h.Counts)
	r.Post("/deliver-pending", h.DeliverPending)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)

	r.Route("/{id}/edit", func(r chi.Router) {
		r.Post("/", h.BeginEdit)
		r.Get("/", h.GetDraft)
		r.Delete("/", h.DiscardEdit)
		r.Post("/items", h.AddDraftItem)
		r.Patch("/items/{index}", h.UpdateDraftItem)
		r.Delete("/items/{index}", h.RemoveDraftItem)
		r.Post("/save", h.SaveEdit)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items         []createOrderItemRequest `json:"items"`
	CustomerName  string                   `json:"customer_name"`
	CustomerPhone string                   `json:"customer_phone"`
}

// createOrderItemRequest names either a catalog dish, whose current name and
// price are snapshotted, or an explicit name and price.
type createOrderItemRequest struct {
	DishID   string `json:"dish_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int32  `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type draftItemRequest struct {
	Quantity int32 `json:"quantity"`
}

type createOrderResponse struct {
	Order    orderResponse     `json:"order"`
	Customer *customerResponse `json:"customer,omitempty"`
	Replayed bool              `json:"replayed"`
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Counts map[string]int  `json:"counts"`
}

type draftResponse struct {
	OrderID     string              `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	Items       []orderItemResponse `json:"items"`
	Total       string              `json:"total"`
}

func toDraftResponse(d service.Draft) draftResponse {
	return draftResponse{
		OrderID:     d.OrderID,
		OrderNumber: d.OrderNumber,
		Items:       toOrderItemResponses(d.Items),
		Total:       money(d.Total()),
	}
}

// --- Helpers ---

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrMissingName) ||
		errors.Is(err, service.ErrMissingOrderID) ||
		errors.Is(err, service.ErrInvalidStatus)
}

// isConflictError reports board errors caused by the order's current state.
func isConflictError(err error) bool {
	return errors.Is(err, service.ErrOrderDelivered) ||
		errors.Is(err, service.ErrBackwardTransition) ||
		errors.Is(err, service.ErrConfirmationRequired) ||
		errors.Is(err, service.ErrNoPendingOrders)
}

// writeBoardError maps service and store errors to a response.
func writeBoardError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrNoDraft), errors.Is(err, service.ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrDishUnavailable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isConflictError(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeInternalError(w, what, err)
	}
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// orderIDFor derives a stable order ID from the Idempotency-Key header so a
// retried request lands on the same document.
func orderIDFor(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(key)).String()
}

// resolveItem turns a request line into a snapshot. The returned message is
// non-empty for a 400 response; dishErr carries lookup failures.
func (h *OrderHandler) resolveItem(ctx context.Context, idx int, it createOrderItemRequest) (service.SubmitLine, string, error) {
	line := service.SubmitLine{Name: strings.TrimSpace(it.Name), Quantity: it.Quantity}

	if it.DishID != "" {
		dish, err := h.store.GetDish(ctx, it.DishID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return line, formatItemError(idx, "dish not found"), nil
			}
			return line, "", err
		}
		if !dish.IsAvailable {
			return line, "", service.ErrDishUnavailable
		}
		line.Name = dish.Name
		line.Price = dish.Price
		return line, "", nil
	}

	if it.Price == "" {
		return line, formatItemError(idx, "price is required"), nil
	}
	price, err := parsePrice(it.Price)
	if err != nil {
		if errors.Is(err, errNegativePrice) {
			return line, formatItemError(idx, "price must be >= 0"), nil
		}
		return line, formatItemError(idx, "invalid price"), nil
	}
	line.Price = price
	return line, "", nil
}

// --- Handlers ---

// Create handles POST /orders. A repeated Idempotency-Key returns the order
// already written for it with 200 instead of 201.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": service.ErrEmptyItems.Error()})
		return
	}

	lines := make([]service.SubmitLine, len(req.Items))
	for i, it := range req.Items {
		line, msg, err := h.resolveItem(r.Context(), i, it)
		if err != nil {
			writeBoardError(w, "resolve order item", err)
			return
		}
		if msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
			return
		}
		lines[i] = line
	}

	result, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		OrderID:       orderIDFor(r),
		Lines:         lines,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeInternalError(w, "create order", err)
		return
	}

	resp := createOrderResponse{Order: toOrderResponse(result.Order), Replayed: result.Replayed}
	if result.Customer != nil {
		c := toCustomerResponse(*result.Customer)
		resp.Customer = &c
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// List handles GET /orders?status=, newest first, with per-status counts.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.board.Orders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeBoardError(w, "list orders", err)
		return
	}

	counts, err := h.board.Counts(r.Context())
	if err != nil {
		writeInternalError(w, "count orders", err)
		return
	}

	resp := listOrdersResponse{Orders: make([]orderResponse, len(orders)), Counts: counts}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Counts handles GET /orders/counts.
func (h *OrderHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.board.Counts(r.Context())
	if err != nil {
		writeInternalError(w, "count orders", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBoardError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.board.SetStatus(r.Context(), chi.URLParam(r, "id"), database.OrderStatus(req.Status))
	if err != nil {
		writeBoardError(w, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles DELETE /orders/{id}?confirm=true. The order is removed.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Cancel(r.Context(), chi.URLParam(r, "id"), confirmed(r)); err != nil {
		writeBoardError(w, "cancel order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeliverPending handles POST /orders/deliver-pending?confirm=true. When some
// writes fail the response is 207 with every outcome.
func (h *OrderHandler) DeliverPending(w http.ResponseWriter, r *http.Request) {
	res, err := h.board.MarkAllPendingDelivered(r.Context(), confirmed(r))
	if err != nil {
		writeBoardError(w, "deliver pending orders", err)
		return
	}

	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

// BeginEdit handles POST /orders/{id}/edit.
func (h *OrderHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	d, err := h.board.BeginEdit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBoardError(w, "begin order edit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDraftResponse(d))
}

// GetDraft handles GET /orders/{id}/edit.
func (h *OrderHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.board.Draft(chi.URLParam(r, "id"))
	if err != nil {
		writeBoardError(w, "get order draft", err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftResponse(d))
}

// DiscardEdit handles DELETE /orders/{id}/edit.
func (h *OrderHandler) DiscardEdit(w http.ResponseWriter, r *http.Request) {
	if !h.board.DiscardEdit(chi.URLParam(r, "id")) {
		writeBoardError(w, "discard order edit", service.ErrNoDraft)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDraftItem handles POST /orders/{id}/edit/items.
func (h *OrderHandler) AddDraftItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DishID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dish_id is required"})
		return
	}

	dish, err := h.store.GetDish(r.Context(), req.DishID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		writeInternalError(w, "get dish", err)
		return
	}

	d, err := h.board.AddDraftDish(chi.URLParam(r, "id"), dish)
	if err != nil {
		writeBoardError(w, "add draft item", err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftResponse(d))
}

// UpdateDraftItem handles PATCH /orders/{id}/edit/items/{index}. Negative
// quantities are clamped to zero.
func (h *OrderHandler) UpdateDraftItem(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(r, "index")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item index"})
		return
	}

	var req draftItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	d, err := h.board.SetDraftQuantity(chi.URLParam(r, "id"), idx, req.Quantity)
	if err != nil {
		writeBoardError(w, "update draft item", err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftResponse(d))
}

// RemoveDraftItem handles DELETE /orders/{id}/edit/items/{index}.
func (h *OrderHandler) RemoveDraftItem(w http.ResponseWriter, r *http.Request) {
	idx, ok := indexParam(r, "index")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item index"})
		return
	}

	d, err := h.board.RemoveDraftLine(chi.URLParam(r, "id"), idx)
	if err != nil {
		writeBoardError(w, "remove draft item", err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftResponse(d))
}

// SaveEdit handles POST /orders/{id}/edit/save.
func (h *OrderHandler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	order, err := h.board.SaveEdit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBoardError(w, "save order edit", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
