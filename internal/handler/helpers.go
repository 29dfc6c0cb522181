package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/database"
)

var errNegativePrice = errors.New("negative price")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeInternalError(w http.ResponseWriter, what string, err error) {
	log.Printf("ERROR: %s: %v", what, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// money formats an amount with 2 decimal places.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errNegativePrice
	}
	return d, nil
}

// indexParam reads a non-negative integer URL parameter.
func indexParam(r *http.Request, name string) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// --- Shared response types ---

type dishResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	IsAvailable bool      `json:"is_available"`
	ImageURL    string    `json:"image_url"`
	ServingSize string    `json:"serving_size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toDishResponse(d database.Dish) dishResponse {
	return dishResponse{
		ID:          d.ID,
		Name:        d.Name,
		Price:       money(d.Price),
		Category:    d.Category,
		IsAvailable: d.IsAvailable,
		ImageURL:    d.ImageURL,
		ServingSize: d.ServingSize,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type orderItemResponse struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int32  `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Items         []orderItemResponse `json:"items"`
	ItemCount     int64               `json:"item_count"`
	Total         string              `json:"total"`
	Status        string              `json:"status"`
	CustomerID    string              `json:"customer_id,omitempty"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	DeliveredAt   *time.Time          `json:"delivered_at"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, it := range items {
		resp[i] = orderItemResponse{
			Name:     it.Name,
			Price:    money(it.Price),
			Quantity: it.Quantity,
			Subtotal: money(it.Subtotal()),
		}
	}
	return resp
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Items:         toOrderItemResponses(o.Items),
		ItemCount:     o.ItemCount(),
		Total:         money(o.Total),
		Status:        string(o.Status),
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type customerResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	FirstOrderDate time.Time `json:"first_order_date"`
	LastOrderDate  time.Time `json:"last_order_date"`
}

func toCustomerResponse(c database.Customer) customerResponse {
	return customerResponse{
		ID:             c.ID,
		Name:           c.Name,
		Phone:          c.Phone,
		FirstOrderDate: c.FirstOrderDate,
		LastOrderDate:  c.LastOrderDate,
	}
}

// RenderDishes is the JSON shape of a dish list, shared by the REST and
// WebSocket feeds.
func RenderDishes(dishes []database.Dish) any {
	resp := make([]dishResponse, len(dishes))
	for i, d := range dishes {
		resp[i] = toDishResponse(d)
	}
	return resp
}

// RenderOrders is the JSON shape of an order list.
func RenderOrders(orders []database.Order) any {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

// RenderCustomers is the JSON shape of a customer list.
func RenderCustomers(customers []database.Customer) any {
	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = toCustomerResponse(c)
	}
	return resp
}
