package database

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/enum"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = enum.OrderStatusPending
	OrderStatusPreparing OrderStatus = enum.OrderStatusPreparing
	OrderStatusReady     OrderStatus = enum.OrderStatusReady
	OrderStatusDelivered OrderStatus = enum.OrderStatusDelivered
)

// Valid reports whether s is one of the four order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered:
		return true
	}
	return false
}

// Rank is the position of s in the kitchen flow, or -1 if s is unknown.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusPreparing:
		return 1
	case OrderStatusReady:
		return 2
	case OrderStatusDelivered:
		return 3
	}
	return -1
}

type Dish struct {
	ID          string          `json:"-"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	IsAvailable bool            `json:"isAvailable"`
	ImageURL    string          `json:"imageUrl"`
	ServingSize string          `json:"servingSize"`
	CreatedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`
}

// OrderItem is a snapshot of a dish taken when the order was written.
type OrderItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
}

// Subtotal is price × quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt32(i.Quantity))
}

type Order struct {
	ID            string          `json:"-"`
	OrderNumber   string          `json:"orderNumber"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CustomerID    string          `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	CustomerPhone string          `json:"customerPhone"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt     time.Time       `json:"-"`
	UpdatedAt     time.Time       `json:"-"`
}

// ItemCount is the total quantity across all items.
func (o Order) ItemCount() int64 {
	var n int64
	for _, it := range o.Items {
		n += int64(it.Quantity)
	}
	return n
}

type Customer struct {
	ID             string    `json:"-"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	FirstOrderDate time.Time `json:"firstOrderDate"`
	LastOrderDate  time.Time `json:"lastOrderDate"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// SumItems is Σ price × quantity over items.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
