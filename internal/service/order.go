package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/checkout"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
	"github.com/yourbite/pos-api/internal/events"
	"golang.org/x/sync/singleflight"
)

// Errors returned by the order service.
var (
	ErrEmptyItems      = errors.New("items are required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidPrice    = errors.New("price must be >= 0")
	ErrMissingName     = errors.New("item name is required")
	ErrMissingOrderID  = errors.New("order id is required")
)

// OrderStore defines the DB methods needed to submit orders.
// Satisfied by *database.Queries.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (database.Order, error)
	CreateNextOrder(ctx context.Context, arg database.CreateOrderParams, number func(latest string) string) (database.Order, bool, error)
	GetCustomerByPhone(ctx context.Context, phone string) (database.Customer, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	UpdateCustomerLastOrder(ctx context.Context, arg database.UpdateCustomerLastOrderParams) (database.Customer, error)
}

// SubmitRequest is the validated input for submitting an order.
// OrderID is the idempotency token: resubmitting the same ID returns the
// order already written under it.
type SubmitRequest struct {
	OrderID       string
	Lines         []SubmitLine
	CustomerName  string
	CustomerPhone string
}

// SubmitLine is one item snapshot in the order.
type SubmitLine struct {
	Name     string
	Price    decimal.Decimal
	Quantity int32
}

// SubmitResult is the persisted order and, when a phone was given, the
// customer record it was attributed to.
type SubmitResult struct {
	Order    database.Order
	Customer *database.Customer
	Replayed bool
}

// OrderService handles order business logic.
type OrderService struct {
	store    OrderStore
	events   events.Publisher
	now      func() time.Time
	inflight singleflight.Group // keyed by order ID
}

// NewOrderService creates a new OrderService. pub may be nil.
func NewOrderService(store OrderStore, pub events.Publisher) *OrderService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &OrderService{store: store, events: pub, now: time.Now}
}

// Submit validates the request, attributes it to a customer, allocates the
// next order number and writes the order under req.OrderID.
func (s *OrderService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	// --- Validate ---
	if req.OrderID == "" {
		return nil, ErrMissingOrderID
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyItems
	}
	items := make([]database.OrderItem, len(req.Lines))
	for i, l := range req.Lines {
		if strings.TrimSpace(l.Name) == "" {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMissingName)
		}
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if l.Price.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidPrice)
		}
		items[i] = database.OrderItem{Name: l.Name, Price: l.Price, Quantity: l.Quantity}
	}

	// Concurrent submissions of one order ID share a single attempt.
	executed := false
	v, err, _ := s.inflight.Do(req.OrderID, func() (any, error) {
		executed = true
		return s.submit(ctx, req, items)
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*SubmitResult)
	if !executed {
		res.Replayed = true
	}
	return &res, nil
}

func (s *OrderService) submit(ctx context.Context, req SubmitRequest, items []database.OrderItem) (*SubmitResult, error) {
	// --- Replay ---
	existing, err := s.store.GetOrder(ctx, req.OrderID)
	if err == nil {
		return &SubmitResult{Order: existing, Replayed: true}, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("check existing order: %w", err)
	}

	now := s.now()
	name := strings.TrimSpace(req.CustomerName)
	phone := strings.TrimSpace(req.CustomerPhone)

	// --- Customer upsert ---
	var customer *database.Customer
	if phone != "" {
		c, err := s.upsertCustomer(ctx, name, phone, now)
		if err != nil {
			return nil, err
		}
		customer = &c
		if name == "" {
			name = c.Name
		}
	}

	// --- Write ---
	params := database.CreateOrderParams{
		ID:            req.OrderID,
		Items:         items,
		Total:         database.SumItems(items),
		Status:        database.OrderStatusPending,
		CustomerName:  enum.WalkInCustomerName,
		CustomerPhone: enum.NoPhone,
	}
	if customer != nil {
		params.CustomerID = customer.ID
	}
	if name != "" {
		params.CustomerName = name
	}
	if phone != "" {
		params.CustomerPhone = phone
	}

	order, created, err := s.store.CreateNextOrder(ctx, params, NextOrderNumber)
	if err != nil {
		return nil, fmt.Errorf("write order: %w", err)
	}
	if !created {
		// Written by another process between the replay check and the insert.
		return &SubmitResult{Order: order, Replayed: true}, nil
	}

	s.publish(ctx, events.Event{
		Type:        events.TypeOrderPlaced,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Total:       order.Total.StringFixed(2),
		OccurredAt:  now,
	})

	return &SubmitResult{Order: order, Customer: customer}, nil
}

// SubmitCart adapts Submit to checkout sessions.
func (s *OrderService) SubmitCart(ctx context.Context, sub checkout.Submission) (database.Order, error) {
	lines := make([]SubmitLine, len(sub.Lines))
	for i, l := range sub.Lines {
		lines[i] = SubmitLine{Name: l.Name, Price: l.Price, Quantity: l.Quantity}
	}
	res, err := s.Submit(ctx, SubmitRequest{
		OrderID:       sub.OrderID,
		Lines:         lines,
		CustomerName:  sub.Customer.Name,
		CustomerPhone: sub.Customer.Phone,
	})
	if err != nil {
		return database.Order{}, err
	}
	return res.Order, nil
}

func (s *OrderService) upsertCustomer(ctx context.Context, name, phone string, now time.Time) (database.Customer, error) {
	existing, err := s.store.GetCustomerByPhone(ctx, phone)
	switch {
	case err == nil:
		c, err := s.store.UpdateCustomerLastOrder(ctx, database.UpdateCustomerLastOrderParams{
			ID:            existing.ID,
			Name:          name,
			LastOrderDate: now,
		})
		if err != nil {
			return database.Customer{}, fmt.Errorf("update customer: %w", err)
		}
		return c, nil
	case errors.Is(err, database.ErrNotFound):
		c, err := s.store.CreateCustomer(ctx, database.CreateCustomerParams{
			Name:      name,
			Phone:     phone,
			OrderDate: now,
		})
		if err != nil {
			return database.Customer{}, fmt.Errorf("create customer: %w", err)
		}
		return c, nil
	default:
		return database.Customer{}, fmt.Errorf("find customer: %w", err)
	}
}

// NextOrderNumber follows latest, the number of the most recent order:
// "#145" gives "#146"; none or an unparsable number gives "#101".
func NextOrderNumber(latest string) string {
	if latest == "" {
		return FormatOrderNumber(enum.OrderNumberFloor + 1)
	}
	return FormatOrderNumber(ParseOrderNumber(latest) + 1)
}

func (s *OrderService) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		log.Printf("ERROR: publish %s for order %s: %v", e.Type, e.OrderID, err)
	}
}

// ParseOrderNumber returns n for "#n", or 100 for anything unparsable.
func ParseOrderNumber(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), enum.OrderNumberPrefix), 10, 64)
	if err != nil || n <= 0 {
		return enum.OrderNumberFloor
	}
	return n
}

func FormatOrderNumber(n int64) string {
	return enum.OrderNumberPrefix + strconv.FormatInt(n, 10)
}
