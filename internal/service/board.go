package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
	"github.com/yourbite/pos-api/internal/events"
	"golang.org/x/sync/errgroup"
)

// Errors returned by the order board.
var (
	ErrInvalidStatus        = errors.New("invalid status")
	ErrBackwardTransition   = errors.New("status can only move forward")
	ErrOrderDelivered       = errors.New("delivered orders cannot be changed")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrNoPendingOrders      = errors.New("no pending orders")
	ErrNoDraft              = errors.New("order is not being edited")
	ErrLineNotFound         = errors.New("line not found")
	ErrDishUnavailable      = errors.New("dish is not available")
)

const bulkConcurrency = 8

// BoardStore defines the DB methods needed by the order board.
// Satisfied by *database.Queries.
type BoardStore interface {
	ListOrders(ctx context.Context) ([]database.Order, error)
	WatchOrders(ctx context.Context) (<-chan []database.Order, error)
	GetOrder(ctx context.Context, id string) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderItems(ctx context.Context, arg database.UpdateOrderItemsParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// BoardOptions configures a Board.
type BoardOptions struct {
	// StrictStatusFlow rejects status changes that move an order backwards.
	StrictStatusFlow bool
}

// Board is the kitchen's live view of orders plus the operations that
// change them.
type Board struct {
	store  BoardStore
	events events.Publisher
	opts   BoardOptions
	now    func() time.Time

	mu       sync.RWMutex
	orders   []database.Order // newest first
	loaded   bool
	drafts   map[string]*Draft
	onChange []func([]database.Order)
}

func NewBoard(store BoardStore, pub events.Publisher, opts BoardOptions) *Board {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Board{
		store:  store,
		events: pub,
		opts:   opts,
		now:    time.Now,
		drafts: make(map[string]*Draft),
	}
}

// OnChange registers fn to receive every new order list, newest first.
// Must be called before Run.
func (b *Board) OnChange(fn func([]database.Order)) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

// Run keeps the read model in sync with the store until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	feed, err := b.store.WatchOrders(ctx)
	if err != nil {
		return fmt.Errorf("watch orders: %w", err)
	}
	for orders := range feed {
		sortNewestFirst(orders)
		b.mu.Lock()
		b.orders = orders
		b.loaded = true
		hooks := b.onChange
		b.mu.Unlock()
		for _, fn := range hooks {
			fn(orders)
		}
	}
	return ctx.Err()
}

func sortNewestFirst(orders []database.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// snapshot returns the current order list, loading it from the store when
// the watch has not delivered yet.
func (b *Board) snapshot(ctx context.Context) ([]database.Order, error) {
	b.mu.RLock()
	if b.loaded {
		out := make([]database.Order, len(b.orders))
		copy(out, b.orders)
		b.mu.RUnlock()
		return out, nil
	}
	b.mu.RUnlock()
	return b.store.ListOrders(ctx)
}

// Orders returns orders with the given status, newest first. An empty
// filter or "All" returns every order.
func (b *Board) Orders(ctx context.Context, filter string) ([]database.Order, error) {
	if filter != "" && filter != enum.StatusFilterAll && !database.OrderStatus(filter).Valid() {
		return nil, ErrInvalidStatus
	}
	orders, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" || filter == enum.StatusFilterAll {
		return orders, nil
	}
	out := make([]database.Order, 0, len(orders))
	for _, o := range orders {
		if string(o.Status) == filter {
			out = append(out, o)
		}
	}
	return out, nil
}

// Counts returns the number of orders per status, plus "All".
func (b *Board) Counts(ctx context.Context) (map[string]int, error) {
	orders, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{enum.StatusFilterAll: len(orders)}
	for _, s := range enum.OrderStatuses {
		counts[s] = 0
	}
	for _, o := range orders {
		counts[string(o.Status)]++
	}
	return counts, nil
}

// SetStatus moves an order to status. Delivered stamps deliveredAt.
// Setting the current status is a no-op.
func (b *Board) SetStatus(ctx context.Context, id string, status database.OrderStatus) (database.Order, error) {
	if !status.Valid() {
		return database.Order{}, ErrInvalidStatus
	}
	current, err := b.store.GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, err
	}
	if current.Status == status {
		return current, nil
	}
	if b.opts.StrictStatusFlow && status.Rank() < current.Status.Rank() {
		return database.Order{}, fmt.Errorf("%s -> %s: %w", current.Status, status, ErrBackwardTransition)
	}

	params := database.UpdateOrderStatusParams{ID: id, Status: status}
	if status == database.OrderStatusDelivered {
		now := b.now()
		params.DeliveredAt = &now
	}
	order, err := b.store.UpdateOrderStatus(ctx, params)
	if err != nil {
		return database.Order{}, fmt.Errorf("update status: %w", err)
	}
	b.publish(ctx, events.TypeOrderStatusChanged, order)
	return order, nil
}

// Cancel deletes an order. Delivered orders cannot be cancelled and the
// caller must confirm.
func (b *Board) Cancel(ctx context.Context, id string, confirmed bool) error {
	order, err := b.store.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.Status == database.OrderStatusDelivered {
		return ErrOrderDelivered
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := b.store.DeleteOrder(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	b.mu.Lock()
	delete(b.drafts, id)
	b.mu.Unlock()

	b.publish(ctx, events.TypeOrderCancelled, order)
	return nil
}

// BulkOutcome is the result of one order in a bulk update.
type BulkOutcome struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Error       string `json:"error,omitempty"`
}

// BulkResult reports every order touched by a bulk update.
type BulkResult struct {
	Outcomes  []BulkOutcome `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// MarkAllPendingDelivered moves every Pending order to Delivered. Writes run
// concurrently and independently: a failure is reported but does not undo
// the others.
func (b *Board) MarkAllPendingDelivered(ctx context.Context, confirmed bool) (*BulkResult, error) {
	pending, err := b.Orders(ctx, enum.OrderStatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNoPendingOrders
	}
	if !confirmed {
		return nil, ErrConfirmationRequired
	}

	outcomes := make([]BulkOutcome, len(pending))
	var g errgroup.Group
	g.SetLimit(bulkConcurrency)
	for i, o := range pending {
		i, o := i, o
		g.Go(func() error {
			outcomes[i] = BulkOutcome{OrderID: o.ID, OrderNumber: o.OrderNumber}
			if _, err := b.SetStatus(ctx, o.ID, database.OrderStatusDelivered); err != nil {
				log.Printf("ERROR: mark order %s delivered: %v", o.OrderNumber, err)
				outcomes[i].Error = err.Error()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	res := &BulkResult{Outcomes: outcomes}
	for _, oc := range outcomes {
		if oc.Error == "" {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func (b *Board) publish(ctx context.Context, typ string, o database.Order) {
	err := b.events.Publish(ctx, events.Event{
		Type:        typ,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Total:       o.Total.StringFixed(2),
		OccurredAt:  b.now(),
	})
	if err != nil {
		log.Printf("ERROR: publish %s for order %s: %v", typ, o.ID, err)
	}
}
