package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/events"
)

// Draft is an uncommitted copy of an order's items. Quantities may drop to
// zero while editing; those lines are dropped on save.
type Draft struct {
	OrderID     string
	OrderNumber string
	Items       []database.OrderItem
}

func (d *Draft) clone() Draft {
	items := make([]database.OrderItem, len(d.Items))
	copy(items, d.Items)
	return Draft{OrderID: d.OrderID, OrderNumber: d.OrderNumber, Items: items}
}

// SetQuantity sets line i to qty, clamped to >= 0.
func (d *Draft) SetQuantity(i int, qty int32) bool {
	if i < 0 || i >= len(d.Items) {
		return false
	}
	d.Items[i].Quantity = max(qty, 0)
	return true
}

func (d *Draft) RemoveLine(i int) bool {
	if i < 0 || i >= len(d.Items) {
		return false
	}
	d.Items = append(d.Items[:i], d.Items[i+1:]...)
	return true
}

// AddDish increments the line with the same name, or appends one.
func (d *Draft) AddDish(dish database.Dish) {
	for i := range d.Items {
		if d.Items[i].Name == dish.Name {
			d.Items[i].Quantity++
			return
		}
	}
	d.Items = append(d.Items, database.OrderItem{Name: dish.Name, Price: dish.Price, Quantity: 1})
}

func (d *Draft) Total() decimal.Decimal {
	return database.SumItems(d.Items)
}

// kept returns the lines with a positive quantity.
func (d *Draft) kept() []database.OrderItem {
	out := make([]database.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		if it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}

// BeginEdit opens a draft of the order's current items, replacing any
// draft already open for it.
func (b *Board) BeginEdit(ctx context.Context, id string) (Draft, error) {
	order, err := b.store.GetOrder(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if order.Status == database.OrderStatusDelivered {
		return Draft{}, ErrOrderDelivered
	}
	d := &Draft{OrderID: order.ID, OrderNumber: order.OrderNumber, Items: order.Items}
	d.Items = d.clone().Items

	b.mu.Lock()
	b.drafts[id] = d
	b.mu.Unlock()
	return d.clone(), nil
}

// Draft returns the open draft for an order.
func (b *Board) Draft(id string) (Draft, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.drafts[id]
	if !ok {
		return Draft{}, ErrNoDraft
	}
	return d.clone(), nil
}

func (b *Board) withDraft(id string, fn func(d *Draft) error) (Draft, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.drafts[id]
	if !ok {
		return Draft{}, ErrNoDraft
	}
	if err := fn(d); err != nil {
		return d.clone(), err
	}
	return d.clone(), nil
}

func (b *Board) SetDraftQuantity(id string, i int, qty int32) (Draft, error) {
	return b.withDraft(id, func(d *Draft) error {
		if !d.SetQuantity(i, qty) {
			return ErrLineNotFound
		}
		return nil
	})
}

func (b *Board) RemoveDraftLine(id string, i int) (Draft, error) {
	return b.withDraft(id, func(d *Draft) error {
		if !d.RemoveLine(i) {
			return ErrLineNotFound
		}
		return nil
	})
}

// AddDraftDish adds an available dish to the draft.
func (b *Board) AddDraftDish(id string, dish database.Dish) (Draft, error) {
	return b.withDraft(id, func(d *Draft) error {
		if !dish.IsAvailable {
			return ErrDishUnavailable
		}
		d.AddDish(dish)
		return nil
	})
}

// SaveEdit writes the draft's positive-quantity lines and recomputed total,
// then closes the draft. A draft with no positive lines is rejected and left
// open; the order is not touched.
func (b *Board) SaveEdit(ctx context.Context, id string) (database.Order, error) {
	b.mu.RLock()
	d, ok := b.drafts[id]
	var items []database.OrderItem
	if ok {
		items = d.kept()
	}
	b.mu.RUnlock()
	if !ok {
		return database.Order{}, ErrNoDraft
	}
	if len(items) == 0 {
		return database.Order{}, ErrEmptyItems
	}

	current, err := b.store.GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, err
	}
	if current.Status == database.OrderStatusDelivered {
		return database.Order{}, ErrOrderDelivered
	}

	order, err := b.store.UpdateOrderItems(ctx, database.UpdateOrderItemsParams{
		ID:    id,
		Items: items,
		Total: database.SumItems(items),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("save order items: %w", err)
	}

	b.mu.Lock()
	if b.drafts[id] == d {
		delete(b.drafts, id)
	}
	b.mu.Unlock()

	b.publish(ctx, events.TypeOrderEdited, order)
	return order, nil
}

// DiscardEdit closes the draft without writing.
func (b *Board) DiscardEdit(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.drafts[id]; !ok {
		return false
	}
	delete(b.drafts, id)
	return true
}
