package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/docstore"
)

func decodeOrder(doc docstore.Document) (Order, error) {
	var o Order
	if err := doc.Decode(&o); err != nil {
		return Order{}, err
	}
	o.ID = doc.ID
	o.CreatedAt = doc.CreatedAt
	o.UpdatedAt = doc.UpdatedAt
	return o, nil
}

func decodeOrders(docs []docstore.Document) ([]Order, error) {
	orders := make([]Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decodeOrder(doc)
		if err != nil {
			return nil, fmt.Errorf("decode order %s: %w", doc.ID, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (q *Queries) GetOrder(ctx context.Context, id string) (Order, error) {
	doc, err := q.db.Get(ctx, CollectionOrders, id)
	if err != nil {
		return Order{}, err
	}
	return decodeOrder(doc)
}

// ListOrders returns all orders, newest first.
func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	docs, err := q.db.List(ctx, CollectionOrders, docstore.ListOptions{Descending: true})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return decodeOrders(docs)
}

type CreateOrderParams struct {
	ID            string
	Items         []OrderItem
	Total         decimal.Decimal
	Status        OrderStatus
	CustomerID    string
	CustomerName  string
	CustomerPhone string
}

// CreateNextOrder writes a new order under arg.ID. number maps the order
// number of the most recently created order ("" when there is none) to the
// new one; the read and the insert are one store operation, so concurrent
// callers never see the same latest order. If an order already exists under
// arg.ID it is returned unchanged with created false.
func (q *Queries) CreateNextOrder(ctx context.Context, arg CreateOrderParams, number func(latest string) string) (Order, bool, error) {
	created, err := q.db.CreateAfter(ctx, CollectionOrders, arg.ID, func(latest *docstore.Document) (any, error) {
		prev := ""
		if latest != nil {
			// An undecodable latest order numbers like an empty collection.
			if o, err := decodeOrder(*latest); err == nil {
				prev = o.OrderNumber
			}
		}
		return Order{
			OrderNumber:   number(prev),
			Items:         arg.Items,
			Total:         arg.Total,
			Status:        arg.Status,
			CustomerID:    arg.CustomerID,
			CustomerName:  arg.CustomerName,
			CustomerPhone: arg.CustomerPhone,
		}, nil
	})
	if err != nil {
		return Order{}, false, fmt.Errorf("write order: %w", err)
	}
	o, err := q.GetOrder(ctx, arg.ID)
	if err != nil {
		return Order{}, false, err
	}
	return o, created, nil
}

type UpdateOrderStatusParams struct {
	ID          string
	Status      OrderStatus
	DeliveredAt *time.Time
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	fields := map[string]any{"status": arg.Status}
	if arg.DeliveredAt != nil {
		fields["deliveredAt"] = arg.DeliveredAt
	}
	if err := q.db.Update(ctx, CollectionOrders, arg.ID, fields); err != nil {
		return Order{}, err
	}
	return q.GetOrder(ctx, arg.ID)
}

type UpdateOrderItemsParams struct {
	ID    string
	Items []OrderItem
	Total decimal.Decimal
}

func (q *Queries) UpdateOrderItems(ctx context.Context, arg UpdateOrderItemsParams) (Order, error) {
	fields := map[string]any{"items": arg.Items, "total": arg.Total}
	if err := q.db.Update(ctx, CollectionOrders, arg.ID, fields); err != nil {
		return Order{}, err
	}
	return q.GetOrder(ctx, arg.ID)
}

func (q *Queries) DeleteOrder(ctx context.Context, id string) error {
	return q.db.Delete(ctx, CollectionOrders, id)
}

// WatchOrders streams all orders, oldest first, on every change.
func (q *Queries) WatchOrders(ctx context.Context) (<-chan []Order, error) {
	return watchTyped(ctx, q.db, CollectionOrders, decodeOrder)
}
