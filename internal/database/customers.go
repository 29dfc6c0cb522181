package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yourbite/pos-api/internal/docstore"
)

func decodeCustomer(doc docstore.Document) (Customer, error) {
	var c Customer
	if err := doc.Decode(&c); err != nil {
		return Customer{}, err
	}
	c.ID = doc.ID
	c.CreatedAt = doc.CreatedAt
	c.UpdatedAt = doc.UpdatedAt
	return c, nil
}

func (q *Queries) GetCustomer(ctx context.Context, id string) (Customer, error) {
	doc, err := q.db.Get(ctx, CollectionCustomers, id)
	if err != nil {
		return Customer{}, err
	}
	return decodeCustomer(doc)
}

// GetCustomerByPhone returns the oldest customer with the given phone.
func (q *Queries) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	docs, err := q.db.Query(ctx, CollectionCustomers, "phone", phone)
	if err != nil {
		return Customer{}, fmt.Errorf("find customer by phone: %w", err)
	}
	if len(docs) == 0 {
		return Customer{}, ErrNotFound
	}
	return decodeCustomer(docs[0])
}

type CreateCustomerParams struct {
	Name      string
	Phone     string
	OrderDate time.Time
}

// CreateCustomer records a first-time customer. First and last order dates
// both start at OrderDate.
func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	id, err := q.db.Create(ctx, CollectionCustomers, Customer{
		Name:           arg.Name,
		Phone:          arg.Phone,
		FirstOrderDate: arg.OrderDate,
		LastOrderDate:  arg.OrderDate,
	})
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return q.GetCustomer(ctx, id)
}

type UpdateCustomerLastOrderParams struct {
	ID            string
	Name          string // kept unchanged when empty
	LastOrderDate time.Time
}

func (q *Queries) UpdateCustomerLastOrder(ctx context.Context, arg UpdateCustomerLastOrderParams) (Customer, error) {
	fields := map[string]any{"lastOrderDate": arg.LastOrderDate}
	if arg.Name != "" {
		fields["name"] = arg.Name
	}
	if err := q.db.Update(ctx, CollectionCustomers, arg.ID, fields); err != nil {
		return Customer{}, err
	}
	return q.GetCustomer(ctx, arg.ID)
}

// ListCustomers returns all customers, most recent order first.
func (q *Queries) ListCustomers(ctx context.Context) ([]Customer, error) {
	docs, err := q.db.List(ctx, CollectionCustomers, docstore.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	customers := make([]Customer, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeCustomer(doc)
		if err != nil {
			return nil, fmt.Errorf("decode customer %s: %w", doc.ID, err)
		}
		customers = append(customers, c)
	}
	SortCustomersByLastOrder(customers)
	return customers, nil
}

// SortCustomersByLastOrder orders customers by last order date, newest first.
func SortCustomersByLastOrder(customers []Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].LastOrderDate.After(customers[j].LastOrderDate)
	})
}

func (q *Queries) WatchCustomers(ctx context.Context) (<-chan []Customer, error) {
	return watchTyped(ctx, q.db, CollectionCustomers, decodeCustomer)
}
