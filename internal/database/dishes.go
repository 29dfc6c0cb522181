package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/docstore"
)

func decodeDish(doc docstore.Document) (Dish, error) {
	var d Dish
	if err := doc.Decode(&d); err != nil {
		return Dish{}, err
	}
	d.ID = doc.ID
	d.CreatedAt = doc.CreatedAt
	d.UpdatedAt = doc.UpdatedAt
	return d, nil
}

func (q *Queries) ListDishes(ctx context.Context) ([]Dish, error) {
	docs, err := q.db.List(ctx, CollectionDishes, docstore.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	dishes := make([]Dish, 0, len(docs))
	for _, doc := range docs {
		d, err := decodeDish(doc)
		if err != nil {
			return nil, fmt.Errorf("decode dish %s: %w", doc.ID, err)
		}
		dishes = append(dishes, d)
	}
	return dishes, nil
}

func (q *Queries) GetDish(ctx context.Context, id string) (Dish, error) {
	doc, err := q.db.Get(ctx, CollectionDishes, id)
	if err != nil {
		return Dish{}, err
	}
	return decodeDish(doc)
}

type CreateDishParams struct {
	Name        string
	Price       decimal.Decimal
	Category    string
	IsAvailable bool
	ImageURL    string
	ServingSize string
}

func (q *Queries) CreateDish(ctx context.Context, arg CreateDishParams) (Dish, error) {
	id, err := q.db.Create(ctx, CollectionDishes, Dish{
		Name:        arg.Name,
		Price:       arg.Price,
		Category:    arg.Category,
		IsAvailable: arg.IsAvailable,
		ImageURL:    arg.ImageURL,
		ServingSize: arg.ServingSize,
	})
	if err != nil {
		return Dish{}, fmt.Errorf("create dish: %w", err)
	}
	return q.GetDish(ctx, id)
}

type UpdateDishParams struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Category    string
	IsAvailable bool
	ImageURL    string
	ServingSize string
}

func (q *Queries) UpdateDish(ctx context.Context, arg UpdateDishParams) (Dish, error) {
	err := q.db.Update(ctx, CollectionDishes, arg.ID, Dish{
		Name:        arg.Name,
		Price:       arg.Price,
		Category:    arg.Category,
		IsAvailable: arg.IsAvailable,
		ImageURL:    arg.ImageURL,
		ServingSize: arg.ServingSize,
	})
	if err != nil {
		return Dish{}, err
	}
	return q.GetDish(ctx, arg.ID)
}

func (q *Queries) SetDishAvailability(ctx context.Context, id string, available bool) (Dish, error) {
	if err := q.db.Update(ctx, CollectionDishes, id, map[string]any{"isAvailable": available}); err != nil {
		return Dish{}, err
	}
	return q.GetDish(ctx, id)
}

func (q *Queries) SetDishServingSize(ctx context.Context, id, servingSize string) error {
	return q.db.Update(ctx, CollectionDishes, id, map[string]any{"servingSize": servingSize})
}

func (q *Queries) DeleteDish(ctx context.Context, id string) error {
	return q.db.Delete(ctx, CollectionDishes, id)
}

// WatchDishes streams the full dish list on every catalog change.
func (q *Queries) WatchDishes(ctx context.Context) (<-chan []Dish, error) {
	return watchTyped(ctx, q.db, CollectionDishes, decodeDish)
}
