// Package database provides typed queries for the dishes, orders and
// customers collections on top of a docstore.Store.
package database

import (
	"context"
	"log"

	"github.com/yourbite/pos-api/internal/docstore"
)

const (
	CollectionDishes    = "dishes"
	CollectionOrders    = "orders"
	CollectionCustomers = "customers"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = docstore.ErrNotFound

type Queries struct {
	db docstore.Store
}

func New(db docstore.Store) *Queries {
	return &Queries{db: db}
}

// Store returns the underlying document store.
func (q *Queries) Store() docstore.Store {
	return q.db
}

// watchTyped converts a collection's snapshots into typed slices.
// Documents that fail to decode are skipped and logged.
func watchTyped[T any](ctx context.Context, db docstore.Store, collection string, decode func(docstore.Document) (T, error)) (<-chan []T, error) {
	src, err := db.Watch(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := make(chan []T, 1)
	go func() {
		defer close(out)
		for snap := range src {
			items := make([]T, 0, len(snap.Docs))
			for _, doc := range snap.Docs {
				v, err := decode(doc)
				if err != nil {
					log.Printf("ERROR: decode %s/%s: %v", collection, doc.ID, err)
					continue
				}
				items = append(items, v)
			}
			offerLatest(out, items)
		}
	}()
	return out, nil
}

// offerLatest puts v into a buffer-1 channel, replacing an unread value.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
