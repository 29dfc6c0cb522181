// Package docstore is a small document store: named collections of JSON
// documents with server-assigned timestamps, field-equality queries, live
// snapshots and serialized inserts that build on the latest document. Drivers:
// memory, postgres, sqlite.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a stored record. Data holds the JSON body as written by the
// caller; CreatedAt and UpdatedAt are assigned by the store.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Snapshot is the full content of a collection at one point in time,
// ordered by creation time ascending.
type Snapshot struct {
	Collection string
	Docs       []Document
}

// ListOptions controls List ordering and size. Limit <= 0 means no limit.
type ListOptions struct {
	Descending bool
	Limit      int
}

// BuildFunc produces the body of a new document from the latest one.
type BuildFunc func(latest *Document) (any, error)

// Store is the document store contract shared by all drivers.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create stores fields under a new random ID and returns it.
	Create(ctx context.Context, collection string, fields any) (string, error)
	// Upsert writes fields under id, replacing any existing body.
	// CreatedAt is kept when the document already exists.
	Upsert(ctx context.Context, collection, id string, fields any) error
	// Update merges the top-level keys of fields into an existing document.
	Update(ctx context.Context, collection, id string, fields any) error
	Delete(ctx context.Context, collection, id string) error
	// Query returns documents whose top-level field equals value.
	Query(ctx context.Context, collection, field string, value any) ([]Document, error)
	// List returns documents ordered by creation time.
	List(ctx context.Context, collection string, opts ListOptions) ([]Document, error)
	// Watch delivers the current snapshot immediately and a fresh one after
	// every change. The channel is closed when ctx is done. Slow receivers
	// only observe the latest snapshot.
	Watch(ctx context.Context, collection string) (<-chan Snapshot, error)
	// CreateAfter creates id with the fields returned by build, which sees the
	// collection's most recently created document (nil when it is empty).
	// Reading the latest document and the insert are serialized against other
	// CreateAfter calls on the collection. If id already exists nothing is
	// written, build is not called and created is false.
	CreateAfter(ctx context.Context, collection, id string, build BuildFunc) (created bool, err error)
	Close() error
}

// Open returns a Store for the named driver. dsn is the postgres URL or the
// sqlite file path; it is ignored by the memory driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case DriverSQLite:
		lite, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}
	return nil, errors.New("unknown store driver: " + driver)
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)
