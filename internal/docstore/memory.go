package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errClosed = errors.New("docstore: store is closed")

type memDoc struct {
	doc Document
	seq int64
}

// Memory is an in-process Store. It is the default for development and tests.
type Memory struct {
	mu       sync.Mutex
	cols     map[string]map[string]*memDoc
	seq      int64
	closed   bool
	now      func() time.Time
	watchers *fanout
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cols:     make(map[string]map[string]*memDoc),
		now:      time.Now,
		watchers: newFanout(),
	}
}

// SetClock replaces the time source used for CreatedAt/UpdatedAt.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Document{}, errClosed
	}
	d, ok := m.cols[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d.doc, nil
}

func (m *Memory) Create(ctx context.Context, collection string, fields any) (string, error) {
	id := uuid.NewString()
	if err := m.Upsert(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Upsert(_ context.Context, collection, id string, fields any) error {
	data, err := encodeObject(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	now := m.now()
	col := m.cols[collection]
	if col == nil {
		col = make(map[string]*memDoc)
		m.cols[collection] = col
	}
	if existing, ok := col[id]; ok {
		existing.doc.Data = data
		existing.doc.UpdatedAt = now
	} else {
		m.seq++
		col[id] = &memDoc{
			doc: Document{ID: id, Data: data, CreatedAt: now, UpdatedAt: now},
			seq: m.seq,
		}
	}
	m.notifyLocked(collection)
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields any) error {
	patch, err := encodeObject(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	d, ok := m.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeJSON(d.doc.Data, patch)
	if err != nil {
		return err
	}
	d.doc.Data = merged
	d.doc.UpdatedAt = m.now()
	m.notifyLocked(collection)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if _, ok := m.cols[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.cols[collection], id)
	m.notifyLocked(collection)
	return nil
}

func (m *Memory) Query(_ context.Context, collection, field string, value any) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errClosed
	}
	var out []Document
	for _, d := range m.sortedLocked(collection, false) {
		ok, err := matchField(d.Data, field, value)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) List(_ context.Context, collection string, opts ListOptions) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errClosed
	}
	docs := m.sortedLocked(collection, opts.Descending)
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

func (m *Memory) Watch(ctx context.Context, collection string) (<-chan Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errClosed
	}
	ch := m.watchers.subscribe(Snapshot{
		Collection: collection,
		Docs:       m.sortedLocked(collection, false),
	})
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.watchers.unsubscribe(collection, ch)
	}()
	return ch, nil
}

func (m *Memory) CreateAfter(_ context.Context, collection, id string, build BuildFunc) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, errClosed
	}
	if _, ok := m.cols[collection][id]; ok {
		return false, nil
	}

	var latest *Document
	if docs := m.sortedLocked(collection, true); len(docs) > 0 {
		latest = &docs[0]
	}
	fields, err := build(latest)
	if err != nil {
		return false, err
	}
	data, err := encodeObject(fields)
	if err != nil {
		return false, err
	}

	now := m.now()
	col := m.cols[collection]
	if col == nil {
		col = make(map[string]*memDoc)
		m.cols[collection] = col
	}
	m.seq++
	col[id] = &memDoc{
		doc: Document{ID: id, Data: data, CreatedAt: now, UpdatedAt: now},
		seq: m.seq,
	}
	m.notifyLocked(collection)
	return true, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.watchers.closeAll()
	return nil
}

// sortedLocked returns copies of the collection's documents ordered by
// creation time, ties broken by insertion order. Caller holds m.mu.
func (m *Memory) sortedLocked(collection string, desc bool) []Document {
	col := m.cols[collection]
	entries := make([]*memDoc, 0, len(col))
	for _, d := range col {
		entries = append(entries, d)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			if desc {
				return a.doc.CreatedAt.After(b.doc.CreatedAt)
			}
			return a.doc.CreatedAt.Before(b.doc.CreatedAt)
		}
		if desc {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	return docs
}

func (m *Memory) notifyLocked(collection string) {
	if !m.watchers.hasSubscribers(collection) {
		return
	}
	m.watchers.publish(Snapshot{
		Collection: collection,
		Docs:       m.sortedLocked(collection, false),
	})
}
