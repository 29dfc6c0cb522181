package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLite stores documents in a single-file database. Watch is served by an
// in-process fanout, so only writers in this process are observed.
type SQLite struct {
	db       *sql.DB
	writeMu  sync.Mutex
	now      func() time.Time
	watchers *fanout
}

// OpenSQLite creates or opens the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now, watchers: newFanout()}, nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	return getSQLite(ctx, s.db, collection, id)
}

func (s *SQLite) Create(ctx context.Context, collection string, fields any) (string, error) {
	id := uuid.NewString()
	if err := s.Upsert(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLite) Upsert(ctx context.Context, collection, id string, fields any) error {
	data, err := encodeObject(fields)
	if err != nil {
		return err
	}
	return s.write(ctx, collection, func(tx *sql.Tx) error {
		now := s.now().UnixNano()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			collection, id, string(data), now, now)
		return err
	})
}

func (s *SQLite) Update(ctx context.Context, collection, id string, fields any) error {
	patch, err := encodeObject(fields)
	if err != nil {
		return err
	}
	return s.write(ctx, collection, func(tx *sql.Tx) error {
		d, err := getSQLite(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		merged, err := mergeJSON(d.Data, patch)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			string(merged), s.now().UnixNano(), collection, id)
		return err
	})
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	return s.write(ctx, collection, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLite) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	docs, err := listSQLite(ctx, s.db, collection, ListOptions{})
	if err != nil {
		return nil, err
	}
	var out []Document
	for _, d := range docs {
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

func (s *SQLite) List(ctx context.Context, collection string, opts ListOptions) ([]Document, error) {
	return listSQLite(ctx, s.db, collection, opts)
}

func (s *SQLite) Watch(ctx context.Context, collection string) (<-chan Snapshot, error) {
	s.writeMu.Lock()
	docs, err := listSQLite(ctx, s.db, collection, ListOptions{})
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}
	ch := s.watchers.subscribe(Snapshot{Collection: collection, Docs: docs})
	s.writeMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchers.unsubscribe(collection, ch)
	}()
	return ch, nil
}

func (s *SQLite) CreateAfter(ctx context.Context, collection, id string, build BuildFunc) (bool, error) {
	created := false
	err := s.write(ctx, collection, func(tx *sql.Tx) error {
		_, err := getSQLite(ctx, tx, collection, id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		docs, err := listSQLite(ctx, tx, collection, ListOptions{Descending: true, Limit: 1})
		if err != nil {
			return err
		}
		var latest *Document
		if len(docs) > 0 {
			latest = &docs[0]
		}

		fields, err := build(latest)
		if err != nil {
			return err
		}
		data, err := encodeObject(fields)
		if err != nil {
			return err
		}
		now := s.now().UnixNano()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			collection, id, string(data), now, now); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return created, nil
}

func (s *SQLite) Close() error {
	s.watchers.closeAll()
	return s.db.Close()
}

// write runs fn in a transaction and publishes a snapshot after commit.
func (s *SQLite) write(ctx context.Context, collection string, fn func(*sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if !s.watchers.hasSubscribers(collection) {
		return nil
	}
	docs, err := listSQLite(ctx, s.db, collection, ListOptions{})
	if err != nil {
		// The write itself succeeded; watchers catch up on the next change.
		return nil
	}
	s.watchers.publish(Snapshot{Collection: collection, Docs: docs})
	return nil
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSQLite(ctx context.Context, q sqlQuerier, collection, id string) (Document, error) {
	var (
		d                Document
		data             string
		created, updated int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&d.ID, &data, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	d.Data = json.RawMessage(data)
	d.CreatedAt = time.Unix(0, created)
	d.UpdatedAt = time.Unix(0, updated)
	return d, nil
}

func listSQLite(ctx context.Context, q sqlQuerier, collection string, opts ListOptions) ([]Document, error) {
	order := "created_at, rowid"
	if opts.Descending {
		order = "created_at DESC, rowid DESC"
	}
	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE collection = ? ORDER BY `+order+` LIMIT ?`,
		collection, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d                Document
			data             string
			created, updated int64
		)
		if err := rows.Scan(&d.ID, &data, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		d.Data = json.RawMessage(data)
		d.CreatedAt = time.Unix(0, created)
		d.UpdatedAt = time.Unix(0, updated)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
