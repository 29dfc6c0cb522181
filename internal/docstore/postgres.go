package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "docstore_changes"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		data       JSONB       NOT NULL,
		seq        BIGSERIAL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_created_idx ON documents (collection, created_at, seq)`,
	`CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops)`,
}

// Postgres stores documents as JSONB rows. Watch is driven by LISTEN/NOTIFY.
type Postgres struct {
	pool   *pgxpool.Pool
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OpenPostgres connects to databaseURL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Postgres{pool: pool, base: base, cancel: cancel}, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

func (p *Postgres) Create(ctx context.Context, collection string, fields any) (string, error) {
	id := uuid.NewString()
	if err := p.Upsert(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Upsert(ctx context.Context, collection, id string, fields any) error {
	data, err := encodeObject(fields)
	if err != nil {
		return err
	}
	return p.write(ctx, collection, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			collection, id, string(data))
		return err
	})
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields any) error {
	patch, err := encodeObject(fields)
	if err != nil {
		return err
	}
	return p.write(ctx, collection, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
			 WHERE collection = $1 AND id = $2`,
			collection, id, string(patch))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	return p.write(ctx, collection, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (p *Postgres) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE collection = $1 AND data @> $2::jsonb
		 ORDER BY created_at, seq`,
		collection, string(filter))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return collectDocuments(rows)
}

func (p *Postgres) List(ctx context.Context, collection string, opts ListOptions) ([]Document, error) {
	order := "created_at, seq"
	if opts.Descending {
		order = "created_at DESC, seq DESC"
	}
	var limit any
	if opts.Limit > 0 {
		limit = int64(opts.Limit)
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE collection = $1 ORDER BY `+order+` LIMIT $2`,
		collection, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return collectDocuments(rows)
}

func (p *Postgres) Watch(ctx context.Context, collection string) (<-chan Snapshot, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}
	docs, err := p.List(ctx, collection, ListOptions{})
	if err != nil {
		conn.Release()
		return nil, err
	}

	ch := make(chan Snapshot, 1)
	ch <- Snapshot{Collection: collection, Docs: docs}

	wctx, stop := context.WithCancel(ctx)
	unlink := context.AfterFunc(p.base, stop)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(ch)
		defer unlink()
		defer stop()
		defer func() {
			cleanup, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.Exec(cleanup, "UNLISTEN "+notifyChannel); err != nil {
				conn.Conn().Close(cleanup)
			}
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(wctx)
			if err != nil {
				if wctx.Err() == nil {
					log.Printf("ERROR: docstore watch %s: %v", collection, err)
				}
				return
			}
			if n.Payload != collection {
				continue
			}
			docs, err := p.List(wctx, collection, ListOptions{})
			if err != nil {
				if wctx.Err() == nil {
					log.Printf("ERROR: docstore watch %s: reload: %v", collection, err)
				}
				return
			}
			offer(ch, Snapshot{Collection: collection, Docs: docs})
		}
	}()
	return ch, nil
}

func (p *Postgres) CreateAfter(ctx context.Context, collection, id string, build BuildFunc) (bool, error) {
	created := false
	err := p.write(ctx, collection, func(tx pgx.Tx) error {
		// Serializes CreateAfter per collection across connections and processes.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, collection); err != nil {
			return fmt.Errorf("lock %s: %w", collection, err)
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
			collection, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}

		var latest *Document
		d, err := scanDocument(tx.QueryRow(ctx,
			`SELECT id, data, created_at, updated_at FROM documents
			 WHERE collection = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`,
			collection))
		switch {
		case err == nil:
			latest = &d
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("latest %s: %w", collection, err)
		}

		fields, err := build(latest)
		if err != nil {
			return err
		}
		data, err := encodeObject(fields)
		if err != nil {
			return err
		}
		// clock_timestamp, not now(): the lock may be granted after a later
		// transaction started, and creation order must follow insert order.
		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, id, data, created_at, updated_at)
			 VALUES ($1, $2, $3::jsonb, clock_timestamp(), clock_timestamp())`,
			collection, id, string(data)); err != nil {
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

// Close stops all watchers and closes the pool.
func (p *Postgres) Close() error {
	p.cancel()
	p.wg.Wait()
	p.pool.Close()
	return nil
}

// write runs fn and a change notification for collection in one transaction.
func (p *Postgres) write(ctx context.Context, collection string, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection)
		return err
	})
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var data []byte
	if err := row.Scan(&d.ID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Document{}, err
	}
	d.Data = json.RawMessage(data)
	return d, nil
}

func collectDocuments(rows pgx.Rows) ([]Document, error) {
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Document, error) {
		return scanDocument(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	return docs, nil
}
