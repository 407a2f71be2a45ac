// Package sqlite is a docstore driver backed by an embedded SQLite database.
// Each document is one row; mutations run inside transactions so concurrent
// writers never interleave a read-modify-write.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arvicollection/authcore/internal/docstore"
	_ "modernc.org/sqlite"
)

// Store implements docstore.Store on SQLite.
type Store struct {
	db   *sql.DB
	opts docstore.Options
}

var _ docstore.Store = (*Store)(nil)

// Open opens the database at path (":memory:" for a private in-memory
// database) and applies pending migrations.
func Open(path string, opts docstore.Options) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, opts: opts.WithDefaults()}
	if err := s.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply migrations: %w", err)
	}
	return s, nil
}

// Close implements docstore.Store.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx executes fn within a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const selectColumns = `SELECT id, fields, created_at, updated_at FROM documents`

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (docstore.Document, error) {
	var (
		doc              docstore.Document
		fields           string
		created, updated string
	)
	if err := row.Scan(&doc.ID, &fields, &created, &updated); err != nil {
		return docstore.Document{}, err
	}
	if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
		return docstore.Document{}, fmt.Errorf("sqlite: malformed document %s: %w", doc.ID, err)
	}
	if doc.Fields == nil {
		doc.Fields = docstore.Fields{}
	}
	doc.CreatedAt = parseTime(created)
	doc.UpdatedAt = parseTime(updated)
	return doc, nil
}

// all loads a collection, skipping rows whose fields cannot be decoded.
func (s *Store) all(ctx context.Context, q querier, collection string) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, selectColumns+` WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := s.scan(rows)
		if err != nil {
			s.opts.Logger.Warn("skipping malformed document", "collection", collection, "err", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) one(ctx context.Context, q querier, collection, id string) (docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return docstore.Document{}, err
	}
	row := q.QueryRowContext(ctx, selectColumns+` WHERE collection = ? AND id = ?`, collection, id)
	doc, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return doc, err
}

func (s *Store) write(ctx context.Context, q querier, collection string, doc docstore.Document) error {
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("sqlite: encode document: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		collection, doc.ID, string(fields), formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
	)
	return err
}

// Insert implements docstore.Store.
func (s *Store) Insert(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return docstore.Document{}, err
	}
	doc, err := docstore.NewDocument(s.opts.IDs.New().String(), fields, s.opts.Timestamp())
	if err != nil {
		return docstore.Document{}, err
	}
	if err := s.write(ctx, s.db, collection, doc); err != nil {
		return docstore.Document{}, err
	}
	return doc, nil
}

// Find implements docstore.Store.
func (s *Store) Find(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	docs, err := s.all(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	return docstore.Filter(docs, q), nil
}

// FindOne implements docstore.Store.
func (s *Store) FindOne(ctx context.Context, collection string, q docstore.Query) (docstore.Document, error) {
	docs, err := s.Find(ctx, collection, q)
	if err != nil {
		return docstore.Document{}, err
	}
	if len(docs) == 0 {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docs[0], nil
}

// FindByID implements docstore.Store.
func (s *Store) FindByID(ctx context.Context, collection, id string) (docstore.Document, error) {
	return s.one(ctx, s.db, collection, id)
}

// UpdateByID implements docstore.Store.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, patch docstore.Fields) (docstore.Document, error) {
	var out docstore.Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := s.one(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if out, err = doc.Merge(patch, s.opts.Timestamp()); err != nil {
			return err
		}
		return s.write(ctx, tx, collection, out)
	})
	return out, err
}

// Update implements docstore.Store.
func (s *Store) Update(ctx context.Context, collection, id string, fn func(docstore.Fields) (docstore.Fields, error)) (docstore.Document, error) {
	var out docstore.Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := s.one(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		fields, err := fn(doc.Fields.Clone())
		if err != nil {
			return err
		}
		if out, err = doc.Replace(fields, s.opts.Timestamp()); err != nil {
			return err
		}
		return s.write(ctx, tx, collection, out)
	})
	return out, err
}

// DeleteByID implements docstore.Store.
func (s *Store) DeleteByID(ctx context.Context, collection, id string) (docstore.Document, error) {
	var out docstore.Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := s.one(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		out = doc
		_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
		return err
	})
	return out, err
}

// DeleteMany implements docstore.Store.
func (s *Store) DeleteMany(ctx context.Context, collection string, q docstore.Query) (int, error) {
	removed := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		docs, err := s.all(ctx, tx, collection)
		if err != nil {
			return err
		}
		for _, doc := range docstore.Filter(docs, q) {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, doc.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Count implements docstore.Store.
func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int, error) {
	docs, err := s.Find(ctx, collection, q)
	return len(docs), err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
