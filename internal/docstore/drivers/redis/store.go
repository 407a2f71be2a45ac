// Package redis is a docstore driver keeping each collection in a Redis hash
// keyed by document ID. Read-modify-write operations use WATCH/MULTI so
// several processes can share one database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/redis/go-redis/v9"
)

const maxRetries = 16

// ErrContention is returned when an optimistic transaction keeps losing to
// concurrent writers.
var ErrContention = errors.New("redis: too much write contention")

// Store implements docstore.Store on Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	opts   docstore.Options

	// In-process writers queue on these locks so WATCH retries are only
	// needed against other processes.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ docstore.Store = (*Store)(nil)

// New wraps client. Keys are named "<prefix>:<collection>".
func New(client redis.UniversalClient, prefix string, opts docstore.Options) *Store {
	if prefix == "" {
		prefix = "docstore"
	}
	return &Store{
		client: client,
		prefix: prefix,
		opts:   opts.WithDefaults(),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Store) key(collection string) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	return s.prefix + ":" + collection, nil
}

func (s *Store) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Store) decode(collection, raw string) (docstore.Document, bool) {
	var doc docstore.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.opts.Logger.Warn("skipping malformed document", "collection", collection, "err", err)
		return docstore.Document{}, false
	}
	if doc.Fields == nil {
		doc.Fields = docstore.Fields{}
	}
	return doc, true
}

// hashGetter is satisfied by both the client and a WATCH transaction.
type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func encode(doc docstore.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("redis: encode document: %w", err)
	}
	return string(data), nil
}

// watch runs fn inside an optimistic transaction on key, retrying when
// another client modifies the key first.
func (s *Store) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	unlock := s.lock(key)
	defer unlock()

	for attempt := range maxRetries {
		err := s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
	return ErrContention
}

// Insert implements docstore.Store.
func (s *Store) Insert(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	key, err := s.key(collection)
	if err != nil {
		return docstore.Document{}, err
	}
	doc, err := docstore.NewDocument(s.opts.IDs.New().String(), fields, s.opts.Timestamp())
	if err != nil {
		return docstore.Document{}, err
	}
	raw, err := encode(doc)
	if err != nil {
		return docstore.Document{}, err
	}
	ok, err := s.client.HSetNX(ctx, key, doc.ID, raw).Result()
	if err != nil {
		return docstore.Document{}, fmt.Errorf("redis: insert: %w", err)
	}
	if !ok {
		return docstore.Document{}, fmt.Errorf("redis: duplicate document id %s", doc.ID)
	}
	return doc, nil
}

// Find implements docstore.Store.
func (s *Store) Find(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	key, err := s.key(collection)
	if err != nil {
		return nil, err
	}
	all, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: find: %w", err)
	}
	return s.filter(collection, all, q), nil
}

func (s *Store) filter(collection string, all map[string]string, q docstore.Query) []docstore.Document {
	docs := make([]docstore.Document, 0, len(all))
	for _, raw := range all {
		if doc, ok := s.decode(collection, raw); ok {
			docs = append(docs, doc)
		}
	}
	return docstore.Filter(docs, q)
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
	key, err := s.key(collection)
	if err != nil {
		return docstore.Document{}, err
	}
	return s.get(ctx, s.client, collection, key, id)
}

func (s *Store) get(ctx context.Context, c hashGetter, collection, key, id string) (docstore.Document, error) {
	raw, err := c.HGet(ctx, key, id).Result()
	if errors.Is(err, redis.Nil) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("redis: get: %w", err)
	}
	doc, ok := s.decode(collection, raw)
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return doc, nil
}

// UpdateByID implements docstore.Store.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, patch docstore.Fields) (docstore.Document, error) {
	return s.modify(ctx, collection, id, func(doc docstore.Document) (docstore.Document, error) {
		return doc.Merge(patch, s.opts.Timestamp())
	})
}

// Update implements docstore.Store.
func (s *Store) Update(ctx context.Context, collection, id string, fn func(docstore.Fields) (docstore.Fields, error)) (docstore.Document, error) {
	return s.modify(ctx, collection, id, func(doc docstore.Document) (docstore.Document, error) {
		fields, err := fn(doc.Fields.Clone())
		if err != nil {
			return docstore.Document{}, err
		}
		return doc.Replace(fields, s.opts.Timestamp())
	})
}

func (s *Store) modify(ctx context.Context, collection, id string, change func(docstore.Document) (docstore.Document, error)) (docstore.Document, error) {
	key, err := s.key(collection)
	if err != nil {
		return docstore.Document{}, err
	}

	var out docstore.Document
	err = s.watch(ctx, key, func(tx *redis.Tx) error {
		doc, err := s.get(ctx, tx, collection, key, id)
		if err != nil {
			return err
		}
		updated, err := change(doc)
		if err != nil {
			return err
		}
		raw, err := encode(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, raw)
			return nil
		})
		if err == nil {
			out = updated
		}
		return err
	})
	return out, err
}

// DeleteByID implements docstore.Store.
func (s *Store) DeleteByID(ctx context.Context, collection, id string) (docstore.Document, error) {
	key, err := s.key(collection)
	if err != nil {
		return docstore.Document{}, err
	}

	var out docstore.Document
	err = s.watch(ctx, key, func(tx *redis.Tx) error {
		doc, err := s.get(ctx, tx, collection, key, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, key, id)
			return nil
		})
		if err == nil {
			out = doc
		}
		return err
	})
	return out, err
}

// DeleteMany implements docstore.Store.
func (s *Store) DeleteMany(ctx context.Context, collection string, q docstore.Query) (int, error) {
	key, err := s.key(collection)
	if err != nil {
		return 0, err
	}

	removed := 0
	err = s.watch(ctx, key, func(tx *redis.Tx) error {
		all, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		matched := s.filter(collection, all, q)
		if len(matched) == 0 {
			removed = 0
			return nil
		}
		ids := make([]string, len(matched))
		for i, doc := range matched {
			ids[i] = doc.ID
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, key, ids...)
			return nil
		})
		if err == nil {
			removed = len(ids)
		}
		return err
	})
	return removed, err
}

// Count implements docstore.Store.
func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int, error) {
	docs, err := s.Find(ctx, collection, q)
	return len(docs), err
}

// Ping implements docstore.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
