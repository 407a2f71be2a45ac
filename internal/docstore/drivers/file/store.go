// Package file is the embedded docstore driver: every collection is a JSON
// array persisted in its own file and rewritten atomically on each mutation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/arvicollection/authcore/internal/docstore"
)

// Store implements docstore.Store on a directory of JSON files.
type Store struct {
	dir  string
	opts docstore.Options

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

var _ docstore.Store = (*Store)(nil)

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string, opts docstore.Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file: create data dir: %w", err)
	}
	return &Store{
		dir:   dir,
		opts:  opts.WithDefaults(),
		locks: make(map[string]*sync.RWMutex),
	}, nil
}

func (s *Store) lockFor(collection string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[collection]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[collection] = l
	}
	return l
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// read returns the collection's documents under a read lock.
func (s *Store) read(collection string) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	l := s.lockFor(collection)
	l.RLock()
	defer l.RUnlock()

	return s.load(collection, false), nil
}

// mutate runs fn with the collection loaded under the write lock and persists
// the returned documents when fn reports a change.
func (s *Store) mutate(collection string, fn func([]docstore.Document) ([]docstore.Document, bool, error)) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	l := s.lockFor(collection)
	l.Lock()
	defer l.Unlock()

	docs, changed, err := fn(s.load(collection, true))
	if err != nil || !changed {
		return err
	}
	return s.save(collection, docs)
}

// load reads a collection file. A missing file is an empty collection; so is
// an unreadable one, which is moved aside first when quarantine is set so the
// next save cannot destroy it.
func (s *Store) load(collection string, quarantine bool) []docstore.Document {
	path := s.path(collection)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		s.opts.Logger.Warn("collection unreadable, treating as empty",
			"collection", collection, "err", err)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.opts.Logger.Warn("collection malformed, treating as empty",
			"collection", collection, "err", err)
		if quarantine {
			s.quarantine(collection, path)
		}
		return nil
	}

	docs := make([]docstore.Document, 0, len(raw))
	for _, r := range raw {
		var doc docstore.Document
		if err := json.Unmarshal(r, &doc); err != nil {
			s.opts.Logger.Warn("skipping malformed document",
				"collection", collection, "err", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (s *Store) quarantine(collection, path string) {
	target := fmt.Sprintf("%s.corrupt-%d", path, s.opts.Now().UnixNano())
	if err := os.Rename(path, target); err != nil {
		s.opts.Logger.Error("failed to quarantine malformed collection",
			"collection", collection, "err", err)
		return
	}
	s.opts.Logger.Warn("quarantined malformed collection",
		"collection", collection, "path", target)
}

func (s *Store) save(collection string, docs []docstore.Document) error {
	if docs == nil {
		docs = []docstore.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode %s: %w", collection, err)
	}
	if err := writeFileAtomic(s.path(collection), data, 0o600); err != nil {
		return fmt.Errorf("file: write %s: %w", collection, err)
	}
	return nil
}

func indexOf(docs []docstore.Document, id string) int {
	for i := range docs {
		if docs[i].ID == id {
			return i
		}
	}
	return -1
}

// Insert implements docstore.Store.
func (s *Store) Insert(_ context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	doc, err := docstore.NewDocument(s.opts.IDs.New().String(), fields, s.opts.Timestamp())
	if err != nil {
		return docstore.Document{}, err
	}

	err = s.mutate(collection, func(docs []docstore.Document) ([]docstore.Document, bool, error) {
		return append(docs, doc), true, nil
	})
	if err != nil {
		return docstore.Document{}, err
	}
	return doc.Clone(), nil
}

// Find implements docstore.Store.
func (s *Store) Find(_ context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	docs, err := s.read(collection)
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
func (s *Store) FindByID(_ context.Context, collection, id string) (docstore.Document, error) {
	docs, err := s.read(collection)
	if err != nil {
		return docstore.Document{}, err
	}
	if i := indexOf(docs, id); i >= 0 {
		return docs[i], nil
	}
	return docstore.Document{}, docstore.ErrNotFound
}

// UpdateByID implements docstore.Store.
func (s *Store) UpdateByID(ctx context.Context, collection, id string, patch docstore.Fields) (docstore.Document, error) {
	var out docstore.Document
	err := s.mutate(collection, func(docs []docstore.Document) ([]docstore.Document, bool, error) {
		i := indexOf(docs, id)
		if i < 0 {
			return nil, false, docstore.ErrNotFound
		}
		merged, err := docs[i].Merge(patch, s.opts.Timestamp())
		if err != nil {
			return nil, false, err
		}
		docs[i] = merged
		out = merged.Clone()
		return docs, true, nil
	})
	return out, err
}

// Update implements docstore.Store.
func (s *Store) Update(_ context.Context, collection, id string, fn func(docstore.Fields) (docstore.Fields, error)) (docstore.Document, error) {
	var out docstore.Document
	err := s.mutate(collection, func(docs []docstore.Document) ([]docstore.Document, bool, error) {
		i := indexOf(docs, id)
		if i < 0 {
			return nil, false, docstore.ErrNotFound
		}
		fields, err := fn(docs[i].Fields.Clone())
		if err != nil {
			return nil, false, err
		}
		replaced, err := docs[i].Replace(fields, s.opts.Timestamp())
		if err != nil {
			return nil, false, err
		}
		docs[i] = replaced
		out = replaced.Clone()
		return docs, true, nil
	})
	return out, err
}

// DeleteByID implements docstore.Store.
func (s *Store) DeleteByID(_ context.Context, collection, id string) (docstore.Document, error) {
	var out docstore.Document
	err := s.mutate(collection, func(docs []docstore.Document) ([]docstore.Document, bool, error) {
		i := indexOf(docs, id)
		if i < 0 {
			return nil, false, docstore.ErrNotFound
		}
		out = docs[i]
		return append(docs[:i], docs[i+1:]...), true, nil
	})
	return out, err
}

// DeleteMany implements docstore.Store.
func (s *Store) DeleteMany(_ context.Context, collection string, q docstore.Query) (int, error) {
	removed := 0
	err := s.mutate(collection, func(docs []docstore.Document) ([]docstore.Document, bool, error) {
		kept := docs[:0]
		for _, doc := range docs {
			if q.Matches(doc) {
				removed++
				continue
			}
			kept = append(kept, doc)
		}
		return kept, removed > 0, nil
	})
	return removed, err
}

// Count implements docstore.Store.
func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int, error) {
	docs, err := s.Find(ctx, collection, q)
	return len(docs), err
}

// Ping checks the data directory is still writable.
func (s *Store) Ping(_ context.Context) error {
	f, err := os.CreateTemp(s.dir, ".ping-")
	if err != nil {
		return fmt.Errorf("file: data dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Close implements docstore.Store. The file driver holds no open handles.
func (s *Store) Close() error { return nil }

