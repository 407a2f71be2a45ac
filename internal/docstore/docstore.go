// Package docstore is a small schemaless document store: named collections of
// JSON documents with opaque IDs, creation and update timestamps, and simple
// field predicates. Drivers live under drivers/.
package docstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arvicollection/authcore/pkg/idx"
)

// ErrNotFound is returned when a lookup by ID or a FindOne matches nothing.
var ErrNotFound = errors.New("docstore: document not found")

// Store is the contract every driver satisfies.
//
// Reads never fail on malformed persisted data; a collection that cannot be
// decoded reads as empty. Write failures are returned to the caller and never
// corrupt previously durable data.
type Store interface {
	// Insert stores a new document, assigning its ID and timestamps.
	Insert(ctx context.Context, collection string, fields Fields) (Document, error)

	// Find returns every document matching q, ordered by ID.
	// An empty query matches everything.
	Find(ctx context.Context, collection string, q Query) ([]Document, error)

	// FindOne returns the first document matching q or ErrNotFound.
	FindOne(ctx context.Context, collection string, q Query) (Document, error)

	// FindByID returns the document with the given ID or ErrNotFound.
	FindByID(ctx context.Context, collection, id string) (Document, error)

	// UpdateByID shallow-merges patch into the document and refreshes its
	// UpdatedAt timestamp. Returns ErrNotFound if the document is missing.
	UpdateByID(ctx context.Context, collection, id string, patch Fields) (Document, error)

	// Update atomically replaces a document's fields with the result of fn.
	// fn receives a private copy of the current fields; returning an error
	// aborts the update and the error is returned unchanged. fn must not
	// call back into the store.
	Update(ctx context.Context, collection, id string, fn func(Fields) (Fields, error)) (Document, error)

	// DeleteByID removes and returns a document, or returns ErrNotFound.
	DeleteByID(ctx context.Context, collection, id string) (Document, error)

	// DeleteMany removes every document matching q and reports how many.
	DeleteMany(ctx context.Context, collection string, q Query) (int, error)

	// Count reports how many documents match q.
	Count(ctx context.Context, collection string, q Query) (int, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases driver resources.
	Close() error
}

// Options carries the dependencies shared by all drivers.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
	IDs    *idx.Generator
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.IDs == nil {
		o.IDs = idx.NewGenerator(o.Now)
	}
	return o
}

// Timestamp returns the current time truncated to millisecond precision, the
// resolution documents are persisted with.
func (o Options) Timestamp() time.Time {
	return o.Now().UTC().Truncate(time.Millisecond)
}

// ErrInvalidCollection is returned for collection names that are empty or
// contain anything other than letters, digits, '_' and '-'.
var ErrInvalidCollection = errors.New("docstore: invalid collection name")

// ValidateCollection checks a collection name. Names double as file names
// and key segments in the drivers.
func ValidateCollection(name string) error {
	if name == "" || len(name) > 64 {
		return ErrInvalidCollection
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return ErrInvalidCollection
		}
	}
	return nil
}
