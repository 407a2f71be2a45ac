// Package documents implements the auth store on top of a docstore.Store,
// encrypting personal data and MFA secrets field by field on the way in.
package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/arvicollection/authcore/pkg/cryptox"
)

// Collection names.
const (
	UsersCollection             = "users"
	VerificationCodesCollection = "verification_codes"
	ChallengesCollection        = "mfa_challenges"
	PasswordResetsCollection    = "password_resets"
)

// Store implements store.Store.
type Store struct {
	docs  docstore.Store
	codec *cryptox.Codec

	users *usersRepo
}

var _ store.Store = (*Store)(nil)

// New wraps docs. codec encrypts personal fields at rest.
func New(docs docstore.Store, codec *cryptox.Codec) *Store {
	return &Store{
		docs:  docs,
		codec: codec,
		users: &usersRepo{docs: docs, codec: codec},
	}
}

func (s *Store) Users() store.Users                         { return s.users }
func (s *Store) VerificationCodes() store.VerificationCodes { return &codesRepo{docs: s.docs} }
func (s *Store) Challenges() store.Challenges               { return &challengesRepo{docs: s.docs} }
func (s *Store) PasswordResets() store.PasswordResets       { return &resetsRepo{docs: s.docs} }

// Ping verifies the document store is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.docs.Ping(ctx) }

// Close closes the document store.
func (s *Store) Close() error { return s.docs.Close() }

func mapNotFound(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return store.ErrNotFound
	}
	return err
}

// decodeAs unmarshals a document into a fresh T.
func decodeAs[T any](doc docstore.Document) (T, error) {
	var v T
	if err := doc.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

// update runs a typed read-modify-write against one document.
func update[T any](
	ctx context.Context,
	docs docstore.Store,
	collection, id string,
	decode func(docstore.Document) (T, error),
	encode func(T) (docstore.Fields, error),
	fn func(*T) error,
) (docstore.Document, error) {
	doc, err := docs.Update(ctx, collection, id, func(fields docstore.Fields) (docstore.Fields, error) {
		current, err := decode(docstore.Document{ID: id, Fields: fields})
		if err != nil {
			return nil, err
		}
		if err := fn(&current); err != nil {
			return nil, err
		}
		return encode(current)
	})
	return doc, mapNotFound(err)
}

func deleteExpired(ctx context.Context, docs docstore.Store, collection string, cutoff time.Time) (int, error) {
	n, err := docs.DeleteMany(ctx, collection, docstore.Query{"expiresAt": docstore.Before(cutoff)})
	if err != nil {
		return 0, fmt.Errorf("delete expired %s: %w", collection, err)
	}
	return n, nil
}
