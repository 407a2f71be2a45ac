// Package docstoretest holds the behavioural tests every docstore driver
// must pass.
package docstoretest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) docstore.Store

// Run exercises the full Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("InsertAndFindByID", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		doc, err := s.Insert(ctx, "users", docstore.Fields{"email": "a@example.com", "loginAttempts": 0})
		require.NoError(t, err)
		require.NotEmpty(t, doc.ID)
		require.False(t, doc.CreatedAt.IsZero())
		require.True(t, doc.CreatedAt.Equal(doc.UpdatedAt))

		got, err := s.FindByID(ctx, "users", doc.ID)
		require.NoError(t, err)
		require.Equal(t, doc.ID, got.ID)
		require.Equal(t, "a@example.com", got.Fields["email"])
		require.Equal(t, float64(0), got.Fields["loginAttempts"])

		_, err = s.FindByID(ctx, "users", "missing")
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("IDsAreUniqueAndOrdered", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var ids []string
		for i := range 20 {
			doc, err := s.Insert(ctx, "codes", docstore.Fields{"n": i})
			require.NoError(t, err)
			ids = append(ids, doc.ID)
		}

		docs, err := s.Find(ctx, "codes", nil)
		require.NoError(t, err)
		require.Len(t, docs, 20)
		for i, doc := range docs {
			require.Equal(t, ids[i], doc.ID)
			require.Equal(t, float64(i), doc.Fields["n"])
		}
	})

	t.Run("FindAndCount", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for _, f := range []docstore.Fields{
			{"userId": "u1", "purpose": "login", "used": false},
			{"userId": "u1", "purpose": "login", "used": true},
			{"userId": "u1", "purpose": "mfa_setup", "used": false},
			{"userId": "u2", "purpose": "login", "used": false},
		} {
			_, err := s.Insert(ctx, "codes", f)
			require.NoError(t, err)
		}

		q := docstore.Query{
			"userId":  docstore.Eq("u1"),
			"purpose": docstore.Eq("login"),
			"used":    docstore.Eq(false),
		}
		docs, err := s.Find(ctx, "codes", q)
		require.NoError(t, err)
		require.Len(t, docs, 1)

		n, err := s.Count(ctx, "codes", docstore.Query{"purpose": docstore.In("login", "mfa_setup")})
		require.NoError(t, err)
		require.Equal(t, 4, n)

		n, err = s.Count(ctx, "codes", docstore.Query{"userId": docstore.Eq("u3")})
		require.NoError(t, err)
		require.Zero(t, n)

		one, err := s.FindOne(ctx, "codes", docstore.Query{"userId": docstore.Eq("u2")})
		require.NoError(t, err)
		require.Equal(t, "u2", one.Fields["userId"])

		_, err = s.FindOne(ctx, "codes", docstore.Query{"userId": docstore.Eq("nobody")})
		require.ErrorIs(t, err, docstore.ErrNotFound)

		// Unknown collections are simply empty.
		docs, err = s.Find(ctx, "never-written", nil)
		require.NoError(t, err)
		require.Empty(t, docs)
	})

	t.Run("UpdateByIDMerges", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		doc, err := s.Insert(ctx, "users", docstore.Fields{"email": "a@example.com", "loginAttempts": 1})
		require.NoError(t, err)

		updated, err := s.UpdateByID(ctx, "users", doc.ID, docstore.Fields{"loginAttempts": 2, "accountLocked": true})
		require.NoError(t, err)
		require.Equal(t, "a@example.com", updated.Fields["email"])
		require.Equal(t, float64(2), updated.Fields["loginAttempts"])
		require.Equal(t, true, updated.Fields["accountLocked"])
		require.True(t, doc.CreatedAt.Equal(updated.CreatedAt))
		require.False(t, updated.UpdatedAt.Before(doc.UpdatedAt))

		got, err := s.FindByID(ctx, "users", doc.ID)
		require.NoError(t, err)
		require.Equal(t, updated.Fields, got.Fields)

		_, err = s.UpdateByID(ctx, "users", "missing", docstore.Fields{"x": 1})
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("UpdateIsAtomic", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		doc, err := s.Insert(ctx, "counters", docstore.Fields{"n": 0})
		require.NoError(t, err)

		const workers, perWorker = 8, 10
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range perWorker {
					_, err := s.Update(ctx, "counters", doc.ID, func(f docstore.Fields) (docstore.Fields, error) {
						n, _ := f["n"].(float64)
						f["n"] = n + 1
						return f, nil
					})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		got, err := s.FindByID(ctx, "counters", doc.ID)
		require.NoError(t, err)
		require.Equal(t, float64(workers*perWorker), got.Fields["n"])
	})

	t.Run("UpdateAbortsOnError", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		doc, err := s.Insert(ctx, "users", docstore.Fields{"n": 1})
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = s.Update(ctx, "users", doc.ID, func(f docstore.Fields) (docstore.Fields, error) {
			f["n"] = 99
			return nil, boom
		})
		require.ErrorIs(t, err, boom)

		got, err := s.FindByID(ctx, "users", doc.ID)
		require.NoError(t, err)
		require.Equal(t, float64(1), got.Fields["n"])

		_, err = s.Update(ctx, "users", "missing", func(f docstore.Fields) (docstore.Fields, error) {
			return f, nil
		})
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("DeleteByIDAndMany", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var ids []string
		for i := range 5 {
			doc, err := s.Insert(ctx, "challenges", docstore.Fields{"n": i, "completed": i%2 == 0})
			require.NoError(t, err)
			ids = append(ids, doc.ID)
		}

		removed, err := s.DeleteByID(ctx, "challenges", ids[1])
		require.NoError(t, err)
		require.Equal(t, ids[1], removed.ID)

		_, err = s.DeleteByID(ctx, "challenges", ids[1])
		require.ErrorIs(t, err, docstore.ErrNotFound)

		n, err := s.DeleteMany(ctx, "challenges", docstore.Query{"completed": docstore.Eq(true)})
		require.NoError(t, err)
		require.Equal(t, 3, n)

		left, err := s.Find(ctx, "challenges", nil)
		require.NoError(t, err)
		require.Len(t, left, 1)
		require.Equal(t, ids[3], left[0].ID)
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		a, err := s.Insert(ctx, "a", docstore.Fields{"v": "a"})
		require.NoError(t, err)
		_, err = s.Insert(ctx, "b", docstore.Fields{"v": "b"})
		require.NoError(t, err)

		_, err = s.FindByID(ctx, "b", a.ID)
		require.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("ConcurrentInserts", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var wg sync.WaitGroup
		for w := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 10 {
					_, err := s.Insert(ctx, "events", docstore.Fields{"key": fmt.Sprintf("%d-%d", w, i)})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		n, err := s.Count(ctx, "events", nil)
		require.NoError(t, err)
		require.Equal(t, 40, n)
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}
