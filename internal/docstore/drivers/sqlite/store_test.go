package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/arvicollection/authcore/internal/docstore/docstoretest"
	"github.com/arvicollection/authcore/internal/docstore/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) docstore.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:", docstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	t.Parallel()
	docstoretest.Run(t, newStore)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s, err := sqlite.Open(":memory:", docstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.db")

	s, err := sqlite.Open(path, docstore.Options{})
	require.NoError(t, err)
	doc, err := s.Insert(ctx, "users", docstore.Fields{"email": "a@example.com"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := sqlite.Open(path, docstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.FindByID(ctx, "users", doc.ID)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", got.Fields["email"])
	require.True(t, doc.CreatedAt.Equal(got.CreatedAt))
}
