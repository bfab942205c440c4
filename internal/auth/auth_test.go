package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file":   func() Store { return NewFileStore(filepath.Join(t.TempDir(), "authorized_users.csv")) },
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "auth.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			ok, err := s.Contains(ctx, 42)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Add(ctx, 42))
			require.NoError(t, s.Add(ctx, 7))
			require.NoError(t, s.Add(ctx, 42))

			ok, err = s.Contains(ctx, 42)
			require.NoError(t, err)
			assert.True(t, ok)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []int64{7, 42}, ids)
		})
	}
}

func TestFileStoreReadsPlainIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_users.txt")
	require.NoError(t, os.WriteFile(path, []byte("123\n\nnot-an-id\n456\n"), 0o600))
	s := NewFileStore(path)

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{123, 456}, ids)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "authorized_users.csv")
	require.NoError(t, NewFileStore(path).Add(ctx, 99))

	ok, err := NewFileStore(path).Contains(ctx, 99)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	g := NewGate("204560916", NewMemoryStore())

	ok, err := g.IsAuthorized(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, g.Authorize(ctx, 1, "nope"), ErrPasswordMismatch)
	ok, _ = g.IsAuthorized(ctx, 1)
	assert.False(t, ok)

	require.NoError(t, g.Authorize(ctx, 1, " 204560916 "))
	ok, err = g.IsAuthorized(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.Grant(ctx, 2))
	users, err := g.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, users)
}
