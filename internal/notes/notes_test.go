package notes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, owner string) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "notes.db"), owner)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDefaultTitle(t *testing.T) {
	now := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
	require.Equal(t, "Note 3/7/2024, 2:05:09 PM", DefaultTitle(now))
}

func TestNewIDSortsByTime(t *testing.T) {
	now := time.Now()
	a, err := newID(now)
	require.NoError(t, err)
	b, err := newID(now)
	require.NoError(t, err)
	require.Len(t, a, 26)
	require.Less(t, a, b, "ids minted in the same millisecond must still increase")
}

func TestSQLiteCreateList(t *testing.T) {
	s := openTemp(t, "ada")
	ctx := context.Background()

	first, err := s.Create(ctx, "Chapter 1", "cells are small")
	require.NoError(t, err)
	second, err := s.Create(ctx, "Chapter 2", "mitochondria")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, "ada", second.Owner)
	require.WithinDuration(t, time.Now(), second.CreatedAt, time.Minute)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, second.ID, got[0].ID, "newest first")
	require.Equal(t, "Chapter 2", got[0].Title)
	require.Equal(t, "mitochondria", got[0].Text)
	require.Equal(t, "ada", got[0].Owner)
	require.True(t, second.CreatedAt.Equal(got[0].CreatedAt), "created note matches the stored record")
}

func TestSQLiteOwnerScoped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	ada, err := OpenSQLite(path, "ada")
	require.NoError(t, err)
	defer ada.Close()
	bob, err := OpenSQLite(path, "bob")
	require.NoError(t, err)
	defer bob.Close()

	n, err := ada.Create(ctx, "mine", "private text")
	require.NoError(t, err)

	got, err := bob.List(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, bob.Delete(ctx, n.ID))
	got, err = ada.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "other owners cannot delete")
}

func TestSQLiteDelete(t *testing.T) {
	s := openTemp(t, "ada")
	ctx := context.Background()

	n, err := s.Create(ctx, "t", "text")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, n.ID))
	require.NoError(t, s.Delete(ctx, n.ID), "deleting twice is not an error")
	require.NoError(t, s.Delete(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV"))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSQLiteMigrationIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, "ada")
	require.NoError(t, err)
	_, err = s.Create(ctx, "t", "survives reopen")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, "ada")
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version;").Scan(&version))
	require.Equal(t, SchemaVersion, version)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode;").Scan(&mode))
	require.Equal(t, "wal", mode)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestOpenDispatch(t *testing.T) {
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"), "ada")
	require.NoError(t, err)
	defer st.Close()
	require.IsType(t, &SQLite{}, st)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("SCANNER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCANNER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	owner := "test-" + time.Now().Format("150405.000000")

	st, err := Open(ctx, dsn, owner)
	require.NoError(t, err)
	defer st.Close()
	require.IsType(t, &Postgres{}, st)

	first, err := st.Create(ctx, "a", "first text")
	require.NoError(t, err)
	second, err := st.Create(ctx, "b", "second text")
	require.NoError(t, err)

	require.Equal(t, owner, second.Owner)

	got, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, second.ID, got[0].ID)
	require.True(t, second.CreatedAt.Equal(got[0].CreatedAt))

	require.NoError(t, st.Delete(ctx, first.ID))
	require.NoError(t, st.Delete(ctx, second.ID))
	require.NoError(t, st.Delete(ctx, second.ID))

	got, err = st.List(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}
