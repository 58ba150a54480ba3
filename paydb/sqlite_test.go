package paydb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

// newSQLiteStore creates a migrated SQLite store in a temp dir.
func newSQLiteStore(t *testing.T, c clock.Clock) ReceiptStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "receipts.db")

	store, db, err := OpenSQLite(dbPath, c)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return store
}

// TestSQLiteStore runs the receipt store suite on SQLite.
func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	runStoreSuite(t, newSQLiteStore)
}

// TestSQLiteMigrationsIdempotent checks reopening a journal keeps its
// content.
func TestSQLiteMigrationsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "receipts.db")

	store, db, err := OpenSQLite(dbPath, nil)
	require.NoError(t, err)

	added, err := store.AddReceipt(t.Context(), FeeReceipt(
		"ADD--101--*--*--*", feeTxn("txo:1"), "{}",
	))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, db, err = OpenSQLite(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	got, err := store.GetReceipt(t.Context(), added.ID)
	require.NoError(t, err)
	require.Equal(t, added.ID, got.ID)
}

// TestNewStoreNilDB checks the constructors refuse a nil handle.
func TestNewStoreNilDB(t *testing.T) {
	t.Parallel()

	sqliteStore, err := NewSQLiteStore(nil, nil)
	require.ErrorIs(t, err, ErrNilDB)
	require.Nil(t, sqliteStore)

	pgStore, err := NewPostgresStore(nil, nil)
	require.ErrorIs(t, err, ErrNilDB)
	require.Nil(t, pgStore)

	var db *sql.DB
	_, err = newReceiptStore(db, rebindNone, nil)
	require.ErrorIs(t, err, ErrNilDB)
}

// TestRebindDollar checks placeholders are numbered for postgres.
func TestRebindDollar(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
	require.Equal(
		t, "INSERT INTO t (a, b) VALUES ($1, $2)",
		rebindDollar("INSERT INTO t (a, b) VALUES (?, ?)"),
	)
	require.Equal(t, "a = ?", rebindNone("a = ?"))
}
