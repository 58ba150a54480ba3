package paydb

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/lightningnetwork/lnd/clock"
	_ "modernc.org/sqlite" // Register the sqlite driver.
)

const (
	// sqliteOptionPrefix is the dsn prefix of pragma options.
	sqliteOptionPrefix = "_pragma"

	// sqliteTxLockImmediate makes write transactions take the lock
	// when they begin.
	sqliteTxLockImmediate = "_txlock=immediate"
)

// SQLiteStore is the SQLite implementation of the ReceiptStore interface.
type SQLiteStore struct {
	*receiptStore
}

// NewSQLiteStore creates a receipt store over an open SQLite database. The
// schema must already be migrated.
func NewSQLiteStore(db *sql.DB, c clock.Clock) (*SQLiteStore, error) {
	store, err := newReceiptStore(db, rebindNone, c)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{receiptStore: store}, nil
}

// OpenSQLite opens or creates the SQLite database at dbPath, applies the
// receipt migrations and returns the store with its database handle. The
// caller closes the handle.
func OpenSQLite(dbPath string, c clock.Clock) (*SQLiteStore, *sql.DB,
	error) {

	pragmas := make(url.Values)
	for _, opt := range []string{
		"foreign_keys=on",
		"journal_mode=WAL",
		"busy_timeout=5000",
		"synchronous=full",
	} {
		pragmas.Add(sqliteOptionPrefix, opt)
	}

	dsn := fmt.Sprintf("%v?%v&%v", dbPath, pragmas.Encode(),
		sqliteTxLockImmediate)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := ApplySQLiteMigrations(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store, err := NewSQLiteStore(db, c)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	log.Infof("Opened sqlite receipt journal at %s", dbPath)

	return store, db, nil
}
