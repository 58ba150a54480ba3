package paydb

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib" // Register the pgx driver.
	"github.com/lightningnetwork/lnd/clock"
)

// PostgresStore is the PostgreSQL implementation of the ReceiptStore
// interface.
type PostgresStore struct {
	*receiptStore
}

// NewPostgresStore creates a receipt store over an open PostgreSQL
// database. The schema must already be migrated.
func NewPostgresStore(db *sql.DB, c clock.Clock) (*PostgresStore, error) {
	store, err := newReceiptStore(db, rebindDollar, c)
	if err != nil {
		return nil, err
	}

	return &PostgresStore{receiptStore: store}, nil
}

// OpenPostgres connects to the database at dsn, applies the receipt
// migrations and returns the store with its database handle. The caller
// closes the handle.
func OpenPostgres(dsn string, c clock.Clock) (*PostgresStore, *sql.DB,
	error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := ApplyPostgresMigrations(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store, err := NewPostgresStore(db, c)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	log.Infof("Opened postgres receipt journal")

	return store, db, nil
}
