// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package paydb

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/sqldb"
)

var (
	// ErrNilDB is returned when a store is created without a database
	// handle.
	ErrNilDB = errors.New("nil database handle")

	// ErrReceiptNotFound is returned when a receipt id is unknown.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrSourceSpent is returned when a receipt spends a source that an
	// earlier receipt already spent.
	ErrSourceSpent = errors.New("source already spent")

	// ErrInvalidReceipt is returned when a receipt is missing mandatory
	// fields.
	ErrInvalidReceipt = errors.New("invalid receipt")
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates a database error.
	ErrDatabase ErrorCode = iota

	// ErrConstraint indicates a constraint of the schema was violated.
	ErrConstraint

	// ErrCorrupt indicates a stored row cannot be decoded.
	ErrCorrupt
)

// Error identifies a receipt store error. It has an error code and a
// descriptive message.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err == nil {
		return e.Desc
	}

	return fmt.Sprintf("%s: %v", e.Desc, e.Err)
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// newError creates an Error given a set of arguments.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// wrapDBError classifies a driver error with sqldb.MapSQLError and tags it
// with the matching ErrorCode.
func wrapDBError(desc string, err error) error {
	if err == nil {
		return nil
	}

	dbErr := sqldb.MapSQLError(err)

	var uniqueErr *sqldb.ErrSQLUniqueConstraintViolation
	if errors.As(dbErr, &uniqueErr) {
		return newError(ErrConstraint, desc, dbErr)
	}

	return newError(ErrDatabase, desc, dbErr)
}
