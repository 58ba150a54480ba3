// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("ledger rejected request")

	// ErrMalformedResponse is returned when a ledger reply cannot be
	// decoded.
	ErrMalformedResponse = errors.New("malformed ledger response")
)

// Ledger error codes surfaced by the ledger access layer.
const (
	CodeInvalidTransaction = 304
	CodeNotFound           = 309
	CodeInsufficientFunds  = 702
	CodeSourceDoesNotExist = 703
	CodeTxnNotAllowed      = 706
)

// Response operations.
const (
	OpReply   = "REPLY"
	OpReject  = "REJECT"
	OpReqNack = "REQNACK"
)

// RejectedError is returned when the ledger refuses a request, either through
// a REJECT/REQNACK reply or an error code from the access layer.
type RejectedError struct {
	// Code is the reply op or the numeric error code as a string.
	Code string

	// Reason is the human readable explanation given by the ledger.
	Reason string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("ledger rejected request: %s", e.Code)
	}

	return fmt.Sprintf("ledger rejected request: %s: %s", e.Code,
		e.Reason)
}

// Is makes errors.Is(err, ErrRejected) hold for every RejectedError.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// newCodeError builds a RejectedError from a numeric ledger error code.
func newCodeError(code int, reason string) *RejectedError {
	return &RejectedError{
		Code:   strconv.Itoa(code),
		Reason: reason,
	}
}

// HasCode reports whether err is a RejectedError carrying the given numeric
// ledger error code.
func HasCode(err error, code int) bool {
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		return false
	}

	return rejected.Code == strconv.Itoa(code)
}

// IsInsufficientFunds reports whether the ledger refused a payment because
// the inputs do not cover the outputs and fees.
func IsInsufficientFunds(err error) bool {
	return HasCode(err, CodeInsufficientFunds)
}

// replyEnvelope is the part of a ledger reply needed to classify it.
type replyEnvelope struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

// CheckResponse inspects a ledger reply and converts REJECT and REQNACK
// replies into a *RejectedError. Replies without an op are passed through.
func CheckResponse(resp string) error {
	var env replyEnvelope
	if err := json.Unmarshal([]byte(resp), &env); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	switch env.Op {
	case OpReject, OpReqNack:
		log.Warnf("Ledger replied %s: %s", env.Op, env.Reason)

		return &RejectedError{Code: env.Op, Reason: env.Reason}
	}

	return nil
}
