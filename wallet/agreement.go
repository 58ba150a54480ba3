package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// secondsPerDay is the granularity of acceptance times. The ledger rejects
// acceptance times that are more precise than a day.
const secondsPerDay = 24 * 60 * 60

// ErrInvalidAgreement is returned when acceptance metadata cannot be built
// from an agreement.
var ErrInvalidAgreement = errors.New("invalid transaction author agreement")

// Agreement is an accepted transaction author agreement.
type Agreement struct {
	// Text and Version identify the agreement when Digest is not known.
	Text    fn.Option[string]
	Version fn.Option[string]

	// Digest is the hex encoded SHA-256 of version and text.
	Digest fn.Option[string]

	// Mechanism is the acceptance mechanism, e.g. "on_file".
	Mechanism string

	// AcceptedAt is when the agreement was accepted. The zero time means
	// now.
	AcceptedAt time.Time
}

// AgreementSource provides the agreement to accept, if the ledger requires
// one.
type AgreementSource interface {
	// Agreement returns the agreement to attach to transfers.
	Agreement(ctx context.Context) (fn.Option[Agreement], error)
}

// StaticAgreement is an AgreementSource always returning the same agreement.
// Acceptance happens at the time it is first asked for when no acceptance
// time is set.
type StaticAgreement struct {
	agreement Agreement
	clock     clock.Clock
}

// A compile time check to ensure that StaticAgreement implements the
// interface.
var _ AgreementSource = (*StaticAgreement)(nil)

// NewStaticAgreement returns a source serving a, stamped with the time of c
// when a carries no acceptance time.
func NewStaticAgreement(a Agreement, c clock.Clock) *StaticAgreement {
	if c == nil {
		c = clock.NewDefaultClock()
	}

	return &StaticAgreement{
		agreement: a,
		clock:     c,
	}
}

// Agreement returns the configured agreement.
func (s *StaticAgreement) Agreement(_ context.Context) (fn.Option[Agreement],
	error) {

	a := s.agreement
	if a.AcceptedAt.IsZero() {
		a.AcceptedAt = s.clock.Now()
	}

	return fn.Some(a), nil
}

// digest returns the agreement digest, computing it from version and text
// when not given.
func (a Agreement) digest() (string, error) {
	if a.Digest.IsSome() {
		return a.Digest.UnwrapOr(""), nil
	}

	if a.Text.IsNone() || a.Version.IsNone() {
		return "", fmt.Errorf("%w: digest or text and version required",
			ErrInvalidAgreement)
	}

	data := a.Version.UnwrapOr("") + a.Text.UnwrapOr("")

	return hex.EncodeToString(chainhash.HashB([]byte(data))), nil
}

// acceptanceJSON is the wire form of the acceptance metadata.
type acceptanceJSON struct {
	Acceptance struct {
		Mechanism string `json:"mechanism"`
		Digest    string `json:"taaDigest"`
		Time      int64  `json:"time"`
	} `json:"taaAcceptance"`
}

// ExtraJSON returns the acceptance metadata to store in a transfer's extra
// field. The acceptance time is rounded down to the day.
func (a Agreement) ExtraJSON() (string, error) {
	if a.Mechanism == "" {
		return "", fmt.Errorf("%w: acceptance mechanism required",
			ErrInvalidAgreement)
	}

	digest, err := a.digest()
	if err != nil {
		return "", err
	}

	var extra acceptanceJSON
	extra.Acceptance.Mechanism = a.Mechanism
	extra.Acceptance.Digest = digest
	extra.Acceptance.Time = a.AcceptedAt.Unix() / secondsPerDay *
		secondsPerDay

	data, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// transferExtra returns the extra field of a transfer: the acceptance
// metadata when an agreement is configured.
func (e *Engine) transferExtra(ctx context.Context) (fn.Option[string],
	error) {

	if e.cfg.Agreement == nil {
		return fn.None[string](), nil
	}

	agreement, err := e.cfg.Agreement.Agreement(ctx)
	if err != nil {
		return fn.None[string](), fmt.Errorf("unable to load "+
			"agreement: %w", err)
	}

	if agreement.IsNone() {
		return fn.None[string](), nil
	}

	extra, err := agreement.UnwrapOr(Agreement{}).ExtraJSON()
	if err != nil {
		return fn.None[string](), err
	}

	return fn.Some(extra), nil
}
