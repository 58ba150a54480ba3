package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrInvalidAction is returned when an action descriptor is malformed.
var ErrInvalidAction = errors.New("invalid action")

// Ledger transaction types that are commonly priced.
const (
	TxnTypeSchema      = "101"
	TxnTypeCredDef     = "102"
	TxnTypeRevRegDef   = "113"
	TxnTypeRevRegEntry = "114"
	TxnTypeTransfer    = "10001"
)

// Auth rule actions.
const (
	AuthActionAdd  = "ADD"
	AuthActionEdit = "EDIT"
)

const (
	anyValue             = "*"
	authRuleKeySeparator = "--"
)

// Action identifies a ledger write as used by auth rules.
type Action struct {
	// AuthType is the ledger transaction type, e.g. "101" for schemas.
	AuthType string

	// AuthAction is either ADD or EDIT.
	AuthAction string

	// Field is the transaction field the rule applies to, "*" for any.
	Field string

	// OldValue is only meaningful for EDIT rules.
	OldValue fn.Option[string]

	// NewValue is the value being written, "*" for any.
	NewValue fn.Option[string]
}

// addAction returns the ADD action for the given transaction type with the
// field and new value wildcarded.
func addAction(authType string) Action {
	return Action{
		AuthType:   authType,
		AuthAction: AuthActionAdd,
		Field:      anyValue,
		OldValue:   fn.None[string](),
		NewValue:   fn.Some(anyValue),
	}
}

// SchemaAction returns the action used to price schema writes.
func SchemaAction() Action {
	return addAction(TxnTypeSchema)
}

// CredDefAction returns the action used to price credential definition
// writes.
func CredDefAction() Action {
	return addAction(TxnTypeCredDef)
}

// RevRegDefAction returns the action used to price revocation registry
// definition writes.
func RevRegDefAction() Action {
	return addAction(TxnTypeRevRegDef)
}

// RevRegEntryAction returns the action used to price revocation registry
// entry writes.
func RevRegEntryAction() Action {
	return addAction(TxnTypeRevRegEntry)
}

// TransferAction returns the action used to price token transfers.
func TransferAction() Action {
	return addAction(TxnTypeTransfer)
}

// Key returns the auth rule map key of the action, in the form
// `ADD--101--*--*--*`.
func (a Action) Key() string {
	return a.AuthAction + authRuleKeySeparator +
		a.AuthType + authRuleKeySeparator +
		a.Field + authRuleKeySeparator +
		a.OldValue.UnwrapOr(anyValue) +
		authRuleKeySeparator + a.NewValue.UnwrapOr(anyValue)
}

// Validate checks the action has every mandatory field.
func (a Action) Validate() error {
	switch {
	case a.AuthType == "":
		return fmt.Errorf("%w: missing auth_type", ErrInvalidAction)

	case a.AuthAction != AuthActionAdd && a.AuthAction != AuthActionEdit:
		return fmt.Errorf("%w: unknown auth_action %q", ErrInvalidAction,
			a.AuthAction)

	case a.Field == "":
		return fmt.Errorf("%w: missing field", ErrInvalidAction)
	}

	return nil
}

// actionJSON is the wire representation of an Action.
type actionJSON struct {
	AuthType   string  `json:"auth_type"`
	AuthAction string  `json:"auth_action"`
	Field      string  `json:"field"`
	OldValue   *string `json:"old_value"`
	NewValue   *string `json:"new_value"`
}

// MarshalJSON implements json.Marshaler.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(actionJSON{
		AuthType:   a.AuthType,
		AuthAction: a.AuthAction,
		Field:      a.Field,
		OldValue:   optionToPtr(a.OldValue),
		NewValue:   optionToPtr(a.NewValue),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*a = Action{
		AuthType:   w.AuthType,
		AuthAction: w.AuthAction,
		Field:      w.Field,
		OldValue:   fn.OptionFromPtr(w.OldValue),
		NewValue:   fn.OptionFromPtr(w.NewValue),
	}

	return nil
}

// ParseAction decodes and validates an action descriptor.
func ParseAction(data string) (Action, error) {
	var a Action
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return Action{}, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	if err := a.Validate(); err != nil {
		return Action{}, err
	}

	return a, nil
}
