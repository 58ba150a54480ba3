package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidConstraint is returned when an auth constraint is malformed.
var ErrInvalidConstraint = errors.New("invalid auth constraint")

// ConstraintID names the kind of an auth constraint node.
type ConstraintID string

const (
	// ConstraintRole is a leaf constraint on the requester's role.
	ConstraintRole ConstraintID = "ROLE"

	// ConstraintAnd requires every child constraint to hold.
	ConstraintAnd ConstraintID = "AND"

	// ConstraintOr requires at least one child constraint to hold.
	ConstraintOr ConstraintID = "OR"

	// ConstraintForbidden can never be satisfied.
	ConstraintForbidden ConstraintID = "FORBIDDEN"
)

// AnyRole is the role wildcard used by ROLE constraints.
const AnyRole = "*"

// ConstraintMetadata carries the fee alias of a ROLE constraint.
type ConstraintMetadata struct {
	// Fees is the fee schedule key charged when the constraint is
	// satisfied. Empty means free.
	Fees string `json:"fees,omitempty"`
}

// Constraint is one node of an auth rule's constraint tree.
type Constraint struct {
	ID ConstraintID `json:"constraint_id"`

	// Role is the required role for ROLE constraints. An empty role
	// matches requesters without any role, AnyRole matches everyone.
	Role string `json:"role,omitempty"`

	SigCount           uint32             `json:"sig_count,omitempty"`
	NeedToBeOwner      bool               `json:"need_to_be_owner,omitempty"`
	OffLedgerSignature bool               `json:"off_ledger_signature,omitempty"`
	Metadata           ConstraintMetadata `json:"metadata"`

	// Constraints holds the children of AND and OR nodes.
	Constraints []Constraint `json:"auth_constraints,omitempty"`
}

// Validate walks the constraint tree and checks every node is well formed.
func (c Constraint) Validate() error {
	switch c.ID {
	case ConstraintRole, ConstraintForbidden:
		if len(c.Constraints) != 0 {
			return fmt.Errorf("%w: %s node with children",
				ErrInvalidConstraint, c.ID)
		}

	case ConstraintAnd, ConstraintOr:
		if len(c.Constraints) == 0 {
			return fmt.Errorf("%w: empty %s node",
				ErrInvalidConstraint, c.ID)
		}

		for _, child := range c.Constraints {
			if err := child.Validate(); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("%w: unknown constraint_id %q",
			ErrInvalidConstraint, c.ID)
	}

	return nil
}

// AuthRule is the authorization rule the ledger enforces for an action.
type AuthRule struct {
	Action     Action
	Constraint Constraint
}

// ParseConstraint decodes and validates a constraint tree.
func ParseConstraint(data []byte) (Constraint, error) {
	var c Constraint
	if err := json.Unmarshal(data, &c); err != nil {
		return Constraint{}, fmt.Errorf("%w: %w", ErrInvalidConstraint,
			err)
	}

	if err := c.Validate(); err != nil {
		return Constraint{}, err
	}

	return c, nil
}

// RoleConstraint returns a ROLE leaf charging the given fee alias.
func RoleConstraint(role string, sigCount uint32, fees string) Constraint {
	return Constraint{
		ID:       ConstraintRole,
		Role:     role,
		SigCount: sigCount,
		Metadata: ConstraintMetadata{Fees: fees},
	}
}
