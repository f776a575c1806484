// Package engine implements the targeting and proposal resolution rules
// between swaps: who may target whom, the single-outgoing-target invariant,
// and how acceptance of one relationship resolves the competing ones.
package engine

import (
	"errors"
)

// Domain errors returned by the targeting and proposal services. Callers
// branch on these with errors.Is; the HTTP layer maps them to response
// codes.
var (
	// ErrInvalidState means the operation was attempted against a swap or
	// target not in an eligible status.
	ErrInvalidState = errors.New("entity is not in an eligible state")

	// ErrDuplicateTarget means the source swap already has an active
	// outgoing target.
	ErrDuplicateTarget = errors.New("swap already has an active outgoing target")

	// ErrAlreadyResolved means the target was resolved concurrently; the
	// caller lost the race.
	ErrAlreadyResolved = errors.New("target was already resolved")

	// ErrNotEligible means the actor or offer fails an eligibility rule,
	// such as proposing against one's own swap.
	ErrNotEligible = errors.New("not eligible for this operation")

	// ErrOutOfRange means a cash offer falls outside the swap's configured
	// amount bounds.
	ErrOutOfRange = errors.New("cash amount outside accepted range")

	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")
)
