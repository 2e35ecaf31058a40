package credit

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCredits is returned when user doesn't have enough credits
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrUserNotFound is returned when user doesn't exist
	ErrUserNotFound = errors.New("user not found")

	ErrReasonRequired    = errors.New("reason is required")
	ErrInvalidType       = errors.New("unknown transaction type")
	ErrReferenceConflict = errors.New("reference already used by a different transaction")
	ErrBalanceMismatch   = errors.New("balance_after does not match the computed balance")
	ErrForbidden         = errors.New("administrator privilege required")
	ErrCheckInDisabled   = errors.New("daily check-in is disabled")

	ErrInternal = errors.New("internal error")
)

// InsufficientCreditsError carries the amounts behind ErrInsufficientCredits.
type InsufficientCreditsError struct {
	Current  int64
	Required int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: have %d, need %d", e.Current, e.Required)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
