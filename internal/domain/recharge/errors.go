package recharge

import "errors"

var (
	ErrRecordNotFound    = errors.New("recharge record not found")
	ErrInvalidTransition = errors.New("recharge record is no longer pending")
	ErrInvalidStatus     = errors.New("invalid recharge status")
	ErrUnknownPlan       = errors.New("unknown recharge plan")
	ErrAmountRequired    = errors.New("plan_id or credits_amount is required")
	ErrInvalidAmount     = errors.New("credits_amount must be greater than 0")
	ErrInvalidPayment    = errors.New("payment_amount must not be negative")
	ErrUserNotFound      = errors.New("user not found")
)
