package credit

import (
	"time"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// SpendRequest is the body of update-user-credits.
type SpendRequest struct {
	CreditsToDeduct int64  `json:"credits_to_deduct" validate:"required,gt=0,max=1000000"`
	Reason          string `json:"reason" validate:"required,max=500"`
	ReferenceID     string `json:"reference_id" validate:"omitempty,max=128"`
}

// SpendResponse answers update-user-credits.
type SpendResponse struct {
	Success          bool        `json:"success"`
	UserID           uuid.UUID   `json:"user_id"`
	DeductedCredits  int64       `json:"deducted_credits"`
	RemainingCredits int64       `json:"remaining_credits"`
	Reason           string      `json:"reason"`
	Transaction      Transaction `json:"transaction"`
	Replayed         bool        `json:"replayed"`
	TransactionTime  time.Time   `json:"transaction_time"`
}

// Operation is the client-facing verb of create-credit-transaction.
type Operation string

const (
	OpAdd    Operation = "add"
	OpDeduct Operation = "deduct"
	OpRefund Operation = "refund"
)

// CreateTransactionRequest is the body of create-credit-transaction.
type CreateTransactionRequest struct {
	TransactionType Operation  `json:"transaction_type" validate:"required,credit_op"`
	CreditsAmount   int64      `json:"credits_amount" validate:"required,gt=0,max=1000000"`
	Reason          string     `json:"reason" validate:"required,max=500"`
	UserID          *uuid.UUID `json:"user_id"`
	BalanceAfter    *int64     `json:"balance_after" validate:"omitempty,min=0"`
	ReferenceID     string     `json:"reference_id" validate:"omitempty,max=128"`
}

// AddCreditsRequest is the body of add-credits-for-user.
type AddCreditsRequest struct {
	TargetUserID  uuid.UUID `json:"target_user_id" validate:"required"`
	CreditsAmount int64     `json:"credits_amount" validate:"required,gt=0,max=1000000"`
	Reason        string    `json:"reason" validate:"required,max=500"`
}

// AddCreditsResponse answers add-credits-for-user.
type AddCreditsResponse struct {
	Success          bool        `json:"success"`
	TargetUserID     uuid.UUID   `json:"target_user_id"`
	AddedCredits     int64       `json:"added_credits"`
	TotalCredits     int64       `json:"total_credits"`
	RemainingCredits int64       `json:"remaining_credits"`
	Reason           string      `json:"reason"`
	Transaction      Transaction `json:"transaction"`
}

// CheckInResponse answers daily-check-in.
type CheckInResponse struct {
	AlreadyCheckedIn bool        `json:"already_checked_in"`
	CreditsEarned    int64       `json:"credits_earned"`
	RemainingCredits int64       `json:"remaining_credits"`
	Transaction      Transaction `json:"transaction"`
	Date             string      `json:"date"`
}

// UsersWithCreditsResponse answers admin-get-users-with-credits.
type UsersWithCreditsResponse struct {
	Users      []UserWithCredits `json:"users"`
	Pagination response.Meta     `json:"pagination"`
	Stats      UsersStats        `json:"stats"`
	Filters    UsersFilters      `json:"filters"`
}

// UsersStats summarizes balances.
type UsersStats struct {
	Credits       CreditStats `json:"credits"`
	FilteredCount int         `json:"filtered_count"`
}

// UsersFilters echoes the applied filters.
type UsersFilters struct {
	Search     *string `json:"search"`
	MinCredits *int64  `json:"min_credits"`
	MaxCredits *int64  `json:"max_credits"`
}

// TransactionsWithUsersResponse answers admin-get-transactions-with-users.
type TransactionsWithUsersResponse struct {
	Transactions []TransactionWithUser `json:"transactions"`
	Pagination   response.Meta         `json:"pagination"`
	Stats        TransactionsStats     `json:"stats"`
	Filters      TransactionsFilters   `json:"filters"`
}

// TransactionsStats breaks the ledger down by type.
type TransactionsStats struct {
	TypeBreakdown map[TxType]TypeTotal `json:"type_breakdown"`
	FilteredCount int                  `json:"filtered_count"`
}

// TransactionsFilters echoes the applied filters.
type TransactionsFilters struct {
	TransactionType *string    `json:"transaction_type"`
	UserSearch      *string    `json:"user_search"`
	DateFrom        *time.Time `json:"date_from"`
	DateTo          *time.Time `json:"date_to"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
