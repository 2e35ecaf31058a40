package credit

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TxType defines supported credit transaction types.
type TxType string

const (
	TxTypeEarn        TxType = "earn"
	TxTypeSpend       TxType = "spend"
	TxTypeRecharge    TxType = "recharge"
	TxTypeAdminAdd    TxType = "admin_add"
	TxTypeAdminDeduct TxType = "admin_deduct"
	TxTypeRefund      TxType = "refund"
)

// Valid reports whether t is a known type.
func (t TxType) Valid() bool {
	switch t {
	case TxTypeEarn, TxTypeSpend, TxTypeRecharge, TxTypeAdminAdd, TxTypeAdminDeduct, TxTypeRefund:
		return true
	}
	return false
}

// IsDebit reports whether t removes credits.
func (t TxType) IsDebit() bool {
	return t == TxTypeSpend || t == TxTypeAdminDeduct
}

// Sign is -1 for debits and +1 for credits.
func (t TxType) Sign() int64 {
	if t.IsDebit() {
		return -1
	}
	return 1
}

// RaisesTotal reports whether t counts towards total_credits. Refunds only
// restore spendable credits.
func (t TxType) RaisesTotal() bool {
	return !t.IsDebit() && t != TxTypeRefund
}

// Balance is a user_credits row.
type Balance struct {
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	TotalCredits     int64     `db:"total_credits" json:"total_credits"`
	RemainingCredits int64     `db:"remaining_credits" json:"remaining_credits"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is a ledger row. Amount is signed.
type Transaction struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	UserID       uuid.UUID     `db:"user_id" json:"user_id"`
	Type         TxType        `db:"transaction_type" json:"transaction_type"`
	Amount       int64         `db:"amount" json:"amount"`
	BalanceAfter int64         `db:"balance_after" json:"balance_after"`
	Reason       string        `db:"reason" json:"reason"`
	CreatedBy    uuid.NullUUID `db:"created_by" json:"created_by"`
	ReferenceID  *string       `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Mutation describes one balance change. Amount is a positive magnitude; the
// direction comes from Type.
type Mutation struct {
	UserID    uuid.UUID
	Type      TxType
	Amount    int64
	Reason    string
	CreatedBy uuid.NullUUID

	// ReferenceID makes the mutation idempotent per user.
	ReferenceID string

	// ExpectedBalanceAfter, when set, must equal the computed balance.
	ExpectedBalanceAfter *int64
}

// Signed returns the signed ledger amount.
func (m Mutation) Signed() int64 {
	return m.Type.Sign() * m.Amount
}

// overflows reports whether crediting m onto b would exceed the int64 range.
func (b Balance) overflows(m Mutation) bool {
	if m.Type.IsDebit() {
		return false
	}
	if b.RemainingCredits > math.MaxInt64-m.Amount {
		return true
	}
	return m.Type.RaisesTotal() && b.TotalCredits > math.MaxInt64-m.Amount
}

// Result is the outcome of an applied mutation.
type Result struct {
	Transaction Transaction `json:"transaction"`
	Balance     Balance     `json:"balance"`
	Replayed    bool        `json:"replayed"`
}

// TransactionFilter filters a user's ledger.
type TransactionFilter struct {
	UserID uuid.UUID
	Type   TxType
	Limit  int
	Offset int
}

// UserFilter filters admin-get-users-with-credits.
type UserFilter struct {
	Search     string
	MinCredits *int64
	MaxCredits *int64
	Limit      int
	Offset     int
}

// UserWithCredits is a user joined with their balance.
type UserWithCredits struct {
	UserID           uuid.UUID  `db:"user_id" json:"user_id"`
	Email            string     `db:"email" json:"email"`
	TotalCredits     int64      `db:"total_credits" json:"total_credits"`
	RemainingCredits int64      `db:"remaining_credits" json:"remaining_credits"`
	UserCreatedAt    time.Time  `db:"user_created_at" json:"user_created_at"`
	UpdatedAt        *time.Time `db:"updated_at" json:"updated_at"`
}

// CreditStats summarizes remaining credits across all balances.
type CreditStats struct {
	Total   int64 `db:"total" json:"total"`
	Average int64 `db:"average" json:"average"`
	Min     int64 `db:"min" json:"min"`
	Max     int64 `db:"max" json:"max"`
}

// SearchFilter filters admin-get-transactions-with-users.
type SearchFilter struct {
	Type       TxType
	UserSearch string
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

// TransactionWithUser is a ledger row joined with the owner's email.
type TransactionWithUser struct {
	Transaction
	UserEmail string `db:"user_email" json:"user_email"`
}

// TypeTotal is one entry of type_breakdown. TotalAmount sums absolute amounts.
type TypeTotal struct {
	Count       int64 `db:"count" json:"count"`
	TotalAmount int64 `db:"total_amount" json:"total_amount"`
}
