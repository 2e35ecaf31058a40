package recharge

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents recharge status
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Payment methods
const (
	MethodWeChat       = "wechat"
	MethodAlipay       = "alipay"
	MethodBankTransfer = "bank_transfer"
	MethodManual       = "manual"
)

// Record is a recharge_records row.
type Record struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	UserID               uuid.UUID       `db:"user_id" json:"user_id"`
	CreditsAmount        int64           `db:"credits_amount" json:"credits_amount"`
	PaymentAmount        decimal.Decimal `db:"payment_amount" json:"payment_amount"`
	PaymentMethod        string          `db:"payment_method" json:"payment_method"`
	PaymentScreenshotURL *string         `db:"payment_screenshot_url" json:"payment_screenshot_url"`
	Description          string          `db:"description" json:"description"`
	Status               Status          `db:"status" json:"status"`
	AdminNotes           *string         `db:"admin_notes" json:"admin_notes"`
	ProcessedBy          uuid.NullUUID   `db:"processed_by" json:"processed_by"`
	ProcessedAt          *time.Time      `db:"processed_at" json:"processed_at"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// RecordWithUser adds the owner's and processor's emails.
type RecordWithUser struct {
	Record
	UserEmail  string  `db:"user_email" json:"user_email"`
	AdminEmail *string `db:"admin_email" json:"admin_email"`
}

// Filter filters admin-get-recharge-records.
type Filter struct {
	Status        Status
	UserSearch    string
	PaymentMethod string
	MinAmount     *int64
	MaxAmount     *int64
	DateFrom      *time.Time
	DateTo        *time.Time
	Limit         int
	Offset        int
}

// StatusCount is one entry of status_breakdown.
type StatusCount struct {
	Count       int64 `db:"count" json:"count"`
	TotalAmount int64 `db:"total_amount" json:"total_amount"`
}

// Transition moves a pending record to a terminal status. ProcessedBy is
// empty for system approvals.
type Transition struct {
	RecordID    uuid.UUID
	To          Status
	ProcessedBy uuid.NullUUID
	Notes       *string
}
