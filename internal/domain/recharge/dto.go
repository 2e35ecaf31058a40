package recharge

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// CreateRequest is the body of create-recharge-request. Either PlanID or
// CreditsAmount selects the amount.
type CreateRequest struct {
	PlanID        string           `json:"plan_id" validate:"omitempty,max=64"`
	CreditsAmount int64            `json:"credits_amount" validate:"omitempty,gt=0,max=1000000"`
	PaymentAmount *decimal.Decimal `json:"payment_amount"`
	PaymentMethod string           `json:"payment_method" validate:"required,oneof=wechat alipay bank_transfer"`
	Description   string           `json:"description" validate:"max=500"`
}

// UpdateStatusRequest is the body of admin-update-recharge-status.
type UpdateStatusRequest struct {
	RechargeID uuid.UUID `json:"recharge_id" validate:"required"`
	Status     Status    `json:"status" validate:"required,recharge_status"`
	Notes      *string   `json:"notes" validate:"omitempty,max=1000"`
}

// ManualAddRequest is the body of admin-add-recharge.
type ManualAddRequest struct {
	UserID        uuid.UUID        `json:"user_id" validate:"required"`
	CreditsAmount int64            `json:"credits_amount" validate:"required,gt=0,max=1000000"`
	PaymentAmount *decimal.Decimal `json:"payment_amount"`
	PaymentMethod string           `json:"payment_method" validate:"omitempty,oneof=wechat alipay bank_transfer manual"`
	Description   string           `json:"description" validate:"max=500"`
}

// TransitionResponse answers status changes and manual recharges.
type TransitionResponse struct {
	Record          Record              `json:"recharge"`
	CreditsAdded    int64               `json:"credits_added"`
	CreditBalance   *credit.Balance     `json:"credit_balance,omitempty"`
	Transaction     *credit.Transaction `json:"transaction,omitempty"`
	AlreadyCredited bool                `json:"already_credited"`
}

// PaymentInfoResponse answers get-payment-info.
type PaymentInfoResponse struct {
	Plans          []Plan `json:"plans"`
	CreditsPerYuan int    `json:"credits_per_yuan"`
	admin.PaymentDetails
}

// ListResponse answers admin-get-recharge-records.
type ListResponse struct {
	Recharges  []RecordWithUser `json:"recharges"`
	Pagination response.Meta    `json:"pagination"`
	Stats      ListStats        `json:"stats"`
	Filters    ListFilters      `json:"filters"`
}

// ListStats summarizes all recharge records.
type ListStats struct {
	StatusBreakdown map[Status]StatusCount `json:"status_breakdown"`
	TotalAmount     int64                  `json:"total_amount"`
	FilteredCount   int                    `json:"filtered_count"`
	PendingCount    int64                  `json:"pending_count"`
}

// ListFilters echoes the applied filters.
type ListFilters struct {
	Status        *string    `json:"status"`
	UserSearch    *string    `json:"user_search"`
	PaymentMethod *string    `json:"payment_method"`
	MinAmount     *int64     `json:"min_amount"`
	MaxAmount     *int64     `json:"max_amount"`
	DateFrom      *time.Time `json:"date_from"`
	DateTo        *time.Time `json:"date_to"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
