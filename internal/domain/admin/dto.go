package admin

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// UpdateSettingsRequest is the body of admin-update-admin-settings.
// Profile fields apply to the caller; the rest are global and need super admin.
type UpdateSettingsRequest struct {
	WechatQRCodeURL      *string `json:"wechat_qr_code_url" validate:"omitempty,url,max=2048"`
	RechargeInstructions *string `json:"recharge_instructions" validate:"omitempty,max=2000"`

	ContactEmail              *string         `json:"contact_email" validate:"omitempty,email,max=254"`
	ContactPhone              *string         `json:"contact_phone" validate:"omitempty,max=32"`
	SystemSettings            json.RawMessage `json:"system_settings"`
	AutoApproveRecharges      *bool           `json:"auto_approve_recharges"`
	RechargeApprovalThreshold *int64          `json:"recharge_approval_threshold" validate:"omitempty,min=0"`
	NewUserCredits            *int64          `json:"new_user_credits" validate:"omitempty,min=0"`
	DailyCheckinCredits       *int64          `json:"daily_checkin_credits" validate:"omitempty,min=0"`
	LineArtCost               *int64          `json:"line_art_cost" validate:"omitempty,min=0"`
	MultiViewCost             *int64          `json:"multi_view_cost" validate:"omitempty,min=0"`
	BackgroundReplaceCost     *int64          `json:"background_replace_cost" validate:"omitempty,min=0"`
}

func (r *UpdateSettingsRequest) profileUpdate() (ProfileUpdate, []string) {
	var fields []string
	if r.WechatQRCodeURL != nil {
		fields = append(fields, "wechat_qr_code_url")
	}
	if r.RechargeInstructions != nil {
		fields = append(fields, "recharge_instructions")
	}
	return ProfileUpdate{QRCodeURL: r.WechatQRCodeURL, RechargeInstructions: r.RechargeInstructions}, fields
}

// globalValues encodes every global setting present in the request, keyed by
// setting key, in a stable order.
func (r *UpdateSettingsRequest) globalValues() (map[string]json.RawMessage, []string, error) {
	values := make(map[string]json.RawMessage)
	var fields []string

	put := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		values[key] = raw
		fields = append(fields, key)
		return nil
	}

	if r.ContactEmail != nil {
		if err := put(SettingContactEmail, *r.ContactEmail); err != nil {
			return nil, nil, err
		}
	}
	if r.ContactPhone != nil {
		if err := put(SettingContactPhone, *r.ContactPhone); err != nil {
			return nil, nil, err
		}
	}
	if len(r.SystemSettings) > 0 && string(r.SystemSettings) != "null" {
		var obj map[string]interface{}
		if err := json.Unmarshal(r.SystemSettings, &obj); err != nil {
			return nil, nil, ErrInvalidSetting
		}
		values[SettingSystem] = r.SystemSettings
		fields = append(fields, SettingSystem)
	}

	ints := []struct {
		key string
		v   *int64
	}{
		{SettingRechargeApprovalThreshold, r.RechargeApprovalThreshold},
		{SettingNewUserCredits, r.NewUserCredits},
		{SettingDailyCheckinCredits, r.DailyCheckinCredits},
		{SettingLineArtCost, r.LineArtCost},
		{SettingMultiViewCost, r.MultiViewCost},
		{SettingBackgroundReplaceCost, r.BackgroundReplaceCost},
	}
	if r.AutoApproveRecharges != nil {
		if err := put(SettingAutoApproveRecharges, *r.AutoApproveRecharges); err != nil {
			return nil, nil, err
		}
	}
	for _, item := range ints {
		if item.v == nil {
			continue
		}
		if *item.v < 0 {
			return nil, nil, ErrInvalidSetting
		}
		if err := put(item.key, *item.v); err != nil {
			return nil, nil, err
		}
	}

	return values, fields, nil
}

// UpdateSettingsResult is returned after a settings change.
type UpdateSettingsResult struct {
	Message       string   `json:"message"`
	Admin         *Profile `json:"admin"`
	IsSuperAdmin  bool     `json:"is_super_admin"`
	UpdatedFields []string `json:"updated_fields"`
}

// PaymentDetails is what users need to pay a recharge.
type PaymentDetails struct {
	QRCodeURL            *string `json:"wechat_qr_code_url"`
	RechargeInstructions *string `json:"recharge_instructions"`
	ContactEmail         string  `json:"contact_email,omitempty"`
	ContactPhone         string  `json:"contact_phone,omitempty"`
}

// VerifyResponse answers verify-admin.
type VerifyResponse struct {
	IsAdmin    bool       `json:"is_admin"`
	Privilege  Privilege  `json:"privilege"`
	User       VerifyUser `json:"user"`
	AdminInfo  *Profile   `json:"admin_info"`
	VerifiedAt time.Time  `json:"verified_at"`
}

// VerifyUser identifies the caller in VerifyResponse.
type VerifyUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AdminListItem is one row of admin-get-admin-users.
type AdminListItem struct {
	UserID         uuid.UUID `json:"user_id"`
	Email          string    `json:"email"`
	AdminLevel     Privilege `json:"admin_level"`
	AdminLevelName string    `json:"admin_level_name"`
	QRCodeURL      *string   `json:"wechat_qr_code_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	UserCreatedAt  time.Time `json:"user_created_at"`
}

// AdminListItemFromProfile maps a profile to a list row.
func AdminListItemFromProfile(p *Profile) AdminListItem {
	level := p.Privilege()
	return AdminListItem{
		UserID:         p.UserID,
		Email:          p.Email,
		AdminLevel:     level,
		AdminLevelName: level.DisplayName(),
		QRCodeURL:      p.QRCodeURL,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		UserCreatedAt:  p.UserCreatedAt,
	}
}

// LevelCount is one entry of level_breakdown.
type LevelCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AdminListResponse answers admin-get-admin-users.
type AdminListResponse struct {
	Admins     []AdminListItem `json:"admins"`
	Pagination response.Meta   `json:"pagination"`
	Stats      AdminListStats  `json:"stats"`
	Filters    AdminListQuery  `json:"filters"`
}

// AdminListStats summarizes the roster.
type AdminListStats struct {
	LevelBreakdown map[string]LevelCount `json:"level_breakdown"`
	FilteredCount  int                   `json:"filtered_count"`
}

// AdminListQuery echoes the applied filters.
type AdminListQuery struct {
	AdminLevel string `json:"admin_level"`
	Search     string `json:"search"`
}

// AuditLogResponse answers admin-get-audit-logs.
type AuditLogResponse struct {
	Logs       []AuditLog    `json:"logs"`
	Pagination response.Meta `json:"pagination"`
}
