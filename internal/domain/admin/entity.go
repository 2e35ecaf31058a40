package admin

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Privilege is the caller's administrative standing.
type Privilege int

const (
	Viewer Privilege = iota
	Admin
	SuperAdmin
)

// Stored roles in admin_users.role
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

func (p Privilege) String() string {
	switch p {
	case Admin:
		return RoleAdmin
	case SuperAdmin:
		return RoleSuperAdmin
	default:
		return "viewer"
	}
}

// DisplayName is the human label shown in admin listings.
func (p Privilege) DisplayName() string {
	switch p {
	case Admin:
		return "Administrator"
	case SuperAdmin:
		return "Super administrator"
	default:
		return "User"
	}
}

func (p Privilege) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// PrivilegeFromRole maps a stored role to a Privilege. Unknown roles grant nothing.
func PrivilegeFromRole(role string) Privilege {
	switch role {
	case RoleSuperAdmin:
		return SuperAdmin
	case RoleAdmin:
		return Admin
	default:
		return Viewer
	}
}

// Profile is an admin_users row joined with the user's email.
type Profile struct {
	UserID               uuid.UUID `db:"user_id" json:"user_id"`
	Email                string    `db:"email" json:"email"`
	Role                 string    `db:"role" json:"role"`
	QRCodeURL            *string   `db:"qr_code_url" json:"wechat_qr_code_url"`
	RechargeInstructions *string   `db:"recharge_instructions" json:"recharge_instructions"`
	UserCreatedAt        time.Time `db:"user_created_at" json:"user_created_at"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Privilege returns the profile's privilege level.
func (p *Profile) Privilege() Privilege {
	return PrivilegeFromRole(p.Role)
}

// Grant is the resolved authorization of one caller.
type Grant struct {
	UserID    uuid.UUID
	Privilege Privilege
	Profile   *Profile
}

// IsAdmin reports Admin or higher.
func (g Grant) IsAdmin() bool { return g.Privilege >= Admin }

// IsSuperAdmin reports SuperAdmin.
func (g Grant) IsSuperAdmin() bool { return g.Privilege >= SuperAdmin }

// ProfileUpdate lists profile columns to change; nil fields are left alone.
type ProfileUpdate struct {
	QRCodeURL            *string
	RechargeInstructions *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.QRCodeURL == nil && u.RechargeInstructions == nil
}

// AuditLog represents an admin action log entry
type AuditLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	AdminID    uuid.UUID       `db:"admin_id" json:"admin_id"`
	AdminEmail *string         `db:"admin_email" json:"admin_email"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Details    json.RawMessage `db:"details" json:"details"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Setting represents a runtime system setting
type Setting struct {
	Key       string          `db:"key" json:"key"`
	Value     json.RawMessage `db:"value" json:"value"`
	UpdatedBy uuid.NullUUID   `db:"updated_by" json:"-"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Bool returns the value as bool. String values such as "true" are accepted.
func (s *Setting) Bool() (bool, bool) {
	var v bool
	if err := json.Unmarshal(s.Value, &v); err == nil {
		return v, true
	}
	var str string
	if err := json.Unmarshal(s.Value, &str); err == nil {
		if b, err := strconv.ParseBool(str); err == nil {
			return b, true
		}
	}
	return false, false
}

// Int64 returns the value as int64. Numeric strings are accepted.
func (s *Setting) Int64() (int64, bool) {
	var v int64
	if err := json.Unmarshal(s.Value, &v); err == nil {
		return v, true
	}
	var str string
	if err := json.Unmarshal(s.Value, &str); err == nil {
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// String returns the value as string
func (s *Setting) String() (string, bool) {
	var v string
	if err := json.Unmarshal(s.Value, &v); err != nil {
		return "", false
	}
	return v, true
}

// Setting keys
const (
	SettingNewUserCredits            = "new_user_credits"
	SettingDailyCheckinCredits       = "daily_checkin_credits"
	SettingLineArtCost               = "line_art_cost"
	SettingMultiViewCost             = "multi_view_cost"
	SettingBackgroundReplaceCost     = "background_replace_cost"
	SettingAutoApproveRecharges      = "auto_approve_recharges"
	SettingRechargeApprovalThreshold = "recharge_approval_threshold"
	SettingContactEmail              = "contact_email"
	SettingContactPhone              = "contact_phone"
	SettingSystem                    = "system_settings"
)

// Audit actions
const (
	ActionCreditsAdded      = "credits.add"
	ActionCreditsDeducted   = "credits.deduct"
	ActionCreditsRefunded   = "credits.refund"
	ActionRechargeStatus    = "recharge.status"
	ActionRechargeManualAdd = "recharge.manual_add"
	ActionSettingsUpdated   = "settings.update"
	ActionPaymentQRUploaded = "payment_qr.upload"
)
