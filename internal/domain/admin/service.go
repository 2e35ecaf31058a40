package admin

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/upload"
)

// Authorizer resolves what a caller is allowed to do.
type Authorizer interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Grant, error)
}

// Auditor records admin mutations. Failures are logged, never returned.
type Auditor interface {
	LogAction(ctx context.Context, adminID uuid.UUID, action, entityType, entityID string, details interface{})
}

// SettingsReader reads typed global settings, falling back to def when unset.
type SettingsReader interface {
	Int64(ctx context.Context, key string, def int64) (int64, error)
	Bool(ctx context.Context, key string, def bool) (bool, error)
}

// ImageUploader stores normalized images.
type ImageUploader interface {
	Image(ctx context.Context, category string, ownerID uuid.UUID, reader io.Reader, withThumbnail bool) (*upload.Result, error)
}

// Service handles admin business logic
type Service struct {
	repo     Repository
	uploader ImageUploader
	now      func() time.Time
}

// NewService creates admin service
func NewService(repo Repository, uploader ImageUploader) *Service {
	return &Service{repo: repo, uploader: uploader, now: time.Now}
}

// Resolve returns the caller's grant. A user without an admin row is a Viewer.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (Grant, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return Grant{}, err
	}
	if profile == nil {
		return Grant{UserID: userID, Privilege: Viewer}, nil
	}
	return Grant{UserID: userID, Privilege: profile.Privilege(), Profile: profile}, nil
}

// Verify answers verify-admin for the caller.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, email string) (*VerifyResponse, error) {
	grant, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &VerifyResponse{
		IsAdmin:    grant.IsAdmin(),
		Privilege:  grant.Privilege,
		User:       VerifyUser{ID: userID, Email: email},
		VerifiedAt: s.now().UTC(),
	}
	if grant.IsAdmin() {
		resp.AdminInfo = grant.Profile
	}
	return resp, nil
}

// LogAction appends an audit row.
func (s *Service) LogAction(ctx context.Context, adminID uuid.UUID, action, entityType, entityID string, details interface{}) {
	raw := json.RawMessage(`{}`)
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			raw = b
		}
	}

	entry := &AuditLog{
		ID:         uuid.New(),
		AdminID:    adminID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    raw,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("admin_id", adminID.String()).
			Str("action", action).
			Msg("failed to write audit log")
	}
}

// Int64 reads an integer setting.
func (s *Service) Int64(ctx context.Context, key string, def int64) (int64, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return def, err
	}
	if setting == nil {
		return def, nil
	}
	v, ok := setting.Int64()
	if !ok {
		log.Warn().Str("key", key).RawJSON("value", setting.Value).Msg("setting is not an integer, using default")
		return def, nil
	}
	return v, nil
}

// Bool reads a boolean setting.
func (s *Service) Bool(ctx context.Context, key string, def bool) (bool, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return def, err
	}
	if setting == nil {
		return def, nil
	}
	v, ok := setting.Bool()
	if !ok {
		log.Warn().Str("key", key).RawJSON("value", setting.Value).Msg("setting is not a boolean, using default")
		return def, nil
	}
	return v, nil
}

func (s *Service) stringSetting(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil || setting == nil {
		return "", err
	}
	v, _ := setting.String()
	return v, nil
}

// ListSettings returns every global setting.
func (s *Service) ListSettings(ctx context.Context) ([]Setting, error) {
	return s.repo.ListSettings(ctx)
}

// UpdateSettings applies profile and global changes for grant.
func (s *Service) UpdateSettings(ctx context.Context, grant Grant, req *UpdateSettingsRequest) (*UpdateSettingsResult, error) {
	if !grant.IsAdmin() {
		return nil, ErrNotAdmin
	}

	profileUpdate, profileFields := req.profileUpdate()
	global, globalFields, err := req.globalValues()
	if err != nil {
		return nil, err
	}

	if len(global) > 0 && !grant.IsSuperAdmin() {
		return nil, ErrSuperAdminRequired
	}
	if profileUpdate.Empty() && len(global) == 0 {
		return nil, ErrNothingToUpdate
	}

	if !profileUpdate.Empty() {
		if err := s.repo.UpdateProfile(ctx, grant.UserID, profileUpdate); err != nil {
			return nil, err
		}
	}
	if len(global) > 0 {
		if err := s.repo.UpsertSettings(ctx, global, grant.UserID); err != nil {
			return nil, err
		}
	}

	updated := append(profileFields, globalFields...)
	s.LogAction(ctx, grant.UserID, ActionSettingsUpdated, "admin_users", grant.UserID.String(), map[string]interface{}{
		"updated_fields": updated,
	})

	profile, err := s.repo.GetProfile(ctx, grant.UserID)
	if err != nil {
		return nil, err
	}

	return &UpdateSettingsResult{
		Message:       "settings updated",
		Admin:         profile,
		IsSuperAdmin:  grant.IsSuperAdmin(),
		UpdatedFields: updated,
	}, nil
}

// UploadPaymentQR stores a new payment QR image for the caller's profile.
func (s *Service) UploadPaymentQR(ctx context.Context, grant Grant, reader io.Reader) (*Profile, error) {
	if !grant.IsAdmin() {
		return nil, ErrNotAdmin
	}

	result, err := s.uploader.Image(ctx, storage.CategoryPaymentQR, grant.UserID, reader, false)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProfile(ctx, grant.UserID, ProfileUpdate{QRCodeURL: &result.URL}); err != nil {
		return nil, err
	}

	s.LogAction(ctx, grant.UserID, ActionPaymentQRUploaded, "admin_users", grant.UserID.String(), map[string]interface{}{
		"key": result.Key,
		"url": result.URL,
	})

	return s.repo.GetProfile(ctx, grant.UserID)
}

// PaymentDetails returns the most recently published QR code and contacts.
func (s *Service) PaymentDetails(ctx context.Context) (*PaymentDetails, error) {
	details := &PaymentDetails{}

	profile, err := s.repo.LatestPaymentProfile(ctx)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		details.QRCodeURL = profile.QRCodeURL
		details.RechargeInstructions = profile.RechargeInstructions
	}

	if details.ContactEmail, err = s.stringSetting(ctx, SettingContactEmail); err != nil {
		return nil, err
	}
	if details.ContactPhone, err = s.stringSetting(ctx, SettingContactPhone); err != nil {
		return nil, err
	}
	return details, nil
}

// ListAdmins returns the admin roster with role counts.
func (s *Service) ListAdmins(ctx context.Context, filter ListAdminsFilter) (*AdminListResponse, error) {
	if filter.Role != "" && PrivilegeFromRole(filter.Role) == Viewer {
		return nil, ErrInvalidAdminLevel
	}

	profiles, total, err := s.repo.ListProfiles(ctx, filter)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]AdminListItem, len(profiles))
	for i := range profiles {
		items[i] = AdminListItemFromProfile(&profiles[i])
	}

	breakdown := make(map[string]LevelCount, 2)
	for _, p := range []Privilege{Admin, SuperAdmin} {
		breakdown[p.String()] = LevelCount{Name: p.DisplayName(), Count: counts[p.String()]}
	}

	return &AdminListResponse{
		Admins:     items,
		Pagination: response.NewMeta(filter.Limit, filter.Offset, total),
		Stats:      AdminListStats{LevelBreakdown: breakdown, FilteredCount: total},
		Filters:    AdminListQuery{AdminLevel: filter.Role, Search: filter.Search},
	}, nil
}

// ListAuditLogs returns a page of audit entries.
func (s *Service) ListAuditLogs(ctx context.Context, filter AuditFilter) (*AuditLogResponse, error) {
	logs, total, err := s.repo.ListAuditLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &AuditLogResponse{Logs: logs, Pagination: response.NewMeta(filter.Limit, filter.Offset, total)}, nil
}
