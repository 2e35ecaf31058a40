package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines admin data access
type Repository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	ListProfiles(ctx context.Context, filter ListAdminsFilter) ([]Profile, int, error)
	CountByRole(ctx context.Context) (map[string]int, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) error
	LatestPaymentProfile(ctx context.Context) (*Profile, error)

	GetSetting(ctx context.Context, key string) (*Setting, error)
	ListSettings(ctx context.Context) ([]Setting, error)
	UpsertSettings(ctx context.Context, values map[string]json.RawMessage, updatedBy uuid.UUID) error

	CreateAuditLog(ctx context.Context, entry *AuditLog) error
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLog, int, error)
}

// ListAdminsFilter filters the admin roster
type ListAdminsFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

// AuditFilter filters the audit log
type AuditFilter struct {
	Action  string
	AdminID *uuid.UUID
	Limit   int
	Offset  int
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates admin repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const profileColumns = `
	a.user_id, u.email, a.role, a.qr_code_url, a.recharge_instructions, u.created_at AS user_created_at, a.created_at, a.updated_at`

func (r *repository) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, `
		SELECT `+profileColumns+`
		FROM admin_users a
		JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin profile: %w", err)
	}
	return &p, nil
}

func (r *repository) ListProfiles(ctx context.Context, filter ListAdminsFilter) ([]Profile, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("a.role = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("u.email ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM admin_users a JOIN users u ON u.id = a.user_id WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("count admins: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	profiles := make([]Profile, 0)
	err := r.db.SelectContext(ctx, &profiles, fmt.Sprintf(`
		SELECT `+profileColumns+`
		FROM admin_users a
		JOIN users u ON u.id = a.user_id
		WHERE %s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list admins: %w", err)
	}
	return profiles, total, nil
}

func (r *repository) CountByRole(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Role  string `db:"role"`
		Count int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT role, COUNT(*) AS count FROM admin_users GROUP BY role`); err != nil {
		return nil, fmt.Errorf("count admins by role: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

func (r *repository) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE admin_users SET
			qr_code_url           = COALESCE($2, qr_code_url),
			recharge_instructions = COALESCE($3, recharge_instructions),
			updated_at            = now()
		WHERE user_id = $1`,
		userID, update.QRCodeURL, update.RechargeInstructions)
	if err != nil {
		return fmt.Errorf("update admin profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func (r *repository) LatestPaymentProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, `
		SELECT `+profileColumns+`
		FROM admin_users a
		JOIN users u ON u.id = a.user_id
		WHERE a.qr_code_url IS NOT NULL AND a.qr_code_url <> ''
		ORDER BY a.updated_at DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest payment profile: %w", err)
	}
	return &p, nil
}

func (r *repository) GetSetting(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	err := r.db.GetContext(ctx, &s, `SELECT key, value, updated_by, updated_at FROM system_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &s, nil
}

func (r *repository) ListSettings(ctx context.Context) ([]Setting, error) {
	settings := make([]Setting, 0)
	if err := r.db.SelectContext(ctx, &settings, `SELECT key, value, updated_by, updated_at FROM system_settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

func (r *repository) UpsertSettings(ctx context.Context, values map[string]json.RawMessage, updatedBy uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range values {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO system_settings (key, value, updated_by, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = now()`,
			key, string(value), updatedBy); err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (r *repository) CreateAuditLog(ctx context.Context, entry *AuditLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_audit_logs (id, admin_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AdminID, entry.Action, entry.EntityType, entry.EntityID, string(entry.Details), entry.CreatedAt)
	return err
}

func (r *repository) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLog, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.Action != "" {
		args = append(args, filter.Action)
		where = append(where, fmt.Sprintf("l.action = $%d", len(args)))
	}
	if filter.AdminID != nil {
		args = append(args, *filter.AdminID)
		where = append(where, fmt.Sprintf("l.admin_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_audit_logs l WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	logs := make([]AuditLog, 0)
	err := r.db.SelectContext(ctx, &logs, fmt.Sprintf(`
		SELECT l.id, l.admin_id, u.email AS admin_email, l.action, l.entity_type, l.entity_id, l.details, l.created_at
		FROM admin_audit_logs l
		LEFT JOIN users u ON u.id = l.admin_id
		WHERE %s
		ORDER BY l.created_at DESC
		LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}
