package admin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banana-studio/banana-api/internal/pkg/database/dbtest"
)

func TestRepositoryProfilesAndSettings(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	profile, err := repo.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, profile)

	dbtest.MakeAdmin(t, db, userID, RoleSuperAdmin)
	profile, err = repo.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, SuperAdmin, profile.Privilege())

	qr := "https://cdn.test/qr-" + userID.String() + ".png"
	require.NoError(t, repo.UpdateProfile(ctx, userID, ProfileUpdate{QRCodeURL: &qr}))

	latest, err := repo.LatestPaymentProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, qr, *latest.QRCodeURL)

	key := "test_setting_" + userID.String()[:8]
	t.Cleanup(func() { db.Exec(`DELETE FROM system_settings WHERE key = $1`, key) })
	require.NoError(t, repo.UpsertSettings(ctx, map[string]json.RawMessage{key: json.RawMessage(`42`)}, userID))
	require.NoError(t, repo.UpsertSettings(ctx, map[string]json.RawMessage{key: json.RawMessage(`43`)}, userID))

	setting, err := repo.GetSetting(ctx, key)
	require.NoError(t, err)
	n, ok := setting.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(43), n)

	seeded, err := repo.GetSetting(ctx, SettingNewUserCredits)
	require.NoError(t, err)
	require.NotNil(t, seeded)
}

func TestRepositoryAuditLogs(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	ctx := context.Background()

	adminID := dbtest.CreateUser(t, db)
	dbtest.MakeAdmin(t, db, adminID, RoleAdmin)
	t.Cleanup(func() { db.Exec(`DELETE FROM admin_audit_logs WHERE admin_id = $1`, adminID) })

	svc.LogAction(ctx, adminID, ActionCreditsAdded, "user_credits", "target", map[string]int{"amount": 50})

	logs, total, err := repo.ListAuditLogs(ctx, AuditFilter{AdminID: &adminID, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, ActionCreditsAdded, logs[0].Action)
	require.NotNil(t, logs[0].AdminEmail)
	assert.JSONEq(t, `{"amount":50}`, string(logs[0].Details))
}
