package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/domain/user"
	"github.com/banana-studio/banana-api/internal/pkg/database"
	"github.com/banana-studio/banana-api/internal/pkg/database/dbtest"
	"github.com/banana-studio/banana-api/internal/pkg/jwt"
)

func testEmail() string {
	return fmt.Sprintf("code_%s@test.banana", uuid.NewString()[:8])
}

func TestCodeRepository_FindAndConsume(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewCodeRepository(db)
	ctx := t.Context()
	email := testEmail()
	t.Cleanup(func() { db.Exec(`DELETE FROM email_verification_codes WHERE email = $1`, email) })

	latest, err := repo.LatestCreatedAt(ctx, email)
	require.NoError(t, err)
	assert.Nil(t, latest)

	rec := &VerificationCode{Email: email, CodeHash: hashCode(email, "123456"), ExpiresAt: time.Now().Add(verificationCodeTTL)}
	require.NoError(t, repo.Create(ctx, rec))

	latest, err = repo.LatestCreatedAt(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, latest)

	found, err := repo.FindUnused(ctx, email, hashCode(email, "123456"))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = repo.FindUnused(ctx, email, hashCode(email, "654321"))
	assert.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		return repo.MarkUsedTx(ctx, tx, rec.ID)
	}))
	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		return repo.MarkUsedTx(ctx, tx, rec.ID)
	})
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = repo.FindUnused(ctx, email, hashCode(email, "123456"))
	assert.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	latest, err = repo.LatestCreatedAt(ctx, email)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCodeRepository_RecordMissInvalidates(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewCodeRepository(db)
	ctx := t.Context()
	email := testEmail()
	t.Cleanup(func() { db.Exec(`DELETE FROM email_verification_codes WHERE email = $1`, email) })

	attempts, err := repo.RecordMiss(ctx, email, verificationCodeMaxAttempts)
	require.NoError(t, err)
	assert.Zero(t, attempts)

	for _, code := range []string{"111111", "222222"} {
		require.NoError(t, repo.Create(ctx, &VerificationCode{Email: email, CodeHash: hashCode(email, code), ExpiresAt: time.Now().Add(time.Minute)}))
	}

	for i := 1; i <= verificationCodeMaxAttempts; i++ {
		attempts, err = repo.RecordMiss(ctx, email, verificationCodeMaxAttempts)
		require.NoError(t, err)
		assert.Equal(t, i, attempts)
	}

	for _, code := range []string{"111111", "222222"} {
		_, err = repo.FindUnused(ctx, email, hashCode(email, code))
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
}

type nopMailer struct{ code string }

func (m *nopMailer) SendVerificationCode(_ context.Context, _, code string, _ int) error {
	m.code = code
	return nil
}
func (m *nopMailer) SendWelcome(string, int64, string) {}

func TestService_RegisterAgainstPostgres(t *testing.T) {
	db := dbtest.Open(t)
	ctx := t.Context()
	email := testEmail()
	t.Cleanup(func() {
		db.Exec(`DELETE FROM users WHERE email = $1`, email)
		db.Exec(`DELETE FROM email_verification_codes WHERE email = $1`, email)
	})

	ledgerRepo := credit.NewRepository(db)
	adminRepo := admin.NewRepository(db)
	adminSvc := admin.NewService(adminRepo, nil)
	ledger := credit.NewService(ledgerRepo, adminSvc, adminSvc, adminSvc, realtime.NopPublisher{})
	mailer := &nopMailer{}
	codes := NewCodeRepository(db)

	svc := NewService(Deps{
		Users:     user.NewRepository(db),
		Codes:     codes,
		JWT:       jwt.NewService("test-secret", time.Hour, time.Hour),
		Mailer:    mailer,
		Ledger:    ledgerRepo,
		Committer: ledger,
		Settings:  adminSvc,
		RunTx: func(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
			return database.WithTx(ctx, db, fn)
		},
	})

	_, err := svc.SendCode(ctx, &SendCodeRequest{Email: email})
	require.NoError(t, err)

	_, err = svc.SendCode(ctx, &SendCodeRequest{Email: email})
	assert.ErrorIs(t, err, ErrCooldown, "the database cooldown applies without redis")

	resp, err := svc.Register(ctx, &RegisterRequest{Email: email, Code: mailer.code, Password: testPassword})
	require.NoError(t, err)

	balance, err := ledgerRepo.GetBalance(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, *resp.SignupCredits, balance.RemainingCredits)

	_, err = svc.Register(ctx, &RegisterRequest{Email: email, Code: mailer.code, Password: testPassword})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestRedisStores(t *testing.T) {
	client := dbtest.Redis(t)
	ctx := t.Context()
	email := testEmail()
	t.Cleanup(func() { client.Del(context.Background(), keyPrefixCooldown+email) })

	cd := NewRedisCooldown(client)
	ok, err := cd.Acquire(ctx, email)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = cd.Acquire(ctx, email)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, cd.Release(ctx, email))
	ok, err = cd.Acquire(ctx, email)
	require.NoError(t, err)
	assert.True(t, ok)

	store := NewRedisTokenStore(client)
	userID := uuid.New()
	hash := jwt.HashRefreshToken(uuid.NewString())
	require.NoError(t, store.Save(ctx, hash, userID, time.Minute))

	got, err := store.Take(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = store.Take(ctx, hash)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
