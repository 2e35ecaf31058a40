package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	verificationCodeTTL         = 5 * time.Minute
	verificationCodeMaxAttempts = 5
	verificationCooldown        = 60 * time.Second
)

// VerificationCode is a row of email_verification_codes.
type VerificationCode struct {
	ID        uuid.UUID  `db:"id"`
	Email     string     `db:"email"`
	CodeHash  string     `db:"code_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	Used      bool       `db:"used"`
	UsedAt    *time.Time `db:"used_at"`
	Attempts  int        `db:"attempts"`
	CreatedAt time.Time  `db:"created_at"`
}

// CodeRepository stores hashed verification codes.
type CodeRepository interface {
	Create(ctx context.Context, code *VerificationCode) error
	// LatestCreatedAt returns when the newest code for email was issued, or nil.
	LatestCreatedAt(ctx context.Context, email string) (*time.Time, error)
	// FindUnused returns the newest unused code for email with the given hash.
	FindUnused(ctx context.Context, email, codeHash string) (*VerificationCode, error)
	// RecordMiss counts a failed guess against the newest unused code and
	// invalidates every unused code of email once maxAttempts is reached.
	RecordMiss(ctx context.Context, email string, maxAttempts int) (attempts int, err error)
	// MarkUsedTx consumes the code; a code consumed concurrently yields ErrInvalidCode.
	MarkUsedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
	// Delete removes a code that was never delivered.
	Delete(ctx context.Context, id uuid.UUID) error
}

type codeRepository struct {
	db *sqlx.DB
}

// NewCodeRepository creates a Postgres-backed CodeRepository.
func NewCodeRepository(db *sqlx.DB) CodeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) Create(ctx context.Context, code *VerificationCode) error {
	query := `
		INSERT INTO email_verification_codes (id, email, code_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	if err := r.db.QueryRowxContext(ctx, query, code.ID, code.Email, code.CodeHash, code.ExpiresAt).Scan(&code.CreatedAt); err != nil {
		return fmt.Errorf("verification code create: %w", err)
	}
	return nil
}

func (r *codeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_verification_codes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("verification code delete: %w", err)
	}
	return nil
}

func (r *codeRepository) LatestCreatedAt(ctx context.Context, email string) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.GetContext(ctx, &latest, `SELECT max(created_at) FROM email_verification_codes WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("verification code latest: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

func (r *codeRepository) FindUnused(ctx context.Context, email, codeHash string) (*VerificationCode, error) {
	query := `
		SELECT id, email, code_hash, expires_at, used, used_at, attempts, created_at
		FROM email_verification_codes
		WHERE email = $1 AND code_hash = $2 AND NOT used
		ORDER BY created_at DESC
		LIMIT 1
	`
	var code VerificationCode
	err := r.db.GetContext(ctx, &code, query, email, codeHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("verification code find: %w", err)
	}
	return &code, nil
}

func (r *codeRepository) RecordMiss(ctx context.Context, email string, maxAttempts int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var attempts int
	err = tx.GetContext(ctx, &attempts, `
		UPDATE email_verification_codes
		SET attempts = attempts + 1
		WHERE id = (
			SELECT id FROM email_verification_codes
			WHERE email = $1 AND NOT used
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING attempts
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("verification code record miss: %w", err)
	}

	if attempts >= maxAttempts {
		if _, err := tx.ExecContext(ctx, `
			UPDATE email_verification_codes
			SET used = true, used_at = now()
			WHERE email = $1 AND NOT used
		`, email); err != nil {
			return 0, fmt.Errorf("verification code invalidate: %w", err)
		}
	}

	return attempts, tx.Commit()
}

func (r *codeRepository) MarkUsedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE email_verification_codes
		SET used = true, used_at = now()
		WHERE id = $1 AND NOT used
	`, id)
	if err != nil {
		return fmt.Errorf("verification code mark used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidCode
	}
	return nil
}
