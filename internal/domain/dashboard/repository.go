package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository aggregates back-office statistics. A zero since counts everything.
type Repository interface {
	CountUsers(ctx context.Context, since time.Time) (int64, error)
	CountAdmins(ctx context.Context) (map[string]int64, error)
	CountTransactions(ctx context.Context, since time.Time) (int64, error)
	CountRecharges(ctx context.Context, since time.Time, status string) (int64, error)
	CreditTotals(ctx context.Context) (total, available int64, err error)
	TransactionTrend(ctx context.Context, since time.Time, g Granularity) ([]BucketRow, error)
	RechargeTrend(ctx context.Context, since time.Time, g Granularity) ([]BucketRow, error)
	FirstUserAt(ctx context.Context) (*time.Time, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates dashboard repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountUsers(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, since)
	return n, err
}

func (r *repository) CountAdmins(ctx context.Context) (map[string]int64, error) {
	rows := []struct {
		Role  string `db:"role"`
		Count int64  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT role, COUNT(*) AS count FROM admin_users GROUP BY role`); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

func (r *repository) CountTransactions(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM credit_transactions WHERE created_at >= $1`, since)
	return n, err
}

func (r *repository) CountRecharges(ctx context.Context, since time.Time, status string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM recharge_records
		WHERE created_at >= $1 AND ($2 = '' OR status = $2)`, since, status)
	return n, err
}

func (r *repository) CreditTotals(ctx context.Context) (int64, int64, error) {
	var row struct {
		Total     int64 `db:"total"`
		Available int64 `db:"available"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT COALESCE(SUM(total_credits), 0) AS total, COALESCE(SUM(remaining_credits), 0) AS available
		FROM user_credits`)
	return row.Total, row.Available, err
}

func (r *repository) TransactionTrend(ctx context.Context, since time.Time, g Granularity) ([]BucketRow, error) {
	rows := make([]BucketRow, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date_trunc($2, created_at AT TIME ZONE 'UTC') AS bucket,
		       transaction_type AS kind,
		       COUNT(*) AS count,
		       COALESCE(SUM(ABS(amount)), 0) AS amount
		FROM credit_transactions
		WHERE created_at >= $1
		GROUP BY 1, 2
		ORDER BY 1, 2`, since, string(g))
	if err != nil {
		return nil, fmt.Errorf("transaction trend: %w", err)
	}
	return rows, nil
}

func (r *repository) RechargeTrend(ctx context.Context, since time.Time, g Granularity) ([]BucketRow, error) {
	rows := make([]BucketRow, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date_trunc($2, created_at AT TIME ZONE 'UTC') AS bucket,
		       status AS kind,
		       COUNT(*) AS count,
		       COALESCE(SUM(credits_amount), 0) AS amount
		FROM recharge_records
		WHERE created_at >= $1
		GROUP BY 1, 2
		ORDER BY 1, 2`, since, string(g))
	if err != nil {
		return nil, fmt.Errorf("recharge trend: %w", err)
	}
	return rows, nil
}

func (r *repository) FirstUserAt(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := r.db.GetContext(ctx, &t, `SELECT created_at FROM users ORDER BY created_at ASC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
