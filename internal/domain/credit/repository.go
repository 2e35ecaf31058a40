package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/banana-studio/banana-api/internal/pkg/database"
)

const queryTimeout = 5 * time.Second

// Repository is the points ledger. Every balance change goes through Apply or
// ApplyTx so the balance row and its log entry commit together.
type Repository interface {
	Apply(ctx context.Context, m Mutation) (*Result, error)
	ApplyTx(ctx context.Context, tx *sqlx.Tx, m Mutation) (*Result, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error)

	ListUsersWithCredits(ctx context.Context, filter UserFilter) ([]UserWithCredits, int, error)
	CreditStats(ctx context.Context) (*CreditStats, error)
	SearchTransactions(ctx context.Context, filter SearchFilter) ([]TransactionWithUser, int, error)
	TypeBreakdown(ctx context.Context) (map[TxType]TypeTotal, error)
}

// CreditRepository provides credit ledger and balance operations.
type CreditRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

const balanceColumns = `user_id, total_credits, remaining_credits, created_at, updated_at`

const transactionColumns = `id, user_id, transaction_type, amount, balance_after, reason, created_by, reference_id, created_at`

func validate(m Mutation) error {
	if !m.Type.Valid() {
		return ErrInvalidType
	}
	if m.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(m.Reason) == "" {
		return ErrReasonRequired
	}
	return nil
}

// Apply runs m in its own transaction.
func (r *CreditRepository) Apply(ctx context.Context, m Mutation) (*Result, error) {
	if err := validate(m); err != nil {
		return nil, err
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var result *Result
	err := database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		var err error
		result, err = r.ApplyTx(ctx2, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyTx applies m inside tx. The balance row stays locked until the caller
// commits or rolls back.
func (r *CreditRepository) ApplyTx(ctx context.Context, tx *sqlx.Tx, m Mutation) (*Result, error) {
	if err := validate(m); err != nil {
		return nil, err
	}

	balance, err := lockBalance(ctx, tx, m.UserID)
	if err != nil {
		return nil, err
	}

	if m.ReferenceID != "" {
		existing, err := findByReference(ctx, tx, m.UserID, m.ReferenceID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Type != m.Type || existing.Amount != m.Signed() {
				return nil, ErrReferenceConflict
			}
			return &Result{Transaction: *existing, Balance: *balance, Replayed: true}, nil
		}
	}

	if m.Type.IsDebit() && balance.RemainingCredits < m.Amount {
		return nil, &InsufficientCreditsError{Current: balance.RemainingCredits, Required: m.Amount}
	}
	if balance.overflows(m) {
		return nil, fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
	}

	remaining := balance.RemainingCredits + m.Signed()
	total := balance.TotalCredits
	if m.Type.RaisesTotal() {
		total += m.Amount
	}

	if m.ExpectedBalanceAfter != nil && *m.ExpectedBalanceAfter != remaining {
		return nil, ErrBalanceMismatch
	}

	var updated Balance
	err = tx.GetContext(ctx, &updated, `
		UPDATE user_credits
		SET total_credits = $2, remaining_credits = $3, updated_at = now()
		WHERE user_id = $1
		RETURNING `+balanceColumns, m.UserID, total, remaining)
	if err != nil {
		return nil, fmt.Errorf("%w: update balance: %v", ErrInternal, err)
	}

	var ref *string
	if m.ReferenceID != "" {
		ref = &m.ReferenceID
	}

	var entry Transaction
	err = tx.GetContext(ctx, &entry, `
		INSERT INTO credit_transactions (user_id, transaction_type, amount, balance_after, reason, created_by, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+transactionColumns,
		m.UserID, m.Type, m.Signed(), remaining, strings.TrimSpace(m.Reason), m.CreatedBy, ref)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrReferenceConflict
		}
		return nil, fmt.Errorf("%w: insert transaction: %v", ErrInternal, err)
	}

	return &Result{Transaction: entry, Balance: updated}, nil
}

// lockBalance creates the balance row on first use and locks it.
func lockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Balance, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_credits (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: init balance: %v", ErrInternal, err)
	}

	var balance Balance
	err = tx.GetContext(ctx, &balance, `SELECT `+balanceColumns+` FROM user_credits WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: lock balance: %v", ErrInternal, err)
	}
	return &balance, nil
}

func findByReference(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, ref string) (*Transaction, error) {
	var entry Transaction
	err := tx.GetContext(ctx, &entry, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE user_id = $1 AND reference_id = $2`, userID, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find reference: %v", ErrInternal, err)
	}
	return &entry, nil
}

// GetBalance returns the balance, creating a zero row for first-time users.
func (r *CreditRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance Balance
	err := r.db.GetContext(ctx2, &balance, `
		WITH ins AS (
			INSERT INTO user_credits (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING `+balanceColumns+`
		)
		SELECT `+balanceColumns+` FROM ins
		UNION ALL
		SELECT `+balanceColumns+` FROM user_credits WHERE user_id = $1
		LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		// A concurrent first read inserted the row after this statement's
		// snapshot was taken; a fresh statement sees it.
		err = r.db.GetContext(ctx2, &balance, `SELECT `+balanceColumns+` FROM user_credits WHERE user_id = $1`, userID)
	}
	if err != nil {
		if database.IsForeignKeyViolation(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: get balance: %v", ErrInternal, err)
	}
	return &balance, nil
}

func (r *CreditRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := "user_id = $1 AND ($2 = '' OR transaction_type = $2)"
	args := []interface{}{filter.UserID, string(filter.Type)}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM credit_transactions WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count transactions: %v", ErrInternal, err)
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list transactions: %v", ErrInternal, err)
	}
	return transactions, total, nil
}

func (r *CreditRepository) ListUsersWithCredits(ctx context.Context, filter UserFilter) ([]UserWithCredits, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := ` FROM users u LEFT JOIN user_credits c ON c.user_id = u.id WHERE 1=1`
	args := make([]interface{}, 0, 5)
	idx := 1

	if filter.Search != "" {
		base += fmt.Sprintf(" AND u.email ILIKE $%d", idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.MinCredits != nil {
		base += fmt.Sprintf(" AND COALESCE(c.remaining_credits, 0) >= $%d", idx)
		args = append(args, *filter.MinCredits)
		idx++
	}
	if filter.MaxCredits != nil {
		base += fmt.Sprintf(" AND COALESCE(c.remaining_credits, 0) <= $%d", idx)
		args = append(args, *filter.MaxCredits)
		idx++
	}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*)`+base, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count users: %v", ErrInternal, err)
	}

	query := `
		SELECT u.id AS user_id, u.email,
		       COALESCE(c.total_credits, 0) AS total_credits,
		       COALESCE(c.remaining_credits, 0) AS remaining_credits,
		       u.created_at AS user_created_at,
		       c.updated_at` + base +
		fmt.Sprintf(" ORDER BY COALESCE(c.updated_at, u.created_at) DESC LIMIT $%d OFFSET $%d", idx, idx+1)

	users := make([]UserWithCredits, 0)
	if err := r.db.SelectContext(ctx2, &users, query, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("%w: list users: %v", ErrInternal, err)
	}
	return users, total, nil
}

func (r *CreditRepository) CreditStats(ctx context.Context) (*CreditStats, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var stats CreditStats
	err := r.db.GetContext(ctx2, &stats, `
		SELECT COALESCE(SUM(remaining_credits), 0) AS total,
		       COALESCE(ROUND(AVG(remaining_credits)), 0)::bigint AS average,
		       COALESCE(MIN(remaining_credits), 0) AS min,
		       COALESCE(MAX(remaining_credits), 0) AS max
		FROM user_credits`)
	if err != nil {
		return nil, fmt.Errorf("%w: credit stats: %v", ErrInternal, err)
	}
	return &stats, nil
}

func (r *CreditRepository) SearchTransactions(ctx context.Context, filter SearchFilter) ([]TransactionWithUser, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := ` FROM credit_transactions t JOIN users u ON u.id = t.user_id WHERE 1=1`
	args := make([]interface{}, 0, 6)
	idx := 1

	if filter.Type != "" {
		base += fmt.Sprintf(" AND t.transaction_type = $%d", idx)
		args = append(args, string(filter.Type))
		idx++
	}
	if filter.UserSearch != "" {
		base += fmt.Sprintf(" AND u.email ILIKE $%d", idx)
		args = append(args, "%"+filter.UserSearch+"%")
		idx++
	}
	if filter.DateFrom != nil {
		base += fmt.Sprintf(" AND t.created_at >= $%d", idx)
		args = append(args, *filter.DateFrom)
		idx++
	}
	if filter.DateTo != nil {
		base += fmt.Sprintf(" AND t.created_at <= $%d", idx)
		args = append(args, *filter.DateTo)
		idx++
	}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*)`+base, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count transactions: %v", ErrInternal, err)
	}

	query := `
		SELECT t.id, t.user_id, t.transaction_type, t.amount, t.balance_after, t.reason,
		       t.created_by, t.reference_id, t.created_at, u.email AS user_email` + base +
		fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", idx, idx+1)

	rows := make([]TransactionWithUser, 0)
	if err := r.db.SelectContext(ctx2, &rows, query, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("%w: search transactions: %v", ErrInternal, err)
	}
	return rows, total, nil
}

func (r *CreditRepository) TypeBreakdown(ctx context.Context) (map[TxType]TypeTotal, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := []struct {
		Type TxType `db:"transaction_type"`
		TypeTotal
	}{}
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT transaction_type, COUNT(*) AS count, COALESCE(SUM(ABS(amount)), 0) AS total_amount
		FROM credit_transactions
		GROUP BY transaction_type`)
	if err != nil {
		return nil, fmt.Errorf("%w: type breakdown: %v", ErrInternal, err)
	}

	out := make(map[TxType]TypeTotal, len(rows))
	for _, row := range rows {
		out[row.Type] = row.TypeTotal
	}
	return out, nil
}
