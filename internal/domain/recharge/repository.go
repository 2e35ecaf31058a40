package recharge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/pkg/database"
)

const queryTimeout = 5 * time.Second

// Ledger credits balances inside a caller-owned transaction.
type Ledger interface {
	ApplyTx(ctx context.Context, tx *sqlx.Tx, m credit.Mutation) (*credit.Result, error)
}

// Outcome is the result of a committed transition. Credit is set when the
// record completed.
type Outcome struct {
	Record Record
	Credit *credit.Result
}

// Repository defines recharge data access
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	// CreateAndTransition inserts rec as pending and immediately applies t to
	// it in the same transaction.
	CreateAndTransition(ctx context.Context, rec *Record, t Transition) (*Outcome, error)
	Transition(ctx context.Context, t Transition) (*Outcome, error)

	GetByID(ctx context.Context, id uuid.UUID) (*RecordWithUser, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, int, error)
	Search(ctx context.Context, filter Filter) ([]RecordWithUser, int, error)
	StatusBreakdown(ctx context.Context) (map[Status]StatusCount, error)
}

type repository struct {
	db     *sqlx.DB
	ledger Ledger
}

// NewRepository creates recharge repository
func NewRepository(db *sqlx.DB, ledger Ledger) Repository {
	return &repository{db: db, ledger: ledger}
}

const recordColumns = `id, user_id, credits_amount, payment_amount, payment_method, payment_screenshot_url,
	description, status, admin_notes, processed_by, processed_at, created_at, updated_at`

const joinedColumns = `r.id, r.user_id, r.credits_amount, r.payment_amount, r.payment_method, r.payment_screenshot_url,
	r.description, r.status, r.admin_notes, r.processed_by, r.processed_at, r.created_at, r.updated_at,
	u.email AS user_email, a.email AS admin_email`

func (r *repository) Create(ctx context.Context, rec *Record) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return insert(ctx2, r.db, rec)
}

func insert(ctx context.Context, q sqlx.QueryerContext, rec *Record) error {
	err := sqlx.GetContext(ctx, q, rec, `
		INSERT INTO recharge_records (user_id, credits_amount, payment_amount, payment_method, payment_screenshot_url, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+recordColumns,
		rec.UserID, rec.CreditsAmount, rec.PaymentAmount, rec.PaymentMethod, rec.PaymentScreenshotURL, rec.Description)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("insert recharge record: %w", err)
	}
	return nil
}

func (r *repository) CreateAndTransition(ctx context.Context, rec *Record, t Transition) (*Outcome, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out *Outcome
	err := database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		if err := insert(ctx2, tx, rec); err != nil {
			return err
		}
		t.RecordID = rec.ID
		var err error
		out, err = r.transition(ctx2, tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) Transition(ctx context.Context, t Transition) (*Outcome, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var out *Outcome
	err := database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = r.transition(ctx2, tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transition locks the record, moves it out of pending and, on completion,
// credits the owner through the ledger under the same transaction.
func (r *repository) transition(ctx context.Context, tx *sqlx.Tx, t Transition) (*Outcome, error) {
	if !t.To.Terminal() {
		return nil, ErrInvalidStatus
	}

	var current Record
	err := tx.GetContext(ctx, &current, `SELECT `+recordColumns+` FROM recharge_records WHERE id = $1 FOR UPDATE`, t.RecordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock recharge record: %w", err)
	}
	if current.Status != StatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidTransition, current.Status)
	}

	out := &Outcome{}
	err = tx.GetContext(ctx, &out.Record, `
		UPDATE recharge_records
		SET status = $2,
		    admin_notes = COALESCE($3, admin_notes),
		    processed_by = $4,
		    processed_at = now(),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+recordColumns, t.RecordID, t.To, t.Notes, t.ProcessedBy)
	if err != nil {
		return nil, fmt.Errorf("update recharge record: %w", err)
	}

	if t.To != StatusCompleted {
		return out, nil
	}

	out.Credit, err = r.ledger.ApplyTx(ctx, tx, credit.Mutation{
		UserID:      current.UserID,
		Type:        credit.TxTypeRecharge,
		Amount:      current.CreditsAmount,
		Reason:      "recharge record " + current.ID.String(),
		CreatedBy:   t.ProcessedBy,
		ReferenceID: "recharge:" + current.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*RecordWithUser, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rec RecordWithUser
	err := r.db.GetContext(ctx2, &rec, `
		SELECT `+joinedColumns+`
		FROM recharge_records r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN users a ON a.id = r.processed_by
		WHERE r.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recharge record: %w", err)
	}
	return &rec, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM recharge_records WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count recharge records: %w", err)
	}

	records := make([]Record, 0)
	err := r.db.SelectContext(ctx2, &records, `
		SELECT `+recordColumns+`
		FROM recharge_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list recharge records: %w", err)
	}
	return records, total, nil
}

func (r *repository) Search(ctx context.Context, filter Filter) ([]RecordWithUser, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `
		FROM recharge_records r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN users a ON a.id = r.processed_by
		WHERE 1=1`
	args := make([]interface{}, 0, 9)
	idx := 1

	add := func(clause string, v interface{}) {
		base += fmt.Sprintf(clause, idx)
		args = append(args, v)
		idx++
	}
	if filter.Status != "" {
		add(" AND r.status = $%d", filter.Status)
	}
	if filter.UserSearch != "" {
		add(" AND u.email ILIKE $%d", "%"+filter.UserSearch+"%")
	}
	if filter.PaymentMethod != "" {
		add(" AND r.payment_method = $%d", filter.PaymentMethod)
	}
	if filter.MinAmount != nil {
		add(" AND r.credits_amount >= $%d", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		add(" AND r.credits_amount <= $%d", *filter.MaxAmount)
	}
	if filter.DateFrom != nil {
		add(" AND r.created_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add(" AND r.created_at <= $%d", *filter.DateTo)
	}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*)`+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count recharge records: %w", err)
	}

	query := `SELECT ` + joinedColumns + base +
		fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)

	records := make([]RecordWithUser, 0)
	if err := r.db.SelectContext(ctx2, &records, query, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("search recharge records: %w", err)
	}
	return records, total, nil
}

func (r *repository) StatusBreakdown(ctx context.Context) (map[Status]StatusCount, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		Status Status `db:"status"`
		StatusCount
	}
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(credits_amount), 0) AS total_amount
		FROM recharge_records
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("recharge status breakdown: %w", err)
	}

	out := make(map[Status]StatusCount, len(rows))
	for _, row := range rows {
		out[row.Status] = row.StatusCount
	}
	return out, nil
}
