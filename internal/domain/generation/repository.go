package generation

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
	"github.com/banana-studio/banana-api/internal/pkg/imagegen"
)

const (
	queryTimeout  = 5 * time.Second
	maxErrorBytes = 2000
)

// Ledger debits and refunds balances inside a caller-owned transaction.
type Ledger interface {
	ApplyTx(ctx context.Context, tx *sqlx.Tx, m credit.Mutation) (*credit.Result, error)
}

// Outcome pairs a generation with the ledger mutation committed with it.
type Outcome struct {
	Generation *Generation
	Credit     *credit.Result
}

// Repository defines generation data access
type Repository interface {
	// CreateWithDebit inserts a pending job and charges its cost atomically.
	CreateWithDebit(ctx context.Context, g *Generation) (*Outcome, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Generation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Generation, int, error)

	// ClaimNext moves the oldest pending job to processing; nil when idle.
	ClaimNext(ctx context.Context) (*Generation, error)
	Complete(ctx context.Context, id uuid.UUID, resultURL string) (*Generation, error)
	// Fail records a failed attempt. Once attempts reach maxAttempts the job is
	// marked failed and its cost refunded in the same transaction.
	Fail(ctx context.Context, id uuid.UUID, reason string, maxAttempts int) (*Outcome, error)
	// ResetStale returns jobs stuck in processing for longer than age to pending.
	ResetStale(ctx context.Context, age time.Duration) (int64, error)
}

type repository struct {
	db     *sqlx.DB
	ledger Ledger
}

// NewRepository creates generation repository
func NewRepository(db *sqlx.DB, ledger Ledger) Repository {
	return &repository{db: db, ledger: ledger}
}

const columns = `id, user_id, feature, prompt, input_url, status, cost, result_url, error, attempts, created_at, updated_at`

// SpendReference is the ledger reference of a generation's debit.
func SpendReference(id uuid.UUID) string { return "generation:" + id.String() }

// RefundReference is the ledger reference of a generation's refund.
func RefundReference(id uuid.UUID) string { return "generation-refund:" + id.String() }

func (r *repository) CreateWithDebit(ctx context.Context, g *Generation) (*Outcome, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out := &Outcome{Generation: g}
	err := database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx2, g, `
			INSERT INTO generations (user_id, feature, prompt, input_url, cost)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+columns,
			g.UserID, g.Feature, g.Prompt, g.InputURL, g.Cost)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return credit.ErrUserNotFound
			}
			return fmt.Errorf("insert generation: %w", err)
		}
		if g.Cost == 0 {
			return nil
		}

		out.Credit, err = r.ledger.ApplyTx(ctx2, tx, credit.Mutation{
			UserID:      g.UserID,
			Type:        credit.TxTypeSpend,
			Amount:      g.Cost,
			Reason:      fmt.Sprintf("%s generation", g.Feature),
			ReferenceID: SpendReference(g.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Generation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g Generation
	err := r.db.GetContext(ctx2, &g, `SELECT `+columns+` FROM generations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return &g, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Generation, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM generations WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count generations: %w", err)
	}

	items := make([]Generation, 0)
	err := r.db.SelectContext(ctx2, &items, `
		SELECT `+columns+`
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list generations: %w", err)
	}
	return items, total, nil
}

func (r *repository) ClaimNext(ctx context.Context) (*Generation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g Generation
	err := r.db.GetContext(ctx2, &g, `
		UPDATE generations
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM generations
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+columns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim generation: %w", err)
	}
	return &g, nil
}

func (r *repository) Complete(ctx context.Context, id uuid.UUID, resultURL string) (*Generation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var g Generation
	err := r.db.GetContext(ctx2, &g, `
		UPDATE generations
		SET status = 'completed', result_url = $2, error = NULL, updated_at = now()
		WHERE id = $1 AND status = 'processing'
		RETURNING `+columns, id, resultURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotProcessing
	}
	if err != nil {
		return nil, fmt.Errorf("complete generation: %w", err)
	}
	return &g, nil
}

func (r *repository) Fail(ctx context.Context, id uuid.UUID, reason string, maxAttempts int) (*Outcome, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	reason = imagegen.Truncate(reason, maxErrorBytes)

	out := &Outcome{Generation: &Generation{}}
	err := database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		g := out.Generation
		err := tx.GetContext(ctx2, g, `SELECT `+columns+` FROM generations WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock generation: %w", err)
		}
		if g.Status != StatusProcessing {
			return ErrNotProcessing
		}

		next := StatusPending
		if g.Attempts >= maxAttempts {
			next = StatusFailed
		}
		err = tx.GetContext(ctx2, g, `
			UPDATE generations
			SET status = $2, error = $3, updated_at = now()
			WHERE id = $1
			RETURNING `+columns, id, next, reason)
		if err != nil {
			return fmt.Errorf("fail generation: %w", err)
		}
		if next != StatusFailed || g.Cost == 0 {
			return nil
		}

		out.Credit, err = r.ledger.ApplyTx(ctx2, tx, credit.Mutation{
			UserID:      g.UserID,
			Type:        credit.TxTypeRefund,
			Amount:      g.Cost,
			Reason:      fmt.Sprintf("refund for failed %s generation", g.Feature),
			ReferenceID: RefundReference(g.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ResetStale(ctx context.Context, age time.Duration) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `
		UPDATE generations
		SET status = 'pending', updated_at = now()
		WHERE status = 'processing' AND updated_at < now() - make_interval(secs => $1)
	`, age.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reset stale generations: %w", err)
	}
	return res.RowsAffected()
}
