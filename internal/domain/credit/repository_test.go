package credit

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banana-studio/banana-api/internal/pkg/database/dbtest"
)

func seedBalance(t *testing.T, repo *CreditRepository, userID uuid.UUID, total, remaining int64) {
	t.Helper()
	ctx := context.Background()
	if total > 0 {
		_, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeAdminAdd, Amount: total, Reason: "seed"})
		require.NoError(t, err)
	}
	if spent := total - remaining; spent > 0 {
		_, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeSpend, Amount: spent, Reason: "seed"})
		require.NoError(t, err)
	}
}

func TestRepositorySpendAndAdminAdd(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	seedBalance(t, repo, userID, 150, 150)

	result, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeSpend, Amount: 20, Reason: "generation"})
	require.NoError(t, err)
	assert.Equal(t, int64(130), result.Balance.RemainingCredits)
	assert.Equal(t, int64(-20), result.Transaction.Amount)
	assert.Equal(t, int64(130), result.Transaction.BalanceAfter)

	other := dbtest.CreateUser(t, db)
	seedBalance(t, repo, other, 500, 150)
	result, err = repo.Apply(ctx, Mutation{UserID: other, Type: TxTypeAdminAdd, Amount: 50, Reason: "bonus"})
	require.NoError(t, err)
	assert.Equal(t, int64(550), result.Balance.TotalCredits)
	assert.Equal(t, int64(200), result.Balance.RemainingCredits)
}

func TestRepositoryRejectsOverflow(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	seedBalance(t, repo, userID, 500, 150)

	_, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeAdminAdd, Amount: math.MaxInt64, Reason: "grant"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.TotalCredits)
	assert.Equal(t, int64(150), balance.RemainingCredits)
}

func TestRepositoryConcurrentFirstReads(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		userID := dbtest.CreateUser(t, db)

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				balance, err := repo.GetBalance(ctx, userID)
				if err == nil && balance.RemainingCredits != 0 {
					t.Errorf("new user balance = %d", balance.RemainingCredits)
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	}
}

func TestRepositoryInsufficientLeavesNoTrace(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	seedBalance(t, repo, userID, 10, 10)

	_, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeSpend, Amount: 11, Reason: "too much"})
	require.ErrorIs(t, err, ErrInsufficientCredits)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.RemainingCredits)

	_, total, err := repo.ListTransactions(ctx, TransactionFilter{UserID: userID, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRepositoryReferenceIdempotency(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	m := Mutation{UserID: userID, Type: TxTypeEarn, Amount: 10, Reason: "check-in", ReferenceID: "checkin:2026-01-01"}

	first, err := repo.Apply(ctx, m)
	require.NoError(t, err)
	second, err := repo.Apply(ctx, m)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, int64(10), second.Balance.RemainingCredits)

	m.Amount = 20
	_, err = repo.Apply(ctx, m)
	assert.ErrorIs(t, err, ErrReferenceConflict)
}

func TestRepositoryUnknownUser(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	_, err := repo.Apply(context.Background(), Mutation{UserID: uuid.New(), Type: TxTypeEarn, Amount: 1, Reason: "ghost"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetBalance(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRepositoryExpectedBalance(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	seedBalance(t, repo, userID, 100, 100)

	wrong := int64(91)
	_, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeSpend, Amount: 10, Reason: "x", ExpectedBalanceAfter: &wrong})
	assert.ErrorIs(t, err, ErrBalanceMismatch)

	right := int64(90)
	result, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeSpend, Amount: 10, Reason: "x", ExpectedBalanceAfter: &right})
	require.NoError(t, err)
	assert.Equal(t, right, result.Balance.RemainingCredits)
}

func TestRepositoryConcurrentDebits(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	seedBalance(t, repo, userID, 100, 100)

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Apply(ctx, Mutation{UserID: userID, Type: TxTypeSpend, Amount: 7, Reason: "race"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientCredits)
		}()
	}
	wg.Wait()

	// 100 / 7 = 14 debits fit.
	assert.Equal(t, 14, succeeded)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance.RemainingCredits)

	var sum int64
	require.NoError(t, db.GetContext(ctx, &sum, `SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`, userID))
	assert.Equal(t, balance.RemainingCredits, sum)
}

func TestRepositoryAdminQueries(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := dbtest.CreateUser(t, db)
	seedBalance(t, repo, userID, 300, 250)

	users, total, err := repo.ListUsersWithCredits(ctx, UserFilter{Search: userID.String()[:8], Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, int64(250), users[0].RemainingCredits)

	rows, total, err := repo.SearchTransactions(ctx, SearchFilter{Type: TxTypeSpend, UserSearch: userID.String()[:8], Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, int64(-50), rows[0].Amount)
	assert.Contains(t, rows[0].UserEmail, userID.String()[:8])

	breakdown, err := repo.TypeBreakdown(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, breakdown[TxTypeSpend].TotalAmount, int64(50))

	stats, err := repo.CreditStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Max, int64(250))
}
