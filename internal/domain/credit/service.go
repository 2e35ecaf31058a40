package credit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// Defaults used when a setting row is missing.
const (
	DefaultDailyCheckinCredits = 10
	DefaultNewUserCredits      = 100
)

// Service exposes the ledger to HTTP handlers and other domains.
type Service struct {
	repo      Repository
	authz     admin.Authorizer
	audit     admin.Auditor
	settings  admin.SettingsReader
	publisher realtime.Publisher
	now       func() time.Time
}

// NewService creates a new credit service
func NewService(repo Repository, authz admin.Authorizer, audit admin.Auditor, settings admin.SettingsReader, publisher realtime.Publisher) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		authz:     authz,
		audit:     audit,
		settings:  settings,
		publisher: publisher,
		now:       time.Now,
	}
}

// Committed logs a committed mutation and notifies the owner. Callers that use
// Repository.ApplyTx call it after their own commit.
func (s *Service) Committed(ctx context.Context, result *Result) {
	if result == nil {
		return
	}
	tx := result.Transaction
	log.Info().
		Str("user_id", tx.UserID.String()).
		Str("type", string(tx.Type)).
		Int64("amount", tx.Amount).
		Int64("balance_after", tx.BalanceAfter).
		Bool("replayed", result.Replayed).
		Msg("credit balance updated")

	if result.Replayed {
		return
	}
	if err := s.publisher.PublishToUser(ctx, tx.UserID, realtime.EventBalanceUpdated, result); err != nil {
		log.Warn().Err(err).Str("user_id", tx.UserID.String()).Msg("failed to publish balance event")
	}
}

func (s *Service) apply(ctx context.Context, m Mutation) (*Result, error) {
	result, err := s.repo.Apply(ctx, m)
	if err != nil {
		return nil, err
	}
	s.Committed(ctx, result)
	return result, nil
}

// GetBalance returns the caller's balance, creating it at zero on first use.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Spend deducts credits from the caller's own balance.
func (s *Service) Spend(ctx context.Context, userID uuid.UUID, req *SpendRequest) (*Result, error) {
	return s.apply(ctx, Mutation{
		UserID:      userID,
		Type:        TxTypeSpend,
		Amount:      req.CreditsToDeduct,
		Reason:      req.Reason,
		CreatedBy:   uuid.NullUUID{UUID: userID, Valid: true},
		ReferenceID: req.ReferenceID,
	})
}

// ListTransactions returns a page of target's ledger. Reading another
// user's ledger requires admin privilege.
func (s *Service) ListTransactions(ctx context.Context, callerID uuid.UUID, target *uuid.UUID, txType TxType, limit, offset int) ([]Transaction, int, error) {
	userID := callerID
	if target != nil && *target != callerID {
		if err := s.requireAdmin(ctx, callerID); err != nil {
			return nil, 0, err
		}
		userID = *target
	}
	if txType != "" && !txType.Valid() {
		return nil, 0, ErrInvalidType
	}

	return s.repo.ListTransactions(ctx, TransactionFilter{UserID: userID, Type: txType, Limit: limit, Offset: offset})
}

func (s *Service) requireAdmin(ctx context.Context, userID uuid.UUID) error {
	grant, err := s.authz.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !grant.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// CreateTransaction records a client-requested ledger operation. A deduct on
// the caller's own balance is a spend; everything else needs admin privilege.
func (s *Service) CreateTransaction(ctx context.Context, callerID uuid.UUID, req *CreateTransactionRequest) (*Result, error) {
	target := callerID
	if req.UserID != nil {
		target = *req.UserID
	}

	m := Mutation{
		UserID:               target,
		Amount:               req.CreditsAmount,
		Reason:               req.Reason,
		CreatedBy:            uuid.NullUUID{UUID: callerID, Valid: true},
		ReferenceID:          req.ReferenceID,
		ExpectedBalanceAfter: req.BalanceAfter,
	}

	if req.TransactionType == OpDeduct && target == callerID {
		m.Type = TxTypeSpend
		return s.apply(ctx, m)
	}

	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	action := admin.ActionCreditsAdded
	switch req.TransactionType {
	case OpAdd:
		m.Type = TxTypeAdminAdd
	case OpDeduct:
		m.Type = TxTypeAdminDeduct
		action = admin.ActionCreditsDeducted
	case OpRefund:
		m.Type = TxTypeRefund
		action = admin.ActionCreditsRefunded
	default:
		return nil, ErrInvalidType
	}

	result, err := s.apply(ctx, m)
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.audit.LogAction(ctx, callerID, action, "user_credits", target.String(), map[string]interface{}{
			"transaction_id": result.Transaction.ID,
			"amount":         result.Transaction.Amount,
			"reason":         m.Reason,
		})
	}
	return result, nil
}

// AddCreditsForUser grants credits on behalf of an admin.
func (s *Service) AddCreditsForUser(ctx context.Context, grant admin.Grant, req *AddCreditsRequest) (*Result, error) {
	if !grant.IsAdmin() {
		return nil, ErrForbidden
	}

	result, err := s.apply(ctx, Mutation{
		UserID:    req.TargetUserID,
		Type:      TxTypeAdminAdd,
		Amount:    req.CreditsAmount,
		Reason:    req.Reason,
		CreatedBy: uuid.NullUUID{UUID: grant.UserID, Valid: true},
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogAction(ctx, grant.UserID, admin.ActionCreditsAdded, "user_credits", req.TargetUserID.String(), map[string]interface{}{
		"transaction_id": result.Transaction.ID,
		"amount":         req.CreditsAmount,
		"reason":         req.Reason,
	})
	return result, nil
}

// CheckIn credits the daily reward once per UTC day.
func (s *Service) CheckIn(ctx context.Context, userID uuid.UUID) (*CheckInResponse, error) {
	amount, err := s.settings.Int64(ctx, admin.SettingDailyCheckinCredits, DefaultDailyCheckinCredits)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrCheckInDisabled
	}

	day := s.now().UTC().Format("2006-01-02")
	result, err := s.apply(ctx, Mutation{
		UserID:      userID,
		Type:        TxTypeEarn,
		Amount:      amount,
		Reason:      "daily check-in " + day,
		CreatedBy:   uuid.NullUUID{UUID: userID, Valid: true},
		ReferenceID: "checkin:" + day,
	})
	if errors.Is(err, ErrReferenceConflict) {
		// The reward changed since the earlier check-in today.
		return s.checkedInToday(ctx, userID, day)
	}
	if err != nil {
		return nil, err
	}

	return &CheckInResponse{
		AlreadyCheckedIn: result.Replayed,
		CreditsEarned:    result.Transaction.Amount,
		RemainingCredits: result.Balance.RemainingCredits,
		Transaction:      result.Transaction,
		Date:             day,
	}, nil
}

func (s *Service) checkedInToday(ctx context.Context, userID uuid.UUID, day string) (*CheckInResponse, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CheckInResponse{AlreadyCheckedIn: true, RemainingCredits: balance.RemainingCredits, Date: day}, nil
}

// UsersWithCredits lists users and balances for the admin console.
func (s *Service) UsersWithCredits(ctx context.Context, filter UserFilter) (*UsersWithCreditsResponse, error) {
	var (
		users []UserWithCredits
		total int
		stats *CreditStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, total, err = s.repo.ListUsersWithCredits(gctx, filter)
		return
	})
	g.Go(func() (err error) {
		stats, err = s.repo.CreditStats(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &UsersWithCreditsResponse{
		Users:      users,
		Pagination: response.NewMeta(filter.Limit, filter.Offset, total),
		Stats:      UsersStats{Credits: *stats, FilteredCount: total},
		Filters: UsersFilters{
			Search:     optional(filter.Search),
			MinCredits: filter.MinCredits,
			MaxCredits: filter.MaxCredits,
		},
	}, nil
}

// TransactionsWithUsers searches the whole ledger for the admin console.
func (s *Service) TransactionsWithUsers(ctx context.Context, filter SearchFilter) (*TransactionsWithUsersResponse, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidType
	}

	var (
		rows      []TransactionWithUser
		total     int
		breakdown map[TxType]TypeTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, total, err = s.repo.SearchTransactions(gctx, filter)
		return
	})
	g.Go(func() (err error) {
		breakdown, err = s.repo.TypeBreakdown(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &TransactionsWithUsersResponse{
		Transactions: rows,
		Pagination:   response.NewMeta(filter.Limit, filter.Offset, total),
		Stats:        TransactionsStats{TypeBreakdown: breakdown, FilteredCount: total},
		Filters: TransactionsFilters{
			TransactionType: optional(string(filter.Type)),
			UserSearch:      optional(filter.UserSearch),
			DateFrom:        filter.DateFrom,
			DateTo:          filter.DateTo,
		},
	}, nil
}
