package recharge

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/pkg/response"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/telegram"
	"github.com/banana-studio/banana-api/internal/pkg/upload"
)

// Committer finishes ledger bookkeeping after a transaction commits.
type Committer interface {
	Committed(ctx context.Context, result *credit.Result)
}

// PaymentDetailsSource supplies the published payment QR code and contacts.
type PaymentDetailsSource interface {
	PaymentDetails(ctx context.Context) (*admin.PaymentDetails, error)
}

// Notifier announces recharge requests to administrators.
type Notifier interface {
	NotifyRecharge(ctx context.Context, notice telegram.RechargeNotice) error
}

// Uploader stores payment screenshots.
type Uploader interface {
	Image(ctx context.Context, category string, ownerID uuid.UUID, reader io.Reader, withThumbnail bool) (*upload.Result, error)
}

// Service handles recharge business logic
type Service struct {
	repo      Repository
	ledger    Committer
	audit     admin.Auditor
	settings  admin.SettingsReader
	payment   PaymentDetailsSource
	notifier  Notifier
	publisher realtime.Publisher
	uploader  Uploader
}

// Deps groups the collaborators of Service.
type Deps struct {
	Ledger    Committer
	Audit     admin.Auditor
	Settings  admin.SettingsReader
	Payment   PaymentDetailsSource
	Notifier  Notifier
	Publisher realtime.Publisher
	Uploader  Uploader
}

// NewService creates recharge service
func NewService(repo Repository, deps Deps) *Service {
	s := &Service{
		repo:      repo,
		ledger:    deps.Ledger,
		audit:     deps.Audit,
		settings:  deps.Settings,
		payment:   deps.Payment,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		uploader:  deps.Uploader,
	}
	if s.publisher == nil {
		s.publisher = realtime.NopPublisher{}
	}
	return s
}

// PaymentInfo returns the price plans and where to pay.
func (s *Service) PaymentInfo(ctx context.Context) (*PaymentInfoResponse, error) {
	details, err := s.payment.PaymentDetails(ctx)
	if err != nil {
		return nil, err
	}
	return &PaymentInfoResponse{Plans: Plans, CreditsPerYuan: CreditsPerYuan, PaymentDetails: *details}, nil
}

// amounts resolves the credits and payment due for a request.
func amounts(req *CreateRequest) (int64, decimal.Decimal, error) {
	if req.PlanID != "" {
		plan, ok := FindPlan(req.PlanID)
		if !ok {
			return 0, decimal.Zero, ErrUnknownPlan
		}
		return plan.TotalCredits(), plan.Price, nil
	}
	if req.CreditsAmount == 0 {
		return 0, decimal.Zero, ErrAmountRequired
	}
	if req.CreditsAmount < 0 {
		return 0, decimal.Zero, ErrInvalidAmount
	}
	if req.PaymentAmount != nil {
		if req.PaymentAmount.IsNegative() {
			return 0, decimal.Zero, ErrInvalidPayment
		}
		return req.CreditsAmount, req.PaymentAmount.Round(2), nil
	}
	return req.CreditsAmount, PriceFor(req.CreditsAmount), nil
}

// CreateRequest records a pending recharge for the caller. screenshot may be
// nil. Small requests are approved immediately when auto-approval is on.
func (s *Service) CreateRequest(ctx context.Context, userID uuid.UUID, req *CreateRequest, screenshot io.Reader) (*Record, error) {
	creditsAmount, paymentAmount, err := amounts(req)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		UserID:        userID,
		CreditsAmount: creditsAmount,
		PaymentAmount: paymentAmount,
		PaymentMethod: req.PaymentMethod,
		Description:   strings.TrimSpace(req.Description),
	}
	if req.PlanID != "" && rec.Description == "" {
		rec.Description = "plan " + req.PlanID
	}

	if screenshot != nil {
		uploaded, err := s.uploader.Image(ctx, storage.CategoryPaymentScreenshot, userID, screenshot, false)
		if err != nil {
			return nil, err
		}
		rec.PaymentScreenshotURL = &uploaded.URL
	}

	autoApprove, err := s.autoApproves(ctx, creditsAmount)
	if err != nil {
		return nil, err
	}

	if autoApprove {
		notes := "auto-approved"
		out, err := s.repo.CreateAndTransition(ctx, rec, Transition{To: StatusCompleted, Notes: &notes})
		if err != nil {
			return nil, err
		}
		s.afterTransition(ctx, out)
		s.notify(ctx, &out.Record, true)
		return &out.Record, nil
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	log.Info().
		Str("recharge_id", rec.ID.String()).
		Str("user_id", userID.String()).
		Int64("credits", rec.CreditsAmount).
		Msg("recharge request created")

	s.publish(ctx, rec)
	s.notify(ctx, rec, false)
	return rec, nil
}

func (s *Service) autoApproves(ctx context.Context, creditsAmount int64) (bool, error) {
	enabled, err := s.settings.Bool(ctx, admin.SettingAutoApproveRecharges, false)
	if err != nil || !enabled {
		return false, err
	}
	threshold, err := s.settings.Int64(ctx, admin.SettingRechargeApprovalThreshold, 0)
	if err != nil {
		return false, err
	}
	return creditsAmount <= threshold, nil
}

// ListMine returns the caller's recharge records.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus moves a pending record to a terminal status on behalf of an
// admin. Completing credits the owner exactly once.
func (s *Service) UpdateStatus(ctx context.Context, grant admin.Grant, req *UpdateStatusRequest) (*TransitionResponse, error) {
	if !req.Status.Terminal() {
		return nil, ErrInvalidStatus
	}

	out, err := s.repo.Transition(ctx, Transition{
		RecordID:    req.RechargeID,
		To:          req.Status,
		ProcessedBy: uuid.NullUUID{UUID: grant.UserID, Valid: true},
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, out)
	s.audit.LogAction(ctx, grant.UserID, admin.ActionRechargeStatus, "recharge_record", req.RechargeID.String(), map[string]interface{}{
		"status":         req.Status,
		"credits_amount": out.Record.CreditsAmount,
		"notes":          req.Notes,
	})
	return transitionResponse(out), nil
}

// ManualAdd records an offline payment for a user and completes it through
// the regular transition.
func (s *Service) ManualAdd(ctx context.Context, grant admin.Grant, req *ManualAddRequest) (*TransitionResponse, error) {
	method := req.PaymentMethod
	if method == "" {
		method = MethodManual
	}
	payment := PriceFor(req.CreditsAmount)
	if req.PaymentAmount != nil {
		if req.PaymentAmount.IsNegative() {
			return nil, ErrInvalidPayment
		}
		payment = req.PaymentAmount.Round(2)
	}

	rec := &Record{
		UserID:        req.UserID,
		CreditsAmount: req.CreditsAmount,
		PaymentAmount: payment,
		PaymentMethod: method,
		Description:   strings.TrimSpace(req.Description),
	}
	notes := "manual recharge"
	out, err := s.repo.CreateAndTransition(ctx, rec, Transition{
		To:          StatusCompleted,
		ProcessedBy: uuid.NullUUID{UUID: grant.UserID, Valid: true},
		Notes:       &notes,
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, out)
	s.audit.LogAction(ctx, grant.UserID, admin.ActionRechargeManualAdd, "recharge_record", out.Record.ID.String(), map[string]interface{}{
		"user_id":        req.UserID,
		"credits_amount": req.CreditsAmount,
		"payment_amount": payment.StringFixed(2),
		"payment_method": method,
	})
	return transitionResponse(out), nil
}

// List searches recharge records for the admin console.
func (s *Service) List(ctx context.Context, filter Filter) (*ListResponse, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	var (
		records   []RecordWithUser
		total     int
		breakdown map[Status]StatusCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		records, total, err = s.repo.Search(gctx, filter)
		return
	})
	g.Go(func() (err error) {
		breakdown, err = s.repo.StatusBreakdown(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var totalAmount int64
	for _, c := range breakdown {
		totalAmount += c.TotalAmount
	}

	return &ListResponse{
		Recharges:  records,
		Pagination: response.NewMeta(filter.Limit, filter.Offset, total),
		Stats: ListStats{
			StatusBreakdown: breakdown,
			TotalAmount:     totalAmount,
			FilteredCount:   total,
			PendingCount:    breakdown[StatusPending].Count,
		},
		Filters: ListFilters{
			Status:        optional(string(filter.Status)),
			UserSearch:    optional(filter.UserSearch),
			PaymentMethod: optional(filter.PaymentMethod),
			MinAmount:     filter.MinAmount,
			MaxAmount:     filter.MaxAmount,
			DateFrom:      filter.DateFrom,
			DateTo:        filter.DateTo,
		},
	}, nil
}

func (s *Service) afterTransition(ctx context.Context, out *Outcome) {
	log.Info().
		Str("recharge_id", out.Record.ID.String()).
		Str("user_id", out.Record.UserID.String()).
		Str("status", string(out.Record.Status)).
		Msg("recharge record processed")

	if out.Credit != nil {
		s.ledger.Committed(ctx, out.Credit)
	}
	s.publish(ctx, &out.Record)
}

func (s *Service) publish(ctx context.Context, rec *Record) {
	if err := s.publisher.PublishToUser(ctx, rec.UserID, realtime.EventRechargeUpdated, rec); err != nil {
		log.Warn().Err(err).Str("recharge_id", rec.ID.String()).Msg("failed to publish recharge event")
	}
}

func (s *Service) notify(ctx context.Context, rec *Record, autoApproved bool) {
	if s.notifier == nil {
		return
	}

	notice := telegram.RechargeNotice{
		RechargeID:    rec.ID.String(),
		CreditsAmount: rec.CreditsAmount,
		PaymentAmount: rec.PaymentAmount.StringFixed(2),
		PaymentMethod: rec.PaymentMethod,
		Description:   rec.Description,
		AutoApproved:  autoApproved,
	}
	if rec.PaymentScreenshotURL != nil {
		notice.ScreenshotURL = *rec.PaymentScreenshotURL
	}
	if full, err := s.repo.GetByID(ctx, rec.ID); err == nil {
		notice.UserEmail = full.UserEmail
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.notifier.NotifyRecharge(ctx, notice); err != nil {
		log.Warn().Err(err).Str("recharge_id", rec.ID.String()).Msg("failed to notify admins about recharge")
	}
}

func transitionResponse(out *Outcome) *TransitionResponse {
	resp := &TransitionResponse{Record: out.Record}
	if out.Credit != nil {
		resp.CreditsAdded = out.Record.CreditsAmount
		resp.CreditBalance = &out.Credit.Balance
		resp.Transaction = &out.Credit.Transaction
		resp.AlreadyCredited = out.Credit.Replayed
	}
	return resp
}
