package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/user"
	"github.com/banana-studio/banana-api/internal/pkg/jwt"
	"github.com/banana-studio/banana-api/internal/pkg/password"
)

// Mailer delivers verification and welcome emails.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string, ttlMinutes int) error
	SendWelcome(to string, credits int64, dashboardURL string)
}

// Ledger applies the signup bonus inside the registration transaction.
type Ledger interface {
	ApplyTx(ctx context.Context, tx *sqlx.Tx, m credit.Mutation) (*credit.Result, error)
}

// Committer is notified once a ledger mutation has been committed.
type Committer interface {
	Committed(ctx context.Context, result *credit.Result)
}

// TxRunner runs fn inside one database transaction.
type TxRunner func(ctx context.Context, fn func(tx *sqlx.Tx) error) error

// Deps are the collaborators of Service.
type Deps struct {
	Users     user.Repository
	Codes     CodeRepository
	Cooldown  Cooldown
	Tokens    TokenStore
	JWT       *jwt.Service
	Mailer    Mailer
	Ledger    Ledger
	Committer Committer
	Settings  admin.SettingsReader
	RunTx     TxRunner

	DashboardURL string
}

// Service handles authentication business logic
type Service struct {
	Deps
	now func() time.Time
}

// NewService creates auth service
func NewService(deps Deps) *Service {
	if deps.Tokens == nil {
		deps.Tokens = noTokenStore{}
	}
	if deps.Cooldown == nil {
		deps.Cooldown = NewDBCooldown(deps.Codes)
	}
	return &Service{Deps: deps, now: time.Now}
}

// SendCode issues a verification code for an unregistered email.
func (s *Service) SendCode(ctx context.Context, req *SendCodeRequest) (*SendCodeResponse, error) {
	email := user.NormalizeEmail(req.Email)

	exists, err := s.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	ok, err := s.Cooldown.Acquire(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("verification cooldown: %w", err)
	}
	if !ok {
		return nil, ErrCooldown
	}

	code, err := generateCode()
	if err != nil {
		s.releaseCooldown(ctx, email)
		return nil, err
	}
	rec := &VerificationCode{
		Email:     email,
		CodeHash:  hashCode(email, code),
		ExpiresAt: s.now().Add(verificationCodeTTL),
	}
	if err := s.Codes.Create(ctx, rec); err != nil {
		s.releaseCooldown(ctx, email)
		return nil, err
	}

	ttlMinutes := int(verificationCodeTTL / time.Minute)
	if err := s.Mailer.SendVerificationCode(ctx, email, code, ttlMinutes); err != nil {
		log.Error().Err(err).Str("email", email).Msg("failed to deliver verification code")
		if err := s.Codes.Delete(context.WithoutCancel(ctx), rec.ID); err != nil {
			log.Error().Err(err).Str("email", email).Msg("failed to drop undelivered verification code")
		}
		s.releaseCooldown(ctx, email)
		return nil, ErrEmailDelivery
	}

	log.Info().Str("email", email).Time("expires_at", rec.ExpiresAt).Msg("verification code issued")
	return &SendCodeResponse{
		Success:   true,
		Message:   "verification code sent",
		ExpiresIn: int(verificationCodeTTL.Seconds()),
	}, nil
}

func (s *Service) releaseCooldown(ctx context.Context, email string) {
	if err := s.Cooldown.Release(context.WithoutCancel(ctx), email); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("failed to release verification cooldown")
	}
}

// Register consumes a verification code and creates a confirmed account.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	email := user.NormalizeEmail(req.Email)

	exists, err := s.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	code, err := s.Codes.FindUnused(ctx, email, hashCode(email, req.Code))
	if errors.Is(err, ErrInvalidCode) {
		return nil, s.recordMiss(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	if s.now().After(code.ExpiresAt) {
		return nil, ErrCodeExpired
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	bonus, err := s.Settings.Int64(ctx, admin.SettingNewUserCredits, credit.DefaultNewUserCredits)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := &user.User{
		ID:               uuid.New(),
		Email:            email,
		PasswordHash:     hash,
		EmailConfirmedAt: &now,
	}

	var granted *credit.Result
	err = s.RunTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.Codes.MarkUsedTx(ctx, tx, code.ID); err != nil {
			return err
		}
		if err := s.Users.CreateTx(ctx, tx, u); err != nil {
			return err
		}
		if bonus <= 0 {
			return nil
		}
		granted, err = s.Ledger.ApplyTx(ctx, tx, credit.Mutation{
			UserID:      u.ID,
			Type:        credit.TxTypeEarn,
			Amount:      bonus,
			Reason:      "new user bonus",
			ReferenceID: "signup:" + u.ID.String(),
		})
		return err
	})
	if errors.Is(err, user.ErrEmailAlreadyExists) {
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", u.ID.String()).Str("email", email).Int64("signup_credits", bonus).Msg("user registered")
	if granted != nil {
		s.Committer.Committed(ctx, granted)
	} else {
		bonus = 0
	}
	s.Mailer.SendWelcome(email, bonus, s.DashboardURL)

	resp, err := s.generateTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	resp.SignupCredits = &bonus
	return resp, nil
}

func (s *Service) recordMiss(ctx context.Context, email string) error {
	attempts, err := s.Codes.RecordMiss(ctx, email, verificationCodeMaxAttempts)
	if err != nil {
		return err
	}
	if attempts >= verificationCodeMaxAttempts {
		log.Warn().Str("email", email).Int("attempts", attempts).Msg("verification codes invalidated after repeated misses")
		return ErrTooManyGuesses
	}
	return ErrInvalidCode
}

// Login authenticates user
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	u, err := s.Users.GetByEmail(ctx, user.NormalizeEmail(req.Email))
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !password.Verify(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokens(ctx, u)
}

// Refresh rotates a refresh token into a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if refreshToken == "" {
		return nil, ErrRefreshTokenRequired
	}

	claims, err := s.JWT.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	userID, err := s.Tokens.Take(ctx, jwt.HashRefreshToken(refreshToken))
	if err != nil || userID != claims.UserID {
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.generateTokens(ctx, u)
}

// Logout invalidates refresh token
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Tokens.Delete(ctx, jwt.HashRefreshToken(refreshToken))
}

// GetCurrentUser returns current user by ID
func (s *Service) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	resp := NewUserResponse(u.ID, u.Email, u.EmailConfirmed(), u.CreatedAt)
	return &resp, nil
}

func (s *Service) generateTokens(ctx context.Context, u *user.User) (*AuthResponse, error) {
	accessToken, err := s.JWT.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}

	refreshToken, _, _, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}

	if err := s.Tokens.Save(ctx, jwt.HashRefreshToken(refreshToken), u.ID, s.JWT.GetRefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResponse{
		User: NewUserResponse(u.ID, u.Email, u.EmailConfirmed(), u.CreatedAt),
		Tokens: TokensResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    int(s.JWT.GetAccessTTL().Seconds()),
			TokenType:    "Bearer",
		},
	}, nil
}
