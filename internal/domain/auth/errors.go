package auth

import "errors"

var (
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
	ErrUserNotFound         = errors.New("user not found")
	ErrRefreshTokenRequired = errors.New("refresh token is required")

	ErrCooldown       = errors.New("please wait 60 seconds before requesting another code")
	ErrInvalidCode    = errors.New("invalid or already used verification code")
	ErrCodeExpired    = errors.New("verification code expired")
	ErrTooManyGuesses = errors.New("too many failed attempts, request a new verification code")
	ErrEmailDelivery  = errors.New("failed to send verification email")
)
