package auth

import (
	"time"

	"github.com/google/uuid"
)

// SendCodeRequest for POST /send-verification-code
type SendCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// SendCodeResponse acknowledges an issued code
type SendCodeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}

// RegisterRequest for POST /register-with-code
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=128,password_strength"`
}

// LoginRequest for POST /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest for POST /refresh-token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse returned after login/register
type AuthResponse struct {
	User   UserResponse   `json:"user"`
	Tokens TokensResponse `json:"tokens"`

	// SignupCredits is set on registration.
	SignupCredits *int64 `json:"signup_credits,omitempty"`
}

// UserResponse represents user in API response
type UserResponse struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      string    `json:"created_at"`
}

// TokensResponse represents tokens in API response
type TokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds until access token expires
	TokenType    string `json:"token_type"`
}

// NewUserResponse creates UserResponse from user data
func NewUserResponse(id uuid.UUID, email string, emailConfirmed bool, createdAt time.Time) UserResponse {
	return UserResponse{
		ID:             id,
		Email:          email,
		EmailConfirmed: emailConfirmed,
		CreatedAt:      createdAt.Format(time.RFC3339),
	}
}
