package generation

import "github.com/banana-studio/banana-api/internal/domain/credit"

// CreateRequest for POST /create-generation
type CreateRequest struct {
	Feature  Feature `json:"feature" validate:"required,generation_feature"`
	Prompt   string  `json:"prompt" validate:"max=1000"`
	InputURL string  `json:"input_url" validate:"omitempty,url,max=2048"`
}

// CreateResponse returns the queued job and the debit that paid for it.
type CreateResponse struct {
	Generation       *Generation         `json:"generation"`
	CreditsSpent     int64               `json:"credits_spent"`
	RemainingCredits int64               `json:"remaining_credits"`
	Transaction      *credit.Transaction `json:"transaction"`
}
