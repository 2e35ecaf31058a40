package generation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/domain/admin"
)

// Feature is a generation tool offered to users.
type Feature string

const (
	FeatureLineArt           Feature = "line_art"
	FeatureMultiView         Feature = "multi_view"
	FeatureBackgroundReplace Feature = "background_replace"
)

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	switch f {
	case FeatureLineArt, FeatureMultiView, FeatureBackgroundReplace:
		return true
	}
	return false
}

// CostSetting is the system_settings key holding the feature's price.
func (f Feature) CostSetting() string {
	switch f {
	case FeatureLineArt:
		return admin.SettingLineArtCost
	case FeatureMultiView:
		return admin.SettingMultiViewCost
	default:
		return admin.SettingBackgroundReplaceCost
	}
}

// DefaultCost applies when the cost setting is missing.
func (f Feature) DefaultCost() int64 {
	switch f {
	case FeatureLineArt:
		return 20
	case FeatureMultiView:
		return 30
	default:
		return 10
	}
}

// RequiresPrompt reports whether the user must describe the result.
func (f Feature) RequiresPrompt() bool {
	return f == FeatureBackgroundReplace
}

// Instruction builds the model prompt from the feature and the user's text.
func (f Feature) Instruction(userPrompt string) string {
	var base string
	switch f {
	case FeatureLineArt:
		base = "Convert this image into clean black line art on a white background, keeping the main contours and removing shading and color."
	case FeatureMultiView:
		base = "Draw the subject of this image as a character turnaround sheet with front, side, and back views in a consistent style."
	case FeatureBackgroundReplace:
		base = "Keep the main subject of this image unchanged and replace the background with the following scene:"
	}
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return base
	}
	return base + " " + userPrompt
}

// Status is the lifecycle state of a generation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Generation is a row of generations.
type Generation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Feature   Feature   `db:"feature" json:"feature"`
	Prompt    string    `db:"prompt" json:"prompt"`
	InputURL  string    `db:"input_url" json:"input_url"`
	Status    Status    `db:"status" json:"status"`
	Cost      int64     `db:"cost" json:"cost"`
	ResultURL *string   `db:"result_url" json:"result_url,omitempty"`
	Error     *string   `db:"error" json:"error,omitempty"`
	Attempts  int       `db:"attempts" json:"attempts"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
