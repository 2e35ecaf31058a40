package generation

import "errors"

var (
	ErrNotFound       = errors.New("generation not found")
	ErrInvalidFeature = errors.New("unknown generation feature")
	ErrInputRequired  = errors.New("an input image is required")
	ErrPromptRequired = errors.New("a prompt is required for this feature")
	ErrNotProcessing  = errors.New("generation is not being processed")
)
