package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
)

// Upload categories
const (
	CategoryPaymentScreenshot = "payment_screenshot"
	CategoryPaymentQR         = "payment_qr"
	CategoryGenerationInput   = "generation_input"
	CategoryGenerationResult  = "generation_result"
)

var imageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// AllowedMimeTypes lists accepted content types per category.
var AllowedMimeTypes = map[string][]string{
	CategoryPaymentScreenshot: imageTypes,
	CategoryPaymentQR:         imageTypes,
	CategoryGenerationInput:   imageTypes,
	CategoryGenerationResult:  imageTypes,
}

// MaxFileSizes caps the byte size per category.
var MaxFileSizes = map[string]int64{
	CategoryPaymentScreenshot: 5 << 20,
	CategoryPaymentQR:         2 << 20,
	CategoryGenerationInput:   10 << 20,
	CategoryGenerationResult:  20 << 20,
}

// ValidateFile reads at most maxSize bytes and checks size and sniffed MIME type.
func ValidateFile(reader io.Reader, category string, maxSize int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}
	if int64(len(data)) > maxSize {
		return nil, "", ErrFileTooLarge
	}

	mimeType := http.DetectContentType(data)
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	allowedTypes, ok := AllowedMimeTypes[category]
	if !ok {
		return nil, "", fmt.Errorf("unknown category: %s", category)
	}
	for _, t := range allowedTypes {
		if t == mimeType {
			return data, mimeType, nil
		}
	}
	return nil, "", ErrInvalidMimeType
}

// ValidateCategory applies the category's size limit.
func ValidateCategory(reader io.Reader, category string) ([]byte, string, error) {
	maxSize, ok := MaxFileSizes[category]
	if !ok {
		maxSize = 10 << 20
	}
	return ValidateFile(reader, category, maxSize)
}

// GetExtensionForMime returns the file extension for a MIME type
func GetExtensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
