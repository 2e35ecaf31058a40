package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/pkg/imaging"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
)

// ErrNotConfigured is returned when no storage backend is wired.
var ErrNotConfigured = errors.New("upload service not configured")

// Result describes a stored image.
type Result struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ContentType  string `json:"content_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// Service validates, normalizes and stores uploaded images.
type Service struct {
	store     storage.Storage
	processor *imaging.Processor
}

// NewService creates upload service
func NewService(store storage.Storage, processor *imaging.Processor) *Service {
	return &Service{store: store, processor: processor}
}

// Image stores reader under category/owner. withThumbnail also stores a
// "_thumb" variant next to the original.
func (s *Service) Image(ctx context.Context, category string, ownerID uuid.UUID, reader io.Reader, withThumbnail bool) (*Result, error) {
	if s == nil || s.store == nil {
		return nil, ErrNotConfigured
	}

	data, _, err := storage.ValidateCategory(reader, category)
	if err != nil {
		return nil, err
	}

	img, err := s.processor.Process(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidMimeType, err)
	}

	base := fmt.Sprintf("%s/%s/%s/%s", category, time.Now().UTC().Format("2006/01"), ownerID, uuid.New())
	key := base + img.Extension

	if err := s.store.Put(ctx, key, bytes.NewReader(img.Original), img.ContentType); err != nil {
		return nil, err
	}

	result := &Result{
		Key:         key,
		URL:         s.store.GetURL(key),
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
	}

	if withThumbnail {
		thumbKey := base + "_thumb" + img.Extension
		if err := s.store.Put(ctx, thumbKey, bytes.NewReader(img.Thumbnail), img.ContentType); err != nil {
			log.Warn().Err(err).Str("key", thumbKey).Msg("thumbnail upload failed")
		} else {
			result.ThumbnailURL = s.store.GetURL(thumbKey)
		}
	}

	log.Debug().Str("key", key).Str("category", category).Msg("image stored")
	return result, nil
}
