package generation

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/upload"
)

// Committer finishes ledger bookkeeping after a transaction commits.
type Committer interface {
	Committed(ctx context.Context, result *credit.Result)
}

// Uploader stores input and result images.
type Uploader interface {
	Image(ctx context.Context, category string, ownerID uuid.UUID, reader io.Reader, withThumbnail bool) (*upload.Result, error)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Ledger    Committer
	Settings  admin.SettingsReader
	Publisher realtime.Publisher
	Uploader  Uploader
	Waker     Waker
}

// Service queues generation jobs and charges for them.
type Service struct {
	repo      Repository
	ledger    Committer
	settings  admin.SettingsReader
	publisher realtime.Publisher
	uploader  Uploader
	waker     Waker
}

// NewService creates generation service
func NewService(repo Repository, deps Deps) *Service {
	s := &Service{
		repo:      repo,
		ledger:    deps.Ledger,
		settings:  deps.Settings,
		publisher: deps.Publisher,
		uploader:  deps.Uploader,
		waker:     deps.Waker,
	}
	if s.publisher == nil {
		s.publisher = realtime.NopPublisher{}
	}
	if s.waker == nil {
		s.waker = nopWaker{}
	}
	return s
}

// Cost returns the current price of feature.
func (s *Service) Cost(ctx context.Context, feature Feature) (int64, error) {
	cost, err := s.settings.Int64(ctx, feature.CostSetting(), feature.DefaultCost())
	if err != nil {
		return 0, err
	}
	if cost < 0 {
		cost = 0
	}
	return cost, nil
}

// Create charges the caller and queues a job. image may be nil when
// req.InputURL is set.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *CreateRequest, image io.Reader) (*CreateResponse, error) {
	if !req.Feature.Valid() {
		return nil, ErrInvalidFeature
	}
	prompt := strings.TrimSpace(req.Prompt)
	if req.Feature.RequiresPrompt() && prompt == "" {
		return nil, ErrPromptRequired
	}
	if image == nil && req.InputURL == "" {
		return nil, ErrInputRequired
	}

	cost, err := s.Cost(ctx, req.Feature)
	if err != nil {
		return nil, err
	}

	inputURL := req.InputURL
	if image != nil {
		uploaded, err := s.uploader.Image(ctx, storage.CategoryGenerationInput, userID, image, false)
		if err != nil {
			return nil, err
		}
		inputURL = uploaded.URL
	}

	out, err := s.repo.CreateWithDebit(ctx, &Generation{
		UserID:   userID,
		Feature:  req.Feature,
		Prompt:   prompt,
		InputURL: inputURL,
		Cost:     cost,
	})
	if err != nil {
		return nil, err
	}

	resp := &CreateResponse{Generation: out.Generation, CreditsSpent: cost}
	if out.Credit != nil {
		s.ledger.Committed(ctx, out.Credit)
		resp.RemainingCredits = out.Credit.Balance.RemainingCredits
		resp.Transaction = &out.Credit.Transaction
	}

	log.Info().
		Str("generation_id", out.Generation.ID.String()).
		Str("user_id", userID.String()).
		Str("feature", string(req.Feature)).
		Int64("cost", cost).
		Msg("generation queued")

	publish(ctx, s.publisher, out.Generation)
	s.waker.Wake(ctx)
	return resp, nil
}

// Get returns one of the caller's generations.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Generation, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.UserID != userID {
		return nil, ErrNotFound
	}
	return g, nil
}

// List returns the caller's generations, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Generation, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func publish(ctx context.Context, p realtime.Publisher, g *Generation) {
	if err := p.PublishToUser(ctx, g.UserID, realtime.EventGenerationUpdated, g); err != nil {
		log.Warn().Err(err).Str("generation_id", g.ID.String()).Msg("failed to publish generation event")
	}
}
