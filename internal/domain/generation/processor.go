package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/pkg/imagegen"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
)

// DefaultMaxAttempts is how often a job is tried before it is refunded.
const DefaultMaxAttempts = 3

// Generator runs image models and fetches their output.
type Generator interface {
	Generate(ctx context.Context, req imagegen.Request) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Processor executes queued jobs one at a time.
type Processor struct {
	repo        Repository
	generator   Generator
	uploader    Uploader
	ledger      Committer
	publisher   realtime.Publisher
	maxAttempts int
}

// ProcessorDeps groups the collaborators of Processor.
type ProcessorDeps struct {
	Generator   Generator
	Uploader    Uploader
	Ledger      Committer
	Publisher   realtime.Publisher
	MaxAttempts int
}

// NewProcessor creates a job processor
func NewProcessor(repo Repository, deps ProcessorDeps) *Processor {
	p := &Processor{
		repo:        repo,
		generator:   deps.Generator,
		uploader:    deps.Uploader,
		ledger:      deps.Ledger,
		publisher:   deps.Publisher,
		maxAttempts: deps.MaxAttempts,
	}
	if p.publisher == nil {
		p.publisher = realtime.NopPublisher{}
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	return p
}

// ProcessNext claims and runs one pending job. It reports false when the
// queue is empty.
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	g, err := p.repo.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if g == nil {
		return false, nil
	}
	publish(ctx, p.publisher, g)

	logger := log.With().
		Str("generation_id", g.ID.String()).
		Str("feature", string(g.Feature)).
		Int("attempt", g.Attempts).
		Logger()

	start := time.Now()
	logger.Info().Msg("Processing generation")

	var runErr error
	if g.Attempts > p.maxAttempts {
		runErr = fmt.Errorf("gave up after %d attempts", p.maxAttempts)
	} else {
		runErr = p.run(ctx, g)
	}
	if runErr == nil {
		logger.Info().Dur("took", time.Since(start)).Msg("Generation done")
		return true, nil
	}

	logger.Error().Err(runErr).Msg("Generation failed")
	if err := p.fail(ctx, g, runErr); err != nil {
		return true, err
	}
	return true, nil
}

func (p *Processor) run(ctx context.Context, g *Generation) error {
	resultURL, err := p.generator.Generate(ctx, imagegen.Request{
		Prompt:    g.Feature.Instruction(g.Prompt),
		InputURLs: []string{g.InputURL},
	})
	if err != nil {
		return err
	}

	data, err := p.generator.Download(ctx, resultURL)
	if err != nil {
		return err
	}

	uploaded, err := p.uploader.Image(ctx, storage.CategoryGenerationResult, g.UserID, bytes.NewReader(data), true)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	done, err := p.repo.Complete(ctx, g.ID, uploaded.URL)
	if err != nil {
		return err
	}
	publish(ctx, p.publisher, done)
	return nil
}

func (p *Processor) fail(ctx context.Context, g *Generation, cause error) error {
	attempts := p.maxAttempts
	if errors.Is(cause, imagegen.ErrNotConfigured) {
		// Retrying cannot help without credentials.
		attempts = 0
	}

	out, err := p.repo.Fail(ctx, g.ID, cause.Error(), attempts)
	if err != nil {
		return fmt.Errorf("record generation failure: %w", err)
	}
	if out.Credit != nil {
		p.ledger.Committed(ctx, out.Credit)
		log.Info().
			Str("generation_id", g.ID.String()).
			Int64("refunded", g.Cost).
			Msg("generation refunded")
	}
	publish(ctx, p.publisher, out.Generation)
	return nil
}

// Run processes jobs until ctx is done. Between empty polls it waits for the
// next tick or a wake-up, and it periodically requeues jobs abandoned by a
// crashed worker.
func (p *Processor) Run(ctx context.Context, pollInterval, staleAfter time.Duration, wake <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastIdleLog := time.Time{}
	lastSweep := time.Time{}
	for {
		if staleAfter > 0 && time.Since(lastSweep) >= staleAfter {
			if n, err := p.repo.ResetStale(ctx, staleAfter); err != nil {
				log.Error().Err(err).Msg("failed to requeue stale generations")
			} else if n > 0 {
				log.Warn().Int64("count", n).Msg("requeued stale generations")
			}
			lastSweep = time.Now()
		}

		busy, err := p.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("generation worker error")
		}
		if busy {
			continue
		}
		if now := time.Now(); now.Sub(lastIdleLog) >= time.Minute {
			log.Debug().Msg("Idle: no pending generations")
			lastIdleLog = now
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-ticker.C:
		}
	}
}
