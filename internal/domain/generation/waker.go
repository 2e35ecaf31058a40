package generation

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PendingChannel carries wake-ups for idle generation workers. Workers poll
// regardless, so a lost message only delays a job by one interval.
const PendingChannel = "generations:pending"

// Waker nudges workers after a job is queued.
type Waker interface {
	Wake(ctx context.Context)
}

type redisWaker struct {
	redis *redis.Client
}

// NewWaker returns a Redis-backed Waker; a nil client yields a no-op.
func NewWaker(client *redis.Client) Waker {
	if client == nil {
		return nopWaker{}
	}
	return &redisWaker{redis: client}
}

func (w *redisWaker) Wake(ctx context.Context) {
	if err := w.redis.Publish(ctx, PendingChannel, "1").Err(); err != nil {
		log.Warn().Err(err).Msg("failed to wake generation workers")
	}
}

type nopWaker struct{}

func (nopWaker) Wake(context.Context) {}

// SubscribeWakeups forwards PendingChannel messages to wake without
// blocking until ctx is done.
func SubscribeWakeups(ctx context.Context, client *redis.Client, wake chan<- struct{}) {
	if client == nil {
		return
	}
	sub := client.Subscribe(ctx, PendingChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
