package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes user events for processes that hold no
// websocket connections, such as the generation worker.
type RedisPublisher struct {
	redis      *redis.Client
	instanceID string
}

// NewRedisPublisher returns a Publisher; a nil client yields NopPublisher.
func NewRedisPublisher(client *redis.Client) Publisher {
	if client == nil {
		return NopPublisher{}
	}
	return &RedisPublisher{redis: client, instanceID: "worker-" + uuid.NewString()}
}

func (p *RedisPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, eventType EventType, data interface{}) error {
	payload, err := json.Marshal(newEvent(eventType, data))
	if err != nil {
		return err
	}
	msg, err := json.Marshal(userEventMessage{
		UserID:           userID.String(),
		Payload:          payload,
		SenderInstanceID: p.instanceID,
	})
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, userEventsChannel, msg).Err()
}
