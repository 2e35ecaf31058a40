package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a user-scoped event pushed over the websocket.
type EventType string

const (
	EventBalanceUpdated    EventType = "balance.updated"
	EventRechargeUpdated   EventType = "recharge.updated"
	EventGenerationUpdated EventType = "generation.updated"
)

// userEventsChannel fans user events out to every API instance.
const userEventsChannel = "ws:user_events"

// Event is the envelope delivered to websocket clients.
type Event struct {
	Type   EventType   `json:"type"`
	Data   interface{} `json:"data"`
	SentAt time.Time   `json:"sent_at"`
}

// Publisher delivers events to every connection of a user.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, eventType EventType, data interface{}) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishToUser(context.Context, uuid.UUID, EventType, interface{}) error {
	return nil
}

func newEvent(eventType EventType, data interface{}) Event {
	return Event{Type: eventType, Data: data, SentAt: time.Now().UTC()}
}
